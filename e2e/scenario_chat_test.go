package e2e

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"chat-relay/domain"
)

type ChatSuite struct {
	BaseTCPSuite
}

func TestChatScenarios(t *testing.T) {
	suite.Run(t, new(ChatSuite))
}

func (s *ChatSuite) TestDuplicateLogin() {
	t := s.T()
	s.Step(t, "first client claims the username")
	first := s.Dial(t, "amber-1")
	first.Login("amber")

	s.Step(t, "second client is rejected with the same name")
	second := s.Dial(t, "amber-2")
	second.Send(domain.NewLogin("amber"))

	response := second.Read()
	s.Require().Equal(domain.TypeLoginResponse, response.Type)
	content := response.Content.(domain.LoginResponseContent)
	s.Require().False(content.Success)
	s.Require().NotEmpty(content.Message)

	s.Step(t, "first client keeps its session")
	first.Send(domain.NewText("amber", "amber", domain.TargetUser, "self check"))
	echo := first.ReadType(domain.TypeText)
	s.Require().Equal("self check", echo.Content.(domain.TextContent).Text)
}

func (s *ChatSuite) TestDirectMessage() {
	t := s.T()
	s.Step(t, "two users connect")
	alice := s.Dial(t, "alina")
	alice.Login("alina")
	bob := s.Dial(t, "boris")
	bob.Login("boris")

	s.Step(t, "alina sends boris a direct message")
	alice.Send(domain.NewText("alina", "boris", domain.TargetUser, "hello boris"))

	received := bob.ReadType(domain.TypeText)
	s.Require().Equal("alina", received.Sender)
	s.Require().Equal(domain.TargetUser, received.TargetType)
	s.Require().Equal("hello boris", received.Content.(domain.TextContent).Text)

	s.Step(t, "the sender gets no echo")
	alice.ReadType(domain.TypeUserJoin) // boris joining
	alice.ExpectSilence(300 * time.Millisecond)
}

func (s *ChatSuite) TestOfflineRecipient() {
	t := s.T()
	s.Step(t, "a message to an unknown user bounces back as an error")
	client := s.Dial(t, "casper")
	client.Login("casper")

	client.Send(domain.NewText("casper", "nobody-home", domain.TargetUser, "anyone?"))

	errEnv := client.ReadType(domain.TypeError)
	s.Require().Contains(errEnv.Content.(domain.ErrorContent).Error, "nobody-home")
}

func (s *ChatSuite) TestGroupLifecycle() {
	t := s.T()
	s.Step(t, "carol and dave connect")
	carol := s.Dial(t, "carole")
	carol.Login("carole")
	dave := s.Dial(t, "david")
	dave.Login("david")

	s.Step(t, "carole creates a group with david")
	carol.Send(domain.NewCreateGroup("carole", "night-shift", []string{"david"}))

	carolCreated := carol.ReadType(domain.TypeGroupCreated).Content.(domain.GroupCreatedContent).Group
	daveCreated := dave.ReadType(domain.TypeGroupCreated).Content.(domain.GroupCreatedContent).Group
	s.Require().Equal(carolCreated.GroupID, daveCreated.GroupID)
	s.Require().Equal("night-shift", carolCreated.GroupName)
	s.Require().ElementsMatch([]string{"carole", "david"}, carolCreated.Members)
	groupID := carolCreated.GroupID

	s.Step(t, "a group message reaches members but not the sender")
	carol.Send(domain.NewText("carole", groupID, domain.TargetGroup, "shift starts"))
	groupMsg := dave.ReadType(domain.TypeText)
	s.Require().Equal("carole", groupMsg.Sender)
	s.Require().Equal(groupID, groupMsg.Target)

	s.Step(t, "a non-member cannot post to the group")
	eve := s.Dial(t, "evelyn")
	eve.Login("evelyn")
	eve.Send(domain.NewText("evelyn", groupID, domain.TargetGroup, "let me in"))
	s.Require().Equal(domain.TypeError, eve.ReadType(domain.TypeError).Type)

	s.Step(t, "the group disappears once the last member leaves")
	dave.Send(domain.NewLeaveGroup("david", groupID))
	carol.Send(domain.NewLeaveGroup("carole", groupID))
	// Each session handles its envelopes in order, so a self echo proves
	// the leave was processed.
	dave.Send(domain.NewText("david", "david", domain.TargetUser, "done"))
	dave.ReadType(domain.TypeText)
	carol.Send(domain.NewText("carole", "carole", domain.TargetUser, "done"))
	carol.ReadType(domain.TypeText)

	observer := s.Dial(t, "observer")
	observer.Send(domain.NewLogin("observer-" + groupID))
	observer.ReadType(domain.TypeUserList)
	groups := observer.ReadType(domain.TypeGroupList).Content.(domain.GroupListContent).Groups
	ids := lo.Map(groups, func(g domain.GroupInfo, _ int) string { return g.GroupID })
	s.Require().NotContains(ids, groupID)
}

func (s *ChatSuite) TestBroadcast() {
	t := s.T()
	s.Step(t, "three users connect")
	frank := s.Dial(t, "frank")
	frank.Login("frank")
	grace := s.Dial(t, "grace")
	grace.Login("grace")
	heidi := s.Dial(t, "heidi")
	heidi.Login("heidi")

	s.Step(t, "frank broadcasts to everyone")
	frank.Send(domain.NewText("frank", "", domain.TargetAll, "hello all"))

	for _, c := range []*Client{grace, heidi} {
		e := c.ReadType(domain.TypeText)
		s.Require().Equal("frank", e.Sender)
		s.Require().Equal("hello all", e.Content.(domain.TextContent).Text)
	}

	s.Step(t, "the sender does not hear its own broadcast")
	frank.ReadType(domain.TypeUserJoin) // grace
	frank.ReadType(domain.TypeUserJoin) // heidi
	frank.ExpectSilence(300 * time.Millisecond)
}

func (s *ChatSuite) TestDisconnectAnnouncedOnce() {
	t := s.T()
	s.Step(t, "an observer watches ivan connect and drop")
	observer := s.Dial(t, "olga")
	observer.Login("olga")

	ivan := s.Dial(t, "ivan")
	ivan.Login("ivan")
	s.Require().Equal("ivan",
		observer.ReadType(domain.TypeUserJoin).Content.(domain.UserJoinContent).Username)

	s.Require().NoError(ivan.conn.Close())

	s.Step(t, "exactly one USER_LEAVE is announced")
	leave := observer.ReadType(domain.TypeUserLeave)
	s.Require().Equal("ivan", leave.Content.(domain.UserLeaveContent).Username)
	observer.ExpectSilence(300 * time.Millisecond)

	s.Step(t, "the username is free again")
	revenant := s.Dial(t, "ivan-2")
	revenant.Login("ivan")
}
