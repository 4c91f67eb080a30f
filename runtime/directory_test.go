package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectory_CreateGroup_FoldsCreator(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()

	// When a group is created without the creator in the member list
	group := directory.CreateGroup("team", "alice", []string{"bob", "carol"})

	// Then the creator is a member anyway
	req.ElementsMatch([]string{"alice", "bob", "carol"}, group.Members)
	req.Equal("alice", group.Creator)
	req.NotEmpty(group.GroupID)

	// And the group is retrievable by id
	found, ok := directory.Group(group.GroupID)
	req.True(ok)
	req.Equal(group, found)
}

func TestDirectory_CreateGroup_UniqueIDs(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()

	a := directory.CreateGroup("a", "alice", nil)
	b := directory.CreateGroup("b", "alice", nil)

	req.NotEqual(a.GroupID, b.GroupID)
}

func TestDirectory_RemoveMember_DeletesEmptyGroup(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()
	group := directory.CreateGroup("duo", "alice", []string{"bob"})

	// When members leave one by one
	req.True(directory.RemoveMember(group.GroupID, "bob"))
	_, ok := directory.Group(group.GroupID)
	req.True(ok)

	// Then removing the last member deletes the group immediately
	req.True(directory.RemoveMember(group.GroupID, "alice"))
	_, ok = directory.Group(group.GroupID)
	req.False(ok)

	// And further removals report the unknown group
	req.False(directory.RemoveMember(group.GroupID, "alice"))
}

func TestDirectory_IsMember(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()
	group := directory.CreateGroup("team", "alice", []string{"bob"})

	req.True(directory.IsMember(group.GroupID, "alice"))
	req.True(directory.IsMember(group.GroupID, "bob"))
	req.False(directory.IsMember(group.GroupID, "mallory"))
	req.False(directory.IsMember("nope", "alice"))
}

func TestDirectory_AddMember(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()
	group := directory.CreateGroup("team", "alice", nil)

	// When bob is added twice
	req.True(directory.AddMember(group.GroupID, "bob"))
	req.True(directory.AddMember(group.GroupID, "bob"))

	// Then membership holds him once
	members, ok := directory.Members(group.GroupID)
	req.True(ok)
	req.ElementsMatch([]string{"alice", "bob"}, members)

	// And adding to an unknown group fails
	req.False(directory.AddMember("nope", "bob"))
}

func TestDirectory_Members_Snapshot(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()
	group := directory.CreateGroup("team", "alice", nil)

	// When a caller mutates a returned member list
	members, ok := directory.Members(group.GroupID)
	req.True(ok)
	members[0] = "mallory"

	// Then directory state is untouched
	req.True(directory.IsMember(group.GroupID, "alice"))
	req.False(directory.IsMember(group.GroupID, "mallory"))
}

func TestDirectory_GroupsForUser_OrderedByCreation(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()

	first := directory.CreateGroup("first", "alice", []string{"bob"})
	second := directory.CreateGroup("second", "alice", nil)
	directory.CreateGroup("other", "carol", nil)

	groups := directory.GroupsForUser("alice")
	req.Len(groups, 2)
	req.Equal(first.GroupID, groups[0].GroupID)
	req.Equal(second.GroupID, groups[1].GroupID)

	req.Empty(directory.GroupsForUser("ghost"))
}

func TestDirectory_Concurrent_MembershipChurn(t *testing.T) {
	req := require.New(t)
	directory := NewDirectory()
	group := directory.CreateGroup("busy", "alice", []string{"bob"})

	const iterations = 200
	var wg sync.WaitGroup

	// Given one writer churning membership
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			directory.AddMember(group.GroupID, "carol")
			directory.RemoveMember(group.GroupID, "carol")
		}
	}()

	// And readers walking every accessor at the same time
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if members, ok := directory.Members(group.GroupID); ok {
					for _, member := range members {
						_ = member
					}
				}
				directory.IsMember(group.GroupID, "carol")
				for _, g := range directory.GroupsForUser("alice") {
					_ = g.Members
				}
			}
		}()
	}
	wg.Wait()

	// Then the permanent members survive the churn
	req.True(directory.IsMember(group.GroupID, "alice"))
	req.True(directory.IsMember(group.GroupID, "bob"))
}
