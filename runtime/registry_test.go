package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

// fakeSession records deliveries without a transport.
type fakeSession struct {
	mu        sync.Mutex
	username  string
	connected bool
	received  []domain.Envelope
	closed    bool
}

func newFakeSession(username string) *fakeSession {
	return &fakeSession{username: username, connected: true}
}

func (s *fakeSession) Username() string { return s.username }

func (s *fakeSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSession) Send(e domain.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, e)
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.closed = true
}

func (s *fakeSession) envelopes() []domain.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Envelope, len(s.received))
	copy(out, s.received)
	return out
}

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	session := newFakeSession("alice")

	// Given nobody is online
	req.Empty(registry.Usernames())
	req.False(registry.IsOnline("alice"))

	// When alice registers
	req.NoError(registry.Register("alice", session))

	// Then she is reachable
	req.True(registry.IsOnline("alice"))
	found, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(contract.Session(session), found)
	req.ElementsMatch([]string{"alice"}, registry.Usernames())
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	// Given alice is registered
	req.NoError(registry.Register("alice", newFakeSession("alice")))

	// When another session claims the same name
	err := registry.Register("alice", newFakeSession("alice"))

	// Then the second registration fails
	req.ErrorIs(err, errors.ErrDuplicateUsername)
}

func TestRegistry_Register_Concurrent_SameName(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	const attempts = 64
	results := make(chan error, attempts)
	var wg sync.WaitGroup

	// When many sessions race for one username
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- registry.Register("alice", newFakeSession("alice"))
		}()
	}
	wg.Wait()
	close(results)

	// Then exactly one wins
	var successes, duplicates int
	for err := range results {
		switch err {
		case nil:
			successes++
		case errors.ErrDuplicateUsername:
			duplicates++
		default:
			req.Fail("unexpected error", err)
		}
	}
	req.Equal(1, successes)
	req.Equal(attempts-1, duplicates)
}

func TestRegistry_Register_Concurrent_DistinctNames(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			req.NoError(registry.Register(name, newFakeSession(name)))
		}(name)
	}
	wg.Wait()

	req.ElementsMatch(names, registry.Usernames())
	req.Equal(len(names), registry.Count())
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	req.NoError(registry.Register("alice", newFakeSession("alice")))

	// When alice unregisters twice
	registry.Unregister("alice")
	registry.Unregister("alice")

	// Then no error and she is gone
	req.False(registry.IsOnline("alice"))

	// And a name that never registered is also a no-op
	registry.Unregister("ghost")
}

func TestRegistry_SendTo(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	bob := newFakeSession("bob")
	req.NoError(registry.Register("bob", bob))

	// When sending to an online user
	delivered := registry.SendTo("bob", domain.NewText("alice", "bob", domain.TargetUser, "hi"))

	// Then the envelope reaches him
	req.True(delivered)
	req.Len(bob.envelopes(), 1)

	// And sending to an absent user reports not-found
	req.False(registry.SendTo("ghost", domain.NewText("alice", "ghost", domain.TargetUser, "hi")))
}

func TestRegistry_SendTo_DisconnectedSession(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	bob := newFakeSession("bob")
	req.NoError(registry.Register("bob", bob))

	// Given bob's transport already dropped
	bob.Close()

	// Then delivery reports not-found without retrying
	req.False(registry.SendTo("bob", domain.NewText("alice", "bob", domain.TargetUser, "hi")))
	req.Empty(bob.envelopes())
}

func TestRegistry_BroadcastExcept(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newFakeSession("alice")
	bob := newFakeSession("bob")
	carol := newFakeSession("carol")
	req.NoError(registry.Register("alice", alice))
	req.NoError(registry.Register("bob", bob))
	req.NoError(registry.Register("carol", carol))

	// Given carol disconnected mid-flight
	carol.Close()

	// When broadcasting everyone but alice
	registry.BroadcastExcept(domain.NewUserJoin("alice"), "alice")

	// Then only bob receives; the sender and the dead session are skipped
	req.Empty(alice.envelopes())
	req.Len(bob.envelopes(), 1)
	req.Empty(carol.envelopes())
}

func TestRegistry_DisconnectAll(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice := newFakeSession("alice")
	bob := newFakeSession("bob")
	req.NoError(registry.Register("alice", alice))
	req.NoError(registry.Register("bob", bob))

	// When the server shuts down
	registry.DisconnectAll()

	// Then every session got a forced close
	req.True(alice.closed)
	req.True(bob.closed)
}
