// Package runtime hosts the shared mutable state of the relay: the
// connection registry and the group directory. Both are owned by the
// server and passed by handle to every session task and to the router.
package runtime

import (
	"sync"

	"github.com/samber/lo"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

// Registry maps usernames to live sessions. All operations are atomic at
// the key level; the single RWMutex is enough because operations are
// plain map lookups and never block on another session's transport.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.Session)}
}

// Register inserts the session under username. Two concurrent
// registrations for the same name cannot both succeed: the first writer
// wins and the second gets ErrDuplicateUsername.
func (r *Registry) Register(username string, s contract.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[username]; exists {
		return errors.ErrDuplicateUsername
	}
	r.sessions[username] = s
	return nil
}

// Unregister is idempotent; removing an absent name is not an error.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

func (r *Registry) Lookup(username string) (contract.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[username]
	return s, ok
}

func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[username]
	return ok
}

// Usernames returns a snapshot; insertion order is irrelevant.
func (r *Registry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.sessions)
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SendTo forwards the envelope to one recipient. It reports false when
// the recipient is absent or already disconnected; the caller decides
// what that means (the router answers the sender with an ERROR envelope).
func (r *Registry) SendTo(username string, e domain.Envelope) bool {
	session, ok := r.Lookup(username)
	if !ok || !session.Connected() {
		return false
	}
	_ = session.Send(e)
	return true
}

// Broadcast delivers to every currently registered, connected session.
// A session that disconnects mid-broadcast is skipped; there is no retry.
func (r *Registry) Broadcast(e domain.Envelope) {
	for _, session := range r.snapshot() {
		if session.Connected() {
			_ = session.Send(e)
		}
	}
}

// BroadcastExcept behaves like Broadcast, skipping the excluded username.
func (r *Registry) BroadcastExcept(e domain.Envelope, except string) {
	for _, session := range r.snapshot() {
		if session.Username() != except && session.Connected() {
			_ = session.Send(e)
		}
	}
}

// DisconnectAll force-closes every live session. Used on server shutdown;
// each Close triggers the session's own cleanup path.
func (r *Registry) DisconnectAll() {
	for _, session := range r.snapshot() {
		session.Close()
	}
}

// snapshot copies the session list so delivery happens outside the lock.
func (r *Registry) snapshot() []contract.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}
