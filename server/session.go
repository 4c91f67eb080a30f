// Package server implements the TCP face of the relay: the listener and
// the per-connection session state machine.
package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
)

// writeTimeout bounds a single outbound write so one stalled recipient
// cannot hold a broadcaster indefinitely.
const writeTimeout = 10 * time.Second

// Session is the per-connection state machine:
// UNAUTHENTICATED -> AUTHENTICATED -> CLOSED, CLOSED being terminal.
// The session exclusively owns its net.Conn; nothing else reads or
// writes the transport.
type Session struct {
	conn      net.Conn
	log       *slog.Logger
	registry  contract.IRegistry
	directory contract.IDirectory
	router    contract.IRouter
	maxLine   int

	// username is set once, before registration, and never changes.
	username  string
	connected atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ contract.Session = (*Session)(nil)

func NewSession(conn net.Conn, log *slog.Logger, registry contract.IRegistry,
	directory contract.IDirectory, router contract.IRouter, maxLine int) *Session {
	s := &Session{
		conn:      conn,
		log:       log,
		registry:  registry,
		directory: directory,
		router:    router,
		maxLine:   maxLine,
	}
	s.connected.Store(true)
	return s
}

func (s *Session) Username() string {
	return s.username
}

// Connected reports the monotonic liveness flag; it transitions true to
// false exactly once and never back.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Send writes one envelope as a JSON line. Writes are serialized so
// concurrent broadcasts cannot interleave bytes on the wire.
func (s *Session) Send(e domain.Envelope) error {
	if !s.Connected() {
		return errors.ErrSessionClosed
	}
	line, err := e.Encode()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := s.conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("session write: %w", err)
	}
	return nil
}

// Close force-disconnects the session. Idempotent; never blocks on
// delivery to other parties.
func (s *Session) Close() {
	s.disconnect()
}

// Run drives the state machine until the session closes. Blocking happens
// only on this session's own transport reads and writes.
func (s *Session) Run() {
	defer s.disconnect()

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 64*1024), s.maxLine)

	if !s.loginLoop(scanner) {
		return
	}
	s.readLoop(scanner)
}

// loginLoop is the UNAUTHENTICATED state: only a login request is acted
// on. It returns true once the session is registered, false when the
// transport ended or the login was rejected.
func (s *Session) loginLoop(scanner *bufio.Scanner) bool {
	for scanner.Scan() {
		e, err := domain.Decode(scanner.Bytes())
		if err != nil {
			s.log.Warn("Malformed line before login", "error", err)
			_ = s.Send(domain.NewError("malformed envelope"))
			continue
		}
		if e.Type != domain.TypeLogin {
			_ = s.Send(domain.NewError("please log in first"))
			continue
		}
		return s.handleLogin(e)
	}
	return false
}

func (s *Session) handleLogin(e domain.Envelope) bool {
	content, ok := e.Content.(domain.LoginContent)
	if !ok {
		_ = s.Send(domain.NewLoginResponse(false, "login requires a username"))
		return false
	}

	username, err := auth.ValidateUsername(content.Username)
	if err != nil {
		_ = s.Send(domain.NewLoginResponse(false, "invalid username"))
		return false
	}

	s.username = username
	if err := s.registry.Register(username, s); err != nil {
		s.username = ""
		_ = s.Send(domain.NewLoginResponse(false, "username already in use"))
		return false
	}

	_ = s.Send(domain.NewLoginResponse(true, "welcome "+username))
	_ = s.Send(domain.NewUserList(s.registry.Usernames()))
	_ = s.Send(domain.NewGroupList(s.directory.GroupsForUser(username)))
	s.registry.BroadcastExcept(domain.NewUserJoin(username), username)

	s.log.Info("User logged in", "username", username)
	return true
}

// readLoop is the AUTHENTICATED state: one envelope at a time, stamped
// with this session's username. A malformed line yields an ERROR envelope
// and the loop continues.
func (s *Session) readLoop(scanner *bufio.Scanner) {
	for scanner.Scan() {
		e, err := domain.Decode(scanner.Bytes())
		if err != nil {
			s.log.Warn("Malformed line", "username", s.username, "error", err)
			_ = s.Send(domain.NewError("malformed envelope"))
			continue
		}

		// The wire-provided sender is never trusted after login.
		e.Sender = s.username

		switch e.Type {
		case domain.TypeLogout:
			return
		case domain.TypeText, domain.TypeImage, domain.TypeFile, domain.TypeFileData:
			s.router.Route(e)
		case domain.TypeCreateGroup:
			s.handleCreateGroup(e)
		case domain.TypeLeaveGroup:
			s.handleLeaveGroup(e)
		case domain.TypeHeartbeat:
			// Accepted and ignored; no liveness timer is enforced.
		default:
			_ = s.Send(domain.NewError(fmt.Sprintf("%s: %s", errors.ErrUnknownType, e.Type)))
		}
	}

	if err := scanner.Err(); err != nil && s.Connected() {
		s.log.Warn("Session read failed", "username", s.username, "error", err)
	}
}

func (s *Session) handleCreateGroup(e domain.Envelope) {
	content, ok := e.Content.(domain.CreateGroupContent)
	if !ok {
		_ = s.Send(domain.NewError("create group requires a group name"))
		return
	}

	name, err := auth.ValidateGroupName(content.GroupName)
	if err != nil {
		_ = s.Send(domain.NewError("group name must not be empty"))
		return
	}

	group := s.directory.CreateGroup(name, s.username, content.Members)
	created := domain.NewGroupCreated(group)
	for _, member := range group.Members {
		s.registry.SendTo(member, created)
	}

	s.log.Info("Group created",
		"group_id", group.GroupID,
		"group_name", group.GroupName,
		"creator", s.username,
		"members", len(group.Members))
}

func (s *Session) handleLeaveGroup(e domain.Envelope) {
	content, ok := e.Content.(domain.LeaveGroupContent)
	if !ok || content.GroupID == "" {
		return
	}
	s.directory.RemoveMember(content.GroupID, s.username)
}

// disconnect enters the terminal CLOSED state exactly once: deregister,
// notify the remaining sessions, release the transport unconditionally.
func (s *Session) disconnect() {
	s.closeOnce.Do(func() {
		s.connected.Store(false)

		if s.username != "" {
			s.registry.Unregister(s.username)
			s.registry.Broadcast(domain.NewUserLeave(s.username))
			s.log.Info("User disconnected", "username", s.username)
		}

		if err := s.conn.Close(); err != nil {
			s.log.Debug("Transport close", "error", err)
		}
	})
}
