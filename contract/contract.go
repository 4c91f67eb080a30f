//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Session is one authenticated connection seen from the registries.
// The transport handle stays private to the session handler; the rest
// of the system only ever calls Send.
type Session interface {
	Username() string
	Connected() bool
	Send(e domain.Envelope) error
	Close()
}

// IRegistry is the single source of truth for who is online and how to reach them.
type IRegistry interface {
	Register(username string, s Session) error
	Unregister(username string)
	Lookup(username string) (Session, bool)
	IsOnline(username string) bool
	Usernames() []string
	SendTo(username string, e domain.Envelope) bool
	Broadcast(e domain.Envelope)
	BroadcastExcept(e domain.Envelope, except string)
	DisconnectAll()
}

// IDirectory owns group identity and membership, independent of who is
// online. Accessors return snapshots taken under the directory lock;
// live group state never crosses this boundary.
type IDirectory interface {
	CreateGroup(name, creator string, members []string) domain.GroupInfo
	Group(groupID string) (domain.GroupInfo, bool)
	Members(groupID string) ([]string, bool)
	AddMember(groupID, username string) bool
	RemoveMember(groupID, username string) bool
	IsMember(groupID, username string) bool
	GroupsForUser(username string) []domain.GroupInfo
}

// IRouter resolves an envelope's target description into recipients and delivers.
type IRouter interface {
	Route(e domain.Envelope)
}
