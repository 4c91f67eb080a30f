package errors

import "fmt"

var (
	ErrDuplicateUsername = fmt.Errorf("username already in use")
	ErrEmptyUsername     = fmt.Errorf("username is empty")
	ErrEmptyTarget       = fmt.Errorf("target is empty")
	ErrNotGroupMember    = fmt.Errorf("sender is not a member of the group")
	ErrUnknownGroup      = fmt.Errorf("group does not exist")
	ErrEmptyGroupName    = fmt.Errorf("group name is empty")
	ErrMalformedEnvelope = fmt.Errorf("malformed envelope")
	ErrUnknownType       = fmt.Errorf("unknown envelope type")
	ErrSessionClosed     = fmt.Errorf("session is closed")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
)
