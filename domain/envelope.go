// Package domain contains core concepts of the relay.
// This file defines the Envelope, the single unit exchanged over the wire.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"chat-relay/errors"
)

// Type discriminates the content variant carried by an Envelope.
type Type string

const (
	TypeLogin         Type = "LOGIN"
	TypeLoginResponse Type = "LOGIN_RESPONSE"
	TypeLogout        Type = "LOGOUT"
	TypeText          Type = "TEXT"
	TypeImage         Type = "IMAGE"
	TypeFile          Type = "FILE"
	TypeFileData      Type = "FILE_DATA"
	TypeCreateGroup   Type = "CREATE_GROUP"
	TypeGroupCreated  Type = "GROUP_CREATED"
	TypeLeaveGroup    Type = "LEAVE_GROUP"
	TypeUserList      Type = "USER_LIST"
	TypeUserJoin      Type = "USER_JOIN"
	TypeUserLeave     Type = "USER_LEAVE"
	TypeGroupList     Type = "GROUP_LIST"
	TypeError         Type = "ERROR"
	TypeHeartbeat     Type = "HEARTBEAT"
)

// TargetType describes how the target field must be resolved.
type TargetType string

const (
	TargetUser  TargetType = "USER"
	TargetGroup TargetType = "GROUP"
	TargetAll   TargetType = "ALL"
)

// Content is the closed set of payload variants. Exactly one variant
// exists per Type; the decoder picks it from the type discriminator.
type Content interface {
	contentType() Type
}

// Envelope carries one message between a client and the relay.
// Sender is stamped server-side after login and never trusted from the wire.
type Envelope struct {
	Type       Type       `json:"type"`
	Sender     string     `json:"sender,omitempty"`
	Target     string     `json:"target,omitempty"`
	TargetType TargetType `json:"targetType,omitempty"`
	Timestamp  int64      `json:"timestamp"`
	Content    Content    `json:"content,omitempty"`
}

type LoginContent struct {
	Username string `json:"username"`
}

type LoginResponseContent struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TextContent struct {
	Text string `json:"text"`
}

type ImageContent struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
	Size     int64  `json:"size"`
}

type FileContent struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

type FileDataContent struct {
	Filename    string `json:"filename"`
	Data        string `json:"data"`
	ChunkIndex  int    `json:"chunkIndex"`
	TotalChunks int    `json:"totalChunks"`
}

type CreateGroupContent struct {
	GroupName string   `json:"groupName"`
	Members   []string `json:"members"`
}

type GroupCreatedContent struct {
	Group GroupInfo `json:"group"`
}

type LeaveGroupContent struct {
	GroupID string `json:"groupId"`
}

type UserListContent struct {
	Users []string `json:"users"`
}

type UserJoinContent struct {
	Username string `json:"username"`
}

type UserLeaveContent struct {
	Username string `json:"username"`
}

type GroupListContent struct {
	Groups []GroupInfo `json:"groups"`
}

type ErrorContent struct {
	Error string `json:"error"`
}

func (LoginContent) contentType() Type         { return TypeLogin }
func (LoginResponseContent) contentType() Type { return TypeLoginResponse }
func (TextContent) contentType() Type          { return TypeText }
func (ImageContent) contentType() Type         { return TypeImage }
func (FileContent) contentType() Type          { return TypeFile }
func (FileDataContent) contentType() Type      { return TypeFileData }
func (CreateGroupContent) contentType() Type   { return TypeCreateGroup }
func (GroupCreatedContent) contentType() Type  { return TypeGroupCreated }
func (LeaveGroupContent) contentType() Type    { return TypeLeaveGroup }
func (UserListContent) contentType() Type      { return TypeUserList }
func (UserJoinContent) contentType() Type      { return TypeUserJoin }
func (UserLeaveContent) contentType() Type     { return TypeUserLeave }
func (GroupListContent) contentType() Type     { return TypeGroupList }
func (ErrorContent) contentType() Type         { return TypeError }

// now returns the envelope timestamp, wall-clock epoch milliseconds.
func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func NewLogin(username string) Envelope {
	return Envelope{
		Type:      TypeLogin,
		Sender:    username,
		Timestamp: now(),
		Content:   LoginContent{Username: username},
	}
}

func NewLoginResponse(success bool, message string) Envelope {
	return Envelope{
		Type:      TypeLoginResponse,
		Timestamp: now(),
		Content:   LoginResponseContent{Success: success, Message: message},
	}
}

func NewLogout(username string) Envelope {
	return Envelope{Type: TypeLogout, Sender: username, Timestamp: now()}
}

func NewText(sender, target string, targetType TargetType, text string) Envelope {
	return Envelope{
		Type:       TypeText,
		Sender:     sender,
		Target:     target,
		TargetType: targetType,
		Timestamp:  now(),
		Content:    TextContent{Text: text},
	}
}

func NewImage(sender, target string, targetType TargetType, filename, data string, size int64) Envelope {
	return Envelope{
		Type:       TypeImage,
		Sender:     sender,
		Target:     target,
		TargetType: targetType,
		Timestamp:  now(),
		Content:    ImageContent{Filename: filename, Data: data, Size: size},
	}
}

func NewFile(sender, target string, targetType TargetType, filename string, size int64, checksum string) Envelope {
	return Envelope{
		Type:       TypeFile,
		Sender:     sender,
		Target:     target,
		TargetType: targetType,
		Timestamp:  now(),
		Content:    FileContent{Filename: filename, Size: size, Checksum: checksum},
	}
}

func NewFileData(sender, target string, targetType TargetType, filename, data string, chunkIndex, totalChunks int) Envelope {
	return Envelope{
		Type:       TypeFileData,
		Sender:     sender,
		Target:     target,
		TargetType: targetType,
		Timestamp:  now(),
		Content: FileDataContent{
			Filename:    filename,
			Data:        data,
			ChunkIndex:  chunkIndex,
			TotalChunks: totalChunks,
		},
	}
}

func NewCreateGroup(creator, groupName string, members []string) Envelope {
	return Envelope{
		Type:      TypeCreateGroup,
		Sender:    creator,
		Timestamp: now(),
		Content:   CreateGroupContent{GroupName: groupName, Members: members},
	}
}

func NewGroupCreated(group GroupInfo) Envelope {
	return Envelope{
		Type:      TypeGroupCreated,
		Timestamp: now(),
		Content:   GroupCreatedContent{Group: group},
	}
}

func NewLeaveGroup(sender, groupID string) Envelope {
	return Envelope{
		Type:      TypeLeaveGroup,
		Sender:    sender,
		Timestamp: now(),
		Content:   LeaveGroupContent{GroupID: groupID},
	}
}

func NewUserList(users []string) Envelope {
	return Envelope{Type: TypeUserList, Timestamp: now(), Content: UserListContent{Users: users}}
}

func NewUserJoin(username string) Envelope {
	return Envelope{Type: TypeUserJoin, Timestamp: now(), Content: UserJoinContent{Username: username}}
}

func NewUserLeave(username string) Envelope {
	return Envelope{Type: TypeUserLeave, Timestamp: now(), Content: UserLeaveContent{Username: username}}
}

func NewGroupList(groups []GroupInfo) Envelope {
	return Envelope{Type: TypeGroupList, Timestamp: now(), Content: GroupListContent{Groups: groups}}
}

func NewError(message string) Envelope {
	return Envelope{Type: TypeError, Timestamp: now(), Content: ErrorContent{Error: message}}
}

func NewHeartbeat(sender string) Envelope {
	return Envelope{Type: TypeHeartbeat, Sender: sender, Timestamp: now()}
}

// rawEnvelope defers content decoding until the type discriminator is known.
type rawEnvelope struct {
	Type       Type            `json:"type"`
	Sender     string          `json:"sender"`
	Target     string          `json:"target"`
	TargetType TargetType      `json:"targetType"`
	Timestamp  int64           `json:"timestamp"`
	Content    json.RawMessage `json:"content"`
}

// UnmarshalJSON decodes the discriminator first, then the matching variant.
// A missing variant for a content-less type (LOGOUT, HEARTBEAT) is legal;
// anything else that fails to decode is a malformed envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedEnvelope, err)
	}

	content, err := decodeContent(raw.Type, raw.Content)
	if err != nil {
		return err
	}

	*e = Envelope{
		Type:       raw.Type,
		Sender:     raw.Sender,
		Target:     raw.Target,
		TargetType: raw.TargetType,
		Timestamp:  raw.Timestamp,
		Content:    content,
	}
	return nil
}

func decodeContent(t Type, data json.RawMessage) (Content, error) {
	var target Content
	switch t {
	case TypeLogin:
		target = &LoginContent{}
	case TypeLoginResponse:
		target = &LoginResponseContent{}
	case TypeText:
		target = &TextContent{}
	case TypeImage:
		target = &ImageContent{}
	case TypeFile:
		target = &FileContent{}
	case TypeFileData:
		target = &FileDataContent{}
	case TypeCreateGroup:
		target = &CreateGroupContent{}
	case TypeGroupCreated:
		target = &GroupCreatedContent{}
	case TypeLeaveGroup:
		target = &LeaveGroupContent{}
	case TypeUserList:
		target = &UserListContent{}
	case TypeUserJoin:
		target = &UserJoinContent{}
	case TypeUserLeave:
		target = &UserLeaveContent{}
	case TypeGroupList:
		target = &GroupListContent{}
	case TypeError:
		target = &ErrorContent{}
	case TypeLogout, TypeHeartbeat:
		return nil, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", errors.ErrMalformedEnvelope)
	default:
		// Unknown types reach the session handler, which answers with an
		// ERROR envelope instead of dropping the connection.
		return nil, nil
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: missing content for type %s", errors.ErrMalformedEnvelope, t)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("%w: content of type %s: %v", errors.ErrMalformedEnvelope, t, err)
	}
	return deref(target), nil
}

// deref returns the value variant so callers can type-switch on values.
func deref(c Content) Content {
	switch v := c.(type) {
	case *LoginContent:
		return *v
	case *LoginResponseContent:
		return *v
	case *TextContent:
		return *v
	case *ImageContent:
		return *v
	case *FileContent:
		return *v
	case *FileDataContent:
		return *v
	case *CreateGroupContent:
		return *v
	case *GroupCreatedContent:
		return *v
	case *LeaveGroupContent:
		return *v
	case *UserListContent:
		return *v
	case *UserJoinContent:
		return *v
	case *UserLeaveContent:
		return *v
	case *GroupListContent:
		return *v
	case *ErrorContent:
		return *v
	default:
		return c
	}
}

// Encode renders the envelope as a single JSON line, newline excluded.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses one wire line into an Envelope.
func Decode(line []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(line, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
