package runtime

import (
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/abadojack/whatlanggo"
	"github.com/gabriel-vasile/mimetype"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
)

// sniffLimit bounds how much of a media payload is decoded for detection.
const sniffLimit = 512

// Router resolves (target, targetType) into concrete recipients and
// delivers. Delivery is fire-and-forget: no acknowledgment, no retry, no
// buffering for offline recipients. Every resolution failure is answered
// with a single ERROR envelope to the sender and never escapes the router.
type Router struct {
	log       *slog.Logger
	registry  contract.IRegistry
	directory contract.IDirectory
	moderator *moderation.Moderator
}

// NewRouter wires the router. moderator may be nil to disable censoring.
func NewRouter(log *slog.Logger, registry contract.IRegistry,
	directory contract.IDirectory, moderator *moderation.Moderator) *Router {
	return &Router{log: log, registry: registry, directory: directory, moderator: moderator}
}

func (r *Router) Route(e domain.Envelope) {
	e = r.inspect(e)

	switch e.TargetType {
	case domain.TargetUser:
		r.routeToUser(e)
	case domain.TargetGroup:
		r.routeToGroup(e)
	case domain.TargetAll:
		r.registry.BroadcastExcept(e, e.Sender)
	default:
		r.log.Warn("Envelope without a target type dropped", "type", e.Type, "sender", e.Sender)
		r.replyError(e.Sender, "missing target type")
	}
}

func (r *Router) routeToUser(e domain.Envelope) {
	if e.Target == "" {
		r.replyError(e.Sender, errors.ErrEmptyTarget.Error())
		return
	}
	if !r.registry.SendTo(e.Target, e) {
		r.replyError(e.Sender, fmt.Sprintf("user %s is offline", e.Target))
	}
	// The sender's client renders its own outgoing message; no echo here.
}

func (r *Router) routeToGroup(e domain.Envelope) {
	groupID := e.Target
	if groupID == "" {
		r.replyError(e.Sender, errors.ErrEmptyTarget.Error())
		return
	}
	if !r.directory.IsMember(groupID, e.Sender) {
		r.replyError(e.Sender, fmt.Sprintf("%s: %s", errors.ErrNotGroupMember, groupID))
		return
	}

	members, ok := r.directory.Members(groupID)
	if !ok {
		// Membership raced with deletion.
		r.replyError(e.Sender, fmt.Sprintf("%s: %s", errors.ErrUnknownGroup, groupID))
		return
	}

	// Sender-exclusion prevents echo. Offline members are skipped silently:
	// group delivery is best-effort and non-transactional.
	for _, member := range members {
		if member != e.Sender {
			r.registry.SendTo(member, e)
		}
	}
}

// replyError addresses a single ERROR envelope back to the sender. A
// sender that disconnected in the meantime is simply not reachable.
func (r *Router) replyError(sender, message string) {
	r.registry.SendTo(sender, domain.NewError(message))
}

// inspect applies content-level policy before dispatch: text is censored
// through the moderator, media payloads get a MIME sniff for the log.
func (r *Router) inspect(e domain.Envelope) domain.Envelope {
	switch content := e.Content.(type) {
	case domain.TextContent:
		if r.moderator == nil {
			return e
		}
		censored, found := r.moderator.Censor(content.Text)
		if len(found) > 0 {
			info := whatlanggo.Detect(content.Text)
			r.log.Warn("Censored outbound text",
				"sender", e.Sender,
				"words", len(found),
				"lang", info.Lang.Iso6391())
			e.Content = domain.TextContent{Text: censored}
		}
	case domain.ImageContent:
		r.logMime(e.Sender, content.Filename, content.Data)
	case domain.FileDataContent:
		if content.ChunkIndex == 0 {
			r.logMime(e.Sender, content.Filename, content.Data)
		}
	}
	return e
}

func (r *Router) logMime(sender, filename, data string) {
	if len(data) > sniffLimit {
		// Keep a whole number of base64 quanta so the prefix stays decodable.
		data = data[:sniffLimit-sniffLimit%4]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(raw) == 0 {
		return
	}
	r.log.Debug("Media payload relayed",
		"sender", sender,
		"filename", filename,
		"mime", mimetype.Detect(raw).String())
}
