package routing

import "github.com/olasquare/olasquare/internal/domain"

// Thread scopes for group chats.
const (
	ScopePerSender = "per-sender"
	ScopeGlobal    = "global"
)

// ResolveThreadID maps an inbound message onto a dispatcher thread id.
//
// Scopes:
//   - "per-sender": one thread per user per chat, "<channel>:<chat>:<nick>" (default)
//   - "global": one thread per chat shared by everyone, "<channel>:<chat>"
//
// Direct messages always get a private "<channel>:<nick>" thread.
func ResolveThreadID(msg domain.InboundMessage, scope string) string {
	if msg.ChatType == domain.ChatTypeDM {
		return msg.ChannelID + ":" + msg.From
	}
	if scope == ScopeGlobal {
		return msg.ChannelID + ":" + msg.ChatID
	}
	return msg.ChannelID + ":" + msg.ChatID + ":" + msg.From
}
