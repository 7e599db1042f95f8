// Package protocol models the text frames exchanged over a chat connection.
//
// The wire format is free text with a few sentinel prefixes. Frames are
// classified once, when they arrive, and carry their raw text so the relay
// can forward them byte for byte.
package protocol

import "strings"

// Sentinel prefixes that tag a frame's purpose.
const (
	JoinPrefix   = "__JOIN__:"
	TypingPrefix = "__TYPING__:"
	ImagePrefix  = "__IMAGE__:"
)

// Kind identifies the variant of a parsed frame.
type Kind int

const (
	// KindChat is an ordinary chat message, usually "<name>: <body>".
	KindChat Kind = iota
	// KindJoin announces the sender's display name.
	KindJoin
	// KindTyping is a typing-presence signal.
	KindTyping
	// KindImage tells clients an image is available for retrieval.
	KindImage
	// KindUnknown carries a sentinel prefix but a malformed body.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindJoin:
		return "join"
	case KindTyping:
		return "typing"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// Frame is one logical text message.
type Frame struct {
	Kind Kind
	// Raw is the frame exactly as received.
	Raw string
	// Name is the display name for join and typing frames, or the file
	// name for image frames.
	Name string
	// Typing is the presence state of a typing frame.
	Typing bool
}

// Parse classifies a raw frame by its sentinel prefix.
func Parse(raw string) Frame {
	switch {
	case strings.HasPrefix(raw, JoinPrefix):
		// A blank name still joins; the client stays anonymous for
		// disconnect purposes.
		name := strings.TrimSpace(strings.TrimPrefix(raw, JoinPrefix))
		return Frame{Kind: KindJoin, Raw: raw, Name: name}

	case strings.HasPrefix(raw, TypingPrefix):
		return parseTyping(raw)

	case strings.HasPrefix(raw, ImagePrefix):
		name := strings.TrimPrefix(raw, ImagePrefix)
		if name == "" {
			return Frame{Kind: KindUnknown, Raw: raw}
		}
		return Frame{Kind: KindImage, Raw: raw, Name: name}
	}

	return Frame{Kind: KindChat, Raw: raw}
}

// parseTyping splits "__TYPING__:<name>:<state>" on the last colon so
// display names may themselves contain colons.
func parseTyping(raw string) Frame {
	body := strings.TrimPrefix(raw, TypingPrefix)
	idx := strings.LastIndexByte(body, ':')
	if idx <= 0 {
		return Frame{Kind: KindUnknown, Raw: raw}
	}

	name, state := body[:idx], body[idx+1:]
	switch state {
	case "true":
		return Frame{Kind: KindTyping, Raw: raw, Name: name, Typing: true}
	case "false":
		return Frame{Kind: KindTyping, Raw: raw, Name: name, Typing: false}
	default:
		return Frame{Kind: KindUnknown, Raw: raw}
	}
}

// JoinRequest builds the frame a client sends to announce its name.
func JoinRequest(name string) string {
	return JoinPrefix + name
}

// TypingSignal builds a typing-presence frame.
func TypingSignal(name string, typing bool) string {
	if typing {
		return TypingPrefix + name + ":true"
	}
	return TypingPrefix + name + ":false"
}

// ChatMessage builds a chat frame with the sender prefix clients use.
func ChatMessage(name, body string) string {
	return name + ": " + body
}

// JoinAnnouncement is broadcast when a client joins.
func JoinAnnouncement(name string) string {
	return "🔵 " + name + " joined the chat"
}

// LeaveAnnouncement is broadcast when a joined client disconnects.
func LeaveAnnouncement(name string) string {
	return "🔴 " + name + " disconnected"
}

// ImageNotice is broadcast after an image upload.
func ImageNotice(name string) string {
	return ImagePrefix + name
}

// FileNotice is broadcast after a generic file upload.
func FileNotice(name string) string {
	return "📁 File uploaded: " + name
}
