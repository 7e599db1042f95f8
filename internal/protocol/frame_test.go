package protocol

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   Kind
		who    string
		typing bool
	}{
		{name: "join", raw: "__JOIN__:Alice", kind: KindJoin, who: "Alice"},
		{name: "join trims whitespace", raw: "__JOIN__:  Bob \t", kind: KindJoin, who: "Bob"},
		{name: "blank join", raw: "__JOIN__:   ", kind: KindJoin, who: ""},
		{name: "typing true", raw: "__TYPING__:Bob:true", kind: KindTyping, who: "Bob", typing: true},
		{name: "typing false", raw: "__TYPING__:Bob:false", kind: KindTyping, who: "Bob"},
		{name: "typing name with colon", raw: "__TYPING__:a:b:true", kind: KindTyping, who: "a:b", typing: true},
		{name: "typing bad state", raw: "__TYPING__:Bob:maybe", kind: KindUnknown},
		{name: "typing missing name", raw: "__TYPING__::true", kind: KindUnknown},
		{name: "image", raw: "__IMAGE__:photo.png", kind: KindImage, who: "photo.png"},
		{name: "empty image", raw: "__IMAGE__:", kind: KindUnknown},
		{name: "chat", raw: "Alice: hello", kind: KindChat},
		{name: "empty", raw: "", kind: KindChat},
		{name: "lowercase sentinel is chat", raw: "__join__:Alice", kind: KindChat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Parse(tt.raw)
			if f.Kind != tt.kind {
				t.Fatalf("Parse(%q).Kind = %v, want %v", tt.raw, f.Kind, tt.kind)
			}
			if f.Raw != tt.raw {
				t.Errorf("Parse(%q).Raw = %q, want raw text preserved", tt.raw, f.Raw)
			}
			if f.Name != tt.who {
				t.Errorf("Parse(%q).Name = %q, want %q", tt.raw, f.Name, tt.who)
			}
			if f.Typing != tt.typing {
				t.Errorf("Parse(%q).Typing = %v, want %v", tt.raw, f.Typing, tt.typing)
			}
		})
	}
}

func TestServerFrames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{JoinAnnouncement("Alice"), "🔵 Alice joined the chat"},
		{LeaveAnnouncement("Alice"), "🔴 Alice disconnected"},
		{ImageNotice("photo.png"), "__IMAGE__:photo.png"},
		{FileNotice("notes.txt"), "📁 File uploaded: notes.txt"},
		{JoinRequest("Alice"), "__JOIN__:Alice"},
		{TypingSignal("Bob", true), "__TYPING__:Bob:true"},
		{TypingSignal("Bob", false), "__TYPING__:Bob:false"},
		{ChatMessage("Bob", "hi"), "Bob: hi"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestTypingSignalRoundTrip(t *testing.T) {
	f := Parse(TypingSignal("Carol", true))
	if f.Kind != KindTyping || f.Name != "Carol" || !f.Typing {
		t.Errorf("unexpected frame %+v", f)
	}
}
