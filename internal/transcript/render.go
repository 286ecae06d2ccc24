package transcript

import (
	"strings"
	"time"
)

// Message is one live-chat message as delivered by the chat vendor.
type Message struct {
	SenderRole string
	Text       string
	CreatedAt  time.Time
}

var kst = time.FixedZone("KST", 9*60*60)

func senderLabel(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "customer", "veil":
		return "고객"
	case "manager", "agent":
		return "매니저"
	case "bot":
		return "여신BOT"
	default:
		return "매니저"
	}
}

// RenderMessages writes messages as "(HH:MM:SS) label: text" lines in KST so
// that chat conversations go through the same classifier as ticket
// transcripts. Continuation lines of a multi-line message stay unlabeled.
// Messages without text are skipped.
func RenderMessages(msgs []Message) string {
	var b strings.Builder
	for _, m := range msgs {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		if !m.CreatedAt.IsZero() {
			b.WriteString("(")
			b.WriteString(m.CreatedAt.In(kst).Format("15:04:05"))
			b.WriteString(") ")
		}
		b.WriteString(senderLabel(m.SenderRole))
		b.WriteString(": ")
		b.WriteString(text)
	}
	return b.String()
}
