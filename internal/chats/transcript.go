package chats

import (
	"fmt"
	"strings"
)

var bodyReplacer = strings.NewReplacer("<p>", "", "</p>", "", "<br>", "\n")

// Transcript renders a chat as the plain-text form sent to the LLM, one line
// per message, sender labeled Agente or Cliente with the local send time.
// Messages with empty bodies (attachments, system events) are skipped.
func Transcript(c *Chat) string {
	lines := make([]string, 0, len(c.Messages))
	for _, msg := range c.Messages {
		body := strings.TrimSpace(bodyReplacer.Replace(msg.Body))
		if body == "" {
			continue
		}
		sender := "Cliente"
		if msg.SentBy != nil && msg.SentBy.Type == SenderAgent {
			sender = "Agente"
		}
		stamp := ""
		if !msg.At.IsZero() {
			stamp = msg.At.Format("15:04")
		}
		lines = append(lines, fmt.Sprintf("%s (%s): %s", sender, stamp, body))
	}
	return strings.Join(lines, "\n")
}
