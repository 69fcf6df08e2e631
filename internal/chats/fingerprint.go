package chats

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives the cache key component for a chat+model pair.
// Conversations enter the pipeline only after they close, so the chat id
// is a stable stand-in for the transcript content.
func Fingerprint(c *Chat, model string) string {
	sum := sha256.Sum256([]byte(c.ID + ":" + model))
	return hex.EncodeToString(sum[:])[:16]
}
