package content

import (
	"hash/fnv"
	"strconv"
	"unicode/utf8"

	"github.com/angelmondragon/puppytalk-backend/internal/notifications"
)

var fallbackMessages = []string{
	"Hi! It's been a while. What have you been up to? 🐾",
	"I got bored, come play with me! ✨",
	"I missed you! How have you been? 💕",
	"How was your day? Tell me all about it! 🌟",
	"I have a question for you! Got a minute? 🤔",
}

// fallbackMessage picks a pool message. The same candidate always gets the
// same message.
func fallbackMessage(c notifications.Candidate) string {
	h := fnv.New32a()
	_, _ = h.Write(c.UserID[:])
	_, _ = h.Write([]byte(strconv.FormatInt(c.IdleSince.UTC().Unix(), 10)))
	return fallbackMessages[h.Sum32()%uint32(len(fallbackMessages))]
}

// truncate cuts s to at most max runes, ending in "..." when shortened.
func truncate(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
