package app

import (
	"math/rand"

	"kuiz-session-service/internal/domain"
)

// generateJoinCode returns a human-shareable 6-digit numeric code.
func generateJoinCode() string {
	digits := make([]byte, 6)
	digits[0] = byte('1' + rand.Intn(9))
	for i := 1; i < len(digits); i++ {
		digits[i] = byte('0' + rand.Intn(10))
	}
	return string(digits)
}

// sampleQuestionIDs picks n question ids uniformly via a Fisher-Yates
// shuffle. A comparator sort with a random key would bias toward list
// position; the shuffle does not.
func sampleQuestionIDs(questions []domain.Question, n int) []string {
	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	for i := len(ids) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:n]
}
