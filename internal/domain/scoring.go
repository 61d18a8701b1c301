package domain

// Score decides correctness and points for one submission against one
// question's answer key. Timed-out submissions never score, regardless of
// the answer carried with them. Otherwise correctness is exact string
// equality: case-sensitive, no whitespace normalization, free-text included.
// Pure and deterministic; callers own persistence and broadcast.
func Score(key QuestionKey, answer string, timedOut bool) (correct bool, points int) {
	if timedOut {
		return false, 0
	}
	if answer != key.CorrectAnswer {
		return false, 0
	}
	return true, key.Points
}
