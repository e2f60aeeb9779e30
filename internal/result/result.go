// Package result classifies a scored attempt for display: pass or fail, the
// encouragement tier, and the per-question status of the breakdown.
package result

import (
	"strings"

	"github.com/pavelanni/learny/internal/model"
)

// PassMark is the lowest passing score.
const PassMark = 50.0

// BlankMarker is what the backend stores for an unanswered question.
const BlankMarker = "Boş"

// Passed reports whether score passes.
func Passed(score float64) bool {
	return score >= PassMark
}

// Tier is an encouragement level derived from the score.
type Tier struct {
	Name      string
	MinScore  float64
	MessageID string
	Emoji     string
}

var tiers = []Tier{
	{Name: "excellent", MinScore: 90, MessageID: "TierExcellent", Emoji: "🏆"},
	{Name: "very-good", MinScore: 80, MessageID: "TierVeryGood", Emoji: "🌟"},
	{Name: "good", MinScore: 70, MessageID: "TierGood", Emoji: "👍"},
	{Name: "pass", MinScore: 50, MessageID: "TierPass", Emoji: "✅"},
	{Name: "study", MinScore: 0, MessageID: "TierStudy", Emoji: "📚"},
}

// TierFor returns the highest tier whose threshold score reaches.
func TierFor(score float64) Tier {
	for _, t := range tiers {
		if score >= t.MinScore {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Band groups scores for colouring.
type Band string

const (
	BandHigh Band = "high"
	BandMid  Band = "mid"
	BandLow  Band = "low"
)

// BandFor returns the colour band of score.
func BandFor(score float64) Band {
	switch {
	case score >= 80:
		return BandHigh
	case score >= 50:
		return BandMid
	default:
		return BandLow
	}
}

// Status is the outcome of one question.
type Status string

const (
	StatusCorrect Status = "correct"
	StatusEmpty   Status = "empty"
	StatusWrong   Status = "wrong"
)

// StatusOf classifies a question result. The correctness flag wins; a
// missing, blank or BlankMarker answer counts as empty.
func StatusOf(q model.QuestionResult) Status {
	if q.Correct {
		return StatusCorrect
	}
	if IsBlank(q.StudentAnswer) {
		return StatusEmpty
	}
	return StatusWrong
}

// IsBlank reports whether a student answer means "not answered".
func IsBlank(answer *string) bool {
	if answer == nil {
		return true
	}
	a := strings.TrimSpace(*answer)
	return a == "" || a == BlankMarker
}
