package companion

import (
	"github.com/oggyb/companion/internal/db"
	"github.com/oggyb/companion/internal/repository"
)

// MutualInterest reciprocates a like when the companion's compatibility
// score reaches minScore. A super-like adds superLikeBonus first.
// Unscored companions never reciprocate.
func MutualInterest(minScore, superLikeBonus float64) repository.MutualInterestFunc {
	return func(c db.Companion, decision string) bool {
		if c.CompatibilityScore == nil {
			return false
		}
		score := *c.CompatibilityScore
		if decision == db.DecisionSuperLike {
			score += superLikeBonus
		}
		return score >= minScore
	}
}
