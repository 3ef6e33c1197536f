package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/companion/internal/db"
	svcErr "github.com/oggyb/companion/internal/errors"
)

// MutualInterestFunc decides whether a companion reciprocates a like or super-like.
type MutualInterestFunc func(c db.Companion, decision string) bool

// DecisionResult is the outcome of one swipe.
type DecisionResult struct {
	Decision db.SwipeDecision
	// Match is set when the decision produced (or re-activated) a match.
	Match *db.Match
	// NewMatch is false when an existing active match was returned.
	NewMatch bool
}

// IsMatch reports whether the swipe ended in a match.
func (r DecisionResult) IsMatch() bool { return r.Match != nil }

// DecisionRepository provides data access for swipe decisions and the
// match side effects they trigger.
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// ProcessDecision records userID's decision on companionID in one transaction.
//
// Behavior:
//   - The companion must exist and be active (gorm.ErrRecordNotFound otherwise).
//   - A second decision on the same pair fails with ErrAlreadyDecided;
//     the composite PK backs this up against concurrent inserts.
//   - pass never consults mutual and never creates a match.
//   - like / super_like create the match when mutual reports interest.
//     An existing match is reused, a deactivated one is re-activated.
//   - user_stats counters are bumped in the same transaction.
//
// Example:
//
//	res, err := repo.ProcessDecision(ctx, "user-1", "comp-9", db.DecisionLike, rule)
//	res.IsMatch() // -> true if comp-9 reciprocated
func (r *DecisionRepository) ProcessDecision(
	ctx context.Context,
	userID, companionID, decision string,
	mutual MutualInterestFunc,
) (DecisionResult, error) {
	var res DecisionResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var companion db.Companion
		if err := tx.Where("id = ? AND is_active = ?", companionID, true).Take(&companion).Error; err != nil {
			return err
		}

		var existing int64
		if err := tx.Model(&db.SwipeDecision{}).
			Where("user_id = ? AND companion_id = ?", userID, companionID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return svcErr.ErrAlreadyDecided
		}

		res.Decision = db.SwipeDecision{
			UserID:      userID,
			CompanionID: companionID,
			Decision:    decision,
		}
		if err := tx.Create(&res.Decision).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return svcErr.ErrAlreadyDecided
			}
			return err
		}

		if decision != db.DecisionPass && mutual != nil && mutual(companion, decision) {
			m, created, err := getOrCreateMatch(tx, userID, companionID)
			if err != nil {
				return err
			}
			res.Match = &m
			res.NewMatch = created
		}

		return bumpSwipeStats(tx, userID, decision, res.NewMatch)
	})
	if err != nil {
		return DecisionResult{}, err
	}
	return res, nil
}

// getOrCreateMatch returns the active match for the pair, creating or
// re-activating it as needed. created is true unless an active match existed.
func getOrCreateMatch(tx *gorm.DB, userID, companionID string) (db.Match, bool, error) {
	var m db.Match
	err := tx.Where("user_id = ? AND companion_id = ?", userID, companionID).Take(&m).Error
	switch {
	case err == nil && m.IsActive:
		return m, false, nil
	case err == nil:
		m.IsActive = true
		m.MatchedAt = tx.NowFunc()
		if err := tx.Model(&m).Updates(map[string]any{"is_active": true, "matched_at": m.MatchedAt}).Error; err != nil {
			return db.Match{}, false, err
		}
		return m, true, nil
	case !IsNotFound(err):
		return db.Match{}, false, err
	}

	m = db.Match{
		UserID:      userID,
		CompanionID: companionID,
		MatchedAt:   tx.NowFunc(),
		IsActive:    true,
	}
	if err := tx.Create(&m).Error; err != nil {
		return db.Match{}, false, err
	}
	return m, true, nil
}

// bumpSwipeStats makes sure the stats row exists, then increments counters.
func bumpSwipeStats(tx *gorm.DB, userID, decision string, newMatch bool) error {
	if err := ensureStatsRow(tx, userID); err != nil {
		return err
	}

	updates := map[string]any{
		"total_swipes": gorm.Expr("total_swipes + 1"),
	}
	switch decision {
	case db.DecisionLike:
		updates["likes"] = gorm.Expr("likes + 1")
	case db.DecisionSuperLike:
		updates["super_likes"] = gorm.Expr("super_likes + 1")
	case db.DecisionPass:
		updates["passes"] = gorm.Expr("passes + 1")
	}
	if newMatch {
		updates["matches"] = gorm.Expr("matches + 1")
	}
	return tx.Model(&db.UserStats{}).Where("user_id = ?", userID).Updates(updates).Error
}

func ensureStatsRow(tx *gorm.DB, userID string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.UserStats{UserID: userID}).Error
}
