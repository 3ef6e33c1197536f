package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/db"
)

const (
	// DefaultCandidateLimit is the page size used when callers pass 0.
	DefaultCandidateLimit = 20
	// MaxCandidateLimit caps a single candidate page.
	MaxCandidateLimit = 50
)

// CandidateFilter narrows the candidate set. Zero values mean "no bound".
type CandidateFilter struct {
	MinAge int
	MaxAge int
}

// CompanionRepository provides read access to companions.
type CompanionRepository struct {
	db *gorm.DB
}

func NewCompanionRepository(database *gorm.DB) *CompanionRepository {
	return &CompanionRepository{db: database}
}

// ListCandidates returns companions the user can still swipe on.
//
// Behavior:
//   - Only active companions.
//   - Excludes every companion the user already decided on (any decision kind).
//   - Applies the optional age bounds.
//   - Ordered by compatibility_score DESC with unscored companions last,
//     then name and id so equal scores page deterministically.
//   - limit is clamped to 1..MaxCandidateLimit (0 → DefaultCandidateLimit).
//
// Example:
//
//	repo.ListCandidates(ctx, "user-1", CandidateFilter{MinAge: 18, MaxAge: 35}, 20)
func (r *CompanionRepository) ListCandidates(
	ctx context.Context,
	userID string,
	filter CandidateFilter,
	limit int,
) ([]db.Companion, error) {
	limit = ClampCandidateLimit(limit)

	query := r.db.WithContext(ctx).
		Table("companions c").
		Where("c.is_active = ?", true).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipe_decisions sd
				WHERE sd.user_id = ?
				  AND sd.companion_id = c.id
			)`, userID)

	if filter.MinAge > 0 {
		query = query.Where("c.age >= ?", filter.MinAge)
	}
	if filter.MaxAge > 0 {
		query = query.Where("c.age <= ?", filter.MaxAge)
	}

	var companions []db.Companion
	err := query.
		Order("CASE WHEN c.compatibility_score IS NULL THEN 1 ELSE 0 END").
		Order("c.compatibility_score DESC, c.name ASC, c.id ASC").
		Limit(limit).
		Find(&companions).Error
	if err != nil {
		return nil, err
	}
	return companions, nil
}

// GetByID loads a companion. Returns gorm.ErrRecordNotFound when missing.
func (r *CompanionRepository) GetByID(ctx context.Context, id string) (db.Companion, error) {
	var c db.Companion
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	return c, err
}

// ClampCandidateLimit normalizes a requested page size.
func ClampCandidateLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultCandidateLimit
	case limit > MaxCandidateLimit:
		return MaxCandidateLimit
	default:
		return limit
	}
}
