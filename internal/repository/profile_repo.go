package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/companion/internal/db"
)

// Profile bundles the three per-user singleton rows.
type Profile struct {
	Profile     db.UserProfile
	Preferences db.UserPreferences
	Stats       db.UserStats
}

// ProfileRepository provides data access for per-user singleton rows.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Ensure creates any missing profile, stats and preferences row for userID.
//
// Behavior:
//   - Each insert is ON CONFLICT DO NOTHING, so concurrent calls for the
//     same user cannot create duplicates or fail on each other.
//   - Existing rows are never modified.
//   - created reports whether at least one row was inserted.
//
// Example:
//
//	created, err := repo.Ensure(ctx, "user-1", "Ada")
func (r *ProfileRepository) Ensure(ctx context.Context, userID, displayName string) (bool, error) {
	if displayName == "" {
		displayName = "User"
	}

	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows := []any{
			&db.UserProfile{UserID: userID, DisplayName: displayName},
			&db.UserStats{UserID: userID},
			&db.UserPreferences{UserID: userID, AgeRangeMin: 18, AgeRangeMax: 35},
		}
		for _, row := range rows {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
			if res.Error != nil {
				return res.Error
			}
			inserted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

// Get loads all three singleton rows.
// A missing profile row is reported as gorm.ErrRecordNotFound; missing
// stats or preferences rows are treated the same way so callers take the
// provisioning path.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	q := r.db.WithContext(ctx)
	if err := q.Where("user_id = ?", userID).Take(&p.Profile).Error; err != nil {
		return Profile{}, err
	}
	if err := q.Where("user_id = ?", userID).Take(&p.Preferences).Error; err != nil {
		return Profile{}, err
	}
	if err := q.Where("user_id = ?", userID).Take(&p.Stats).Error; err != nil {
		return Profile{}, err
	}
	return p, nil
}

// UpdatePreferences overwrites the editable preference fields.
func (r *ProfileRepository) UpdatePreferences(ctx context.Context, prefs db.UserPreferences) error {
	res := r.db.WithContext(ctx).
		Model(&db.UserPreferences{}).
		Where("user_id = ?", prefs.UserID).
		Updates(map[string]any{
			"age_range_min":                  prefs.AgeRangeMin,
			"age_range_max":                  prefs.AgeRangeMax,
			"preferred_personalities":        prefs.PreferredPersonalities,
			"preferred_interests":            prefs.PreferredInterests,
			"communication_style_preference": prefs.CommunicationStylePreference,
			"relationship_goals":             prefs.RelationshipGoals,
		})
	if res.Error != nil {
		return res.Error
	}
	return r.requireRow(ctx, &db.UserPreferences{}, prefs.UserID, res.RowsAffected)
}

// TouchLastActive stamps user_profiles.last_active_at.
func (r *ProfileRepository) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&db.UserProfile{}).
		Where("user_id = ?", userID).
		Update("last_active_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	return r.requireRow(ctx, &db.UserProfile{}, userID, res.RowsAffected)
}

// requireRow turns "no rows updated" into ErrRecordNotFound, but only when
// the row is really missing (MySQL reports 0 for unchanged rows).
func (r *ProfileRepository) requireRow(ctx context.Context, model any, userID string, affected int64) error {
	if affected > 0 {
		return nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(model).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
