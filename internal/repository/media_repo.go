package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/companion/internal/db"
)

// MediaKind selects the avatar or banner record.
type MediaKind string

const (
	MediaAvatar MediaKind = "avatar"
	MediaBanner MediaKind = "banner"
)

// MediaRecord is the storage pointer for a user's avatar or banner.
type MediaRecord struct {
	UserID      string
	StorageKey  string
	FileName    string
	ContentType string
	SizeBytes   int64
	UpdatedAt   time.Time
}

// ErrUnknownMediaKind is returned for kinds other than avatar and banner.
var ErrUnknownMediaKind = errors.New("unknown media kind")

// MediaRepository provides data access for user_profile_pics and user_banners.
type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(database *gorm.DB) *MediaRepository {
	return &MediaRepository{db: database}
}

// Get returns the current record of the given kind or gorm.ErrRecordNotFound.
func (r *MediaRepository) Get(ctx context.Context, kind MediaKind, userID string) (MediaRecord, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	switch kind {
	case MediaAvatar:
		var row db.UserProfilePic
		if err := q.Take(&row).Error; err != nil {
			return MediaRecord{}, err
		}
		return MediaRecord(row), nil
	case MediaBanner:
		var row db.UserBanner
		if err := q.Take(&row).Error; err != nil {
			return MediaRecord{}, err
		}
		return MediaRecord(row), nil
	default:
		return MediaRecord{}, ErrUnknownMediaKind
	}
}

// Upsert writes the record, replacing any previous one for the user.
func (r *MediaRepository) Upsert(ctx context.Context, kind MediaKind, rec MediaRecord) error {
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"storage_key", "file_name", "content_type", "size_bytes", "updated_at"}),
	}
	q := r.db.WithContext(ctx).Clauses(onConflict)
	switch kind {
	case MediaAvatar:
		row := db.UserProfilePic(rec)
		return q.Create(&row).Error
	case MediaBanner:
		row := db.UserBanner(rec)
		return q.Create(&row).Error
	default:
		return ErrUnknownMediaKind
	}
}

// Delete removes the record. Deleting a missing record is not an error.
func (r *MediaRepository) Delete(ctx context.Context, kind MediaKind, userID string) error {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	switch kind {
	case MediaAvatar:
		return q.Delete(&db.UserProfilePic{}).Error
	case MediaBanner:
		return q.Delete(&db.UserBanner{}).Error
	default:
		return ErrUnknownMediaKind
	}
}
