package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/companion/internal/db"
)

// AccountRepository stores locally managed logins.
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(database *gorm.DB) *AccountRepository {
	return &AccountRepository{db: database}
}

// Create inserts a new account. Emails are stored lower-cased;
// a taken email fails with gorm.ErrDuplicatedKey.
func (r *AccountRepository) Create(ctx context.Context, a *db.Account) error {
	a.Email = normalizeEmail(a.Email)
	a.Active = true
	return r.db.WithContext(ctx).Create(a).Error
}

// GetByEmail loads an active account by email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (db.Account, error) {
	var a db.Account
	err := r.db.WithContext(ctx).
		Where("email = ? AND active = ?", normalizeEmail(email), true).
		Take(&a).Error
	return a, err
}

// GetByID loads an active account by id.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (db.Account, error) {
	var a db.Account
	err := r.db.WithContext(ctx).
		Where("id = ? AND active = ?", id, true).
		Take(&a).Error
	return a, err
}

// TouchLogin records a successful sign-in.
func (r *AccountRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Account{}).
		Where("id = ?", id).
		Update("last_login_at", at.UTC()).Error
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
