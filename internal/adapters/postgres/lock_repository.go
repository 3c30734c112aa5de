package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

type lockRepository struct {
	db *gorm.DB
}

// Acquire takes the lock in two steps: reclaim an expired row with a guarded
// UPDATE, then INSERT if no row exists at all. A unique violation on the
// INSERT means someone else won the race; a zero-row UPDATE means the holder
// is still live. Both report domain.ErrLockHeld.
func (r *lockRepository) Acquire(ctx context.Context, key, holderID string, ttl time.Duration) (domain.Lock, error) {
	key = strings.TrimSpace(key)
	holderID = strings.TrimSpace(holderID)
	if key == "" || holderID == "" {
		return domain.Lock{}, errors.New("lock key and holder id are required")
	}
	now := time.Now().UTC()
	lock := domain.Lock{Key: key, HolderID: holderID, AcquiredAt: now, ExpiresAt: now.Add(ttl)}

	res := r.db.WithContext(ctx).Model(&lockModel{}).
		Where("lock_key = ? AND (expires_at <= ? OR holder_id = ?)", key, now, holderID).
		Updates(map[string]any{
			"holder_id":   holderID,
			"acquired_at": now,
			"expires_at":  lock.ExpiresAt,
		})
	if res.Error != nil {
		return domain.Lock{}, res.Error
	}
	if res.RowsAffected > 0 {
		return lock, nil
	}

	rec := lockModel{Key: key, HolderID: holderID, AcquiredAt: now, ExpiresAt: lock.ExpiresAt}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.Lock{}, domain.ErrLockHeld
		}
		return domain.Lock{}, err
	}
	return lock, nil
}

// Release deletes the row only when the caller still holds it. Releasing a
// lock another holder reclaimed after expiry is a no-op.
func (r *lockRepository) Release(ctx context.Context, key, holderID string) error {
	return r.db.WithContext(ctx).
		Where("lock_key = ? AND holder_id = ?", key, holderID).
		Delete(&lockModel{}).Error
}
