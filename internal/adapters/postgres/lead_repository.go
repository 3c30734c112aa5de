package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

type leadRepository struct {
	db *gorm.DB
}

func (r *leadRepository) FetchContactable(ctx context.Context, limit int) ([]domain.Lead, error) {
	var recs []leadModel
	err := r.db.WithContext(ctx).
		Where("status IN ?", statusStrings(domain.ContactableStatuses)).
		Order("last_touch_at ASC NULLS FIRST").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	leads := make([]domain.Lead, len(recs))
	for i, rec := range recs {
		leads[i] = toDomainLead(rec)
	}
	return leads, nil
}

func (r *leadRepository) FindByID(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	var rec leadModel
	if err := r.db.WithContext(ctx).Where("id = ?", leadID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Lead{}, domain.ErrLeadNotFound
		}
		return domain.Lead{}, err
	}
	return toDomainLead(rec), nil
}

// UpdateStatus is a compare-and-swap: the WHERE clause carries the expected
// current status, so a concurrent transition makes RowsAffected zero instead
// of silently overwriting.
func (r *leadRepository) UpdateStatus(ctx context.Context, leadID uuid.UUID, from, to domain.Status) error {
	res := r.db.WithContext(ctx).Model(&leadModel{}).
		Where("id = ? AND status = ?", leadID, string(from)).
		Updates(map[string]any{
			"status":     string(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&leadModel{}).Where("id = ?", leadID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrLeadNotFound
		}
		return domain.ErrStaleStatus
	}
	return nil
}

func (r *leadRepository) RecordLeadTouched(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&leadModel{}).
		Where("id = ?", leadID).
		Updates(map[string]any{
			"last_touch_at": at,
			"total_touches": gorm.Expr("total_touches + 1"),
			"updated_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrLeadNotFound
	}
	return nil
}

func (r *leadRepository) RecycleStale(ctx context.Context, statuses []domain.Status, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&leadModel{}).
		Where("status IN ? AND last_touch_at IS NOT NULL AND last_touch_at < ?", statusStrings(statuses), cutoff).
		Updates(map[string]any{
			"status":         string(domain.StatusNew),
			"sequence_cycle": gorm.Expr("sequence_cycle + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}
	return out
}
