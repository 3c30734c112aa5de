package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

type touchRepository struct {
	db *gorm.DB
}

// RecordTouch appends one ledger row. The unique index on correlation_id is
// the dedup guarantee; a violation surfaces as domain.ErrDuplicateTouch.
func (r *touchRepository) RecordTouch(ctx context.Context, touch domain.Touch) error {
	rec := toTouchModel(touch)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateTouch
		}
		return err
	}
	return nil
}

func (r *touchRepository) CountTouches(ctx context.Context, leadID uuid.UUID, channel domain.Channel) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&touchModel{}).
		Where("lead_id = ? AND channel = ? AND status <> ?", leadID, string(channel), string(domain.TouchFailed)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *touchRepository) LastTouch(ctx context.Context, leadID uuid.UUID, channel domain.Channel) (domain.Touch, bool, error) {
	var rec touchModel
	err := r.db.WithContext(ctx).
		Where("lead_id = ? AND channel = ? AND status <> ?", leadID, string(channel), string(domain.TouchFailed)).
		Order("sent_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Touch{}, false, nil
	}
	if err != nil {
		return domain.Touch{}, false, err
	}
	return toDomainTouch(rec), true, nil
}

func (r *touchRepository) History(ctx context.Context, leadID uuid.UUID) ([]domain.Touch, error) {
	var recs []touchModel
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("sent_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	touches := make([]domain.Touch, len(recs))
	for i, rec := range recs {
		touches[i] = toDomainTouch(rec)
	}
	return touches, nil
}

func (r *touchRepository) HasCorrelation(ctx context.Context, correlationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&touchModel{}).
		Where("correlation_id = ?", correlationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *touchRepository) UpdateTouchStatus(ctx context.Context, ref ports.TouchRef, status domain.TouchStatus) (domain.Touch, error) {
	var rec touchModel
	query := r.db.WithContext(ctx)
	switch {
	case ref.ExternalRef != "":
		query = query.Where("external_ref = ?", ref.ExternalRef)
	case ref.CorrelationID != "":
		query = query.Where("correlation_id = ?", ref.CorrelationID)
	default:
		return domain.Touch{}, domain.ErrTouchNotFound
	}
	if err := query.Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Touch{}, domain.ErrTouchNotFound
		}
		return domain.Touch{}, err
	}
	if err := r.db.WithContext(ctx).Model(&touchModel{}).
		Where("id = ?", rec.ID).
		Update("status", string(status)).Error; err != nil {
		return domain.Touch{}, err
	}
	rec.Status = string(status)
	return toDomainTouch(rec), nil
}
