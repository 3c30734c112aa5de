package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

const campaignModeKey = "campaign_mode"

type stateRepository struct {
	db *gorm.DB
}

// CampaignMode reads the process-wide toggle. A missing row means the
// campaign has never been paused and defaults to working.
func (r *stateRepository) CampaignMode(ctx context.Context) (domain.Mode, error) {
	var rec stateModel
	err := r.db.WithContext(ctx).Where("state_key = ?", campaignModeKey).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ModeWorking, nil
	}
	if err != nil {
		return "", err
	}
	switch domain.Mode(rec.Value) {
	case domain.ModeWorking, domain.ModePaused:
		return domain.Mode(rec.Value), nil
	default:
		return "", fmt.Errorf("unknown campaign mode %q", rec.Value)
	}
}

func (r *stateRepository) RecordHeartbeat(ctx context.Context, job string, at time.Time) error {
	rec := stateModel{
		Key:       "heartbeat:" + job,
		Value:     at.UTC().Format(time.RFC3339),
		UpdatedAt: at.UTC(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"state_value", "updated_at"}),
	}).Create(&rec).Error
}
