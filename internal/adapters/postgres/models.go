package postgres

import (
	"time"

	"github.com/google/uuid"
)

type leadModel struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CRMID         string     `gorm:"column:crm_id"`
	FirstName     string     `gorm:"column:first_name"`
	Email         string     `gorm:"column:email"`
	Phone         string     `gorm:"column:phone"`
	Company       string     `gorm:"column:company"`
	Status        string     `gorm:"column:status"`
	SequenceCycle int        `gorm:"column:sequence_cycle"`
	LastTouchAt   *time.Time `gorm:"column:last_touch_at"`
	TotalTouches  int        `gorm:"column:total_touches"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at"`
}

func (leadModel) TableName() string { return "contacts_master" }

type touchModel struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LeadID        uuid.UUID `gorm:"column:lead_id"`
	Channel       string    `gorm:"column:channel"`
	Cycle         int       `gorm:"column:cycle"`
	Step          int       `gorm:"column:step"`
	VariantID     int       `gorm:"column:variant_id"`
	Status        string    `gorm:"column:status"`
	CorrelationID string    `gorm:"column:correlation_id;uniqueIndex"`
	ExternalRef   string    `gorm:"column:external_ref"`
	Payload       []byte    `gorm:"column:payload;type:jsonb"`
	SentAt        time.Time `gorm:"column:sent_at"`
}

func (touchModel) TableName() string { return "outbound_touches" }

type lockModel struct {
	Key        string    `gorm:"column:lock_key;primaryKey"`
	HolderID   string    `gorm:"column:holder_id"`
	AcquiredAt time.Time `gorm:"column:acquired_at"`
	ExpiresAt  time.Time `gorm:"column:expires_at"`
}

func (lockModel) TableName() string { return "job_locks" }

type stateModel struct {
	Key       string    `gorm:"column:state_key;primaryKey"`
	Value     string    `gorm:"column:state_value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (stateModel) TableName() string { return "system_state" }
