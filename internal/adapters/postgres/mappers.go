package postgres

import (
	"encoding/json"

	"github.com/nearmiss1193-afk/outreach/internal/domain"
)

func toDomainLead(m leadModel) domain.Lead {
	return domain.Lead{
		ID: m.ID, CRMID: m.CRMID, FirstName: m.FirstName, Email: m.Email, Phone: m.Phone,
		Company: m.Company, Status: domain.Status(m.Status), SequenceCycle: m.SequenceCycle,
		LastTouchAt: m.LastTouchAt, TotalTouches: m.TotalTouches,
		CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func toDomainTouch(m touchModel) domain.Touch {
	return domain.Touch{
		ID: m.ID, LeadID: m.LeadID, Channel: domain.Channel(m.Channel), Cycle: m.Cycle,
		Step: m.Step, VariantID: m.VariantID, Status: domain.TouchStatus(m.Status),
		CorrelationID: m.CorrelationID, ExternalRef: m.ExternalRef,
		Payload: json.RawMessage(m.Payload), SentAt: m.SentAt,
	}
}

func toTouchModel(t domain.Touch) touchModel {
	return touchModel{
		ID: t.ID, LeadID: t.LeadID, Channel: string(t.Channel), Cycle: t.Cycle,
		Step: t.Step, VariantID: t.VariantID, Status: string(t.Status),
		CorrelationID: t.CorrelationID, ExternalRef: t.ExternalRef,
		Payload: []byte(t.Payload), SentAt: t.SentAt,
	}
}

func toDomainLock(m lockModel) domain.Lock {
	return domain.Lock{
		Key: m.Key, HolderID: m.HolderID, AcquiredAt: m.AcquiredAt, ExpiresAt: m.ExpiresAt,
	}
}
