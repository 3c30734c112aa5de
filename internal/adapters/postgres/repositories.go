package postgres

import (
	"gorm.io/gorm"

	"github.com/nearmiss1193-afk/outreach/internal/ports"
)

type Repositories struct {
	Leads   ports.LeadRepository
	Touches ports.TouchLedger
	Locks   ports.LockStore
	State   ports.StateStore
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Leads:   &leadRepository{db: db},
		Touches: &touchRepository{db: db},
		Locks:   &lockRepository{db: db},
		State:   &stateRepository{db: db},
	}
}
