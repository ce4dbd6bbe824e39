package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal is a savings target. CurrentAmount grows through contributions.
type Goal struct {
	ID            string          `json:"id,omitempty"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Deadline      *time.Time      `json:"deadline,omitempty"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at,omitempty"`
}

func (g Goal) EntityID() string { return g.ID }
func (g Goal) Owner() string    { return g.UserID }
