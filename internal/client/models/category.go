package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category is a spending category. Spent is a derived running total adjusted
// by transaction writes; the transactions themselves are the source of truth
// for amounts.
type Category struct {
	ID        string          `json:"id,omitempty"`
	UserID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color,omitempty"`
	Icon      string          `json:"icon,omitempty"`
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

func (c Category) EntityID() string { return c.ID }
func (c Category) Owner() string    { return c.UserID }
