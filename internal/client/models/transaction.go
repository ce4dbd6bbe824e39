package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes money leaving from money arriving.
type TransactionKind string

const (
	KindExpense TransactionKind = "expense"
	KindIncome  TransactionKind = "income"
)

// Transaction is a single ledger entry linked to a category.
type Transaction struct {
	ID          string          `json:"id,omitempty"`
	UserID      string          `json:"user_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        TransactionKind `json:"kind"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitempty"`
}

func (t Transaction) EntityID() string { return t.ID }
func (t Transaction) Owner() string    { return t.UserID }

// ContentKey identifies a transaction by what it says rather than by id.
// During the window between an optimistic insert and the refetch that
// replaces it, the provisional row and the durable row share this key.
func (t Transaction) ContentKey() string {
	return t.Description + "|" + t.Amount.String()
}

// DedupeProvisional drops provisional rows that have been superseded by a
// durable row with the same content key. Order is otherwise preserved.
func DedupeProvisional(items []Transaction) []Transaction {
	durable := make(map[string]struct{})
	for _, t := range items {
		if !IsProvisional(t.ID) {
			durable[t.ContentKey()] = struct{}{}
		}
	}

	out := make([]Transaction, 0, len(items))
	for _, t := range items {
		if IsProvisional(t.ID) {
			if _, ok := durable[t.ContentKey()]; ok {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
