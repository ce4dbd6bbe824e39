// Package models defines the entity types synchronized by the fintrack
// client: spending categories, transactions, financial goals and chat
// messages, all scoped to one owner.
package models

import (
	"strings"

	"github.com/google/uuid"
)

// EntityType names one synchronized entity family. The value doubles as the
// remote store table name.
type EntityType string

const (
	TypeCategories   EntityType = "categories"
	TypeTransactions EntityType = "transactions"
	TypeGoals        EntityType = "goals"
	TypeChatMessages EntityType = "chat_messages"
)

// Entity is implemented by every synchronized type.
type Entity interface {
	EntityID() string
	Owner() string
}

// ProvisionalPrefix marks locally assigned ids. The remote store assigns
// bare UUIDs, so prefixed ids can never collide with durable ones.
const ProvisionalPrefix = "temp-"

// NewProvisionalID returns a fresh local placeholder id.
func NewProvisionalID() string {
	return ProvisionalPrefix + uuid.NewString()
}

// IsProvisional reports whether id was assigned locally.
func IsProvisional(id string) bool {
	return strings.HasPrefix(id, ProvisionalPrefix)
}

// ChangeEvent is a payload-less notification that an owner's data of one
// entity type changed remotely. The required reaction is a full refetch;
// the event never carries row data.
type ChangeEvent struct {
	Owner string     `json:"owner"`
	Type  EntityType `json:"table"`
}
