package models

import (
	"time"

	"github.com/google/uuid"
)

type Relationship string

const (
	RelationFamily    Relationship = "family"
	RelationFriend    Relationship = "friend"
	RelationColleague Relationship = "colleague"
	RelationCaregiver Relationship = "caregiver"
	RelationOther     Relationship = "other"
)

// EmergencyContact belongs to exactly one owner. Soft-deleted via IsActive;
// at most one active contact per owner carries IsPrimary.
type EmergencyContact struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      string       `json:"owner_id"`
	Name         string       `json:"name"`
	Phone        string       `json:"phone"`
	Email        string       `json:"email,omitempty"`
	Relationship Relationship `json:"relationship"`
	IsPrimary    bool         `json:"is_primary"`
	IsActive     bool         `json:"is_active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ContactCreate is the input for registering a new emergency contact.
type ContactCreate struct {
	OwnerID      string       `json:"owner_id" binding:"required"`
	Name         string       `json:"name" binding:"required"`
	Phone        string       `json:"phone" binding:"required"`
	Email        string       `json:"email"`
	Relationship Relationship `json:"relationship"`
	IsPrimary    bool         `json:"is_primary"`
}

// ContactUpdate carries optional field updates; nil pointers leave the
// stored value untouched.
type ContactUpdate struct {
	Name         string        `json:"name,omitempty"`
	Phone        string        `json:"phone,omitempty"`
	Email        *string       `json:"email,omitempty"`
	Relationship *Relationship `json:"relationship,omitempty"`
	IsPrimary    *bool         `json:"is_primary,omitempty"`
}

// ValidRelationship reports whether r is a known relationship.
func ValidRelationship(r Relationship) bool {
	switch r {
	case RelationFamily, RelationFriend, RelationColleague, RelationCaregiver, RelationOther:
		return true
	}
	return false
}
