package models

import (
	"time"

	"github.com/google/uuid"
)

type ChallengePurpose string

const (
	PurposeRegistration      ChallengePurpose = "registration"
	PurposeLogin             ChallengePurpose = "login"
	PurposePasswordReset     ChallengePurpose = "password_reset"
	PurposePhoneVerification ChallengePurpose = "phone_verification"
)

// Challenge is a one-time code issued for a (target, purpose) pair. Only
// the bcrypt hash of the code is stored; the raw code leaves the process
// exactly once, through the out-of-band delivery gateway.
type Challenge struct {
	ID        uuid.UUID        `json:"id"`
	Target    string           `json:"target"`
	Purpose   ChallengePurpose `json:"purpose"`
	CodeHash  string           `json:"-"`
	ExpiresAt time.Time        `json:"expires_at"`
	Attempts  int              `json:"attempts"`
	IsUsed    bool             `json:"is_used"`
	CreatedAt time.Time        `json:"created_at"`
}

// Expired reports whether the challenge TTL has lapsed at now.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ValidPurpose reports whether p is a known challenge purpose.
func ValidPurpose(p ChallengePurpose) bool {
	switch p {
	case PurposeRegistration, PurposeLogin, PurposePasswordReset, PurposePhoneVerification:
		return true
	}
	return false
}
