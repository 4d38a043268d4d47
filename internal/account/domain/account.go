package domain

import (
	"errors"
	"time"
)

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusLocked   Status = "LOCKED"
	StatusDisabled Status = "DISABLED"
)

// CredentialAlgoBcrypt tags credential hashes produced by bcrypt. Stored
// alongside the hash so the algorithm can be rotated later.
const CredentialAlgoBcrypt = "bcrypt"

// Account is the authoritative identity record. The relational store owns
// it; only the engine mutates it, always through a compare-and-swap on
// Version.
type Account struct {
	ID             string
	Identifier     string // login identifier (username or email), unique
	CredentialHash string
	CredentialAlgo string
	Status         Status
	Version        int64 // bumped on every successful write; optimistic concurrency guard
	PendingRevoke  bool  // set while a lock cascade has sessions left to revoke
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks structural invariants before persistence.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("account: id is required")
	}
	if a.Identifier == "" {
		return errors.New("account: identifier is required")
	}
	if a.CredentialHash == "" {
		return errors.New("account: credential hash is required")
	}
	switch a.Status {
	case StatusActive, StatusLocked, StatusDisabled:
	default:
		return errors.New("account: invalid status")
	}
	return nil
}
