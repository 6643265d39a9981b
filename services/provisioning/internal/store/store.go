// Package store persists portal members provisioned from the CRM.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("member not found")

// Member is a portal account keyed by its CRM contact ID.
type Member struct {
	ID           string    `json:"id"`
	GHLContactID string    `json:"ghlContactId"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MemberStore is implemented by PostgresMemberStore and MemoryMemberStore.
type MemberStore interface {
	// Upsert creates or updates the member for m.GHLContactID. created is true
	// when no member existed for that contact.
	Upsert(ctx context.Context, m Member) (saved Member, created bool, err error)
	// Deactivate clears the active flag. Returns ErrNotFound for unknown contacts.
	Deactivate(ctx context.Context, contactID string) (Member, error)
	GetByContact(ctx context.Context, contactID string) (Member, error)
	Ping(ctx context.Context) error
}
