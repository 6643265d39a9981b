package ghl

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	ContactCreate    = "ContactCreate"
	ContactUpdate    = "ContactUpdate"
	ContactTagUpdate = "ContactTagUpdate"
	ContactDelete    = "ContactDelete"
)

var ErrMissingWebhookID = errors.New("ghl: webhookId is required")

// Event is the subset of a contact webhook the portal reads.
type Event struct {
	Type       string   `json:"type"`
	WebhookID  string   `json:"webhookId"`
	LocationID string   `json:"locationId"`
	ContactID  string   `json:"id"`
	Email      string   `json:"email"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Tags       []string `json:"tags"`
}

// Decode parses a webhook body. Contact fields are trimmed and the email lowercased.
func Decode(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, err
	}
	ev.WebhookID = strings.TrimSpace(ev.WebhookID)
	if ev.WebhookID == "" {
		return Event{}, ErrMissingWebhookID
	}
	ev.ContactID = strings.TrimSpace(ev.ContactID)
	ev.Email = strings.ToLower(strings.TrimSpace(ev.Email))
	ev.FirstName = strings.TrimSpace(ev.FirstName)
	ev.LastName = strings.TrimSpace(ev.LastName)
	return ev, nil
}

// HasTag reports whether the contact carries tag, case-insensitively.
func (e Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}
