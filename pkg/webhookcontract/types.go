package webhookcontract

import (
	"errors"
	"strings"
)

// ActionNamespace prefixes every action tag the shop sends
const ActionNamespace = "pretix.event."

// CanonicalAction returns the action tag without the shop's namespace, so
// "pretix.event.order.approved" and "order.approved" compare equal.
func CanonicalAction(action string) string {
	return strings.TrimPrefix(strings.TrimSpace(action), ActionNamespace)
}

// Event is the order webhook body posted by the ticketing shop
type Event struct {
	ID        int64  `json:"id"`        // Notification id assigned by the shop
	Organizer string `json:"organizer"` // Organizer slug
	Event     string `json:"event"`     // Event slug
	Code      string `json:"code"`      // Order code, unique per event
	Action    string `json:"action"`    // Event-type tag (e.g., "pretix.event.order.approved")
}

// Validate checks that every field needed to process the event is present
func (e Event) Validate() error {
	switch {
	case e.Organizer == "":
		return errors.New("organizer is required")
	case e.Event == "":
		return errors.New("event is required")
	case e.Code == "":
		return errors.New("code is required")
	case e.Action == "":
		return errors.New("action is required")
	}
	return nil
}

// FilterRequest is the body of a filter administration request
type FilterRequest struct {
	Action  string              `json:"action"`   // Event-type tag the filter applies to
	Event   string              `json:"event"`    // Event slug the filter applies to
	QnAList map[string][]string `json:"qna-list"` // Question text -> acceptable answers
}

// FilterResponse describes a stored filter
type FilterResponse struct {
	ID        string              `json:"id"`
	Action    string              `json:"action"`
	Event     string              `json:"event"`
	QnAList   map[string][]string `json:"qna-list"`
	CreatedAt string              `json:"createdAt"`
}
