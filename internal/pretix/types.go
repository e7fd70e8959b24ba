package pretix

import (
	"encoding/json"
	"maps"
	"slices"
)

// Order is an order as returned by the orders endpoint. Only the fields the
// bridge reads are typed; Raw keeps the full document for JSON-pointer lookups.
type Order struct {
	Code            string          `json:"code"`
	Status          string          `json:"status"`
	Email           string          `json:"email"`
	Expires         string          `json:"expires"`
	RequireApproval bool            `json:"require_approval"`
	InvoiceAddress  *InvoiceAddress `json:"invoice_address"`
	Positions       []Position      `json:"positions"`

	Raw map[string]any `json:"-"`
}

// UnmarshalJSON decodes the typed fields and keeps the raw document
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var typed plain
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Order(typed)
	o.Raw = raw
	return nil
}

// InvoiceAddress holds the buyer's name
type InvoiceAddress struct {
	Name      string            `json:"name"`
	NameParts map[string]string `json:"name_parts"`
}

// Position is one ticket inside an order
type Position struct {
	ID      int64    `json:"id"`
	Item    int64    `json:"item"`
	Answers []Answer `json:"answers"`
}

// Answer is the buyer's answer to one custom question
type Answer struct {
	Question           int64  `json:"question"`
	Answer             string `json:"answer"`
	QuestionIdentifier string `json:"question_identifier"`
}

// Question is a custom question asked during checkout
type Question struct {
	ID         int64             `json:"id"`
	Question   map[string]string `json:"question"` // locale -> text
	Identifier string            `json:"identifier"`
}

// Text returns the question text in the preferred locale, falling back to
// English and then to the alphabetically first locale.
func (q Question) Text(locale string) string {
	if t, ok := q.Question[locale]; ok && t != "" {
		return t
	}
	if t, ok := q.Question["en"]; ok && t != "" {
		return t
	}
	for _, l := range slices.Sorted(maps.Keys(q.Question)) {
		if q.Question[l] != "" {
			return q.Question[l]
		}
	}
	return q.Identifier
}

// HasAnswers reports whether any position of the order carries answers
func (o *Order) HasAnswers() bool {
	for _, p := range o.Positions {
		if len(p.Answers) > 0 {
			return true
		}
	}
	return false
}
