// Package qnafilter defines the question-and-answer filters that gate
// account provisioning and evaluates them against an order's answers.
package qnafilter

import (
	"fmt"
	"maps"
	"slices"

	"github.com/planlos/ticket-account-bridge/internal/textfold"
	"github.com/planlos/ticket-account-bridge/pkg/webhookcontract"
)

// ValidationError reports a malformed filter definition
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid filter %s: %s", e.Field, e.Message)
}

// Filter gates account provisioning for one (action, event) pair on the
// answers an order gives to custom questions. QnA maps question text to the
// answers that are acceptable for it.
type Filter struct {
	Action string
	Event  string
	QnA    map[string][]string
}

// New validates and builds a Filter. The action is stored in canonical form
// and the QnA map is copied.
func New(action, event string, qna map[string][]string) (Filter, error) {
	action = webhookcontract.CanonicalAction(action)
	if action == "" {
		return Filter{}, &ValidationError{Field: "action", Message: "must not be empty"}
	}
	if event == "" {
		return Filter{}, &ValidationError{Field: "event", Message: "must not be empty"}
	}
	if err := validateQnA(qna); err != nil {
		return Filter{}, err
	}

	copied := make(map[string][]string, len(qna))
	for question, answers := range qna {
		copied[question] = slices.Clone(answers)
	}

	return Filter{Action: action, Event: event, QnA: copied}, nil
}

func validateQnA(qna map[string][]string) error {
	if len(qna) == 0 {
		return &ValidationError{Field: "qna-list", Message: "must contain at least one question"}
	}

	for _, question := range slices.Sorted(maps.Keys(qna)) {
		if question == "" {
			return &ValidationError{Field: "qna-list", Message: "question must not be empty"}
		}
		answers := qna[question]
		if len(answers) == 0 {
			return &ValidationError{Field: "qna-list", Message: fmt.Sprintf("question %q has no answers", question)}
		}
		seen := make(map[string]bool, len(answers))
		for _, answer := range answers {
			if answer == "" {
				return &ValidationError{Field: "qna-list", Message: fmt.Sprintf("question %q has an empty answer", question)}
			}
			if seen[answer] {
				return &ValidationError{Field: "qna-list", Message: fmt.Sprintf("duplicate answer %q for question %q", answer, question)}
			}
			seen[answer] = true
		}
	}
	return nil
}

// AppliesTo reports whether the filter was defined for this action and event.
// Actions compare in canonical form.
func (f Filter) AppliesTo(action, event string) bool {
	return webhookcontract.CanonicalAction(f.Action) == webhookcontract.CanonicalAction(action) && f.Event == event
}

// Matches reports whether every question named by the filter was answered
// with one of its acceptable answers. Questions the filter does not name are
// ignored. Text on both sides is folded before comparison.
func Matches(f Filter, answers map[string]string) bool {
	folded := make(map[string]string, len(answers))
	for question, answer := range answers {
		folded[textfold.Fold(question)] = textfold.Fold(answer)
	}

	for question, acceptable := range f.QnA {
		given, ok := folded[textfold.Fold(question)]
		if !ok {
			return false
		}
		if !slices.ContainsFunc(acceptable, func(a string) bool {
			return textfold.Fold(a) == given
		}) {
			return false
		}
	}
	return true
}

// Admits decides whether an order passes the filters defined for its
// action and event. Filters for other pairs are skipped without being
// evaluated. With no applicable filter the order is admitted; otherwise
// one matching filter is enough.
func Admits(filters []Filter, action, event string, answers map[string]string) bool {
	applicable := false
	for _, f := range filters {
		if !f.AppliesTo(action, event) {
			continue
		}
		applicable = true
		if Matches(f, answers) {
			return true
		}
	}
	return !applicable
}
