package provisioning

import "errors"

// OutcomeKind is the terminal state of one webhook event
type OutcomeKind int

const (
	// OutcomeIgnored means the event needed no action
	OutcomeIgnored OutcomeKind = iota
	// OutcomeAccountCreated means an account was provisioned for the buyer
	OutcomeAccountCreated
	// OutcomeRejected means a QnA filter excluded the order
	OutcomeRejected
	// OutcomeAdminNotifiedOnly means the administrator was told and nothing else happened
	OutcomeAdminNotifiedOnly
	// OutcomeFailed means provisioning was attempted and failed; the administrator was notified
	OutcomeFailed
)

// ErrFilterRejected is the reason of a Rejected outcome
var ErrFilterRejected = errors.New("order rejected by QnA filter")

// String returns the kind's name, also used as its metric name
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccountCreated:
		return "AccountCreated"
	case OutcomeRejected:
		return "Rejected"
	case OutcomeAdminNotifiedOnly:
		return "AdminNotifiedOnly"
	case OutcomeFailed:
		return "Failed"
	default:
		return "Ignored"
	}
}

// Outcome is the result of handling one webhook event
type Outcome struct {
	Kind     OutcomeKind
	Reason   error  // Set for Rejected and Failed
	Identity string // Set for AccountCreated
}

// Notification subjects
const (
	SubjectApprovalRequired   = "Order requires approval"
	SubjectProvisioningFailed = "Account provisioning failed"
)
