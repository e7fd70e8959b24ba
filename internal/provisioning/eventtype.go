package provisioning

import "github.com/planlos/ticket-account-bridge/pkg/webhookcontract"

// EventType is the recognized kind of an order webhook
type EventType int

const (
	// EventUnrecognized is any tag the bridge does not act on
	EventUnrecognized EventType = iota
	// EventApprovalRequired is an order waiting for manual approval
	EventApprovalRequired
	// EventApproved is an order the organizer approved
	EventApproved
	// EventPlaced is a newly placed order
	EventPlaced
)

var eventTags = map[string]EventType{
	"order.placed.require_approval": EventApprovalRequired,
	"order.approved":                EventApproved,
	"order.placed":                  EventPlaced,
}

// ParseEventType maps an action tag to its EventType. The shop's
// namespace is optional.
func ParseEventType(action string) EventType {
	if t, ok := eventTags[webhookcontract.CanonicalAction(action)]; ok {
		return t
	}
	return EventUnrecognized
}

func (t EventType) String() string {
	switch t {
	case EventApprovalRequired:
		return "approval_required"
	case EventApproved:
		return "approved"
	case EventPlaced:
		return "placed"
	default:
		return "unrecognized"
	}
}
