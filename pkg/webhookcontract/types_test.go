package webhookcontract

import (
	"encoding/json"
	"testing"
)

func TestEvent_UnmarshalShopPayload(t *testing.T) {
	body := `{"notification_id":1,"id":1337,"organizer":"kv-kraichgau","event":"summer-camp","code":"ABC12","action":"pretix.event.order.approved"}`

	var event Event
	if err := json.Unmarshal([]byte(body), &event); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if event.ID != 1337 {
		t.Errorf("expected id 1337, got %d", event.ID)
	}
	if event.Organizer != "kv-kraichgau" {
		t.Errorf("expected organizer kv-kraichgau, got %s", event.Organizer)
	}
	if event.Event != "summer-camp" {
		t.Errorf("expected event summer-camp, got %s", event.Event)
	}
	if event.Code != "ABC12" {
		t.Errorf("expected code ABC12, got %s", event.Code)
	}
	if event.Action != "pretix.event.order.approved" {
		t.Errorf("expected action pretix.event.order.approved, got %s", event.Action)
	}
}

func TestEvent_Validate(t *testing.T) {
	valid := Event{ID: 1, Organizer: "org", Event: "ev", Code: "C0D3", Action: "pretix.event.order.approved"}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid event, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing organizer", func(e *Event) { e.Organizer = "" }},
		{"missing event", func(e *Event) { e.Event = "" }},
		{"missing code", func(e *Event) { e.Code = "" }},
		{"missing action", func(e *Event) { e.Action = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestFilterRequest_UsesHyphenatedQnAField(t *testing.T) {
	body := `{"action":"pretix.event.order.approved","event":"camp","qna-list":{"size":["M","L"]}}`

	var req FilterRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	answers := req.QnAList["size"]
	if len(answers) != 2 || answers[0] != "M" || answers[1] != "L" {
		t.Errorf("expected size answers [M L], got %v", answers)
	}
}

func TestCanonicalAction(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{"pretix.event.order.approved", "order.approved"},
		{"order.approved", "order.approved"},
		{"  pretix.event.order.placed ", "order.placed"},
		{"pretix.event.", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CanonicalAction(tt.action); got != tt.want {
			t.Errorf("CanonicalAction(%q) = %q, want %q", tt.action, got, tt.want)
		}
	}
}
