package events

import (
	"time"

	"github.com/kilianp07/ambudispatch/core/model"
)

// Event is anything published on the lifecycle bus.
type Event interface {
	// Name is the topic suffix used when events leave the process.
	Name() string
}

// Redactor is implemented by events carrying patient identity. Publishers
// that leave the process send Redacted() instead of the event itself.
type Redactor interface {
	Redacted() Event
}

// RequestCreated is published after a request row is created.
type RequestCreated struct {
	DispatchID string                 `json:"dispatch_id"`
	Request    model.EmergencyRequest `json:"request"`
}

func (RequestCreated) Name() string { return "request_created" }

// Redacted drops the patient's name and phone number.
func (e RequestCreated) Redacted() Event {
	e.Request.PatientName = ""
	e.Request.Phone = ""
	return e
}

// UnitAssigned is published once the chosen unit has been marked busy.
type UnitAssigned struct {
	DispatchID string           `json:"dispatch_id"`
	RequestID  string           `json:"request_id"`
	Unit       model.RankedUnit `json:"unit"`
}

func (UnitAssigned) Name() string { return "unit_assigned" }

// StatusChanged is published after a successful transition.
type StatusChanged struct {
	RequestID string              `json:"request_id"`
	From      model.RequestStatus `json:"from"`
	To        model.RequestStatus `json:"to"`
	UnitID    string              `json:"unit_id,omitempty"`
	At        time.Time           `json:"at"`
}

func (StatusChanged) Name() string { return "status_changed" }

// AssignmentConflict reports a lost check-then-write race: RequestIDs all hold UnitID.
type AssignmentConflict struct {
	UnitID     string   `json:"unit_id"`
	RequestIDs []string `json:"request_ids"`
}

func (AssignmentConflict) Name() string { return "assignment_conflict" }

// NoCoverage is published when a request was stored without a unit.
type NoCoverage struct {
	RequestID  string           `json:"request_id"`
	Location   model.Coordinate `json:"location"`
	Escalation string           `json:"escalation"`
}

func (NoCoverage) Name() string { return "no_coverage" }
