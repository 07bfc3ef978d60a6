package dispatch

import (
	"strings"

	"github.com/kilianp07/ambudispatch/core/model"
)

// Request is the intake form for a new emergency. Either Address or Location
// must resolve to a coordinate.
type Request struct {
	PatientName   string            `json:"patient_name"`
	Age           int               `json:"age"`
	EmergencyType string            `json:"emergency_type"`
	Severity      string            `json:"severity"`
	Phone         string            `json:"phone"`
	Address       string            `json:"address,omitempty"`
	Location      *model.Coordinate `json:"location,omitempty"`
}

// MaxAge bounds the accepted patient age.
const MaxAge = 120

// DefaultSeverity applies when the caller gives none. An untriaged emergency
// is treated as serious until someone says otherwise.
const DefaultSeverity = model.SeverityHigh

// Validate checks the patient fields. Location is checked during resolution.
func (r Request) Validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(r.PatientName) == "" {
		fields["patient_name"] = "required"
	}
	if strings.TrimSpace(r.Phone) == "" {
		fields["phone"] = "required"
	}
	if r.Age < 0 || r.Age > MaxAge {
		fields["age"] = "must be between 0 and 120"
	}
	if r.Severity != "" {
		if _, ok := model.ParseSeverity(r.Severity); !ok {
			fields["severity"] = "must be one of Low, Medium, High, Critical"
		}
	}
	if len(fields) > 0 {
		return &model.ValidationError{Fields: fields}
	}
	return nil
}

func (r Request) severity() model.Severity {
	if s, ok := model.ParseSeverity(r.Severity); ok {
		return s
	}
	return DefaultSeverity
}

func (r Request) emergencyType() string {
	if t := strings.TrimSpace(r.EmergencyType); t != "" {
		return t
	}
	return model.EmergencyOther
}

// Outcome describes a dispatch call. It is returned alongside errors too, so
// callers can tell "no coverage" apart from a system failure.
type Outcome struct {
	DispatchID string                  `json:"dispatch_id"`
	Request    *model.EmergencyRequest `json:"request,omitempty"`
	Candidates []model.RankedUnit      `json:"candidates"`
	// EligibleUnits counts units that could have been assigned. It is only
	// meaningful when CoverageKnown is true.
	EligibleUnits int  `json:"eligible_units"`
	CoverageKnown bool `json:"coverage_known"`
	// Escalation is the manual fallback number, set when no unit was assigned.
	Escalation string `json:"escalation,omitempty"`
}

// NoCoverage reports that the store was reachable and no unit was eligible.
func (o Outcome) NoCoverage() bool { return o.CoverageKnown && o.EligibleUnits == 0 }

// Assigned returns the chosen unit, if any.
func (o Outcome) Assigned() (model.RankedUnit, bool) {
	if o.Request == nil || o.Request.AssignedUnitID == "" || len(o.Candidates) == 0 {
		return model.RankedUnit{}, false
	}
	return o.Candidates[0], true
}
