package model

import (
	"strings"
	"time"
)

// Severity of an emergency.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// ParseSeverity is case-insensitive. ok is false for unknown values.
func ParseSeverity(s string) (Severity, bool) {
	for _, v := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

// RequestStatus is a lifecycle state of an emergency request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "Pending"
	StatusInProgress RequestStatus = "In Progress"
	StatusCompleted  RequestStatus = "Completed"
	// StatusUnknown marks a stored status this service does not recognise.
	// Such a request neither holds a unit nor accepts transitions.
	StatusUnknown RequestStatus = "Unknown"
)

// ParseRequestStatus accepts "In Progress", "InProgress" and "in_progress" alike.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "pending":
		return StatusPending, true
	case "inprogress":
		return StatusInProgress, true
	case "completed", "complete", "done":
		return StatusCompleted, true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s RequestStatus) IsTerminal() bool { return s == StatusCompleted }

// Emergency types offered by the intake form. Free-form values are accepted too.
const (
	EmergencyHeartAttack = "Heart Attack"
	EmergencyAccident    = "Accident"
	EmergencyStroke      = "Stroke"
	EmergencyBreathing   = "Breathing Problem"
	EmergencyOther       = "Other"
)

// EmergencyRequest is a persisted request. AssignedUnitID is empty when no unit
// could be assigned.
type EmergencyRequest struct {
	ID              string        `json:"id"`
	PatientName     string        `json:"patient_name"`
	Age             int           `json:"age"`
	EmergencyType   string        `json:"emergency_type"`
	Severity        Severity      `json:"severity"`
	Phone           string        `json:"phone"`
	Location        Coordinate    `json:"location"`
	ResolvedAddress string        `json:"resolved_address"`
	CreatedAt       time.Time     `json:"created_at"`
	Status          RequestStatus `json:"status"`
	AssignedUnitID  string        `json:"assigned_unit_id,omitempty"`
	// RawStatus keeps the stored value when Status is StatusUnknown.
	RawStatus string `json:"raw_status,omitempty"`
}

// Active reports whether the request still holds its unit.
func (r EmergencyRequest) Active() bool {
	return r.Status == StatusPending || r.Status == StatusInProgress
}
