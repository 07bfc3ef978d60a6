package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/ambudispatch/core/model"
)

// Field names used on request rows. Request coordinates live under their own
// pair so they never collide with unit coordinate columns.
const (
	FieldID            = "id"
	FieldPatientName   = "patient_name"
	FieldAge           = "age"
	FieldEmergencyType = "emergency_type"
	FieldSeverity      = "severity"
	FieldPhone         = "phone"
	FieldTargetLat     = "lat of T"
	FieldTargetLon     = "long of T"
	FieldAddress       = "address"
	FieldTimestamp     = "timestamp"
	FieldStatus        = "status"
	FieldAssignedUnit  = "assigned_unit"
)

// Unit field aliases, tried in order.
var (
	unitNameFields   = []string{"Name", "name"}
	unitStatusFields = []string{"status", "Status"}
	unitDriverFields = []string{"driver", "Driver"}
	unitLatFields    = []string{"lat", "latitude"}
	unitLonFields    = []string{"lon", "longitude", "long"}
)

// ParseUnit maps a raw unit row onto model.Unit. It never fails: a missing or
// unparsable coordinate leaves Location nil, an unknown status maps to
// UnitUnknown, a missing name falls back to "Unit <id>".
func ParseUnit(r Record) model.Unit {
	u := model.Unit{ID: stringField(r, FieldID)}
	u.Name = firstString(r, unitNameFields)
	if u.Name == "" && u.ID != "" {
		u.Name = "Unit " + u.ID
	}
	u.RawStatus = firstString(r, unitStatusFields)
	u.Status = model.ParseUnitStatus(u.RawStatus)
	u.Driver = firstString(r, unitDriverFields)

	lat, okLat := firstFloat(r, unitLatFields)
	lon, okLon := firstFloat(r, unitLonFields)
	if okLat && okLon {
		if c, err := model.NewCoordinate(lat, lon); err == nil {
			u.Location = &c
		}
	}
	return u
}

// ParseRequest maps a raw request row onto model.EmergencyRequest. A blank
// status reads as Pending; an unrecognised one becomes StatusUnknown with the
// stored text in RawStatus. Missing coordinates and timestamp stay zero.
func ParseRequest(r Record) model.EmergencyRequest {
	req := model.EmergencyRequest{
		ID:              stringField(r, FieldID),
		PatientName:     stringField(r, FieldPatientName),
		EmergencyType:   stringField(r, FieldEmergencyType),
		Phone:           stringField(r, FieldPhone),
		ResolvedAddress: stringField(r, FieldAddress),
		AssignedUnitID:  linkID(r, FieldAssignedUnit),
	}
	if age, ok := toFloat(r[FieldAge]); ok {
		req.Age = int(age)
	}
	if sev, ok := model.ParseSeverity(stringField(r, FieldSeverity)); ok {
		req.Severity = sev
	}
	switch raw := stringField(r, FieldStatus); raw {
	case "":
		req.Status = model.StatusPending
	default:
		if st, ok := model.ParseRequestStatus(raw); ok {
			req.Status = st
		} else {
			req.Status = model.StatusUnknown
			req.RawStatus = raw
		}
	}
	lat, okLat := toFloat(r[FieldTargetLat])
	lon, okLon := toFloat(r[FieldTargetLon])
	if okLat && okLon {
		req.Location = model.Coordinate{Latitude: lat, Longitude: lon}
	}
	if ts := stringField(r, FieldTimestamp); ts != "" {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, ts); err == nil {
				req.CreatedAt = t
				break
			}
		}
	}
	return req
}

// RequestFields renders a request as a row for Create.
func RequestFields(req model.EmergencyRequest) Record {
	return Record{
		FieldPatientName:   req.PatientName,
		FieldAge:           req.Age,
		FieldEmergencyType: req.EmergencyType,
		FieldSeverity:      string(req.Severity),
		FieldPhone:         req.Phone,
		FieldTargetLat:     req.Location.Latitude,
		FieldTargetLon:     req.Location.Longitude,
		FieldAddress:       req.ResolvedAddress,
		FieldTimestamp:     req.CreatedAt.UTC().Format(time.RFC3339),
		FieldStatus:        string(req.Status),
		FieldAssignedUnit:  req.AssignedUnitID,
	}
}

// UnitStatusFields renders a unit status change for Update.
func UnitStatusFields(s model.UnitStatus) Record {
	return Record{"status": string(s)}
}

func firstString(r Record, keys []string) string {
	for _, k := range keys {
		if s := stringField(r, k); s != "" {
			return s
		}
	}
	return ""
}

func firstFloat(r Record, keys []string) (float64, bool) {
	for _, k := range keys {
		if f, ok := toFloat(r[k]); ok {
			return f, true
		}
	}
	return 0, false
}

// stringField reads r[key] as a string. Single-select cells ({"value": "..."})
// and link-row cells ([{"id":1,"value":"..."}]) are unwrapped.
func stringField(r Record, key string) string {
	return strings.TrimSpace(toString(r[key]))
}

// linkID reads r[key] as a row reference. A link-row cell yields the linked
// row id, not its display value; anything else reads like stringField.
func linkID(r Record, key string) string {
	if rows, ok := r[key].([]any); ok && len(rows) > 0 {
		if row, ok := rows[0].(map[string]any); ok {
			if id := strings.TrimSpace(toString(row["id"])); id != "" {
				return id
			}
		}
	}
	return stringField(r, key)
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case map[string]any:
		return toString(x["value"])
	case []any:
		if len(x) == 0 {
			return ""
		}
		return toString(x[0])
	default:
		return fmt.Sprint(x)
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
