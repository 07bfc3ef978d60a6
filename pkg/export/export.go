// Package export writes audit trails for offline review.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/ambudispatch/core/audit"
)

// WriteJSON writes records as a JSON array.
func WriteJSON(w io.Writer, records []audit.LogRecord) error {
	if records == nil {
		records = []audit.LogRecord{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

var csvHeader = []string{"timestamp", "kind", "dispatch_id", "request_id", "lat", "lon", "chosen_unit_id", "eligible_units", "candidates", "from", "to", "error"}

// WriteCSV writes one row per record. Candidates are reduced to a count.
func WriteCSV(w io.Writer, records []audit.LogRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		lat, lon := "", ""
		if r.Target != nil {
			lat = strconv.FormatFloat(r.Target.Latitude, 'f', 6, 64)
			lon = strconv.FormatFloat(r.Target.Longitude, 'f', 6, 64)
		}
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Kind),
			r.DispatchID,
			r.RequestID,
			lat,
			lon,
			r.ChosenUnitID,
			strconv.Itoa(r.EligibleUnits),
			strconv.Itoa(len(r.Candidates)),
			r.From,
			r.To,
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
