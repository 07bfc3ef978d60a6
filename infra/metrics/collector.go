package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/ambudispatch/core/events"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

// StartEventCollector records lifecycle events from the bus on sink until ctx
// is cancelled.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	go eventbus.Forward(ctx, bus, func(ev events.Event) { record(sink, ev) })
}

func record(sink coremetrics.MetricsSink, ev events.Event) {
	switch e := ev.(type) {
	case events.StatusChanged:
		if r, ok := sink.(coremetrics.TransitionRecorder); ok {
			_ = r.RecordTransition(coremetrics.TransitionEvent{
				RequestID: e.RequestID,
				From:      string(e.From),
				To:        string(e.To),
				Time:      e.At,
			})
		}
	case events.AssignmentConflict:
		if r, ok := sink.(coremetrics.ConflictRecorder); ok {
			_ = r.RecordConflict(coremetrics.ConflictEvent{
				UnitID:   e.UnitID,
				Requests: len(e.RequestIDs),
				Time:     time.Now(),
			})
		}
	}
}
