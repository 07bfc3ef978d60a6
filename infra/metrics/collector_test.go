package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kilianp07/ambudispatch/core/events"
	coremetrics "github.com/kilianp07/ambudispatch/core/metrics"
	"github.com/kilianp07/ambudispatch/internal/eventbus"
)

type transitionSink struct {
	coremetrics.NopSink
	mu  sync.Mutex
	got []coremetrics.TransitionEvent
}

func (s *transitionSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.mu.Lock()
	s.got = append(s.got, ev)
	s.mu.Unlock()
	return nil
}

func (s *transitionSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.NewTyped[events.Event]()
	sink := &transitionSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("transition not recorded")
		}
		bus.Publish(events.StatusChanged{RequestID: "1", From: "Pending", To: "Completed"})
		time.Sleep(5 * time.Millisecond)
	}
	sink.mu.Lock()
	first := sink.got[0]
	sink.mu.Unlock()
	if first.To != "Completed" {
		t.Fatalf("unexpected %+v", first)
	}
}
