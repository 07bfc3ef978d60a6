package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"

	"github.com/kilianp07/ambudispatch/core/model"
)

const (
	eventStart    = "start"
	eventComplete = "complete"
)

var lifecycleEvents = fsm.Events{
	{Name: eventStart, Src: []string{string(model.StatusPending)}, Dst: string(model.StatusInProgress)},
	{Name: eventComplete, Src: []string{string(model.StatusPending), string(model.StatusInProgress)}, Dst: string(model.StatusCompleted)},
}

func eventFor(target model.RequestStatus) (string, bool) {
	switch target {
	case model.StatusInProgress:
		return eventStart, true
	case model.StatusCompleted:
		return eventComplete, true
	}
	return "", false
}

// checkTransition reports whether from -> to is a legal lifecycle move.
// Equal states are handled by the caller as a no-op.
func checkTransition(ctx context.Context, from, to model.RequestStatus) error {
	evt, ok := eventFor(to)
	if !ok {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
	}
	machine := fsm.NewFSM(string(from), lifecycleEvents, nil)
	if err := machine.Event(ctx, evt); err != nil {
		var invalid fsm.InvalidEventError
		var unknown fsm.UnknownEventError
		if errors.As(err, &invalid) || errors.As(err, &unknown) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
		}
		return err
	}
	if machine.Current() != string(to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, from, to)
	}
	return nil
}

// AllowedTargets lists the statuses reachable from s.
func AllowedTargets(s model.RequestStatus) []model.RequestStatus {
	machine := fsm.NewFSM(string(s), lifecycleEvents, nil)
	var out []model.RequestStatus
	for _, target := range []model.RequestStatus{model.StatusInProgress, model.StatusCompleted} {
		if evt, _ := eventFor(target); machine.Can(evt) {
			out = append(out, target)
		}
	}
	return out
}
