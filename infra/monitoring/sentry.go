package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/ambudispatch/config"
	coremon "github.com/kilianp07/ambudispatch/core/monitoring"
)

// NewSentryMonitor initializes Sentry. An empty DSN yields a NopMonitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       "ambudispatch",
		BeforeSend:       scrubPatientData,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	return &sentryMonitor{hub: sentry.CurrentHub()}, nil
}

type sentryMonitor struct {
	hub *sentry.Hub
}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		s.hub.CaptureException(err)
	})
}

func (s *sentryMonitor) CapturePanic(v any) {
	s.hub.Recover(v)
}

func (s *sentryMonitor) Flush(timeout time.Duration) { s.hub.Flush(timeout) }

// piiKeys never leave the process: callers and patients are identifiable by them.
var piiKeys = map[string]bool{"patient_name": true, "phone": true, "address": true, "age": true}

const redacted = "[redacted]"

func scrubPatientData(ev *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if ev.Request != nil {
		ev.Request.Data = ""
		ev.Request.Cookies = ""
	}
	for k := range ev.Extra {
		if piiKeys[k] {
			ev.Extra[k] = redacted
		}
	}
	for k := range ev.Tags {
		if piiKeys[k] {
			ev.Tags[k] = redacted
		}
	}
	return ev
}
