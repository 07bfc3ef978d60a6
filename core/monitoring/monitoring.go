// Package monitoring is the process-wide error reporting facade. It defaults
// to a no-op until Init installs a real monitor.
package monitoring

import (
	"sync"
	"time"
)

// Monitor receives errors and panics worth a human's attention.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any)                          {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor. nil is ignored.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException reports err with optional tags. nil errors are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover reports a panic and re-panics. Use it directly in a defer:
//
//	defer monitoring.Recover()
func Recover() {
	if r := recover(); r != nil {
		m := get()
		m.CapturePanic(r)
		m.Flush(2 * time.Second)
		panic(r)
	}
}

// Flush waits for buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}

// CapturePanic reports a recovered panic value without re-panicking.
func CapturePanic(v any) {
	if v == nil {
		return
	}
	get().CapturePanic(v)
}
