package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	v := <-ch
	if v != "hello" {
		t.Fatalf("expected hello got %v", v)
	}
	bus.Unsubscribe(ch)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close must yield a closed channel")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTypedBuffered[int](1)
	_ = bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	bus.Publish(3)
	if bus.Dropped() != 2 {
		t.Fatalf("expected 2 drops got %d", bus.Dropped())
	}
}

func TestForwardStopsOnCancel(t *testing.T) {
	bus := NewTyped[int]()
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan int, 4)
	done := make(chan struct{})
	go func() {
		Forward(ctx, bus, func(v int) { got <- v })
		close(done)
	}()
	deadline := time.After(time.Second)
	for {
		bus.Publish(7)
		select {
		case v := <-got:
			if v != 7 {
				t.Fatalf("unexpected %d", v)
			}
			cancel()
			<-done
			return
		case <-deadline:
			t.Fatalf("event never forwarded")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
