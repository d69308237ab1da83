package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("run1")

	evt := SSEEvent{Type: "run.progress", Data: map[string]any{"bestCost": 123.0}}
	b.Publish("run1", evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["bestCost"].(float64) != 123.0 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe("run1", ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerIsolatesRuns(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("run1")
	defer b.Unsubscribe("run1", ch)

	b.Publish("run2", SSEEvent{Type: "run.progress"})

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event for another run: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}
