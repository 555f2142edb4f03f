package jobs

import "testing"

func publishMessages(bus *EventBus, messages ...string) {
	for _, m := range messages {
		bus.Publish(Event{Type: EventTypeStatus, Message: m})
	}
}

// TestEventBusSince verifies incremental event reads by sequence.
func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(3)
	publishMessages(bus, "1", "2", "3")

	events := bus.Since(1)
	if len(events) != 2 {
		t.Fatalf("len = %d, want 2", len(events))
	}
	if events[0].Seq != 2 || events[1].Seq != 3 {
		t.Fatalf("unexpected seqs: %+v", events)
	}
	if bus.Since(3) != nil {
		t.Fatal("nothing is newer than the last sequence")
	}
}

// TestEventBusRingWraps keeps the newest events after several wraps.
func TestEventBusRingWraps(t *testing.T) {
	bus := NewEventBus(2)
	publishMessages(bus, "1", "2", "3", "4", "5")

	events := bus.Since(0)
	if len(events) != 2 || events[0].Message != "4" || events[1].Message != "5" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if bus.Dropped() != 3 {
		t.Fatalf("dropped = %d, want 3", bus.Dropped())
	}
}

func TestEventBusSinceFiltersTypes(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{Type: EventTypeStatus, Message: "start"})
	bus.Publish(Event{Type: EventTypeProgress, Message: "1/2"})
	bus.Publish(Event{Type: EventTypeError, Message: "boom"})
	bus.Publish(Event{Type: EventTypeProgress, Message: "2/2"})

	got := bus.Since(0, EventTypeProgress, EventTypeError)
	if len(got) != 3 || got[0].Message != "1/2" || got[2].Message != "2/2" {
		t.Fatalf("filtered = %+v", got)
	}
}

// TestEventBusSubscribe verifies subscribers see later events in order
// until they unsubscribe.
func TestEventBusSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	publishMessages(bus, "before")

	var first, second []string
	stop := bus.Subscribe(func(e Event) { first = append(first, e.Message) })
	bus.Subscribe(func(e Event) { second = append(second, e.Message) })
	bus.Subscribe(nil)()
	publishMessages(bus, "a", "b")
	stop()
	publishMessages(bus, "c")

	if len(first) != 2 || first[0] != "a" || first[1] != "b" {
		t.Fatalf("first subscriber saw %v", first)
	}
	if len(second) != 3 || second[2] != "c" {
		t.Fatalf("second subscriber saw %v", second)
	}
}
