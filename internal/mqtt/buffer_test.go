package mqtt

import "testing"

func TestOutboxEmptyTake(t *testing.T) {
	o := newOutbox(4)
	if got := o.take(); got != nil {
		t.Errorf("expected nil from empty outbox, got %d items", len(got))
	}
}

func TestOutboxKeepsOrder(t *testing.T) {
	o := newOutbox(4)
	for i := 0; i < 3; i++ {
		o.add(pendingMsg{topic: Topic, payload: []byte{byte(i)}})
	}
	if o.size() != 3 {
		t.Fatalf("expected size 3, got %d", o.size())
	}

	got := o.take()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, m := range got {
		if m.payload[0] != byte(i) {
			t.Errorf("item %d: got payload %d", i, m.payload[0])
		}
	}
	if o.size() != 0 {
		t.Errorf("expected empty after take, got %d", o.size())
	}
}

func TestOutboxDropsOldest(t *testing.T) {
	o := newOutbox(3)
	for i := 0; i < 5; i++ {
		o.add(pendingMsg{payload: []byte{byte(i)}})
	}

	got := o.take()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, want := range []byte{2, 3, 4} {
		if got[i].payload[0] != want {
			t.Errorf("item %d: got %d, want %d", i, got[i].payload[0], want)
		}
	}
	if o.dropped != 0 {
		t.Errorf("expected drop counter reset by take, got %d", o.dropped)
	}
}

func TestOutboxPreservesFields(t *testing.T) {
	o := newOutbox(2)
	o.add(pendingMsg{topic: TopicSystem, payload: []byte("x"), qos: 1, retained: true})

	m := o.take()[0]
	if m.topic != TopicSystem || string(m.payload) != "x" || m.qos != 1 || !m.retained {
		t.Errorf("fields not preserved: %+v", m)
	}
}

func TestOutboxMinimumLimit(t *testing.T) {
	o := newOutbox(0)
	o.add(pendingMsg{payload: []byte{1}})
	o.add(pendingMsg{payload: []byte{2}})
	got := o.take()
	if len(got) != 1 || got[0].payload[0] != 2 {
		t.Errorf("expected only the newest message, got %+v", got)
	}
}
