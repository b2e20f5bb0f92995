package hub

import (
	"log/slog"
	"sync"
	"time"
)

// Broadcaster publishes events to the subscribers found in a Table.
//
// Publishes are serialized: the sequence number, the subscriber snapshot and
// the enqueue on each subscriber happen under one publish lock, so every
// subscriber observes events in publish order. Enqueueing never blocks, and
// the table lock is only held while copying the snapshot. Subscribers that
// fail to accept an event are unregistered and closed with the failure cause;
// the publisher never sees the error.
type Broadcaster struct {
	table *Table
	log   *slog.Logger
	now   func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewBroadcaster creates a broadcaster reading subscribers from table.
func NewBroadcaster(table *Table, log *slog.Logger) *Broadcaster {
	return &Broadcaster{
		table: table,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the timestamp source. Tests only.
func (b *Broadcaster) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// Publish delivers an event to every subscriber of roomID registered at the
// time of the call.
func (b *Broadcaster) Publish(roomID string, kind Kind, data any) Event {
	return b.publish(roomID, kind, func() any { return data }, func() []*Subscriber {
		return b.table.Snapshot(roomID)
	})
}

// PublishAll delivers a room-less event to every subscriber of every room.
func (b *Broadcaster) PublishAll(kind Kind, data any) Event {
	return b.publish("", kind, func() any { return data }, b.table.All)
}

// PublishAllFunc is PublishAll with the payload built under the publish lock,
// so concurrent callers publishing snapshots of shared state deliver them in
// the order the snapshots were taken.
func (b *Broadcaster) PublishAllFunc(kind Kind, data func() any) Event {
	return b.publish("", kind, data, b.table.All)
}

// Direct delivers an event to a single subscriber, with the same sequencing
// and failure handling as Publish.
func (b *Broadcaster) Direct(sub *Subscriber, kind Kind, data any) Event {
	return b.publish("", kind, func() any { return data }, func() []*Subscriber {
		return []*Subscriber{sub}
	})
}

type failedDelivery struct {
	sub *Subscriber
	err error
}

func (b *Broadcaster) publish(roomID string, kind Kind, data func() any, targets func() []*Subscriber) Event {
	b.mu.Lock()
	b.seq++
	evt := Event{
		Type:      kind,
		Room:      roomID,
		Seq:       b.seq,
		Data:      data(),
		Timestamp: b.now(),
	}

	payload, err := evt.Encode()
	if err != nil {
		b.mu.Unlock()
		b.log.Error("Failed to encode event", "type", kind, "room", roomID, "error", err)
		return evt
	}

	subs := targets()
	failed := deliverAll(subs, payload)
	b.mu.Unlock()

	b.log.Debug("Event published",
		"type", kind,
		"room", roomID,
		"seq", evt.Seq,
		"targets", len(subs),
		"failed", len(failed))

	b.removeFailed(failed)
	return evt
}

func deliverAll(subs []*Subscriber, payload []byte) []failedDelivery {
	var failed []failedDelivery
	for _, sub := range subs {
		if err := sub.Deliver(payload); err != nil {
			failed = append(failed, failedDelivery{sub: sub, err: err})
		}
	}
	return failed
}

// removeFailed unregisters subscribers that could not take an event. Closing
// the subscriber wakes its transport, which runs the leave bookkeeping.
func (b *Broadcaster) removeFailed(failed []failedDelivery) {
	for _, f := range failed {
		removed := b.table.Unregister(f.sub)
		f.sub.Close(f.err)
		if removed {
			b.log.Warn("Subscriber removed after failed delivery",
				"room", f.sub.Room(),
				"subscriber", f.sub.ID(),
				"username", f.sub.Username(),
				"error", f.err)
		}
	}
}

// Seq returns the sequence number of the last published event.
func (b *Broadcaster) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
