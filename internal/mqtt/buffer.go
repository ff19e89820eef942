package mqtt

import "github.com/sweeney/bread-timer/internal/logger"

// pendingMsg is a serialized message waiting for the broker.
type pendingMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while disconnected. When full, the
// oldest message is dropped. Not safe for concurrent use.
type outbox struct {
	msgs    []pendingMsg
	limit   int
	dropped int
}

func newOutbox(limit int) *outbox {
	if limit < 1 {
		limit = 1
	}
	return &outbox{limit: limit}
}

func (o *outbox) add(m pendingMsg) {
	if len(o.msgs) == o.limit {
		if o.dropped == 0 {
			logger.Warnf("mqtt: outbox full (%d messages), dropping oldest", o.limit)
		}
		o.dropped++
		copy(o.msgs, o.msgs[1:])
		o.msgs[len(o.msgs)-1] = m
		return
	}
	o.msgs = append(o.msgs, m)
}

// take returns the queued messages oldest first and empties the outbox.
func (o *outbox) take() []pendingMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	if o.dropped > 0 {
		logger.Warnf("mqtt: %d queued messages were dropped while offline", o.dropped)
		o.dropped = 0
	}
	return out
}

func (o *outbox) size() int {
	return len(o.msgs)
}
