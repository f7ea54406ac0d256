package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bissquit/oprisk/internal/domain"
)

// DefaultQueueSize is used when the configured queue size is not positive.
const DefaultQueueSize = 256

// Dispatcher accepts escalation events without blocking and hands them to the worker.
// It also owns the senders the worker delivers through.
type Dispatcher struct {
	queue   chan domain.NotificationEvent
	senders map[domain.ChannelType]Sender
}

// NewDispatcher creates a new notification dispatcher with a bounded queue.
func NewDispatcher(queueSize int, senders ...Sender) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	senderMap := make(map[domain.ChannelType]Sender)
	for _, s := range senders {
		senderMap[s.Type()] = s
	}
	return &Dispatcher{
		queue:   make(chan domain.NotificationEvent, queueSize),
		senders: senderMap,
	}
}

// Notify enqueues event for delivery. When the queue is full the event is dropped.
func (d *Dispatcher) Notify(event domain.NotificationEvent) {
	select {
	case d.queue <- event:
		recordDispatched(dispatchQueued)
		queueLength.Set(float64(len(d.queue)))
	default:
		recordDispatched(dispatchDropped)
		slog.Warn("notification queue full, dropping event",
			"incident_id", event.IncidentID,
			"escalation_id", event.EscalationID,
			"level", event.EscalationLevel,
		)
	}
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// SendToChannel sends a notification through the sender registered for channelType.
func (d *Dispatcher) SendToChannel(ctx context.Context, channelType domain.ChannelType, notification Notification) error {
	sender, ok := d.senders[channelType]
	if !ok {
		return NewNonRetryableError(fmt.Errorf("no sender for channel type: %s", channelType))
	}
	return sender.Send(ctx, notification)
}
