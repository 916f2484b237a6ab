package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_LocalDelivery(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	var received []Event
	require.NoError(t, bus.Subscribe(BOOKING_CHANNEL, func(event Event) error {
		received = append(received, event)
		return nil
	}))

	userID := uuid.New()
	err := bus.Publish(context.Background(), BOOKING_CHANNEL, Event{
		Type:   BOOKING_TRANSITIONED,
		UserID: &userID,
		Data:   map[string]any{"to": "ACCEPTED"},
	})

	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.NotEmpty(t, received[0].ID)
	assert.Equal(t, BOOKING_CHANNEL, received[0].Channel)
	assert.False(t, received[0].Timestamp.IsZero())
	assert.Equal(t, "ACCEPTED", received[0].Data["to"])
}

func TestEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(FRAUD_CHANNEL, func(Event) error {
		calls++
		return errors.New("handler down")
	}))
	require.NoError(t, bus.Subscribe(FRAUD_CHANNEL, func(Event) error {
		calls++
		return nil
	}))

	err := bus.Publish(context.Background(), FRAUD_CHANNEL, Event{Type: FRAUD_FLAGGED})

	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestEventBus_OtherChannelsIgnored(t *testing.T) {
	bus := New(nil)
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(COMMISSION_CHANNEL, func(Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), BOOKING_CHANNEL, Event{Type: BOOKING_TRANSITIONED}))

	assert.Zero(t, calls)
}

type countingReceiver struct {
	counts map[string]int
}

func (r *countingReceiver) EventReceived(channel, eventType string) {
	r.counts[channel+"/"+eventType]++
}

func TestSubscribeAudit(t *testing.T) {
	bus := New(nil)
	defer bus.Close()
	receiver := &countingReceiver{counts: map[string]int{}}

	require.NoError(t, SubscribeAudit(bus, receiver))

	ctx := context.Background()
	userID := uuid.New()
	require.NoError(t, bus.Publish(ctx, FRAUD_CHANNEL, Event{
		Type:   FRAUD_FLAGGED,
		UserID: &userID,
		Data:   map[string]any{"type": "EXCESSIVE_DEBT", "severity": "HIGH"},
	}))
	require.NoError(t, bus.Publish(ctx, BOOKING_CHANNEL, Event{Type: BOOKING_TRANSITIONED}))
	require.NoError(t, bus.Publish(ctx, BOOKING_CHANNEL, Event{Type: BOOKING_TRANSITIONED}))
	require.NoError(t, bus.Publish(ctx, COMMISSION_CHANNEL, Event{Type: COMMISSION_APPLIED}))

	assert.Equal(t, map[string]int{
		"fraud/fraud.flagged":           1,
		"booking/booking.transitioned":  2,
		"commission/commission.applied": 1,
	}, receiver.counts)
}
