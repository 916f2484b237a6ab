package events

import "cleanmarket/pkg/logger"

// ReceivedCounter counts events as they arrive from the bus.
type ReceivedCounter interface {
	EventReceived(channel, eventType string)
}

// SubscribeAudit counts every domain event seen on the bus and logs fraud flags, so
// each instance reports flags raised by jobs that ran on another one.
func SubscribeAudit(bus *EventBus, counter ReceivedCounter) error {
	log := logger.New("eventAudit")

	for _, channel := range []Channel{BOOKING_CHANNEL, COMMISSION_CHANNEL, FRAUD_CHANNEL} {
		err := bus.Subscribe(channel, func(event Event) error {
			counter.EventReceived(channel.String(), string(event.Type))
			return nil
		})
		if err != nil {
			return log.Function("SubscribeAudit").Err("failed to subscribe", err, "channel", channel)
		}
	}

	return bus.Subscribe(FRAUD_CHANNEL, func(event Event) error {
		if event.Type != FRAUD_FLAGGED {
			return nil
		}

		log.Function("fraudFlagged").Warn(
			"Fraud flag raised",
			"eventID", event.ID,
			"userID", event.UserID,
			"type", event.Data["type"],
			"severity", event.Data["severity"],
			"reason", event.Data["reason"],
		)
		return nil
	})
}
