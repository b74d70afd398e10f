package models

import (
	"time"
)

const EventMessageInserted = "message.inserted"

type EventMeta struct {
	Event     string    `json:"event"`
	EmittedAt time.Time `json:"emitted_at"`
}

// MessageInsertedEvent is the realtime feed payload: the full new message record.
type MessageInsertedEvent struct {
	Meta EventMeta `json:"meta"`
	Data *Message  `json:"data"`
}

func NewMessageInsertedEvent(msg *Message) MessageInsertedEvent {
	return MessageInsertedEvent{
		Meta: EventMeta{
			Event:     EventMessageInserted,
			EmittedAt: time.Now().UTC(),
		},
		Data: msg,
	}
}

// Email is an outbound message queued for delivery.
type Email struct {
	To      string `json:"to" validate:"required,email"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}
