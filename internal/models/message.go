package models

import (
	"fmt"
	"time"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeInternal MessageType = "internal"
)

type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

type SenderKind string

const (
	SenderOperator SenderKind = "operator"
	SenderContact  SenderKind = "contact"
	SenderBot      SenderKind = "bot"
)

// Sender identifies who wrote a message. Bot senders carry no ID.
type Sender struct {
	Kind SenderKind `bson:"kind" json:"kind" validate:"required,oneof=operator contact bot"`
	ID   string     `bson:"id,omitempty" json:"id,omitempty"`
}

func OperatorSender(id ObjectID) Sender {
	return Sender{Kind: SenderOperator, ID: id.String()}
}

func ContactSender(id ObjectID) Sender {
	return Sender{Kind: SenderContact, ID: id.String()}
}

func BotSender() Sender {
	return Sender{Kind: SenderBot}
}

func (s Sender) Validate() error {
	switch s.Kind {
	case SenderBot:
		if s.ID != "" {
			return fmt.Errorf("bot sender must not carry an id")
		}
		return nil
	case SenderOperator, SenderContact:
		if s.ID == "" {
			return fmt.Errorf("%s sender requires an id", s.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown sender kind %q", s.Kind)
	}
}

func (s Sender) String() string {
	if s.Kind == SenderBot {
		return string(SenderBot)
	}
	return string(s.Kind) + ":" + s.ID
}

type Message struct {
	ID        ObjectID       `bson:"_id,omitempty" json:"id"`
	ChatID    ObjectID       `bson:"chat_id" json:"chat_id" validate:"required"`
	Sender    Sender         `bson:"sender" json:"sender"`
	Text      string         `bson:"text" json:"text" validate:"required"`
	AvatarURL string         `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Type      MessageType    `bson:"type" json:"type" validate:"required,oneof=text internal"`
	Status    DeliveryStatus `bson:"status" json:"status" validate:"required,oneof=sent delivered read"`
	Timestamp time.Time      `bson:"timestamp" json:"timestamp"`
}

func (Message) CollectionName() string {
	return "messages"
}

func (m Message) GetObjectID() ObjectID {
	return m.ID
}

func (m Message) GetUpdates() any {
	m.ID = ""
	return m
}
