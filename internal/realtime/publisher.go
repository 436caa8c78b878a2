package realtime

import (
	"context"
	"fmt"
	"time"
)

// Room key conventions shared with the Socket.IO relay.
func TicketRoom(ticketID int64) string { return fmt.Sprintf("ticket:%d", ticketID) }
func UserRoom(userID int64) string     { return fmt.Sprintf("user:%d", userID) }

const EventMessageNew = "message:new"

// MessageEvent is the payload clients receive for a newly created message.
type MessageEvent struct {
	ID         int64     `json:"id"`
	TicketID   int64     `json:"ticket_id"`
	SenderType string    `json:"senderType"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Publisher notifies connected clients through the relay. Absence of
// subscribers is not an error; implementations must be cheap to call.
type Publisher interface {
	Publish(ctx context.Context, room, event string, payload any) error
}

// NopPublisher drops every event; used when no relay is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
