package store

import "time"

// BroadcastJob is the slice of a broadcast the dispatcher needs.
type BroadcastJob struct {
	ID            int64
	AdminID       int64
	Title         string
	Body          string
	CompetitionID int64
	DataJSON      string
}

type PendingTarget struct {
	ID     int64
	UserID int64
}

type TargetCounts struct {
	Total   int
	Sent    int
	Failed  int
	Pending int
}

type BroadcastInsert struct {
	AdminID       int64
	Title         string
	Body          string
	CompetitionID int64
	DataJSON      string
	UserIDs       []int64
}

type LegacyBroadcastInsert struct {
	AdminID       int64
	CompetitionID int64
	Subject       string
	Message       string
	Topic         string
	UserIDs       []int64
}

// LegacyDelivery reports one committed per-recipient write of a legacy
// broadcast, for post-commit realtime fan-out.
type LegacyDelivery struct {
	UserID    int64
	TicketID  int64
	MessageID int64
}

type TargetDelivery struct {
	TargetID      int64
	UserID        int64
	AdminID       int64
	CompetitionID int64
	Topic         string
	Title         string
	Body          string
}

type DeliveryResult struct {
	TicketID  int64
	MessageID int64
}

type BroadcastProgressRow struct {
	ID               int64
	Title            string
	Body             string
	CompetitionID    int64
	CompetitionTitle string
	Status           string
	SentAt           *time.Time
	CreatedAt        time.Time
	Counts           TargetCounts
}

type TargetListFilter struct {
	BroadcastID int64
	Status      string
	Page        int
	PageSize    int
	Query       string
}

type TargetRow struct {
	ID          int64      `json:"id"`
	BroadcastID int64      `json:"broadcastId"`
	UserID      int64      `json:"userId"`
	TicketID    *int64     `json:"ticketId"`
	Status      string     `json:"status"`
	Error       *string    `json:"error"`
	SentAt      *time.Time `json:"sentAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	UserName    *string    `json:"userName"`
	UserEmail   *string    `json:"userEmail"`
}

type DeviceTokenUpsert struct {
	UserID   int64
	Token    string
	Platform string
	App      string
}
