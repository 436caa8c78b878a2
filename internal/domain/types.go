package domain

import (
	"errors"
	"time"
)

type BroadcastStatus string

const (
	BroadcastSending BroadcastStatus = "sending"
	BroadcastSent    BroadcastStatus = "sent"
	BroadcastFailed  BroadcastStatus = "failed"
)

type TargetStatus string

const (
	TargetPending TargetStatus = "pending"
	TargetSent    TargetStatus = "sent"
	TargetFailed  TargetStatus = "failed"
)

// Tickets created for broadcast deliveries start in this status.
const TicketStatusNew = "Baru"

const SenderAdmin = "admin"

var (
	ErrCompetitionRequired = errors.New("competition_id is required")
	ErrSubjectRequired     = errors.New("subject is required")
	ErrMessageRequired     = errors.New("message is required")
)

type CreateBroadcastRequest struct {
	CompetitionID int64  `json:"competition_id"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	Topic         string `json:"topic,omitempty"`
}

func (r CreateBroadcastRequest) Validate() error {
	if r.CompetitionID == 0 {
		return ErrCompetitionRequired
	}
	if r.Subject == "" {
		return ErrSubjectRequired
	}
	if r.Message == "" {
		return ErrMessageRequired
	}
	return nil
}

type CreateBroadcastResponse struct {
	OK           bool   `json:"ok"`
	BroadcastID  int64  `json:"broadcastId"`
	TotalTargets int    `json:"totalTargets"`
	Status       string `json:"status"`
}

// BroadcastProgress is the admin-facing view of one broadcast joined with
// its aggregate target counts.
type BroadcastProgress struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Body             string     `json:"body"`
	CompetitionID    int64      `json:"competitionId"`
	CompetitionTitle string     `json:"competitionTitle"`
	Status           string     `json:"status"`
	SentAt           *time.Time `json:"sentAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	Progress
}

type RegisterDeviceRequest struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	App      string `json:"app,omitempty"`
}

func (r RegisterDeviceRequest) Validate() error {
	if r.Token == "" || r.Platform == "" {
		return errors.New("token and platform are required")
	}
	return nil
}
