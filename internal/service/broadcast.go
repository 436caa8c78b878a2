package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/AlvinAlvito/posi-mobile/internal/domain"
	"github.com/AlvinAlvito/posi-mobile/internal/observability"
	"github.com/AlvinAlvito/posi-mobile/internal/push"
	"github.com/AlvinAlvito/posi-mobile/internal/realtime"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
	"github.com/AlvinAlvito/posi-mobile/internal/util"
)

// Client-class errors, mapped to 4xx by the HTTP layer.
var (
	ErrNoRecipients       = errors.New("no participants for this competition")
	ErrQueueUnsupported   = errors.New("operation requires the queue schema")
	ErrBroadcastNotFound  = errors.New("broadcast not found")
	ErrTargetIDsRequired  = errors.New("target_ids is required")
	ErrNoRetryableTargets = errors.New("no failed targets eligible for retry")
)

const listLimit = 100

type Store interface {
	ResolveRecipients(ctx context.Context, competitionID int64) ([]int64, error)
	CreateQueuedBroadcast(ctx context.Context, in store.BroadcastInsert) (int64, error)
	CreateLegacyBroadcast(ctx context.Context, in store.LegacyBroadcastInsert) (int64, []store.LegacyDelivery, error)
	ListBroadcastProgress(ctx context.Context, limit int) ([]store.BroadcastProgressRow, error)
	ListBroadcastProgressLegacy(ctx context.Context, limit int) ([]store.BroadcastProgressRow, error)
	BroadcastProgressByID(ctx context.Context, broadcastID int64) (store.BroadcastProgressRow, bool, error)
	BroadcastExists(ctx context.Context, broadcastID int64) (bool, error)
	ResetFailedTargets(ctx context.Context, broadcastID int64) (int64, error)
	ResetFailedTargetsByID(ctx context.Context, broadcastID int64, targetIDs []int64) (int64, error)
	UpdateBroadcastStatus(ctx context.Context, broadcastID int64, status string, markSent bool) error
	ListTargets(ctx context.Context, f store.TargetListFilter) ([]store.TargetRow, int, error)
	DeviceTokens(ctx context.Context, userIDs []int64) (map[int64][]string, error)
	UpsertDeviceToken(ctx context.Context, in store.DeviceTokenUpsert) error
	RevokeDeviceToken(ctx context.Context, userID int64, token string) error
}

type Capability interface {
	QueueSupported(ctx context.Context) bool
}

// BroadcastService owns broadcast creation, progress reads and retry/resume.
// Signal re-arms the background dispatcher; it must never block.
type BroadcastService struct {
	Store      Store
	Capability Capability
	Publisher  realtime.Publisher
	Push       *push.Sender
	Signal     func()
}

// CreateBroadcast queues a campaign for every participant of the
// competition, or sends synchronously when the queue schema is unavailable.
// The returned status distinguishes the two: "sending" (accepted, dispatcher
// processing) vs "sent" (legacy, done).
func (s *BroadcastService) CreateBroadcast(ctx context.Context, adminID int64, req domain.CreateBroadcastRequest) (domain.CreateBroadcastResponse, error) {
	if err := req.Validate(); err != nil {
		return domain.CreateBroadcastResponse{}, err
	}

	topic := domain.ResolveTopic(req.Topic, req.Subject, "")
	if !s.Capability.QueueSupported(ctx) {
		return s.createLegacy(ctx, adminID, req, topic)
	}

	userIDs, err := s.recipients(ctx, req.CompetitionID)
	if err != nil {
		return domain.CreateBroadcastResponse{}, err
	}

	broadcastID, err := s.Store.CreateQueuedBroadcast(ctx, store.BroadcastInsert{
		AdminID:       adminID,
		Title:         req.Subject,
		Body:          req.Message,
		CompetitionID: req.CompetitionID,
		DataJSON:      `{"topic":` + strconv.Quote(topic) + `}`,
		UserIDs:       userIDs,
	})
	if err != nil {
		return domain.CreateBroadcastResponse{}, err
	}

	observability.BroadcastsCreated.WithLabelValues("queued").Inc()
	s.Signal()
	return domain.CreateBroadcastResponse{
		OK:           true,
		BroadcastID:  broadcastID,
		TotalTargets: len(userIDs),
		Status:       string(domain.BroadcastSending),
	}, nil
}

// recipients resolves the competition's participants, keeping each user id
// once even when transactions reference the same user through both the
// buyer and registrant columns.
func (s *BroadcastService) recipients(ctx context.Context, competitionID int64) ([]int64, error) {
	raw, err := s.Store.ResolveRecipients(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(raw))
	userIDs := make([]int64, 0, len(raw))
	for _, uid := range raw {
		if uid <= 0 {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		userIDs = append(userIDs, uid)
	}
	if len(userIDs) == 0 {
		return nil, ErrNoRecipients
	}
	return userIDs, nil
}

func (s *BroadcastService) createLegacy(ctx context.Context, adminID int64, req domain.CreateBroadcastRequest, topic string) (domain.CreateBroadcastResponse, error) {
	userIDs, err := s.recipients(ctx, req.CompetitionID)
	if err != nil {
		return domain.CreateBroadcastResponse{}, err
	}

	broadcastID, deliveries, err := s.Store.CreateLegacyBroadcast(ctx, store.LegacyBroadcastInsert{
		AdminID:       adminID,
		CompetitionID: req.CompetitionID,
		Subject:       req.Subject,
		Message:       req.Message,
		Topic:         topic,
		UserIDs:       userIDs,
	})
	if err != nil {
		return domain.CreateBroadcastResponse{}, err
	}

	observability.BroadcastsCreated.WithLabelValues("legacy").Inc()
	s.notifyLegacy(ctx, req, deliveries)

	return domain.CreateBroadcastResponse{
		OK:           true,
		BroadcastID:  broadcastID,
		TotalTargets: len(userIDs),
		Status:       string(domain.BroadcastSent),
	}, nil
}

// notifyLegacy fans out realtime events and push after the legacy
// transaction committed. Best-effort only; nothing here can undo the commit.
func (s *BroadcastService) notifyLegacy(ctx context.Context, req domain.CreateBroadcastRequest, deliveries []store.LegacyDelivery) {
	userIDs := make([]int64, 0, len(deliveries))
	for _, d := range deliveries {
		userIDs = append(userIDs, d.UserID)
		event := realtime.MessageEvent{
			ID:         d.MessageID,
			TicketID:   d.TicketID,
			SenderType: domain.SenderAdmin,
			Text:       req.Message,
			CreatedAt:  util.NowUTC(),
		}
		for _, room := range []string{realtime.TicketRoom(d.TicketID), realtime.UserRoom(d.UserID)} {
			if err := s.Publisher.Publish(ctx, room, realtime.EventMessageNew, event); err != nil {
				slog.Warn("legacy broadcast publish failed", "err", err, "room", room)
			}
		}
	}

	tokens, err := s.Store.DeviceTokens(ctx, userIDs)
	if err != nil {
		slog.Warn("legacy broadcast token lookup failed", "err", err)
		return
	}
	for _, uid := range userIDs {
		if len(tokens[uid]) == 0 {
			continue
		}
		s.Push.Send(ctx, tokens[uid], push.Notification{
			Title: req.Subject,
			Body:  util.Truncate(req.Message, 120),
			Data: map[string]string{
				"type":          "broadcast",
				"competitionId": strconv.FormatInt(req.CompetitionID, 10),
			},
		})
	}
}

// ListBroadcasts returns the newest campaigns with delivery progress,
// falling back to the simpler all-sent aggregate on legacy stores.
func (s *BroadcastService) ListBroadcasts(ctx context.Context) ([]domain.BroadcastProgress, error) {
	var (
		rows []store.BroadcastProgressRow
		err  error
	)
	if s.Capability.QueueSupported(ctx) {
		rows, err = s.Store.ListBroadcastProgress(ctx, listLimit)
		if err != nil {
			return nil, err
		}
		return mapProgressRows(rows, false), nil
	}
	rows, err = s.Store.ListBroadcastProgressLegacy(ctx, listLimit)
	if err != nil {
		return nil, err
	}
	return mapProgressRows(rows, true), nil
}

func mapProgressRows(rows []store.BroadcastProgressRow, legacy bool) []domain.BroadcastProgress {
	out := make([]domain.BroadcastProgress, 0, len(rows))
	for _, r := range rows {
		out = append(out, mapProgressRow(r, legacy))
	}
	return out
}

func mapProgressRow(r store.BroadcastProgressRow, legacy bool) domain.BroadcastProgress {
	p := domain.BroadcastProgress{
		ID:               r.ID,
		Title:            r.Title,
		Body:             r.Body,
		CompetitionID:    r.CompetitionID,
		CompetitionTitle: r.CompetitionTitle,
		Status:           r.Status,
		SentAt:           r.SentAt,
		CreatedAt:        r.CreatedAt,
	}
	if legacy {
		p.Progress = domain.LegacyProgress(r.Counts.Total)
	} else {
		p.Progress = domain.ComputeProgress(r.Counts.Total, r.Counts.Sent, r.Counts.Failed, r.Counts.Pending)
	}
	return p
}

// Resume re-queues every failed target of the broadcast and re-arms the
// dispatcher. Resuming with nothing failed is a harmless no-op that still
// restarts the dispatcher, which also covers crash-interrupted jobs left
// sending with untouched pending targets.
func (s *BroadcastService) Resume(ctx context.Context, broadcastID int64) (domain.BroadcastProgress, error) {
	if !s.Capability.QueueSupported(ctx) {
		return domain.BroadcastProgress{}, ErrQueueUnsupported
	}
	exists, err := s.Store.BroadcastExists(ctx, broadcastID)
	if err != nil {
		return domain.BroadcastProgress{}, err
	}
	if !exists {
		return domain.BroadcastProgress{}, ErrBroadcastNotFound
	}

	retried, err := s.Store.ResetFailedTargets(ctx, broadcastID)
	if err != nil {
		return domain.BroadcastProgress{}, err
	}
	if retried > 0 {
		observability.TargetsRetried.Add(float64(retried))
	}
	if err := s.Store.UpdateBroadcastStatus(ctx, broadcastID, string(domain.BroadcastSending), false); err != nil {
		return domain.BroadcastProgress{}, err
	}
	s.Signal()

	return s.progressByID(ctx, broadcastID)
}

// RetryTargets re-queues only the selected failed targets. Rejects an empty
// id list and lists where nothing was eligible.
func (s *BroadcastService) RetryTargets(ctx context.Context, broadcastID int64, targetIDs []int64) (int64, domain.BroadcastProgress, error) {
	if !s.Capability.QueueSupported(ctx) {
		return 0, domain.BroadcastProgress{}, ErrQueueUnsupported
	}
	ids := make([]int64, 0, len(targetIDs))
	for _, id := range targetIDs {
		if id > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, domain.BroadcastProgress{}, ErrTargetIDsRequired
	}

	retried, err := s.Store.ResetFailedTargetsByID(ctx, broadcastID, ids)
	if err != nil {
		return 0, domain.BroadcastProgress{}, err
	}
	if retried == 0 {
		return 0, domain.BroadcastProgress{}, ErrNoRetryableTargets
	}
	observability.TargetsRetried.Add(float64(retried))

	if err := s.Store.UpdateBroadcastStatus(ctx, broadcastID, string(domain.BroadcastSending), false); err != nil {
		return 0, domain.BroadcastProgress{}, err
	}
	s.Signal()

	progress, err := s.progressByID(ctx, broadcastID)
	if err != nil {
		return 0, domain.BroadcastProgress{}, err
	}
	return retried, progress, nil
}

func (s *BroadcastService) progressByID(ctx context.Context, broadcastID int64) (domain.BroadcastProgress, error) {
	row, found, err := s.Store.BroadcastProgressByID(ctx, broadcastID)
	if err != nil {
		return domain.BroadcastProgress{}, err
	}
	if !found {
		return domain.BroadcastProgress{}, ErrBroadcastNotFound
	}
	return mapProgressRow(row, false), nil
}

type TargetPage struct {
	Targets    []store.TargetRow `json:"targets"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	Total      int               `json:"total"`
	TotalPages int               `json:"totalPages"`
}

// ListTargets pages a broadcast's targets, defaulting to the failed ones.
// Page size is clamped to 1..200.
func (s *BroadcastService) ListTargets(ctx context.Context, f store.TargetListFilter) (TargetPage, error) {
	if !s.Capability.QueueSupported(ctx) {
		return TargetPage{}, ErrQueueUnsupported
	}

	switch f.Status {
	case string(domain.TargetPending), string(domain.TargetSent), string(domain.TargetFailed):
	default:
		f.Status = string(domain.TargetFailed)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 50
	}
	if f.PageSize > 200 {
		f.PageSize = 200
	}

	rows, total, err := s.Store.ListTargets(ctx, f)
	if err != nil {
		return TargetPage{}, err
	}
	totalPages := (total + f.PageSize - 1) / f.PageSize
	if totalPages < 1 {
		totalPages = 1
	}
	return TargetPage{
		Targets:    rows,
		Page:       f.Page,
		PageSize:   f.PageSize,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

func (s *BroadcastService) RegisterDevice(ctx context.Context, userID int64, req domain.RegisterDeviceRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.Store.UpsertDeviceToken(ctx, store.DeviceTokenUpsert{
		UserID:   userID,
		Token:    req.Token,
		Platform: req.Platform,
		App:      req.App,
	})
}

func (s *BroadcastService) RevokeDevice(ctx context.Context, userID int64, token string) error {
	if token == "" {
		return errors.New("token is required")
	}
	return s.Store.RevokeDeviceToken(ctx, userID, token)
}
