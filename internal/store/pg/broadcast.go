package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/AlvinAlvito/posi-mobile/internal/domain"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
	"github.com/AlvinAlvito/posi-mobile/internal/util"
)

// Bulk target inserts are chunked to stay under statement parameter limits.
const DefaultTargetChunk = 1000

// CreateQueuedBroadcast writes the broadcast row (status=sending) and all
// pending targets in one transaction, chunking target inserts.
func (s *Store) CreateQueuedBroadcast(ctx context.Context, in store.BroadcastInsert) (int64, error) {
	if len(in.UserIDs) == 0 {
		return 0, errors.New("broadcast requires at least one target")
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var broadcastID int64
	row := tx.QueryRow(ctx, `
		INSERT INTO chat_broadcasts (admin_id, title, body, target_scope, competition_id, status, data_json, created_at)
		VALUES ($1, $2, $3, 'competition', $4, $5, $6, now())
		RETURNING id
	`, in.AdminID, in.Title, in.Body, nullIfZero(in.CompetitionID), domain.BroadcastSending, in.DataJSON)
	if err := row.Scan(&broadcastID); err != nil {
		return 0, err
	}

	chunk := s.TargetChunk
	if chunk <= 0 {
		chunk = DefaultTargetChunk
	}
	for start := 0; start < len(in.UserIDs); start += chunk {
		end := start + chunk
		if end > len(in.UserIDs) {
			end = len(in.UserIDs)
		}
		sql, args := targetInsertStatement(broadcastID, in.UserIDs[start:end])
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return broadcastID, nil
}

func targetInsertStatement(broadcastID int64, userIDs []int64) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO chat_broadcast_targets (broadcast_id, user_id, status, created_at) VALUES `)
	args := make([]any, 0, len(userIDs)*2)
	for i, uid := range userIDs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d, $%d, 'pending', now())", len(args)+1, len(args)+2)
		args = append(args, broadcastID, uid)
	}
	return b.String(), args
}

// OldestSendingBroadcast claims the next job for the dispatcher.
func (s *Store) OldestSendingBroadcast(ctx context.Context) (store.BroadcastJob, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, admin_id, title, body, COALESCE(competition_id, 0), COALESCE(data_json, '')
		  FROM chat_broadcasts
		 WHERE status = 'sending'
		 ORDER BY created_at ASC
		 LIMIT 1
	`)
	var job store.BroadcastJob
	err := row.Scan(&job.ID, &job.AdminID, &job.Title, &job.Body, &job.CompetitionID, &job.DataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.BroadcastJob{}, false, nil
		}
		return store.BroadcastJob{}, false, err
	}
	return job, true, nil
}

// PendingTargets returns up to limit unprocessed targets in insertion order,
// the dispatcher's resumable cursor.
func (s *Store) PendingTargets(ctx context.Context, broadcastID int64, limit int) ([]store.PendingTarget, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id
		  FROM chat_broadcast_targets
		 WHERE broadcast_id = $1
		   AND status = 'pending'
		 ORDER BY id ASC
		 LIMIT $2
	`, broadcastID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.PendingTarget
	for rows.Next() {
		var t store.PendingTarget
		if err := rows.Scan(&t.ID, &t.UserID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeliverTarget materializes one recipient's delivery: ticket, initial admin
// message, last-message pointer, target marked sent. One transaction per
// target so a failure never touches siblings.
func (s *Store) DeliverTarget(ctx context.Context, in store.TargetDelivery) (store.DeliveryResult, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return store.DeliveryResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ticketID int64
	row := tx.QueryRow(ctx, `
		INSERT INTO chat_tickets (user_id, competition_id, chat_topic, summary, chat_status, last_message_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id
	`, in.UserID, nullIfZero(in.CompetitionID), in.Topic, in.Title, domain.TicketStatusNew)
	if err := row.Scan(&ticketID); err != nil {
		return store.DeliveryResult{}, err
	}

	var messageID int64
	row = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (ticket_id, chat_sender_type, sender_admin_id, text, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, ticketID, domain.SenderAdmin, in.AdminID, in.Body)
	if err := row.Scan(&messageID); err != nil {
		return store.DeliveryResult{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chat_tickets SET last_message_id = $1, last_message_at = now() WHERE id = $2
	`, messageID, ticketID); err != nil {
		return store.DeliveryResult{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chat_broadcast_targets
		   SET ticket_id = $1, status = 'sent', error = NULL, sent_at = now()
		 WHERE id = $2
	`, ticketID, in.TargetID); err != nil {
		return store.DeliveryResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return store.DeliveryResult{}, err
	}
	return store.DeliveryResult{TicketID: ticketID, MessageID: messageID}, nil
}

func (s *Store) MarkTargetFailed(ctx context.Context, targetID int64, errText string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE chat_broadcast_targets SET status = 'failed', error = $1 WHERE id = $2
	`, util.Truncate(errText, 1000), targetID)
	return err
}

func (s *Store) TargetCounts(ctx context.Context, broadcastID int64) (store.TargetCounts, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'sent'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(*) FILTER (WHERE status = 'pending')
		  FROM chat_broadcast_targets
		 WHERE broadcast_id = $1
	`, broadcastID)
	var c store.TargetCounts
	if err := row.Scan(&c.Total, &c.Sent, &c.Failed, &c.Pending); err != nil {
		return store.TargetCounts{}, err
	}
	return c, nil
}

// UpdateBroadcastStatus moves the broadcast through its lifecycle; markSent
// also stamps sent_at.
func (s *Store) UpdateBroadcastStatus(ctx context.Context, broadcastID int64, status string, markSent bool) error {
	if markSent {
		_, err := s.DB.Exec(ctx, `
			UPDATE chat_broadcasts SET status = $1, sent_at = now() WHERE id = $2
		`, status, broadcastID)
		return err
	}
	_, err := s.DB.Exec(ctx, `
		UPDATE chat_broadcasts SET status = $1 WHERE id = $2
	`, status, broadcastID)
	return err
}

const broadcastProgressSelect = `
		SELECT b.id,
		       b.title,
		       b.body,
		       COALESCE(b.competition_id, 0),
		       COALESCE(c.title, ''),
		       COALESCE(b.status, 'sent'),
		       b.sent_at,
		       b.created_at,
		       COUNT(t.id),
		       COUNT(t.id) FILTER (WHERE t.status = 'sent'),
		       COUNT(t.id) FILTER (WHERE t.status = 'failed'),
		       COUNT(t.id) FILTER (WHERE t.status = 'pending')
		  FROM chat_broadcasts b
		  LEFT JOIN competitions c ON c.id = b.competition_id
		  LEFT JOIN chat_broadcast_targets t ON t.broadcast_id = b.id`

const broadcastProgressGroup = ` GROUP BY b.id, b.title, b.body, b.competition_id, b.status, b.sent_at, b.created_at, c.title`

func scanProgressRow(row pgx.Row) (store.BroadcastProgressRow, error) {
	var r store.BroadcastProgressRow
	err := row.Scan(&r.ID, &r.Title, &r.Body, &r.CompetitionID, &r.CompetitionTitle,
		&r.Status, &r.SentAt, &r.CreatedAt,
		&r.Counts.Total, &r.Counts.Sent, &r.Counts.Failed, &r.Counts.Pending)
	return r, err
}

// ListBroadcastProgress returns the newest broadcasts joined with their
// aggregate target counts.
func (s *Store) ListBroadcastProgress(ctx context.Context, limit int) ([]store.BroadcastProgressRow, error) {
	rows, err := s.DB.Query(ctx,
		broadcastProgressSelect+broadcastProgressGroup+` ORDER BY b.created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.BroadcastProgressRow
	for rows.Next() {
		r, err := scanProgressRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) BroadcastProgressByID(ctx context.Context, broadcastID int64) (store.BroadcastProgressRow, bool, error) {
	row := s.DB.QueryRow(ctx,
		broadcastProgressSelect+` WHERE b.id = $1`+broadcastProgressGroup+` LIMIT 1`, broadcastID)
	r, err := scanProgressRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.BroadcastProgressRow{}, false, nil
		}
		return store.BroadcastProgressRow{}, false, err
	}
	return r, true, nil
}
