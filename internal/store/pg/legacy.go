package pg

import (
	"context"

	"github.com/AlvinAlvito/posi-mobile/internal/domain"
	"github.com/AlvinAlvito/posi-mobile/internal/store"
)

// CreateLegacyBroadcast is the synchronous fallback for stores without the
// queue schema: the broadcast plus every recipient's ticket, initial admin
// message and target row commit in a single transaction. Any per-recipient
// failure rolls back everything.
func (s *Store) CreateLegacyBroadcast(ctx context.Context, in store.LegacyBroadcastInsert) (int64, []store.LegacyDelivery, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var broadcastID int64
	row := tx.QueryRow(ctx, `
		INSERT INTO chat_broadcasts (admin_id, title, body, competition_id, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id
	`, in.AdminID, in.Subject, in.Message, nullIfZero(in.CompetitionID))
	if err := row.Scan(&broadcastID); err != nil {
		return 0, nil, err
	}

	deliveries := make([]store.LegacyDelivery, 0, len(in.UserIDs))
	for _, uid := range in.UserIDs {
		var ticketID int64
		row := tx.QueryRow(ctx, `
			INSERT INTO chat_tickets (user_id, competition_id, chat_topic, summary, chat_status, last_message_at)
			VALUES ($1, $2, $3, $4, $5, now())
			RETURNING id
		`, uid, nullIfZero(in.CompetitionID), in.Topic, in.Subject, domain.TicketStatusNew)
		if err := row.Scan(&ticketID); err != nil {
			return 0, nil, err
		}

		var messageID int64
		row = tx.QueryRow(ctx, `
			INSERT INTO chat_messages (ticket_id, chat_sender_type, sender_admin_id, text, created_at)
			VALUES ($1, $2, $3, $4, now())
			RETURNING id
		`, ticketID, domain.SenderAdmin, in.AdminID, in.Message)
		if err := row.Scan(&messageID); err != nil {
			return 0, nil, err
		}

		if _, err := tx.Exec(ctx, `
			UPDATE chat_tickets SET last_message_id = $1, last_message_at = now() WHERE id = $2
		`, messageID, ticketID); err != nil {
			return 0, nil, err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_broadcast_targets (broadcast_id, user_id, ticket_id, created_at)
			VALUES ($1, $2, $3, now())
		`, broadcastID, uid, ticketID); err != nil {
			return 0, nil, err
		}

		deliveries = append(deliveries, store.LegacyDelivery{UserID: uid, TicketID: ticketID, MessageID: messageID})
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return broadcastID, deliveries, nil
}

// ListBroadcastProgressLegacy serves stores whose targets carry no status
// column. Everything the legacy path wrote was sent synchronously, so each
// broadcast reports all targets as sent.
func (s *Store) ListBroadcastProgressLegacy(ctx context.Context, limit int) ([]store.BroadcastProgressRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT b.id,
		       b.title,
		       b.body,
		       COALESCE(b.competition_id, 0),
		       COALESCE(c.title, ''),
		       b.created_at,
		       (SELECT COUNT(*) FROM chat_broadcast_targets t WHERE t.broadcast_id = b.id)
		  FROM chat_broadcasts b
		  LEFT JOIN competitions c ON c.id = b.competition_id
		 ORDER BY b.created_at DESC
		 LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.BroadcastProgressRow
	for rows.Next() {
		var r store.BroadcastProgressRow
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.CompetitionID, &r.CompetitionTitle,
			&r.CreatedAt, &r.Counts.Total); err != nil {
			return nil, err
		}
		r.Status = string(domain.BroadcastSent)
		sentAt := r.CreatedAt
		r.SentAt = &sentAt
		r.Counts.Sent = r.Counts.Total
		out = append(out, r)
	}
	return out, rows.Err()
}
