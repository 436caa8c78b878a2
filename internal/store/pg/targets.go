package pg

import (
	"context"
	"strconv"

	"github.com/AlvinAlvito/posi-mobile/internal/store"
)

// ResetFailedTargets re-queues every failed target of the broadcast,
// clearing the captured error text. Returns the number re-queued.
func (s *Store) ResetFailedTargets(ctx context.Context, broadcastID int64) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE chat_broadcast_targets
		   SET status = 'pending', error = NULL
		 WHERE broadcast_id = $1
		   AND status = 'failed'
	`, broadcastID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// ResetFailedTargetsByID re-queues only the caller-selected failed targets.
func (s *Store) ResetFailedTargetsByID(ctx context.Context, broadcastID int64, targetIDs []int64) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE chat_broadcast_targets
		   SET status = 'pending', error = NULL
		 WHERE broadcast_id = $1
		   AND status = 'failed'
		   AND id = ANY($2)
	`, broadcastID, targetIDs)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s *Store) BroadcastExists(ctx context.Context, broadcastID int64) (bool, error) {
	return s.existsQuery(ctx, `SELECT 1 FROM chat_broadcasts WHERE id = $1 LIMIT 1`, broadcastID)
}

func (s *Store) existsQuery(ctx context.Context, sql string, args ...any) (bool, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if rows.Next() {
		return true, rows.Err()
	}
	return false, rows.Err()
}

// ListTargets pages through a broadcast's targets filtered by status, with
// an optional search against recipient name/email and the error text.
func (s *Store) ListTargets(ctx context.Context, f store.TargetListFilter) ([]store.TargetRow, int, error) {
	where := `t.broadcast_id = $1 AND t.status = $2`
	args := []any{f.BroadcastID, f.Status}
	if f.Query != "" {
		where += ` AND (u.name ILIKE $3 OR u.email ILIKE $3 OR t.error ILIKE $3)`
		args = append(args, "%"+f.Query+"%")
	}

	var total int
	row := s.DB.QueryRow(ctx, `
		SELECT COUNT(*)
		  FROM chat_broadcast_targets t
		  LEFT JOIN users u ON u.id = t.user_id
		 WHERE `+where, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.PageSize
	limitPos := len(args) + 1
	args = append(args, f.PageSize, offset)
	rows, err := s.DB.Query(ctx, `
		SELECT t.id,
		       t.broadcast_id,
		       t.user_id,
		       t.ticket_id,
		       t.status,
		       t.error,
		       t.sent_at,
		       t.updated_at,
		       u.name,
		       u.email
		  FROM chat_broadcast_targets t
		  LEFT JOIN users u ON u.id = t.user_id
		 WHERE `+where+`
		 ORDER BY t.id ASC
		 LIMIT $`+strconv.Itoa(limitPos)+` OFFSET $`+strconv.Itoa(limitPos+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []store.TargetRow
	for rows.Next() {
		var t store.TargetRow
		if err := rows.Scan(&t.ID, &t.BroadcastID, &t.UserID, &t.TicketID,
			&t.Status, &t.Error, &t.SentAt, &t.UpdatedAt, &t.UserName, &t.UserEmail); err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}
