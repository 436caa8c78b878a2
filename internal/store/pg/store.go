package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AlvinAlvito/posi-mobile/internal/store"
)

type Store struct {
	DB *pgxpool.Pool

	// TargetChunk caps rows per bulk target insert; zero means
	// DefaultTargetChunk.
	TargetChunk int
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

// IsUndefinedColumn reports whether err came from querying a column that
// does not exist (queue schema missing or drifted).
func IsUndefinedColumn(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42703"
}

func (s *Store) HasColumn(ctx context.Context, table, column string) (bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT 1
		  FROM information_schema.columns
		 WHERE table_schema = current_schema()
		   AND table_name = $1
		   AND column_name = $2
		 LIMIT 1
	`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResolveRecipients returns the distinct user ids with a transaction for the
// competition. Old rows carry the user either as user_id or buyer_id.
func (s *Store) ResolveRecipients(ctx context.Context, competitionID int64) ([]int64, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT DISTINCT COALESCE(user_id, buyer_id) AS uid
		  FROM transactions
		 WHERE competition_id = $1
	`, competitionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var uid *int64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		if uid != nil && *uid > 0 {
			out = append(out, *uid)
		}
	}
	return out, rows.Err()
}

// DeviceTokens resolves non-revoked push tokens for the given users in one
// query, keyed by user id.
func (s *Store) DeviceTokens(ctx context.Context, userIDs []int64) (map[int64][]string, error) {
	tokens := make(map[int64][]string)
	if len(userIDs) == 0 {
		return tokens, nil
	}
	rows, err := s.DB.Query(ctx, `
		SELECT user_id, token
		  FROM chat_device_tokens
		 WHERE user_id = ANY($1)
		   AND (revoked_at IS NULL OR revoked_at > now())
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var uid int64
		var token string
		if err := rows.Scan(&uid, &token); err != nil {
			return nil, err
		}
		tokens[uid] = append(tokens[uid], token)
	}
	return tokens, rows.Err()
}

func (s *Store) UpsertDeviceToken(ctx context.Context, in store.DeviceTokenUpsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO chat_device_tokens (user_id, token, platform, app, last_seen_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (token) DO UPDATE
		   SET user_id = EXCLUDED.user_id,
		       platform = EXCLUDED.platform,
		       app = EXCLUDED.app,
		       last_seen_at = now(),
		       revoked_at = NULL
	`, in.UserID, in.Token, in.Platform, nullIfEmpty(in.App))
	return err
}

func (s *Store) RevokeDeviceToken(ctx context.Context, userID int64, token string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE chat_device_tokens SET revoked_at = now()
		 WHERE token = $1 AND user_id = $2
	`, token, userID)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
