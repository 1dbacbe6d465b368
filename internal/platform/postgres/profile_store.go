// Package postgres implements the store interfaces backed by a PostgreSQL
// database. Connections come from database/sql using the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prayerwall/api/internal/store"
)

// foreignKeyViolationCode is the PostgreSQL error code raised when the
// profile row references a user that does not exist.
const foreignKeyViolationCode = "23503"

// ProfileStore implements the store.ProfileStore interface using a
// PostgreSQL database as the storage backend.
type ProfileStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProfileStore creates a new PostgreSQL implementation of the
// ProfileStore interface. It accepts a database connection that should be
// initialized and managed by the caller. If logger is nil, the default
// logger is used.
func NewProfileStore(db *sql.DB, logger *slog.Logger) *ProfileStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ProfileStore{
		db:     db,
		logger: logger.With(slog.String("component", "profile_store")),
	}
}

// Ensure ProfileStore implements store.ProfileStore interface
var _ store.ProfileStore = (*ProfileStore)(nil)

// SetAvatarURL upserts the avatar URL on the user's profile row. The row is
// created if the user has no profile yet; a later ingestion for the same
// user overwrites the previous URL.
func (s *ProfileStore) SetAvatarURL(ctx context.Context, userID uuid.UUID, avatarURL string) error {
	query := `
		INSERT INTO profiles (user_id, avatar_url, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET avatar_url = EXCLUDED.avatar_url, updated_at = NOW()
	`

	_, err := s.db.ExecContext(ctx, query, userID, avatarURL)
	if err != nil {
		if isForeignKeyViolation(err) {
			s.logger.WarnContext(ctx, "avatar upsert references unknown user",
				"user_id", userID)
			return store.ErrProfileNotFound
		}
		s.logger.ErrorContext(ctx, "failed to upsert avatar URL",
			"user_id", userID,
			"error", err)
		return store.NewStoreError("profile", "upsert", "failed to set avatar URL", err)
	}

	return nil
}

// isForeignKeyViolation checks if the given error is a PostgreSQL foreign
// key constraint violation.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationCode
}
