package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
	"github.com/mohamedebada21/last-online-halal/pkg/outbox"
)

const userColumns = `id, name, email, password_hash, is_admin, created_at`

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users(`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(u.ID), u.Name, u.Email, u.PasswordHash, u.IsAdmin, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return apperr.New("store.CreateUser", apperr.ErrDuplicateEmail).WithID(u.Email)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (domain.User, error) {
	return s.getUser(ctx, "store.GetUser", `id = $1`, string(id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.getUser(ctx, "store.GetUserByEmail", `lower(email) = lower($1)`, email)
}

func (s *Store) getUser(ctx context.Context, op, where string, arg string) (domain.User, error) {
	var u domain.User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, apperr.New(op, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]outbox.Record, error) {
	return outbox.FetchPending(ctx, s.pool, limit)
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	return outbox.MarkSent(ctx, s.pool, id)
}

// MarkReceived reports whether evt was recorded for the first time.
func (s *Store) MarkReceived(ctx context.Context, evt contracts.Event) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO inbox(event_id, received_at) VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING`,
		evt.EventID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
