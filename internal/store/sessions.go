package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type SessionSlot struct {
	Key         string
	Email       string
	UserID      string
	Contact     string
	LastFlushed int
	StartedAt   time.Time
	UpdatedAt   time.Time
}

type Turn struct {
	Seq     int
	Role    string
	Content string
	At      time.Time
}

func (s *Store) UpsertSession(ctx context.Context, slot SessionSlot) error {
	nowUnix := time.Now().UTC().Unix()
	startedAtUnix := slot.StartedAt.UTC().Unix()
	if slot.StartedAt.IsZero() {
		startedAtUnix = nowUnix
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (key, email, user_id, contact, last_flushed, started_at_unix, updated_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			email = excluded.email,
			user_id = excluded.user_id,
			contact = excluded.contact,
			last_flushed = excluded.last_flushed,
			updated_at_unix = excluded.updated_at_unix`,
		slot.Key, slot.Email, slot.UserID, slot.Contact, slot.LastFlushed, startedAtUnix, nowUnix,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, key string) (SessionSlot, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT key, email, user_id, contact, last_flushed, started_at_unix, updated_at_unix
		 FROM sessions WHERE key = ?`,
		key,
	)
	var slot SessionSlot
	var startedAtUnix, updatedAtUnix int64
	err := row.Scan(&slot.Key, &slot.Email, &slot.UserID, &slot.Contact, &slot.LastFlushed, &startedAtUnix, &updatedAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionSlot{}, false, nil
	}
	if err != nil {
		return SessionSlot{}, false, fmt.Errorf("get session: %w", err)
	}
	slot.StartedAt = time.Unix(startedAtUnix, 0).UTC()
	slot.UpdatedAt = time.Unix(updatedAtUnix, 0).UTC()
	return slot, true, nil
}

func (s *Store) AppendTurn(ctx context.Context, sessionKey string, turn Turn) error {
	at := turn.At.UTC()
	if turn.At.IsZero() {
		at = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO turns (session_key, seq, role, content, at_unix) VALUES (?, ?, ?, ?, ?)`,
		sessionKey, turn.Seq, turn.Role, turn.Content, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *Store) ListTurns(ctx context.Context, sessionKey string) ([]Turn, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT seq, role, content, at_unix FROM turns WHERE session_key = ? ORDER BY seq ASC`,
		sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var atUnix int64
		if err := rows.Scan(&turn.Seq, &turn.Role, &turn.Content, &atUnix); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.At = time.Unix(atUnix, 0).UTC()
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (s *Store) SetContact(ctx context.Context, key, contact string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET contact = ?, updated_at_unix = ? WHERE key = ?`,
		contact, time.Now().UTC().Unix(), key,
	)
	if err != nil {
		return fmt.Errorf("set session contact: %w", err)
	}
	return nil
}

func (s *Store) SetLastFlushed(ctx context.Context, key string, lastFlushed int) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions SET last_flushed = ?, updated_at_unix = ? WHERE key = ?`,
		lastFlushed, time.Now().UTC().Unix(), key,
	)
	if err != nil {
		return fmt.Errorf("set session high-water mark: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE session_key = ?`, key); err != nil {
		return fmt.Errorf("delete session turns: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
