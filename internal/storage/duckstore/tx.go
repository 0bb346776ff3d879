package duckstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/idgen"
	"github.com/chatmesh/chatmesh/internal/storage"
)

// Atomic runs fn inside a single sql.Tx. The transaction commits only if fn
// returns nil; any error rolls everything back, including any commit-log
// append fn performed.
func (s *Store) Atomic(ctx context.Context, fn func(storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	t := &tx{tx: sqlTx}
	if err := fn(t); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) AppendCommit(ctx context.Context, requestBlob []byte) (uint64, error) {
	var seq uint64
	row := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM commits`)
	if err := row.Scan(&seq); err != nil {
		return 0, err
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO commits (seq, id, request_json, checksum) VALUES (?, ?, ?, ?)`,
		seq, idgen.New(), string(requestBlob), checksum(requestBlob),
	)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (t *tx) InsertUser(ctx context.Context, u chatproto.User) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		u.Username, u.PasswordHash,
	)
	if err != nil && isUniqueViolation(err) {
		return storage.ErrAlreadyExists
	}
	return err
}

func (t *tx) DeleteUser(ctx context.Context, username string) error {
	if err := t.DeleteMessagesForRecipient(ctx, username); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	return err
}

func (t *tx) InsertMessage(ctx context.Context, m chatproto.Message) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO messages (id, sender, recipient, body, timestamp, read) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Sender, m.Recipient, m.Body, m.Timestamp, m.Read,
	)
	return err
}

func (t *tx) MarkRead(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `UPDATE messages SET read = TRUE WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DeleteMessages(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) DeleteMessagesForRecipient(ctx context.Context, recipient string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM messages WHERE recipient = ?`, recipient)
	return err
}

// isUniqueViolation is a loose heuristic: the duckdb driver does not expose a
// typed constraint-violation error, so we match on the message text it
// returns for a primary-key collision.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "constraint") || strings.Contains(s, "unique") || strings.Contains(s, "duplicate")
}
