package duckstore

import (
	"context"
	"database/sql"
	"errors"
	"path"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/storage"
)

var _ storage.Tx = (*tx)(nil)

func (s *Store) MaxSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM commits`).Scan(&seq)
	return seq, err
}

func (s *Store) CommitsSince(ctx context.Context, seq uint64) ([]chatproto.Commit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, request_json FROM commits WHERE seq > ? ORDER BY seq ASC`, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCommits(rows)
}

func (s *Store) AllCommits(ctx context.Context) ([]chatproto.Commit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, id, request_json FROM commits ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCommits(rows)
}

func scanCommits(rows *sql.Rows) ([]chatproto.Commit, error) {
	var out []chatproto.Commit
	for rows.Next() {
		var c chatproto.Commit
		var blob string
		if err := rows.Scan(&c.Seq, &c.ID, &blob); err != nil {
			return nil, err
		}
		c.Request = []byte(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, username string) (chatproto.User, error) {
	var u chatproto.User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash FROM users WHERE username = ?`, username,
	).Scan(&u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return chatproto.User{}, storage.ErrNotFound
	}
	return u, err
}

func (s *Store) ListUsernames(ctx context.Context, pattern string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		matched, err := path.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, name)
		}
	}
	return out, rows.Err()
}

func (s *Store) MessagesFor(ctx context.Context, recipient string) ([]chatproto.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, recipient, body, timestamp, read FROM messages WHERE recipient = ? ORDER BY timestamp ASC`,
		recipient,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chatproto.Message
	for rows.Next() {
		var m chatproto.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Body, &m.Timestamp, &m.Read); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
