// Package memstore is an in-memory storage.Store used by fast unit tests
// that do not need a real DuckDB file. It honors the same Atomic contract
// as the durable backend: a panic or error inside the callback leaves the
// store's visible state unchanged.
package memstore

import (
	"context"
	"path"
	"sort"
	"sync"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/idgen"
	"github.com/chatmesh/chatmesh/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	commits  []chatproto.Commit
	users    map[string]chatproto.User
	messages map[string]chatproto.Message
}

func New() *Store {
	return &Store{
		users:    make(map[string]chatproto.User),
		messages: make(map[string]chatproto.Message),
	}
}

func (s *Store) Atomic(_ context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot so a failed fn leaves no partial effect.
	commits := append([]chatproto.Commit(nil), s.commits...)
	users := cloneUsers(s.users)
	messages := cloneMessages(s.messages)

	tx := &memTx{store: s, commits: commits, users: users, messages: messages}
	if err := fn(tx); err != nil {
		return err
	}

	s.commits = tx.commits
	s.users = tx.users
	s.messages = tx.messages
	return nil
}

func cloneUsers(m map[string]chatproto.User) map[string]chatproto.User {
	n := make(map[string]chatproto.User, len(m))
	for k, v := range m {
		n[k] = v
	}
	return n
}

func cloneMessages(m map[string]chatproto.Message) map[string]chatproto.Message {
	n := make(map[string]chatproto.Message, len(m))
	for k, v := range m {
		n[k] = v
	}
	return n
}

type memTx struct {
	store    *Store
	commits  []chatproto.Commit
	users    map[string]chatproto.User
	messages map[string]chatproto.Message
}

func (tx *memTx) AppendCommit(_ context.Context, blob []byte) (uint64, error) {
	seq := uint64(len(tx.commits)) + 1
	tx.commits = append(tx.commits, chatproto.Commit{Seq: seq, ID: idgen.New(), Request: append([]byte(nil), blob...)})
	return seq, nil
}

func (tx *memTx) InsertUser(_ context.Context, u chatproto.User) error {
	if _, ok := tx.users[u.Username]; ok {
		return storage.ErrAlreadyExists
	}
	tx.users[u.Username] = u
	return nil
}

func (tx *memTx) DeleteUser(ctx context.Context, username string) error {
	delete(tx.users, username)
	return tx.DeleteMessagesForRecipient(ctx, username)
}

func (tx *memTx) InsertMessage(_ context.Context, m chatproto.Message) error {
	tx.messages[m.ID] = m
	return nil
}

func (tx *memTx) MarkRead(_ context.Context, ids []string) error {
	for _, id := range ids {
		if m, ok := tx.messages[id]; ok {
			m.Read = true
			tx.messages[id] = m
		}
	}
	return nil
}

func (tx *memTx) DeleteMessages(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(tx.messages, id)
	}
	return nil
}

func (tx *memTx) DeleteMessagesForRecipient(_ context.Context, recipient string) error {
	for id, m := range tx.messages {
		if m.Recipient == recipient {
			delete(tx.messages, id)
		}
	}
	return nil
}

func (s *Store) MaxSeq(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.commits) == 0 {
		return 0, nil
	}
	return s.commits[len(s.commits)-1].Seq, nil
}

func (s *Store) CommitsSince(_ context.Context, seq uint64) ([]chatproto.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chatproto.Commit
	for _, c := range s.commits {
		if c.Seq > seq {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) AllCommits(_ context.Context) ([]chatproto.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chatproto.Commit(nil), s.commits...), nil
}

func (s *Store) GetUser(_ context.Context, username string) (chatproto.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return chatproto.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsernames(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name := range s.users {
		matched, err := path.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) MessagesFor(_ context.Context, recipient string) ([]chatproto.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chatproto.Message
	for _, m := range s.messages {
		if m.Recipient == recipient {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (s *Store) Close() error { return nil }
