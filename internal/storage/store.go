// Package storage defines the durable storage contract for a chatmesh node:
// an append-only commit log plus the users/messages tables it is the
// source of truth for. Implementations must make every mutation path
// durable (fsync-or-equivalent) before returning.
package storage

import (
	"context"
	"errors"

	"github.com/chatmesh/chatmesh/internal/chatproto"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("storage: not found")

// ErrAlreadyExists is returned by inserts that collide on a unique key.
var ErrAlreadyExists = errors.New("storage: already exists")

// Tx is the set of operations available inside an atomic transaction. A
// commit append and its corresponding users/messages mutation must happen
// in the same Tx to satisfy the one-mutation-one-commit invariant.
type Tx interface {
	AppendCommit(ctx context.Context, requestBlob []byte) (seq uint64, err error)

	InsertUser(ctx context.Context, u chatproto.User) error
	DeleteUser(ctx context.Context, username string) error

	InsertMessage(ctx context.Context, m chatproto.Message) error
	MarkRead(ctx context.Context, ids []string) error
	DeleteMessages(ctx context.Context, ids []string) error
	DeleteMessagesForRecipient(ctx context.Context, recipient string) error
}

// Store is the full storage surface a node depends on: read paths used by
// non-mutating handlers, and Atomic for mutating ones.
type Store interface {
	// Atomic runs fn in a single durable transaction. If fn returns an
	// error, no effect of fn is visible afterward.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	MaxSeq(ctx context.Context) (uint64, error)
	CommitsSince(ctx context.Context, seq uint64) ([]chatproto.Commit, error)
	AllCommits(ctx context.Context) ([]chatproto.Commit, error)

	GetUser(ctx context.Context, username string) (chatproto.User, error)
	ListUsernames(ctx context.Context, pattern string) ([]string, error)

	MessagesFor(ctx context.Context, recipient string) ([]chatproto.Message, error)

	Close() error
}
