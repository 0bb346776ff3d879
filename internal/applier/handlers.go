package applier

import (
	"context"
	"errors"
	"sort"

	"github.com/chatmesh/chatmesh/internal/chatproto"
	"github.com/chatmesh/chatmesh/internal/storage"
)

// mutation is the domain-specific write a handler wants performed inside the
// same transaction as its commit append. Nil means the handler is
// non-mutating and its request id is only recorded for dedup.
type mutation func(ctx context.Context, tx storage.Tx) error

// handler validates req against current storage state and builds a
// response, returning the mutation (if any) the caller should run alongside
// the commit append. It must not itself call Store.Atomic.
type handler func(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error)

var handlers = map[chatproto.RequestType]handler{
	chatproto.CreateUser:     handleCreateUser,
	chatproto.Login:          handleLogin,
	chatproto.GetMessages:    handleGetMessages,
	chatproto.ListUsers:      handleListUsers,
	chatproto.SendMessage:    handleSendMessage,
	chatproto.ReadMessages:   handleReadMessages,
	chatproto.DeleteMessages: handleDeleteMessages,
	chatproto.DeleteUser:     handleDeleteUser,
}

func handleCreateUser(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	if _, err := store.GetUser(ctx, req.Username); err == nil {
		return chatproto.Err("Username already exists."), nil, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return chatproto.Response{}, nil, err
	}

	u := chatproto.User{Username: req.Username, PasswordHash: req.Password}
	return chatproto.Ok(), func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertUser(ctx, u)
	}, nil
}

func handleLogin(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	u, err := store.GetUser(ctx, req.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return chatproto.Err("Invalid username or password."), nil, nil
	}
	if err != nil {
		return chatproto.Response{}, nil, err
	}
	if u.PasswordHash != req.Password {
		return chatproto.Err("Invalid username or password."), nil, nil
	}
	return chatproto.Ok(), nil, nil
}

// handleGetMessages reads from this node's local storage only: it does not
// forward to the leader or wait for a quorum, so a node that has fallen
// behind on sync can return a stale view. Acceptable per the replication
// model's best-effort read consistency.
func handleGetMessages(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	msgs, err := store.MessagesFor(ctx, req.Username)
	if err != nil {
		return chatproto.Response{}, nil, err
	}
	resp := chatproto.Ok()
	resp.Messages = msgs
	return resp, nil, nil
}

func handleListUsers(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	pattern := req.Pattern
	if pattern == "" {
		pattern = "*"
	}
	names, err := store.ListUsernames(ctx, pattern)
	if err != nil {
		return chatproto.Response{}, nil, err
	}
	sort.Strings(names)
	resp := chatproto.Ok()
	resp.Usernames = names
	return resp, nil, nil
}

func handleSendMessage(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	if _, err := store.GetUser(ctx, req.Message.Recipient); errors.Is(err, storage.ErrNotFound) {
		return chatproto.Err("Recipient does not exist."), nil, nil
	} else if err != nil {
		return chatproto.Response{}, nil, err
	}

	m := *req.Message
	return chatproto.Ok(), func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertMessage(ctx, m)
	}, nil
}

func handleReadMessages(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	ids := req.MessageIDs
	return chatproto.Ok(), func(ctx context.Context, tx storage.Tx) error {
		return tx.MarkRead(ctx, ids)
	}, nil
}

func handleDeleteMessages(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	ids := req.MessageIDs
	return chatproto.Ok(), func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteMessages(ctx, ids)
	}, nil
}

func handleDeleteUser(ctx context.Context, store storage.Store, req chatproto.Request) (chatproto.Response, mutation, error) {
	username := req.Username
	return chatproto.Ok(), func(ctx context.Context, tx storage.Tx) error {
		return tx.DeleteUser(ctx, username)
	}, nil
}
