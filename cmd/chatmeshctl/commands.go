package main

import (
	"github.com/spf13/cobra"

	"github.com/chatmesh/chatmesh/internal/chatproto"
)

func newCreateUserCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:       newRequestID(),
				Type:     chatproto.CreateUser,
				Username: username,
				Password: password,
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("username")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate as an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:       newRequestID(),
				Type:     chatproto.Login,
				Username: username,
				Password: password,
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("username")
	return cmd
}

func newSendCmd() *cobra.Command {
	var sender, recipient, body string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:   newRequestID(),
				Type: chatproto.SendMessage,
				Message: &chatproto.Message{
					ID:        newRequestID(),
					Sender:    sender,
					Recipient: recipient,
					Body:      body,
				},
			})
		},
	}
	cmd.Flags().StringVar(&sender, "from", "", "sender username")
	cmd.Flags().StringVar(&recipient, "to", "", "recipient username")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("body")
	return cmd
}

func newGetMessagesCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "get-messages",
		Short: "Fetch messages addressed to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:       newRequestID(),
				Type:     chatproto.GetMessages,
				Username: username,
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "recipient username")
	cmd.MarkFlagRequired("username")
	return cmd
}

func newListUsersCmd() *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "list-users",
		Short: "List usernames matching a shell-style glob",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:      newRequestID(),
				Type:    chatproto.ListUsers,
				Pattern: pattern,
			})
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "*", "glob pattern")
	return cmd
}

func newReadMessagesCmd() *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "read-messages",
		Short: "Mark messages as read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:         newRequestID(),
				Type:       chatproto.ReadMessages,
				MessageIDs: ids,
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "id", nil, "message id (repeatable)")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newDeleteMessagesCmd() *cobra.Command {
	var ids []string
	cmd := &cobra.Command{
		Use:   "delete-messages",
		Short: "Delete messages by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:         newRequestID(),
				Type:       chatproto.DeleteMessages,
				MessageIDs: ids,
			})
		},
	}
	cmd.Flags().StringSliceVar(&ids, "id", nil, "message id (repeatable)")
	cmd.MarkFlagRequired("id")
	return cmd
}

func newDeleteUserCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete an account and its messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return send(chatproto.Request{
				ID:       newRequestID(),
				Type:     chatproto.DeleteUser,
				Username: username,
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.MarkFlagRequired("username")
	return cmd
}
