package chatproto

import "testing"

func TestRequestType_Valid(t *testing.T) {
	cases := []struct {
		t    RequestType
		want bool
	}{
		{CreateUser, true},
		{Login, true},
		{GetMessages, true},
		{ListUsers, true},
		{SendMessage, true},
		{ReadMessages, true},
		{DeleteMessages, true},
		{DeleteUser, true},
		{RequestType("BOGUS"), false},
		{RequestType(""), false},
	}
	for _, c := range cases {
		if got := c.t.Valid(); got != c.want {
			t.Fatalf("%q.Valid() = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestRequest_Validate(t *testing.T) {
	t.Run("missing id", func(t *testing.T) {
		r := Request{Type: Login, Username: "jason"}
		if err := r.Validate(); err == nil {
			t.Fatalf("expected error for missing id")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		r := Request{ID: "1", Type: "NOPE"}
		if err := r.Validate(); err == nil {
			t.Fatalf("expected error for unknown type")
		}
	})

	t.Run("create_user requires username", func(t *testing.T) {
		r := Request{ID: "1", Type: CreateUser}
		if err := r.Validate(); err == nil {
			t.Fatalf("expected error for missing username")
		}
	})

	t.Run("send_message requires message.id", func(t *testing.T) {
		r := Request{ID: "1", Type: SendMessage}
		if err := r.Validate(); err == nil {
			t.Fatalf("expected error for missing message")
		}
		r.Message = &Message{}
		if err := r.Validate(); err == nil {
			t.Fatalf("expected error for missing message.id")
		}
	})

	t.Run("valid", func(t *testing.T) {
		r := Request{ID: "1", Type: GetMessages, Username: "jason"}
		if err := r.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestCommit_DecodeRequest_RoundTrip(t *testing.T) {
	r := Request{ID: "abc", Type: Login, Username: "jason", Password: "hash"}
	blob, err := EncodeRequest(r)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	c := Commit{Seq: 1, Request: blob}
	got, err := c.DecodeRequest()
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if got.ID != r.ID || got.Type != r.Type || got.Username != r.Username || got.Password != r.Password {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
}

func TestErrAndOk(t *testing.T) {
	e := Err("Username already exists.")
	if e.Status != ERROR || e.ErrorMessage != "Username already exists." {
		t.Fatalf("Err() = %+v", e)
	}
	o := Ok()
	if o.Status != OK {
		t.Fatalf("Ok() = %+v", o)
	}
}
