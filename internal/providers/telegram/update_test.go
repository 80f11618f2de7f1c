package telegram

import (
	"encoding/json"
	"testing"
)

func TestCommandParsing(t *testing.T) {
	cases := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{text: "/start", name: "start", ok: true},
		{text: "/SetGoal@T1VaultBot 1500 new gear", name: "setgoal", args: []string{"1500", "new", "gear"}, ok: true},
		{text: "  /vault  ", name: "vault", ok: true},
		{text: "hello /vault", ok: false},
		{text: "/", ok: false},
		{text: "", ok: false},
	}
	for _, tc := range cases {
		msg := &IncomingMessage{Text: tc.text}
		name, args, ok := msg.Command()
		if ok != tc.ok || name != tc.name {
			t.Fatalf("Command(%q) = %q,%v want %q,%v", tc.text, name, ok, tc.name, tc.ok)
		}
		if len(args) != len(tc.args) {
			t.Fatalf("Command(%q) args = %v want %v", tc.text, args, tc.args)
		}
		for i := range args {
			if args[i] != tc.args[i] {
				t.Fatalf("Command(%q) args = %v want %v", tc.text, args, tc.args)
			}
		}
	}
}

func TestDecodeUpdate(t *testing.T) {
	raw := `{"update_id":10,"message":{"message_id":5,"message_thread_id":3,"from":{"id":42,"username":"Alice"},"chat":{"id":-100,"type":"supergroup"},"text":"/gettopic"}}`
	var upd Update
	if err := json.Unmarshal([]byte(raw), &upd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if upd.Message == nil {
		t.Fatalf("expected message")
	}
	if upd.Message.SenderUsername() != "@Alice" || upd.Message.SenderID() != 42 {
		t.Fatalf("unexpected sender %+v", upd.Message.From)
	}
	if upd.Message.Chat.ID != -100 || upd.Message.MessageThreadID != 3 {
		t.Fatalf("unexpected chat/thread %+v", upd.Message)
	}

	anon := &IncomingMessage{}
	if anon.SenderUsername() != "" || anon.SenderID() != 0 {
		t.Fatalf("anonymous sender should have no identity")
	}
}
