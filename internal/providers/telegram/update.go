package telegram

import "strings"

// Update is an incoming webhook update. Only message updates are used.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message,omitempty"`
}

// User is the sender of an incoming message.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat is the conversation an incoming message belongs to.
type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

// IncomingMessage is the message object of an update.
type IncomingMessage struct {
	MessageID       int64  `json:"message_id"`
	MessageThreadID int64  `json:"message_thread_id"`
	From            *User  `json:"from,omitempty"`
	Chat            Chat   `json:"chat"`
	Text            string `json:"text"`
}

// Command splits a "/name@bot arg1 arg2" message into its lower-cased name and
// arguments. ok is false when the text is not a command.
func (m *IncomingMessage) Command() (name string, args []string, ok bool) {
	fields := strings.Fields(m.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// SenderUsername returns the sender's @handle, or "" when the sender has none.
func (m *IncomingMessage) SenderUsername() string {
	if m.From == nil || m.From.Username == "" {
		return ""
	}
	return "@" + m.From.Username
}

// SenderID returns the sender's user id, or 0 for anonymous senders.
func (m *IncomingMessage) SenderID() int64 {
	if m.From == nil {
		return 0
	}
	return m.From.ID
}
