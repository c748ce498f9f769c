// Package onebot implements the server side of the OneBot v11 reverse
// WebSocket protocol: bot clients connect to us, push events and answer
// the actions we send them.
package onebot

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	PostTypeMessage   = "message"
	PostTypeMetaEvent = "meta_event"

	MessageTypeGroup   = "group"
	MessageTypePrivate = "private"
)

var ErrSessionClosed = errors.New("onebot: session closed")

// Event is a pushed OneBot event. Only the fields the bot reads are kept.
type Event struct {
	Time          int64  `json:"time"`
	SelfID        int64  `json:"self_id"`
	PostType      string `json:"post_type"`
	MessageType   string `json:"message_type,omitempty"`
	SubType       string `json:"sub_type,omitempty"`
	MetaEventType string `json:"meta_event_type,omitempty"`
	MessageID     int64  `json:"message_id,omitempty"`
	GroupID       int64  `json:"group_id,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
	RawMessage    string `json:"raw_message,omitempty"`
	Sender        Sender `json:"sender"`
}

type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"`
}

// IsGroupMessage reports whether ev is a message posted in a group.
func (ev Event) IsGroupMessage() bool {
	return ev.PostType == PostTypeMessage && ev.MessageType == MessageTypeGroup
}

type actionRequest struct {
	Action string `json:"action"`
	Params any    `json:"params"`
	Echo   string `json:"echo"`
}

// ActionResponse answers an action we sent, matched by Echo.
type ActionResponse struct {
	Status  string          `json:"status"`
	RetCode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
	Wording string          `json:"wording,omitempty"`
	Echo    string          `json:"echo"`
}

// ActionError is returned when the bot client rejects an action.
type ActionError struct {
	Action  string
	RetCode int
	Message string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("onebot action %s failed: retcode %d: %s", e.Action, e.RetCode, e.Message)
}

// frame is used to tell events and action responses apart.
type frame struct {
	PostType string          `json:"post_type"`
	Echo     json.RawMessage `json:"echo"`
}

// Status is the result of get_status.
type Status struct {
	Online bool `json:"online"`
	Good   bool `json:"good"`
}

// LoginInfo is the result of get_login_info.
type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}
