package domain

import "time"

type ReplyKind string

const (
	ReplyKindReply ReplyKind = "reply"
	ReplyKindError ReplyKind = "error"
)

// Reply is one outbound frame of the relay loop. For errors Text holds the
// description only; Welcome marks frames produced by the greeting turn.
type Reply struct {
	Kind    ReplyKind `json:"kind"`
	Text    string    `json:"text"`
	Welcome bool      `json:"welcome,omitempty"`
}

// TurnEvent describes a finished turn. It is published on TurnTopic.
type TurnEvent struct {
	SessionID  string        `json:"session_id"`
	Welcome    bool          `json:"welcome"`
	Success    bool          `json:"success"`
	HistoryLen int           `json:"history_len"`
	Evicted    int           `json:"evicted"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

const TurnTopic = "conversation.turns"
