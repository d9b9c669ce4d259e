package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// SessionID is the immutable identity of one bot connection. Two values
// with equal Token and Intents address the same logical bot.
type SessionID struct {
	Token   string
	Intents uint64
}

// Fingerprint returns a stable identifier safe for logs and APIs.
func (id SessionID) Fingerprint() string {
	sum := sha256.Sum256([]byte(id.Token))
	return hex.EncodeToString(sum[:6]) + ":" + strconv.FormatUint(id.Intents, 10)
}

// Key returns the storage key for persisted session state.
func (id SessionID) Key() string {
	sum := sha256.Sum256([]byte(id.Token + "|" + strconv.FormatUint(id.Intents, 10)))
	return hex.EncodeToString(sum[:])
}

func (id SessionID) String() string { return id.Fingerprint() }

// ChannelID identifies one transport channel. It outlives individual
// connections: reopening a session reuses its channel.
type ChannelID string

// SessionState is the lifecycle state of a gateway session.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateAwaitingHello
	StateIdentifying
	StateSteady
	StateReconnecting
)

var stateNames = [...]string{
	StateDisconnected:  "disconnected",
	StateConnecting:    "connecting",
	StateAwaitingHello: "awaiting_hello",
	StateIdentifying:   "identifying",
	StateSteady:        "steady",
	StateReconnecting:  "reconnecting",
}

func (s SessionState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText lets SessionState render by name in JSON.
func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses a state name.
func (s *SessionState) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = SessionState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Connected reports whether the state has a live or opening transport.
func (s SessionState) Connected() bool {
	return s != StateDisconnected && s != StateConnecting
}

// SessionStatus is a read-only view of a session for status APIs.
type SessionStatus struct {
	Fingerprint       string       `json:"fingerprint"`
	Owner             string       `json:"owner"`
	Channel           ChannelID    `json:"channel"`
	State             SessionState `json:"state"`
	Resumable         bool         `json:"resumable"`
	ConnectionOpen    bool         `json:"connection_open"`
	Sequence          *uint64      `json:"sequence,omitempty"`
	HeartbeatInterval int64        `json:"heartbeat_interval_ms"`
	ResumeURL         string       `json:"resume_url,omitempty"`
	EventsForwarded   uint64       `json:"events_forwarded"`
	FramesDropped     uint64       `json:"frames_dropped"`
	Reconnects        uint64       `json:"reconnects"`
	LastError         string       `json:"last_error,omitempty"`
	ConnectedAt       time.Time    `json:"connected_at,omitzero"`
}

// ResumeSnapshot is the persisted resume point of a session.
type ResumeSnapshot struct {
	Key          string    `json:"key"`
	ResumeURL    string    `json:"resume_url"`
	SessionToken string    `json:"session_token"`
	Sequence     *uint64   `json:"sequence,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Resumable reports whether the snapshot carries enough to attempt a resume.
func (s ResumeSnapshot) Resumable() bool {
	return s.ResumeURL != "" && s.SessionToken != ""
}

// SessionStore persists resume snapshots across process restarts.
type SessionStore interface {
	Save(ctx context.Context, snap ResumeSnapshot) error
	Load(ctx context.Context, key string) (*ResumeSnapshot, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]ResumeSnapshot, error)
}
