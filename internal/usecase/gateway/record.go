package gateway

import (
	"time"

	"botgate/internal/domain"
	"botgate/pkg/discord"
)

// resumePoint is what a Resume needs besides the bot token. It is captured
// before a connection's state is reset so that the next Hello can resume.
type resumePoint struct {
	sessionToken string
	sequence     *uint64
}

// record is the mutable state of one session. Only the session goroutine
// touches it.
type record struct {
	owner string
	state domain.SessionState
	// resumable qualifies StateReconnecting.
	resumable bool

	gatewayURL   string // resolved at connect, used after a transport close
	connectedURL string // full URL of the current connection
	epoch        domain.Epoch

	connectionOpen    bool
	resumeURL         string
	sessionToken      string
	sequence          *uint64
	heartbeatInterval time.Duration
	pending           *resumePoint

	heartbeatGen uint64
	heartbeat    Timer
	acked        bool

	retryGen    uint64
	retryTarget string
	retryNext   domain.SessionState

	lastError   error
	connectedAt time.Time

	forwarded  uint64
	dropped    uint64
	reconnects uint64
}

// capture stores the current session token and sequence as the resume
// point. An existing resume point is kept when there is no token.
func (r *record) capture() {
	if r.sessionToken == "" {
		return
	}
	r.pending = &resumePoint{sessionToken: r.sessionToken, sequence: copySeq(r.sequence)}
}

// resumeFrom returns the resume point to use for a Resume, preferring the
// captured one over the live token.
func (r *record) resumeFrom() (resumePoint, bool) {
	if r.pending != nil && r.pending.sessionToken != "" {
		return *r.pending, true
	}
	if r.sessionToken != "" {
		return resumePoint{sessionToken: r.sessionToken, sequence: copySeq(r.sequence)}, true
	}
	return resumePoint{}, false
}

// lastSequence is the highest sequence known, falling back to the captured
// one after a reset.
func (r *record) lastSequence() *uint64 {
	if r.sequence != nil {
		return r.sequence
	}
	if r.pending != nil {
		return r.pending.sequence
	}
	return nil
}

// observe advances the sequence if seq is newer.
func (r *record) observe(seq *uint64) {
	if seq == nil {
		return
	}
	if r.sequence == nil || *seq > *r.sequence {
		r.sequence = copySeq(seq)
	}
}

// onResumeURL reports whether the current connection already targets the
// resume URL.
func (r *record) onResumeURL() bool {
	return r.resumeURL != "" && r.connectedURL == discord.WithProtocolParams(r.resumeURL)
}

func (r *record) clearResume() {
	r.resumeURL = ""
	r.sessionToken = ""
	r.sequence = nil
	r.pending = nil
}

func (r *record) snapshot(key string, now time.Time) *domain.ResumeSnapshot {
	point, ok := r.resumeFrom()
	if !ok || r.resumeURL == "" {
		return nil
	}
	return &domain.ResumeSnapshot{
		Key:          key,
		ResumeURL:    r.resumeURL,
		SessionToken: point.sessionToken,
		Sequence:     point.sequence,
		UpdatedAt:    now,
	}
}

func (r *record) status(id domain.SessionID, ch domain.ChannelID) domain.SessionStatus {
	st := domain.SessionStatus{
		Fingerprint:       id.Fingerprint(),
		Owner:             r.owner,
		Channel:           ch,
		State:             r.state,
		Resumable:         r.state == domain.StateReconnecting && r.resumable,
		ConnectionOpen:    r.connectionOpen,
		Sequence:          copySeq(r.sequence),
		HeartbeatInterval: r.heartbeatInterval.Milliseconds(),
		ResumeURL:         r.resumeURL,
		EventsForwarded:   r.forwarded,
		FramesDropped:     r.dropped,
		Reconnects:        r.reconnects,
		ConnectedAt:       r.connectedAt,
	}
	if r.lastError != nil {
		st.LastError = r.lastError.Error()
	}
	return st
}

func copySeq(seq *uint64) *uint64 {
	if seq == nil {
		return nil
	}
	v := *seq
	return &v
}
