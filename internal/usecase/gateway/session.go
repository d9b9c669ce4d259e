package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"botgate/internal/domain"
	"botgate/pkg/discord"
)

// Mailbox messages.
type (
	connectMsg struct {
		ctx   context.Context
		owner string
		seed  *domain.ResumeSnapshot
		reply chan<- error
	}
	disconnectMsg struct {
		ctx   context.Context
		reply chan<- error
	}
	stopMsg struct {
		ctx   context.Context
		reply chan<- error
	}
	frameMsg struct {
		epoch   domain.Epoch
		payload []byte
	}
	closedMsg struct{ epoch domain.Epoch }
	tickMsg   struct{ gen uint64 }
	retryMsg  struct{ gen uint64 }
)

// session drives one bot's connection. Its record is confined to the run
// goroutine; other goroutines read the atomically published views.
type session struct {
	id      domain.SessionID
	channel domain.ChannelID
	m       *Manager
	mb      *mailbox
	limiter *rate.Limiter
	backoff *backoff.ExponentialBackOff
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	rec record

	state  atomic.Int32
	status atomic.Pointer[domain.SessionStatus]
	resume atomic.Pointer[domain.ResumeSnapshot]
	done   chan struct{}
}

func newSession(m *Manager, id domain.SessionID, ch domain.ChannelID) *session {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.cfg.RetryInitial
	b.MaxInterval = m.cfg.RetryMax

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:      id,
		channel: ch,
		m:       m,
		mb:      newMailbox(),
		limiter: rate.NewLimiter(rate.Every(m.cfg.SendWindow/time.Duration(m.cfg.SendLimit)), m.cfg.SendBurst),
		backoff: b,
		logger:  m.logger.With("session", id.Fingerprint(), "channel", string(ch)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.rec.state = domain.StateConnecting
	s.publish()
	return s
}

// State returns the last published lifecycle state.
func (s *session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

// Status returns the last published status view.
func (s *session) Status() domain.SessionStatus {
	if st := s.status.Load(); st != nil {
		return *st
	}
	return domain.SessionStatus{Fingerprint: s.id.Fingerprint(), Channel: s.channel}
}

func (s *session) run() {
	defer close(s.done)
	for {
		msg, ok := s.mb.next()
		if !ok {
			return
		}
		stop := s.handle(msg)
		s.publish()
		if stop {
			return
		}
	}
}

func (s *session) handle(msg any) bool {
	switch msg := msg.(type) {
	case connectMsg:
		return s.onConnect(msg)
	case disconnectMsg:
		s.onDisconnect(msg)
		return true
	case stopMsg:
		s.onStop(msg)
		return true
	case frameMsg:
		if s.current(msg.epoch, "frame") {
			s.onFrame(msg.payload)
		}
	case closedMsg:
		if s.current(msg.epoch, "close") {
			s.onTransportClosed()
		}
	case tickMsg:
		s.onTick(msg.gen)
	case retryMsg:
		s.onRetry(msg.gen)
	}
	return false
}

// current reports whether epoch belongs to the open connection. Events of
// a replaced connection can still be queued behind its replacement.
func (s *session) current(epoch domain.Epoch, kind string) bool {
	if epoch == s.rec.epoch {
		return true
	}
	s.logger.Debug("ignoring stale transport event", "kind", kind, "epoch", epoch, "current", s.rec.epoch)
	return false
}

// publish refreshes the views read by other goroutines. Handlers that
// reply to a caller publish before replying.
func (s *session) publish() {
	st := s.rec.status(s.id, s.channel)
	s.status.Store(&st)
	s.state.Store(int32(s.rec.state))
	s.resume.Store(s.rec.snapshot(s.id.Key(), s.m.clock.Now()))
}

func (s *session) onConnect(msg connectMsg) bool {
	r := &s.rec
	s.supersedeHeartbeat()
	r.retryGen++

	*r = record{
		owner:        msg.owner,
		state:        domain.StateConnecting,
		heartbeatGen: r.heartbeatGen,
		retryGen:     r.retryGen,
		forwarded:    r.forwarded,
		dropped:      r.dropped,
		reconnects:   r.reconnects,
	}
	if msg.seed != nil && msg.seed.Resumable() {
		r.resumeURL = msg.seed.ResumeURL
		r.pending = &resumePoint{sessionToken: msg.seed.SessionToken, sequence: copySeq(msg.seed.Sequence)}
		s.logger.Info("seeded resume point from snapshot")
	}

	s.m.emit(msg.ctx, domain.EventSessionConnecting, s.id, map[string]string{"owner": msg.owner})
	r.gatewayURL = s.m.resolve(msg.ctx, s.id)
	if err := s.open(msg.ctx, r.gatewayURL); err != nil {
		s.logger.Error("gateway connect failed", "url", r.gatewayURL, "error", err)
		s.abandon(msg, err)
		return true
	}
	// The caller gave up while the dial was in flight; it has been told
	// the connect failed, so the session must not stay live.
	if err := msg.ctx.Err(); err != nil {
		if cerr := s.m.transport.Close(s.channel); cerr != nil {
			s.logger.Debug("transport close", "error", cerr)
		}
		s.logger.Warn("connect abandoned by caller", "error", err)
		s.abandon(msg, err)
		return true
	}
	r.state = domain.StateAwaitingHello
	s.backoff.Reset()
	s.publish()
	msg.reply <- nil
	return false
}

// abandon unregisters a session whose connect failed and replies err.
func (s *session) abandon(msg connectMsg, err error) {
	s.rec.state = domain.StateDisconnected
	s.rec.lastError = err
	s.m.registry.detach(s.id, s)
	s.mb.close()
	s.cancel()
	s.publish()
	msg.reply <- err
}

func (s *session) onDisconnect(msg disconnectMsg) {
	s.halt()
	s.m.registry.detach(s.id, s)
	if s.m.store != nil {
		if err := s.m.store.Delete(msg.ctx, s.id.Key()); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("delete resume snapshot failed", "error", err)
		}
	}
	s.m.emit(msg.ctx, domain.EventSessionDisconnected, s.id, nil)
	s.mb.close()
	s.publish()
	msg.reply <- nil
}

func (s *session) onStop(msg stopMsg) {
	var err error
	if snap := s.rec.snapshot(s.id.Key(), s.m.clock.Now()); snap != nil && s.m.store != nil {
		err = s.m.store.Save(msg.ctx, *snap)
	}
	s.halt()
	s.m.registry.detach(s.id, s)
	s.mb.close()
	s.publish()
	msg.reply <- err
}

// halt closes the connection and cancels every pending timer.
func (s *session) halt() {
	if err := s.m.transport.Close(s.channel); err != nil {
		s.logger.Debug("transport close", "error", err)
	}
	s.supersedeHeartbeat()
	s.rec.retryGen++
	s.rec.state = domain.StateDisconnected
	s.rec.connectionOpen = false
}

func (s *session) onFrame(raw []byte) {
	r := &s.rec
	ev, seq, err := discord.Decode(raw)
	if err != nil {
		if errors.Is(err, domain.ErrFatalControlDecode) {
			s.fail(err)
			return
		}
		r.observe(seq)
		s.drop("decode", err)
		return
	}

	switch ev := ev.(type) {
	case *discord.Dispatch:
		s.onDispatch(ev, seq)
	case *discord.Hello:
		s.onHello(ev)
	case *discord.Ready:
		r.observe(seq)
		s.onReady(ev)
	case discord.Resumed:
		r.observe(seq)
		s.onResumed()
	case discord.HeartbeatAck:
		r.acked = true
	case discord.HeartbeatRequest:
		s.sendHeartbeat()
	case discord.Reconnect:
		s.onReconnect()
	case discord.InvalidSession:
		s.onInvalidSession(ev.Resumable)
	}
}

func (s *session) onDispatch(ev *discord.Dispatch, seq *uint64) {
	r := &s.rec
	if r.state != domain.StateSteady && r.state != domain.StateReconnecting {
		r.observe(seq)
		s.drop("not_ready", fmt.Errorf("%s received in state %s", ev.Name, r.state))
		return
	}
	if last := r.lastSequence(); seq != nil && last != nil && *seq <= *last {
		s.drop("duplicate", fmt.Errorf("%s sequence %d already seen", ev.Name, *seq))
		return
	}
	r.observe(seq)
	s.forward(string(ev.Name), seq, ev.Data)
}

func (s *session) onHello(h *discord.Hello) {
	r := &s.rec
	r.heartbeatInterval = time.Duration(h.HeartbeatInterval) * time.Millisecond
	s.armHeartbeat()

	switch r.state {
	case domain.StateAwaitingHello:
		if r.resumeURL != "" && r.pending != nil {
			if !r.onResumeURL() {
				s.logger.Debug("moving to resume url", "url", r.resumeURL)
				s.reopen(r.resumeURL, domain.StateReconnecting)
				return
			}
			s.resumeOrIdentify()
			return
		}
		s.identify()
	case domain.StateReconnecting:
		s.resumeOrIdentify()
	default:
		s.logger.Debug("hello outside handshake", "state", r.state.String())
	}
}

func (s *session) onReady(ready *discord.Ready) {
	r := &s.rec
	if r.state != domain.StateIdentifying && r.state != domain.StateReconnecting {
		s.logger.Warn("ready outside handshake", "state", r.state.String())
	}
	r.sessionToken = ready.SessionID
	r.resumeURL = ready.ResumeGatewayURL
	r.connectionOpen = true
	r.connectedAt = s.m.clock.Now()
	r.lastError = nil
	s.forward(string(discord.EventReady), r.sequence, ready)
	r.pending = nil
	s.persist()
	r.state = domain.StateSteady
	r.resumable = false
	s.backoff.Reset()

	s.m.emit(s.ctx, domain.EventSessionReady, s.id, map[string]any{
		"owner": r.owner, "user": ready.User.Username, "guilds": len(ready.Guilds),
	})
	s.logger.Info("session ready", "user", ready.User.Username, "guilds", len(ready.Guilds))
}

func (s *session) onResumed() {
	r := &s.rec
	if r.state != domain.StateReconnecting {
		s.logger.Warn("resumed outside handshake", "state", r.state.String())
	}
	if p := r.pending; p != nil {
		if r.sessionToken == "" {
			r.sessionToken = p.sessionToken
		}
		if r.sequence == nil {
			r.sequence = copySeq(p.sequence)
		}
	}
	r.pending = nil
	r.connectionOpen = true
	r.connectedAt = s.m.clock.Now()
	r.lastError = nil
	r.state = domain.StateSteady
	r.resumable = false
	s.persist()
	s.backoff.Reset()

	s.m.emit(s.ctx, domain.EventSessionResumed, s.id, nil)
	s.logger.Info("session resumed")
}

func (s *session) onReconnect() {
	r := &s.rec
	if !r.state.Connected() {
		return
	}
	r.capture()
	r.connectionOpen = false
	r.reconnects++
	s.supersedeHeartbeat()

	target := r.resumeURL
	if target == "" {
		target = r.gatewayURL
	}
	s.m.emit(s.ctx, domain.EventSessionReconnecting, s.id, map[string]string{"reason": "reconnect_requested"})
	s.logger.Info("gateway requested reconnect", "url", target)
	s.reopen(target, domain.StateReconnecting)
}

func (s *session) onInvalidSession(resumable bool) {
	r := &s.rec
	s.m.emit(s.ctx, domain.EventSessionInvalidated, s.id, map[string]bool{"resumable": resumable})
	if resumable {
		s.logger.Info("session invalidated, resuming")
		s.resumeOrIdentify()
		return
	}
	s.logger.Info("session invalidated, identifying")
	r.clearResume()
	if s.m.store != nil {
		if err := s.m.store.Delete(s.ctx, s.id.Key()); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("delete resume snapshot failed", "error", err)
		}
	}
	s.identify()
}

func (s *session) onTransportClosed() {
	r := &s.rec
	if r.state == domain.StateDisconnected {
		return
	}
	s.logger.Warn("transport closed, reconnecting", "state", r.state.String())
	r.capture()
	r.connectionOpen = false
	r.heartbeatInterval = 0
	r.sequence = nil
	r.sessionToken = ""
	r.reconnects++
	s.supersedeHeartbeat()

	s.m.emit(s.ctx, domain.EventSessionReconnecting, s.id, map[string]string{"reason": "transport_closed"})
	s.reopen(r.gatewayURL, domain.StateAwaitingHello)
}

// fail stops the session after an unrecoverable control frame. The record
// stays registered until the owner disconnects or reconnects it.
func (s *session) fail(err error) {
	s.logger.Error("fatal control frame, session stopped", "error", err)
	s.halt()
	s.rec.lastError = err
	s.m.emit(s.ctx, domain.EventSessionFailed, s.id, map[string]string{"error": err.Error()})
}

func (s *session) drop(reason string, err error) {
	s.rec.dropped++
	if domain.IsSoftDecodeError(err) {
		s.logger.Debug("ignoring frame", "reason", reason, "error", err)
	} else {
		s.logger.Warn("dropping frame", "reason", reason, "error", err)
	}
	payload := map[string]string{"reason": reason}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.m.emit(s.ctx, domain.EventFrameDropped, s.id, payload)
}

func (s *session) forward(name string, seq *uint64, payload any) {
	if s.m.forwarder == nil {
		return
	}
	d := domain.Delivery{
		Session:  s.id,
		Owner:    s.rec.owner,
		Event:    name,
		Sequence: copySeq(seq),
		Payload:  payload,
	}
	if err := s.m.forwarder.Forward(s.ctx, d); err != nil {
		s.logger.Warn("forward failed", "event", name, "owner", s.rec.owner, "error", err)
		return
	}
	s.rec.forwarded++
}

func (s *session) persist() {
	if s.m.store == nil {
		return
	}
	snap := s.rec.snapshot(s.id.Key(), s.m.clock.Now())
	if snap == nil {
		return
	}
	if err := s.m.store.Save(s.ctx, *snap); err != nil {
		s.logger.Warn("save resume snapshot failed", "error", err)
	}
}

// open connects the session's channel to url with protocol parameters.
func (s *session) open(ctx context.Context, url string) error {
	full := discord.WithProtocolParams(url)
	epoch, err := s.m.transport.Open(ctx, full, s.channel)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", full, domain.ErrTransportOpen, err)
	}
	s.rec.epoch = epoch
	s.rec.connectedURL = full
	return nil
}

// reopen replaces the connection and moves to next, retrying with backoff
// while the open fails.
func (s *session) reopen(url string, next domain.SessionState) {
	r := &s.rec
	r.resumable = next == domain.StateReconnecting
	if err := s.open(s.ctx, url); err != nil {
		r.state = domain.StateConnecting
		r.lastError = err
		r.retryGen++
		r.retryTarget = url
		r.retryNext = next
		gen := r.retryGen
		delay := s.backoff.NextBackOff()
		s.m.clock.AfterFunc(delay, func() { s.mb.put(retryMsg{gen: gen}) })
		s.logger.Warn("reopen failed, retrying", "url", url, "delay", delay, "error", err)
		return
	}
	r.state = next
}

func (s *session) onRetry(gen uint64) {
	r := &s.rec
	if gen != r.retryGen || r.state != domain.StateConnecting {
		return
	}
	s.reopen(r.retryTarget, r.retryNext)
}

func (s *session) identify() {
	id := discord.NewIdentify(s.id.Token, s.id.Intents)
	id.LargeThreshold = s.m.cfg.LargeThreshold
	s.push(id)
	s.rec.state = domain.StateIdentifying
	s.rec.resumable = false
}

// resumeOrIdentify sends Resume when a resume point exists and Identify
// otherwise.
func (s *session) resumeOrIdentify() {
	point, ok := s.rec.resumeFrom()
	if !ok {
		s.identify()
		return
	}
	s.push(&discord.Resume{Token: s.id.Token, SessionID: point.sessionToken, Seq: point.sequence})
	s.rec.state = domain.StateReconnecting
	s.rec.resumable = true
}

func (s *session) sendHeartbeat() {
	s.push(discord.Heartbeat{Seq: copySeq(s.rec.sequence)})
}

func (s *session) push(ev discord.OutboundEvent) {
	raw, err := discord.Encode(ev)
	if err != nil {
		s.logger.Error("encode outbound frame", "op", ev.Opcode().String(), "error", err)
		return
	}
	if err := s.m.transport.Push(s.ctx, s.channel, raw); err != nil {
		s.logger.Warn("push failed", "op", ev.Opcode().String(), "error", err)
	}
}

// armHeartbeat starts a new heartbeat generation. Ticks of older
// generations are ignored.
func (s *session) armHeartbeat() {
	s.supersedeHeartbeat()
	s.rec.acked = true
	s.schedule(s.rec.heartbeatGen)
}

func (s *session) schedule(gen uint64) {
	if s.rec.heartbeatInterval <= 0 {
		return
	}
	s.rec.heartbeat = s.m.clock.AfterFunc(s.rec.heartbeatInterval, func() { s.mb.put(tickMsg{gen: gen}) })
}

func (s *session) supersedeHeartbeat() {
	if s.rec.heartbeat != nil {
		s.rec.heartbeat.Stop()
		s.rec.heartbeat = nil
	}
	s.rec.heartbeatGen++
}

func (s *session) onTick(gen uint64) {
	r := &s.rec
	if gen != r.heartbeatGen || r.heartbeatInterval <= 0 {
		return
	}
	if s.m.cfg.ZombieDetection && !r.acked {
		s.logger.Warn("heartbeat not acknowledged, reconnecting")
		if err := s.m.transport.Close(s.channel); err != nil {
			s.logger.Debug("transport close", "error", err)
		}
		s.onTransportClosed()
		return
	}
	s.sendHeartbeat()
	r.acked = false
	s.schedule(gen)
}
