package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"botgate/internal/domain"
)

// Version is reported by the status API. Set at link time.
var Version = "dev"

// StatusResponse is the JSON body of GET /api/v1/status.
type StatusResponse struct {
	Service  ServiceStatus          `json:"service"`
	Counts   SessionCounts          `json:"counts"`
	Sessions []domain.SessionStatus `json:"sessions"`
	Clients  int                    `json:"clients"`
}

// ServiceStatus holds process overview info.
type ServiceStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// SessionCounts summarizes sessions by state.
type SessionCounts struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// Metrics tracks lifecycle counters fed by the event bus.
type Metrics struct {
	Connects        atomic.Int64
	Ready           atomic.Int64
	Resumed         atomic.Int64
	Reconnecting    atomic.Int64
	Invalidated     atomic.Int64
	Failed          atomic.Int64
	Disconnected    atomic.Int64
	FramesDropped   atomic.Int64
	ClientsAccepted atomic.Int64
}

// Subscribe wires the counters to bus and returns the unsubscribe func.
func (m *Metrics) Subscribe(bus domain.EventBus) func() {
	counters := map[domain.EventType]*atomic.Int64{
		domain.EventSessionConnecting:   &m.Connects,
		domain.EventSessionReady:        &m.Ready,
		domain.EventSessionResumed:      &m.Resumed,
		domain.EventSessionReconnecting: &m.Reconnecting,
		domain.EventSessionInvalidated:  &m.Invalidated,
		domain.EventSessionFailed:       &m.Failed,
		domain.EventSessionDisconnected: &m.Disconnected,
		domain.EventFrameDropped:        &m.FramesDropped,
		domain.EventClientConnected:     &m.ClientsAccepted,
	}
	return bus.SubscribeAll(func(_ context.Context, e domain.Event) {
		if c, ok := counters[e.Type]; ok {
			c.Add(1)
		}
	})
}

// RegisterRESTHandlers mounts /api/v1/status and /metrics behind token
// auth and returns the metrics fed by bus.
func RegisterRESTHandlers(s *Server, sessions SessionService, bus domain.EventBus) *Metrics {
	startTime := time.Now()
	metrics := &Metrics{}
	if bus != nil {
		metrics.Subscribe(bus)
	}

	auth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			client, err := s.auth.Authenticate(tokenFromRequest(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !client.Can(domain.PermDashboard) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next(w, r)
		}
	}

	s.RegisterHTTPRoute("/api/v1/status", auth(statusHandler(sessions, s, startTime)))
	s.RegisterHTTPRoute("/metrics", auth(metricsHandler(sessions, s, startTime, metrics)))
	return metrics
}

func countByState(sessions []domain.SessionStatus) map[string]int {
	byState := make(map[string]int)
	for _, st := range sessions {
		byState[st.State.String()]++
	}
	return byState
}

func statusHandler(sessions SessionService, s *Server, startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		all := sessions.Sessions()
		resp := StatusResponse{
			Service: ServiceStatus{
				Name:          "botgate",
				Version:       Version,
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Counts:   SessionCounts{Total: len(all), ByState: countByState(all)},
			Sessions: all,
			Clients:  s.Clients(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// metricsHandler writes Prometheus text format without pulling in the
// prometheus client.
func metricsHandler(sessions SessionService, s *Server, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		all := sessions.Sessions()
		var forwarded, dropped, reconnects uint64
		for _, st := range all {
			forwarded += st.EventsForwarded
			dropped += st.FramesDropped
			reconnects += st.Reconnects
		}

		gauge := func(name, help string, v any) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %v\n", name, help, name, name, v)
		}
		counter := func(name, help string, v any) {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %v\n", name, help, name, name, v)
		}

		gauge("botgate_sessions", "Registered gateway sessions.", len(all))
		fmt.Fprintf(w, "# HELP botgate_sessions_state Sessions per lifecycle state.\n# TYPE botgate_sessions_state gauge\n")
		byState := countByState(all)
		for _, state := range []domain.SessionState{
			domain.StateDisconnected, domain.StateConnecting, domain.StateAwaitingHello,
			domain.StateIdentifying, domain.StateSteady, domain.StateReconnecting,
		} {
			fmt.Fprintf(w, "botgate_sessions_state{state=%q} %d\n", state.String(), byState[state.String()])
		}

		counter("botgate_events_forwarded_total", "Gateway events forwarded to owners.", forwarded)
		counter("botgate_frames_dropped_total", "Inbound frames dropped by live sessions.", dropped)
		counter("botgate_session_reconnects_total", "Reconnects across live sessions.", reconnects)
		counter("botgate_session_connects_total", "Session connect attempts.", metrics.Connects.Load())
		counter("botgate_session_ready_total", "READY handshakes completed.", metrics.Ready.Load())
		counter("botgate_session_resumed_total", "Sessions resumed.", metrics.Resumed.Load())
		counter("botgate_session_invalidated_total", "Invalid session notices.", metrics.Invalidated.Load())
		counter("botgate_session_failed_total", "Sessions stopped by a fatal error.", metrics.Failed.Load())
		counter("botgate_control_events_delivered_total", "Events pushed to control clients.", s.Delivered())
		counter("botgate_control_events_undelivered_total", "Events whose owner had no control client.", s.Undelivered())
		gauge("botgate_control_clients", "Connected control clients.", s.Clients())
		gauge("botgate_uptime_seconds", "Seconds since start.", fmt.Sprintf("%.0f", time.Since(startTime).Seconds()))

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		gauge("go_goroutines", "Number of goroutines.", runtime.NumGoroutine())
		gauge("go_memstats_alloc_bytes", "Bytes of allocated heap objects.", mem.Alloc)
		gauge("go_memstats_sys_bytes", "Total bytes of memory obtained from the OS.", mem.Sys)
	}
}
