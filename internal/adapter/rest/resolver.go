// Package rest discovers gateway endpoints over Discord's HTTP API.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/trace"

	"botgate/internal/domain"
	"botgate/internal/infra/tracer"
)

// Default resolver settings.
const (
	defaultTimeout       = 10 * time.Second
	defaultMaxFailures   = uint32(5)
	defaultBreakerOpen   = 30 * time.Second
	defaultBreakerWindow = 60 * time.Second
	maxResponseBytes     = 64 << 10
)

// Config tunes the gateway resolver.
type Config struct {
	// APIBase replaces the REST API root, e.g. "https://discord.com/api/v9".
	// Empty uses discordgo's endpoint.
	APIBase     string
	Timeout     time.Duration // per request (default: 10s)
	MaxFailures uint32        // consecutive failures before the breaker opens (default: 5)
	OpenFor     time.Duration // how long the breaker stays open (default: 30s)
	Window      time.Duration // closed-state failure counting window (default: 60s)
}

type gatewayBotResponse struct {
	URL string `json:"url"`
}

// Resolver implements domain.EndpointResolver with GET /gateway/bot.
// Calls share one circuit breaker so that a failing API is not hammered
// by every reconnecting bot at once.
type Resolver struct {
	endpoint string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[string]
	logger   *slog.Logger
}

// NewResolver creates a Resolver. A nil client gets a pooled default.
func NewResolver(cfg Config, client *http.Client, logger *slog.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultMaxFailures
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = defaultBreakerOpen
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultBreakerWindow
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}

	endpoint := discordgo.EndpointGatewayBot
	if cfg.APIBase != "" {
		endpoint = strings.TrimRight(cfg.APIBase, "/") + "/gateway/bot"
	}

	maxFailures := cfg.MaxFailures
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "rest:gateway_bot",
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// A rejected token is the caller's problem, not an API outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrAuthInvalid)
		},
	})

	return &Resolver{
		endpoint: endpoint,
		client:   client,
		breaker:  breaker,
		logger:   logger,
	}
}

// ResolveGateway returns the gateway URL advertised for token.
func (r *Resolver) ResolveGateway(ctx context.Context, token string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "rest.resolve_gateway",
		trace.WithAttributes(tracer.StringAttr("endpoint", r.endpoint)))
	defer span.End()

	url, err := r.breaker.Execute(func() (string, error) {
		return r.fetch(ctx, token)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = domain.NewSubSystemError("resolver", "Resolver.ResolveGateway", domain.ErrCircuitOpen, err.Error())
		}
		tracer.RecordError(span, err)
		return "", err
	}
	tracer.SetOK(span)
	return url, nil
}

func (r *Resolver) fetch(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrEndpointResolve, err)
	}
	req.Header.Set("Authorization", "Bot "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "DiscordBot (botgate, "+discordgo.APIVersion+")")

	resp, err := r.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", domain.NewSubSystemError("resolver", "Resolver.fetch", domain.ErrTimeout, err.Error())
		}
		return "", fmt.Errorf("%w: %w", domain.ErrEndpointResolve, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", domain.ErrEndpointResolve, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", domain.NewSubSystemError("resolver", "Resolver.fetch", domain.ErrAuthInvalid, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %s", domain.ErrEndpointResolve, resp.Status)
	}

	var out gatewayBotResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: decode body: %w", domain.ErrEndpointResolve, err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrEndpointResolve)
	}
	return out.URL, nil
}

// State reports the breaker state for monitoring.
func (r *Resolver) State() gobreaker.State { return r.breaker.State() }

// StaticResolver always answers with a fixed URL.
type StaticResolver string

func (s StaticResolver) ResolveGateway(context.Context, string) (string, error) {
	return string(s), nil
}

var (
	_ domain.EndpointResolver = (*Resolver)(nil)
	_ domain.EndpointResolver = StaticResolver("")
)

// NewHTTPClient builds a pooled client for the REST API: few hosts,
// short requests, long-lived connections.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: timeout,
	}
}
