package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"botgate/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveGateway(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"url":"wss://gateway.example","shards":1}`)
	}))
	defer srv.Close()

	r := NewResolver(Config{APIBase: srv.URL + "/api/v9/"}, srv.Client(), newTestLogger())
	url, err := r.ResolveGateway(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.example", url)
	assert.Equal(t, "Bot secret", gotAuth)
	assert.Equal(t, "/api/v9/gateway/bot", gotPath)
}

func TestResolveGatewayDefaultEndpoint(t *testing.T) {
	r := NewResolver(Config{}, nil, newTestLogger())
	assert.Equal(t, discordgo.EndpointGatewayBot, r.endpoint)
}

func TestResolveGatewayErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"401: Unauthorized"}`, domain.ErrAuthInvalid},
		{"server error", http.StatusBadGateway, ``, domain.ErrEndpointResolve},
		{"bad json", http.StatusOK, `{"url":`, domain.ErrEndpointResolve},
		{"empty url", http.StatusOK, `{"url":""}`, domain.ErrEndpointResolve},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			r := NewResolver(Config{APIBase: srv.URL}, srv.Client(), newTestLogger())
			_, err := r.ResolveGateway(context.Background(), "tok")
			assert.True(t, errors.Is(err, tt.want), "err = %v", err)
		})
	}
}

func TestResolveGatewayTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := srv.Client()
	client.Timeout = 50 * time.Millisecond
	r := NewResolver(Config{APIBase: srv.URL}, client, newTestLogger())
	_, err := r.ResolveGateway(context.Background(), "tok")
	require.Error(t, err)
	assert.Equal(t, domain.CodeResolveTimeout, domain.ErrorCodeOf(err))
}

func TestResolverBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewResolver(Config{APIBase: srv.URL, MaxFailures: 2, OpenFor: time.Hour}, srv.Client(), newTestLogger())
	for range 2 {
		_, err := r.ResolveGateway(context.Background(), "tok")
		require.True(t, errors.Is(err, domain.ErrEndpointResolve))
	}
	assert.Equal(t, gobreaker.StateOpen, r.State())

	_, err := r.ResolveGateway(context.Background(), "tok")
	assert.True(t, errors.Is(err, domain.ErrCircuitOpen))
	assert.Equal(t, int32(2), hits.Load())
}

func TestResolverAuthFailuresDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := NewResolver(Config{APIBase: srv.URL, MaxFailures: 1}, srv.Client(), newTestLogger())
	for range 3 {
		_, err := r.ResolveGateway(context.Background(), "bad")
		require.True(t, errors.Is(err, domain.ErrAuthInvalid))
	}
	assert.Equal(t, gobreaker.StateClosed, r.State())
}

func TestStaticResolver(t *testing.T) {
	url, err := StaticResolver("wss://fixed").ResolveGateway(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, "wss://fixed", url)
}
