package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"botgate/internal/domain"
	"botgate/pkg/discord"
)

// SessionService is the part of the session manager the control API
// drives.
type SessionService interface {
	Connect(ctx context.Context, id domain.SessionID, owner string) error
	Disconnect(ctx context.Context, id domain.SessionID) error
	Send(ctx context.Context, id domain.SessionID, ev discord.OutboundEvent) error
	Status(id domain.SessionID) (domain.SessionStatus, error)
	Sessions() []domain.SessionStatus
}

// Bot is a bot declared in configuration, addressable by name so that
// clients need not handle its token.
type Bot struct {
	ID    domain.SessionID
	Owner string
}

// HandlerDeps holds what the RPC handlers need.
type HandlerDeps struct {
	Sessions SessionService
	Bots     map[string]Bot
}

// sessionRef identifies a bot either by configured name or by token and
// intents. Intents are a bitmask number or a list of intent names.
type sessionRef struct {
	Bot     string          `json:"bot,omitempty"`
	Token   string          `json:"token,omitempty"`
	Intents json.RawMessage `json:"intents,omitempty"`
}

type connectRequest struct {
	sessionRef
	Owner string `json:"owner,omitempty"`
}

type sendRequest struct {
	sessionRef
	Event json.RawMessage `json:"event"`
}

// SessionResult is returned by session.connect.
type SessionResult struct {
	Fingerprint string           `json:"fingerprint"`
	Channel     domain.ChannelID `json:"channel"`
	Owner       string           `json:"owner"`
}

// RegisterHandlers registers the session RPCs on s.
func RegisterHandlers(s *Server, deps HandlerDeps) {
	s.RegisterHandler("session.connect", requirePerm(domain.PermSessionConnect, connectHandler(deps)))
	s.RegisterHandler("session.disconnect", requirePerm(domain.PermSessionConnect, disconnectHandler(deps)))
	s.RegisterHandler("session.send", requirePerm(domain.PermSessionSend, sendHandler(deps)))
	s.RegisterHandler("session.list", requirePerm(domain.PermSessionView, listHandler(deps)))
}

func requirePerm(perm domain.Permission, handler RPCHandler) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		if !client.Can(perm) {
			return nil, domain.NewDomainError("control", domain.ErrForbidden, string(perm))
		}
		return handler(ctx, client, payload)
	}
}

func connectHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req connectRequest
		if err := unmarshalPayload(payload, &req); err != nil {
			return nil, err
		}
		id, owner, err := deps.resolve(req.sessionRef)
		if err != nil {
			return nil, err
		}
		if req.Owner != "" {
			owner = req.Owner
		}
		if owner == "" {
			owner = client.Name
		}
		if owner != client.Name && !client.Can(domain.PermSessionAny) {
			return nil, domain.NewDomainError("session.connect", domain.ErrForbidden, "owner "+owner)
		}

		if err := deps.Sessions.Connect(ctx, id, owner); err != nil {
			return nil, err
		}
		st, err := deps.Sessions.Status(id)
		if err != nil {
			return nil, err
		}
		return json.Marshal(SessionResult{Fingerprint: st.Fingerprint, Channel: st.Channel, Owner: st.Owner})
	}
}

func disconnectHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var ref sessionRef
		if err := unmarshalPayload(payload, &ref); err != nil {
			return nil, err
		}
		id, err := deps.owned(client, ref)
		if err != nil {
			return nil, err
		}
		if err := deps.Sessions.Disconnect(ctx, id); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"status": "disconnected"})
	}
}

func sendHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req sendRequest
		if err := unmarshalPayload(payload, &req); err != nil {
			return nil, err
		}
		if len(req.Event) == 0 {
			return nil, domain.NewDomainError("session.send", domain.ErrRPCInvalidPayload, "event is required")
		}
		ev, err := discord.DecodeOutbound(req.Event)
		if err != nil {
			return nil, err
		}
		id, err := deps.owned(client, req.sessionRef)
		if err != nil {
			return nil, err
		}
		if err := deps.Sessions.Send(ctx, id, ev); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"status": "sent"})
	}
}

func listHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, client *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		all := deps.Sessions.Sessions()
		out := make([]domain.SessionStatus, 0, len(all))
		for _, st := range all {
			if st.Owner == client.Name || client.Can(domain.PermSessionAny) {
				out = append(out, st)
			}
		}
		return json.Marshal(out)
	}
}

// resolve maps a reference to a session id and its configured owner.
func (deps HandlerDeps) resolve(ref sessionRef) (domain.SessionID, string, error) {
	if ref.Bot != "" {
		bot, ok := deps.Bots[ref.Bot]
		if !ok {
			return domain.SessionID{}, "", domain.NewSubSystemError("bots", "control.resolve", domain.ErrNotFound, ref.Bot)
		}
		return bot.ID, bot.Owner, nil
	}
	if ref.Token == "" {
		return domain.SessionID{}, "", domain.NewDomainError("control.resolve", domain.ErrRPCInvalidPayload, "bot or token is required")
	}
	intents, err := parseIntentsField(ref.Intents)
	if err != nil {
		return domain.SessionID{}, "", domain.NewDomainError("control.resolve", domain.ErrRPCInvalidPayload, err.Error())
	}
	return domain.SessionID{Token: ref.Token, Intents: intents}, "", nil
}

// owned resolves ref and checks that client may act on the session.
func (deps HandlerDeps) owned(client *ClientInfo, ref sessionRef) (domain.SessionID, error) {
	id, _, err := deps.resolve(ref)
	if err != nil {
		return id, err
	}
	st, err := deps.Sessions.Status(id)
	if err != nil {
		return id, err
	}
	if st.Owner != client.Name && !client.Can(domain.PermSessionAny) {
		return id, domain.NewDomainError("control.owned", domain.ErrForbidden, st.Fingerprint)
	}
	return id, nil
}

func parseIntentsField(raw json.RawMessage) (uint64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	if raw[0] == '[' {
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return 0, fmt.Errorf("intents: %w", err)
		}
		return discord.ParseIntents(names)
	}
	var mask uint64
	if err := json.Unmarshal(raw, &mask); err != nil {
		return 0, fmt.Errorf("intents must be a bitmask or a list of names")
	}
	return mask, nil
}

func unmarshalPayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return domain.NewDomainError("control", domain.ErrRPCInvalidPayload, "empty payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return domain.NewDomainError("control", domain.ErrRPCInvalidPayload, err.Error())
	}
	return nil
}
