package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGrace = time.Second

type gorillaSocket struct {
	ws *websocket.Conn
	// gorilla allows one concurrent writer per connection.
	writeMu sync.Mutex
}

func dialGorilla(ctx context.Context, url string, readLimit int64) (socket, error) {
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: DefaultDialTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(readLimit)
	return &gorillaSocket{ws: ws}, nil
}

// read ignores ctx: a blocked ReadMessage is released by close.
func (s *gorillaSocket) read(context.Context) ([]byte, error) {
	for {
		typ, data, err := s.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if typ == websocket.TextMessage {
			return data, nil
		}
	}
}

func (s *gorillaSocket) write(ctx context.Context, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	s.ws.SetWriteDeadline(deadline)
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

func (s *gorillaSocket) close(reason string) error {
	s.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	s.writeMu.Unlock()
	return s.ws.Close()
}
