package transport

import (
	"context"
	"errors"

	"nhooyr.io/websocket"
)

type nhooyrSocket struct {
	ws *websocket.Conn
}

func dialNhooyr(ctx context.Context, url string, readLimit int64) (socket, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(readLimit)
	return &nhooyrSocket{ws: ws}, nil
}

func (s *nhooyrSocket) read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := s.ws.Read(ctx)
		if err != nil {
			return nil, err
		}
		// The gateway only speaks JSON text; binary frames would be
		// compressed payloads, which are never requested.
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

// write is safe for concurrent use: nhooyr serializes writers itself.
func (s *nhooyrSocket) write(ctx context.Context, payload []byte) error {
	return s.ws.Write(ctx, websocket.MessageText, payload)
}

func (s *nhooyrSocket) close(reason string) error {
	err := s.ws.Close(websocket.StatusNormalClosure, reason)
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return nil
	}
	return err
}
