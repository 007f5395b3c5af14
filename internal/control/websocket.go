package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"ledgerbot/internal/logging"
	"ledgerbot/internal/relay"
)

const wsWriteTimeout = 10 * time.Second

var wsCounter atomic.Int64

// wsFrontEnd adapts one WebSocket connection to relay.FrontEnd.
type wsFrontEnd struct {
	name   string
	conn   *websocket.Conn
	logger *slog.Logger
}

func (f *wsFrontEnd) Name() string { return f.name }

func (f *wsFrontEnd) Send(ctx context.Context, ev relay.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, f.conn, ev)
}

func (f *wsFrontEnd) Close(reason string) {
	if err := f.conn.Close(websocket.StatusGoingAway, reason); err != nil {
		f.logger.Debug("websocket close", logging.String("frontend", f.name), logging.Error(err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.relay == nil {
		s.writeError(w, http.StatusServiceUnavailable, "relay unavailable")
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Any origin may connect.
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}

	fe := &wsFrontEnd{
		name:   fmt.Sprintf("websocket-%d@%s", wsCounter.Add(1), r.RemoteAddr),
		conn:   conn,
		logger: s.logger,
	}
	s.relay.Attach(fe)
	defer s.relay.Detach(fe)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					s.logger.Debug("websocket read ended", logging.String("frontend", fe.name), logging.Error(err))
				}
				conn.CloseNow()
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		var msg relay.Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("ignoring malformed websocket message", logging.String("frontend", fe.name), logging.Error(err))
			continue
		}
		s.relay.HandleInbound(fe, msg)
	}
}
