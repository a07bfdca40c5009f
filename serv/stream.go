package serv

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dosco/graphjin/populate/v3/core"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

const streamWriteWait = 10 * time.Second

// streamHandler upgrades to a websocket, reads one query message and then
// sends every reconciled document as its own text message. The server closes
// the socket with a normal closure once the cursor is exhausted.
// GET /api/v1/stream/{schema}
func (s1 *HttpService) streamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := s1.Load().(*service)
		schema := chi.URLParam(r, "schema")

		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(s.conf.AllowedOrigins),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Warnf("stream upgrade: %s", err)
			return
		}
		defer conn.Close()

		conn.SetReadLimit(maxBodySize)

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		ctx := r.Context()
		n, err := s.stream(ctx, conn, schema, msg)
		if err != nil {
			code := websocket.CloseInternalServerErr
			if core.IsRequestError(err) {
				code = websocket.ClosePolicyViolation
			}
			s.zlog.Debug("stream failed",
				zap.String("request-id", requestIDFrom(ctx)),
				zap.String("schema", schema),
				zap.Error(err))
			closeStream(conn, code, err.Error())
			return
		}

		s.zlog.Debug("stream complete",
			zap.String("request-id", requestIDFrom(ctx)),
			zap.String("schema", schema),
			zap.Int("documents", n))
		closeStream(conn, websocket.CloseNormalClosure, "done")
	})
}

func (s *service) stream(ctx context.Context, conn *websocket.Conn, schema string, msg []byte) (int, error) {
	q, err := core.ParseQueryJSON(msg)
	if err != nil {
		return 0, core.WithSchema(err, schema)
	}

	cur, err := s.engine.Stream(ctx, schema, q)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx) //nolint:errcheck

	n := 0
	for cur.Next(ctx) {
		b, err := bson.MarshalExtJSON(cur.Doc(), false, false)
		if err != nil {
			return n, err
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait)) //nolint:errcheck
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return n, err
		}
		n++
	}
	return n, cur.Err()
}

func closeStream(conn *websocket.Conn, code int, text string) {
	// close frame payloads are limited to 125 bytes
	if len(text) > 123 {
		text = text[:123]
	}
	msg := websocket.FormatCloseMessage(code, text)
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait)) //nolint:errcheck
}

// checkOrigin allows same-origin requests, plus any origin in allowed.
// A "*" entry allows every origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	}
}
