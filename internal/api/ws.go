package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/alturos-health/scheduling/internal/dispatch"
)

// inboundFrame is what a connected client may send.
type inboundFrame struct {
	Type           string `json:"type"` // "mark_read", "get_notifications", "ping"
	NotificationID string `json:"notification_id,omitempty"`
}

type ackFrame struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
	ID   string `json:"id,omitempty"`
}

// wsConn adapts a websocket connection to the dispatch Conn interface.
type wsConn struct {
	ws *websocket.Conn
}

func (c wsConn) Send(v any) error { return websocket.JSON.Send(c.ws, v) }
func (c wsConn) Close() error     { return c.ws.Close() }

// notificationsWebSocketHandler upgrades the request and registers the
// caller as a live session. The router pushes the current unread count
// on register and every new notification afterwards; the read loop
// serves mark_read and get_notifications requests.
func notificationsWebSocketHandler(router *dispatch.Router, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := callerIdentity(w, r)
		if !ok {
			return
		}

		websocket.Handler(func(conn *websocket.Conn) {
			sess, err := router.Register(r.Context(), actor.UserID, wsConn{ws: conn})
			if err != nil {
				log.Warn("register live session", zap.Error(err))
				_ = conn.Close()
				return
			}
			defer router.Unregister(sess)

			for {
				var in inboundFrame
				if err := websocket.JSON.Receive(conn, &in); err != nil {
					return
				}

				switch in.Type {
				case "mark_read":
					handleWSMarkRead(r, router, sess, in)
				case "get_notifications":
					items, err := router.Recent(r.Context(), actor.UserID, 20)
					if err != nil {
						log.Warn("list recent notifications", zap.Error(err))
						continue
					}
					sess.Enqueue(dispatch.NotificationListFrame{Type: "notifications_list", Notifications: items})
				case "ping":
					sess.Enqueue(ackFrame{Type: "pong", OK: true})
				}
			}
		}).ServeHTTP(w, r)
	}
}

func handleWSMarkRead(r *http.Request, router *dispatch.Router, sess *dispatch.Session, in inboundFrame) {
	id, err := uuid.Parse(in.NotificationID)
	if err != nil {
		sess.Enqueue(ackFrame{Type: "mark_read_ack", OK: false, ID: in.NotificationID})
		return
	}
	if err := router.MarkRead(r.Context(), sess.Recipient(), id); err != nil {
		sess.Enqueue(ackFrame{Type: "mark_read_ack", OK: false, ID: in.NotificationID})
		return
	}
	sess.Enqueue(ackFrame{Type: "mark_read_ack", OK: true, ID: in.NotificationID})
}
