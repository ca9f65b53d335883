package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
)

// closeUnauthorized, closeSubscriberAlreadyExists and
// closeTooManyInitRequests are the graphql-ws close codes this transport
// uses outside the standard 1000-1015 range.
const (
	closeUnauthorized          = 4401
	closeSubscriberAlreadyExists = 4409
	closeTooManyInitRequests   = 4429
)

var upgrader = websocket.Upgrader{
	Subprotocols:    []string{"graphql-transport-ws"},
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// serveWebSocket implements the graphql-transport-ws handshake and message
// loop: connection_init -> connection_ack, subscribe -> error/complete,
// ping/pong keepalive. A subscribe reusing the id of a still-active
// subscription closes the connection with 4409; each subscribe is handled
// to completion before the next message is read.
func (g *Gateway) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	initialized := false
	activeSubscription := ""

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "connection_init":
			if initialized {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(closeTooManyInitRequests, "too many initialisation requests"), nil)
				return
			}
			initialized = true
			_ = conn.WriteJSON(wsMessage{Type: "connection_ack"})
		case "ping":
			_ = conn.WriteJSON(wsMessage{Type: "pong"})
		case "subscribe":
			if !initialized {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(closeUnauthorized, "unauthorized"), nil)
				return
			}
			if activeSubscription != "" && activeSubscription == msg.ID {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(closeSubscriberAlreadyExists, "subscriber already exists for "+msg.ID), nil)
				return
			}
			activeSubscription = msg.ID
			g.handleSubscribe(conn, msg)
			// handleSubscribe always ends with an error or complete message.
			activeSubscription = ""
		case "complete":
			if msg.ID == activeSubscription {
				activeSubscription = ""
			}
		}
	}
}

// handleSubscribe decodes and binds one subscribe payload, replying with an
// "error" message if either step fails and with "complete" otherwise. The
// bound operation is not planned or executed, and no "next" message is
// sent.
func (g *Gateway) handleSubscribe(conn *websocket.Conn, msg wsMessage) {
	var req graphQLRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		_ = conn.WriteJSON(wsMessage{ID: msg.ID, Type: "error", Payload: mustJSON([]any{map[string]any{"message": err.Error()}})})
		return
	}

	bo, err := g.bindOperation(req)
	if err != nil {
		_ = conn.WriteJSON(wsMessage{ID: msg.ID, Type: "error", Payload: mustJSON([]any{map[string]any{"message": err.Error()}})})
		return
	}
	_ = bo

	_ = conn.WriteJSON(wsMessage{ID: msg.ID, Type: "complete"})
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
