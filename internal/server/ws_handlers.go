package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader upgrades HTTP requests to WebSockets.
//
// CheckOrigin returns true: this gateway is meant to run on a trusted LAN
// segment alongside the controller it talks to, not exposed to the public
// internet.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWS upgrades the connection and registers it with the hub so it
// receives the hub's broadcasts (parameter updates after a write or
// refresh, and health snapshots). This endpoint does not
// handle incoming messages; the read loop only exists to detect
// disconnects and trigger cleanup.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	client := s.hub.Add(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.Remove(client)
			return
		}
	}
}
