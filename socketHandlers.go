package main

import (
	"log"
	"net/http"
	"time"

	"audio-classification/shell"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
)

// statusHub relays session events to the browser tabs of that session. Each
// session is a socket.io room named by its id.
type statusHub struct {
	server *socketio.Server
}

type stateEvent struct {
	State shell.State `json:"state"`
	Step  shell.State `json:"step"`
}

func (h *statusHub) Status(sessionID string, msg shell.Message) {
	h.server.BroadcastToRoom("/", sessionID, "status", msg)
}

func (h *statusHub) StateChanged(sessionID string, state, step shell.State) {
	h.server.BroadcastToRoom("/", sessionID, "stateChanged", stateEvent{State: state, Step: step})
}

func newSocketServer() *socketio.Server {
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}
	return socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})
}

// registerSocketHandlers lets a client join its session room, either from the
// session cookie on the handshake or through an explicit "join" event.
func registerSocketHandlers(server *socketio.Server, sessions *shell.Manager) {
	join := func(socket socketio.Conn, id string) {
		s, ok := sessions.Get(id)
		if !ok {
			socket.Emit("sessionExpired", map[string]string{"message": "session not found, reload the page"})
			return
		}
		socket.Join(s.ID)
		snap := s.Snapshot()
		socket.Emit("stateChanged", stateEvent{State: snap.State, Step: snap.Step})
	}

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		if c, err := (&http.Request{Header: socket.RemoteHeader()}).Cookie(sessionCookie); err == nil {
			join(socket, c.Value)
		}
		return nil
	})

	server.OnEvent("/", "join", func(socket socketio.Conn, id string) {
		log.Printf("join received from %s\n", socket.ID())
		join(socket, id)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})
}
