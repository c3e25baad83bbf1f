// Package api serves the viewer surface: the broadcast page and the
// websocket frame stream.
package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// A Server fans rendered frames out to connected viewers.
type Server struct {
	channel string
	listen  string
	log     zerolog.Logger

	mu      sync.Mutex
	viewers map[string]chan []byte

	upgrader websocket.Upgrader
}

// NewServer creates a Server for one channel.
func NewServer(channel string, listen string, log zerolog.Logger) *Server {
	s := new(Server)
	s.channel = channel
	s.listen = listen
	s.log = log.With().Str("component", "api").Logger()
	s.viewers = make(map[string]chan []byte)
	s.upgrader = websocket.Upgrader{
		// Overlay frames are public per channel; the backend owns auth.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return s
}

// Router builds the http routes.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/view/{channel}/broadcast", s.handleBroadcastPage)
	r.Get("/ws/view/{channel}", s.handleViewerSocket)
	return r
}

// Serve blocks listening for viewers.
func (s *Server) Serve() error {
	s.log.Info().Str("listen", s.listen).Msg("listening")
	return http.ListenAndServe(s.listen, s.Router())
}

// Broadcast fans the encoded frame out to every connected viewer. Slow
// viewers drop frames instead of stalling the render loop.
func (s *Server) Broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.viewers {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleViewerSocket(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "channel") != s.channel {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	id := uuid.NewString()
	frames := make(chan []byte, 8)
	s.mu.Lock()
	s.viewers[id] = frames
	s.mu.Unlock()
	s.log.Info().Str("viewer", id).Msg("viewer connected")

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropViewer(id)
				return
			}
		}
	}()

	for frame := range frames {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			break
		}
	}
	conn.Close()
	s.dropViewer(id)
	s.log.Info().Str("viewer", id).Msg("viewer disconnected")
}

// dropViewer unregisters a viewer; safe to call twice.
func (s *Server) dropViewer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.viewers[id]; ok {
		delete(s.viewers, id)
		close(ch)
	}
}

func (s *Server) handleBroadcastPage(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "channel") != s.channel {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, broadcastPage, s.channel)
}

const broadcastPage = `<!doctype html>
<html>
<body style="margin:0;background:transparent">
<img id="broadcast-canvas" style="width:100vw;height:100vh">
<script>
const img = document.getElementById('broadcast-canvas');
const proto = location.protocol === 'https:' ? 'wss' : 'ws';
const ws = new WebSocket(proto + '://' + location.host + '/ws/view/%s');
ws.binaryType = 'blob';
let previous;
ws.onmessage = (e) => {
    if (previous) {
        URL.revokeObjectURL(previous);
    }
    previous = URL.createObjectURL(e.data);
    img.src = previous;
};
</script>
</body>
</html>
`
