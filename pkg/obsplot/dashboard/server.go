// Package dashboard serves the rendered widget over HTTP and pushes every
// re-render to connected browsers over a websocket.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxSpecBytes = 8 << 20
	pongWait     = 60 * time.Second
	pingPeriod   = 30 * time.Second
	writeWait    = 10 * time.Second
)

type RenderUpdate struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	HTML      string    `json:"html"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

type Server struct {
	port         int
	server       *http.Server
	upgrader     websocket.Upgrader
	clients      map[*client]bool
	clientsMutex sync.RWMutex
	pending      int // slots reserved by upgrades in flight
	maxClients   int
	renders      chan RenderUpdate
	sendMutex    sync.Mutex
	stop         chan struct{}
	broadcasting bool
	mutex        sync.RWMutex
	recent       RenderUpdate
	sequence     int64

	getSpec    func() json.RawMessage
	setSpec    func([]byte) error
	getHTML    func() string
	getStats   func() interface{}
	getHistory func() interface{}
	middleware func(http.HandlerFunc) http.HandlerFunc
}

func NewServer(port, maxClients int) *Server {
	s := &Server{
		port:       port,
		clients:    make(map[*client]bool),
		maxClients: maxClients,
		renders:    make(chan RenderUpdate, 16),
		stop:       make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin:     s.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return s
}

// checkOrigin allows requests without an Origin header, from localhost on the
// configured port, and from the host being served.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if origin == fmt.Sprintf("http://localhost:%d", s.port) ||
		origin == fmt.Sprintf("http://127.0.0.1:%d", s.port) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

func (s *Server) SetSpecProvider(get func() json.RawMessage, set func([]byte) error) {
	s.getSpec = get
	s.setSpec = set
}

func (s *Server) SetRenderProvider(getHTML func() string) {
	s.getHTML = getHTML
}

func (s *Server) SetStatsProvider(getStats, getHistory func() interface{}) {
	s.getStats = getStats
	s.getHistory = getHistory
}

// SetMiddleware wraps every route, e.g. with request metrics.
func (s *Server) SetMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) {
	s.middleware = mw
}

// Handler returns the dashboard routes and starts the broadcaster.
func (s *Server) Handler() http.Handler {
	s.mutex.Lock()
	if !s.broadcasting {
		s.broadcasting = true
		go s.broadcast(s.stop)
	}
	s.mutex.Unlock()

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		if s.middleware == nil {
			return h
		}
		return s.middleware(h)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", wrap(s.handleIndex))
	mux.HandleFunc("/api/spec", wrap(s.handleSpec))
	mux.HandleFunc("/api/render", wrap(s.handleRender))
	mux.HandleFunc("/api/stats", wrap(s.handleStats))
	mux.HandleFunc("/api/history", wrap(s.handleHistory))
	mux.HandleFunc("/ws", wrap(s.handleWebSocket))
	return mux
}

// Start serves until Stop is called; it then returns http.ErrServerClosed.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return err
	}
	return s.serve(ln)
}

// StartBackground binds the port and serves on a new goroutine. It returns
// the bound address, which differs from the configured one when port is 0.
func (s *Server) StartBackground() (net.Addr, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return nil, err
	}
	srv := s.attach()
	go func() {
		log.Printf("[dashboard] listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !IsClosed(err) {
			log.Printf("[dashboard] serve: %v", err)
		}
	}()
	return ln.Addr(), nil
}

func (s *Server) serve(ln net.Listener) error {
	srv := s.attach()
	log.Printf("[dashboard] listening on %s", ln.Addr())
	return srv.Serve(ln)
}

func (s *Server) attach() *http.Server {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mutex.Lock()
	s.server = srv
	s.mutex.Unlock()
	return srv
}

// Stop disconnects clients and shuts the listener down. The server may be
// started again afterwards.
func (s *Server) Stop() error {
	s.mutex.Lock()
	close(s.stop)
	s.stop = make(chan struct{})
	s.broadcasting = false
	srv := s.server
	s.server = nil
	s.mutex.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// SendRender queues html for all clients. When the queue is full the oldest
// queued update is discarded, so the latest render always goes out.
func (s *Server) SendRender(html string) {
	s.sendMutex.Lock()
	defer s.sendMutex.Unlock()

	s.mutex.Lock()
	s.sequence++
	update := RenderUpdate{Sequence: s.sequence, Timestamp: time.Now(), HTML: html}
	s.mutex.Unlock()

	for {
		select {
		case s.renders <- update:
			return
		default:
		}
		select {
		case <-s.renders:
		default:
		}
	}
}

func (s *Server) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// reserveClient claims a client slot, counting upgrades still in flight.
func (s *Server) reserveClient() bool {
	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	if len(s.clients)+s.pending >= s.maxClients {
		return false
	}
	s.pending++
	return true
}

func (s *Server) currentHTML() string {
	if s.getHTML != nil {
		return s.getHTML()
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.recent.HTML
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>obsplot</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
.ipyobsplot-error { color: #b00020; white-space: pre-wrap; }
#status { font-size: 12px; color: #888; }
</style>
</head>
<body>
<div id="status">connecting</div>
<div id="widget">{{.}}</div>
<script>
(function() {
  var status = document.getElementById('status');
  var widget = document.getElementById('widget');
  function connect() {
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var ws = new WebSocket(proto + location.host + '/ws');
    ws.onopen = function() { status.textContent = 'live'; };
    ws.onclose = function() {
      status.textContent = 'disconnected, retrying';
      setTimeout(connect, 2000);
    };
    ws.onmessage = function(ev) {
      var msg = JSON.parse(ev.data);
      if (msg.type === 'render') {
        widget.innerHTML = msg.data.html;
      }
    };
  }
  connect();
})();
</script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, template.HTML(s.currentHTML())); err != nil {
		log.Printf("[dashboard] index: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) handleSpec(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var spec json.RawMessage
		if s.getSpec != nil {
			spec = s.getSpec()
		}
		if spec == nil {
			spec = json.RawMessage("null")
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"data":   spec,
		})

	case http.MethodPost, http.MethodPut:
		if s.setSpec == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "error",
				"error":  "spec updates are not enabled",
			})
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSpecBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		if !json.Valid(body) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"status": "error",
				"error":  "request body is not valid JSON",
			})
			return
		}
		if err := s.setSpec(body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})

	default:
		w.Header().Set("Allow", "GET, POST, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, s.currentHTML())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats interface{} = map[string]interface{}{}
	if s.getStats != nil {
		stats = s.getStats()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": s.ClientCount(),
		"data":    stats,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	var history interface{} = []interface{}{}
	if s.getHistory != nil {
		history = s.getHistory()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"data":   history,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.reserveClient() {
		http.Error(w, "Maximum clients reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.clientsMutex.Lock()
		s.pending--
		s.clientsMutex.Unlock()
		log.Printf("[dashboard] websocket upgrade: %v", err)
		return
	}
	s.mutex.RLock()
	stop := s.stop
	s.mutex.RUnlock()
	c := &client{conn: conn}
	defer conn.Close()

	s.clientsMutex.Lock()
	s.pending--
	s.clients[c] = true
	s.clientsMutex.Unlock()
	defer func() {
		s.clientsMutex.Lock()
		delete(s.clients, c)
		s.clientsMutex.Unlock()
	}()

	// New clients get the current render straight away.
	if data, err := renderMessage(RenderUpdate{Timestamp: time.Now(), HTML: s.currentHTML()}); err == nil {
		if err := c.write(websocket.TextMessage, data); err != nil {
			return
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[dashboard] websocket read: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-stop:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func renderMessage(update RenderUpdate) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type": "render",
		"data": update,
	})
}

func (s *Server) broadcast(stop <-chan struct{}) {
	for {
		select {
		case update := <-s.renders:
			s.mutex.Lock()
			s.recent = update
			s.mutex.Unlock()

			data, err := renderMessage(update)
			if err != nil {
				log.Printf("[dashboard] marshal render: %v", err)
				continue
			}
			s.broadcastMessage(data)
		case <-stop:
			return
		}
	}
}

func (s *Server) broadcastMessage(data []byte) {
	s.clientsMutex.RLock()
	if len(s.clients) == 0 {
		s.clientsMutex.RUnlock()
		return
	}
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMutex.RUnlock()

	var failed []*client
	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			c.conn.Close()
			failed = append(failed, c)
		}
	}
	if len(failed) > 0 {
		s.clientsMutex.Lock()
		for _, c := range failed {
			delete(s.clients, c)
		}
		s.clientsMutex.Unlock()
	}
}

// IsClosed reports whether err is the error Start returns after Stop.
func IsClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
