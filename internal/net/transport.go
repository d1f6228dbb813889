package net

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"DrawPad/internal/autosave"
	"DrawPad/internal/board"
	"DrawPad/internal/export"
	"DrawPad/internal/state"
	"DrawPad/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 1 << 20
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrMissingPoint   = errors.New("pointer message without point")
)

// Message is a request from a browser client.
type Message struct {
	Type string `json:"type"`

	// open, resize
	ID     string `json:"id,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`

	// press, move, release, leave: device position and the on-screen box of
	// the drawing surface.
	Point  *state.Point `json:"point,omitempty"`
	Bounds state.Rect   `json:"bounds"`

	// tool
	Tool   string `json:"tool,omitempty"`
	Color  string `json:"color,omitempty"`
	Size   int    `json:"size,omitempty"`
	Bold   *bool  `json:"bold,omitempty"`
	Italic *bool  `json:"italic,omitempty"`

	// key, text, export
	Key   string `json:"key,omitempty"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

type ToolsReply struct {
	Tool   state.Tool `json:"tool"`
	Color  string     `json:"color"`
	Size   int        `json:"size"`
	Bold   bool       `json:"bold"`
	Italic bool       `json:"italic"`
}

type TextReply struct {
	Value  string      `json:"value"`
	Anchor state.Point `json:"anchor"`
}

// Reply is sent to the client after a request or when the server has news:
// a finished save or a drawing changed by another client.
type Reply struct {
	Type     string      `json:"type"`
	Session  string      `json:"session,omitempty"`
	ID       string      `json:"id,omitempty"`
	State    string      `json:"state,omitempty"`
	Revision uint64      `json:"revision,omitempty"`
	Tools    *ToolsReply `json:"tools,omitempty"`
	Text     *TextReply  `json:"text,omitempty"`
	Image    string      `json:"image,omitempty"`
	PDF      []byte      `json:"pdf,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type ServerOption func(*Server)

func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithSaveDelay(d time.Duration) ServerOption {
	return func(s *Server) { s.saveDelay = d }
}

// Server hosts one board per WebSocket connection. Boards share the store;
// a save by one client repaints every other client that has the same
// drawing open.
type Server struct {
	store     store.Store
	log       *slog.Logger
	saveDelay time.Duration
	upgrader  websocket.Upgrader

	mu    sync.RWMutex
	peers map[string]*Peer
}

// Peer is one connected client and the board it drives.
type Peer struct {
	ID    string
	conn  *websocket.Conn
	board *board.Board
	log   *slog.Logger

	writeMu sync.Mutex
}

func NewServer(st store.Store, opts ...ServerOption) *Server {
	s := &Server{
		store:     st,
		log:       slog.Default(),
		saveDelay: autosave.DefaultDelay,
		peers:     make(map[string]*Peer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The server is meant for the local network; any page may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "transport")
	return s
}

// Handler routes the WebSocket endpoint and a PDF download per note.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("GET /notes/{id}/pdf", s.servePDF)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "ok %d\n", s.Peers())
	})
	return mux
}

// ListenAndServe serves until ctx is cancelled, then closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close(shutdownCtx)
	return err
}

// Peers is the number of connected clients.
func (s *Server) Peers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.peers)
}

// Close disconnects every client. Their unsaved drawings are flushed as the
// sessions end.
func (s *Server) Close(ctx context.Context) {
	s.mu.RLock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		p.writeMu.Lock()
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		p.writeMu.Unlock()
		p.conn.Close()
	}
}

func (s *Server) add(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID] = p
	p.log.Info("client connected", "addr", p.conn.RemoteAddr().String())
}

func (s *Server) remove(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p.ID)
	p.log.Info("client disconnected")
}

// broadcast repaints every other client that has the saved drawing open.
// A client whose gesture or pending save was dropped is told so.
func (s *Server) broadcast(from *Peer, snap autosave.Snapshot) {
	s.mu.RLock()
	var targets []*Peer
	for _, p := range s.peers {
		if p != from && p.board.DocumentID() == snap.ID {
			targets = append(targets, p)
		}
	}
	s.mu.RUnlock()

	for _, p := range targets {
		discarded, err := p.board.Reload(snap.Image)
		if err != nil {
			p.log.Warn("reload failed", "id", snap.ID, "err", err)
		}
		p.send(Reply{Type: "snapshot", ID: snap.ID, Image: snap.Image})
		if discarded {
			p.send(Reply{Type: "error", ID: snap.ID, Error: board.ErrDiscarded.Error()})
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed", "err", err)
		return
	}

	id := uuid.NewString()
	p := &Peer{ID: id, conn: conn, log: s.log.With("peer", id)}
	p.board = board.New(s.store,
		board.WithLogger(p.log),
		board.WithSaveDelay(s.saveDelay),
		board.OnSaved(func(snap autosave.Snapshot) {
			p.send(Reply{Type: "saved", ID: snap.ID, Revision: snap.Revision})
			s.broadcast(p, snap)
		}),
		board.OnSaveError(func(snap autosave.Snapshot, err error) {
			p.send(Reply{Type: "error", ID: snap.ID, Error: err.Error()})
		}),
	)

	s.add(p)
	defer func() {
		s.remove(p)
		if err := p.board.Shutdown(context.Background()); err != nil {
			p.log.Warn("final save failed", "err", err)
		}
		conn.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go p.keepAlive(done)

	hello := p.stateReply()
	hello.Session = id
	p.send(hello)
	p.readLoop(r.Context())
}

func (s *Server) servePDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	serialized, err := s.store.Load(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidID):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := export.SerializedPDF(&buf, serialized, id); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".pdf"))
	w.Write(buf.Bytes())
}

func (p *Peer) readLoop(ctx context.Context) {
	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := p.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log.Warn("read failed", "err", err)
			}
			return
		}
		reply, err := p.handle(ctx, msg)
		if err != nil {
			p.log.Debug("request failed", "type", msg.Type, "err", err)
			p.send(Reply{Type: "error", ID: p.board.DocumentID(), Error: err.Error()})
			continue
		}
		if reply != nil {
			p.send(*reply)
		}
	}
}

func (p *Peer) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.writeMu.Lock()
			err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			p.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (p *Peer) send(r Reply) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(r); err != nil {
		p.log.Debug("write failed", "type", r.Type, "err", err)
	}
}

// handle applies one request to the board. A nil reply means nothing is
// sent back, which is the case for pointer motion.
func (p *Peer) handle(ctx context.Context, msg Message) (*Reply, error) {
	b := p.board
	switch msg.Type {
	case "open":
		if err := b.Open(ctx, msg.ID, msg.Width, msg.Height); err != nil {
			return nil, err
		}
	case "tool":
		if err := p.applyTools(msg); err != nil {
			return nil, err
		}
	case "press", "move", "release", "leave":
		if msg.Point == nil {
			return nil, ErrMissingPoint
		}
		pt := board.ToLocal(*msg.Point, msg.Bounds)
		switch msg.Type {
		case "press":
			b.Press(pt)
		case "move":
			b.Move(pt)
			return nil, nil
		case "release":
			b.Release(pt)
		case "leave":
			b.Leave(pt)
		}
	case "key":
		p.applyKey(msg.Key)
	case "text":
		b.SetText(msg.Text)
	case "confirm":
		if _, err := b.ConfirmText(); err != nil {
			return nil, err
		}
	case "cancel":
		b.CancelText()
	case "clear":
		if err := b.Clear(ctx); err != nil {
			return nil, err
		}
	case "save":
		if err := b.Save(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	case "resize":
		if err := b.Resize(msg.Width, msg.Height); err != nil {
			return nil, err
		}
	case "snapshot":
		img, err := b.Snapshot()
		if err != nil {
			return nil, err
		}
		return &Reply{Type: "snapshot", ID: b.DocumentID(), Image: img}, nil
	case "export":
		img := b.Image()
		if img == nil {
			return nil, board.ErrNoDocument
		}
		title := msg.Title
		if title == "" {
			title = b.DocumentID()
		}
		var buf bytes.Buffer
		if err := export.PDF(&buf, img, title); err != nil {
			return nil, err
		}
		return &Reply{Type: "pdf", ID: b.DocumentID(), PDF: buf.Bytes()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
	r := p.stateReply()
	return &r, nil
}

func (p *Peer) applyTools(msg Message) error {
	ts := p.board.Tools()
	if msg.Tool != "" {
		t, err := state.ParseTool(msg.Tool)
		if err != nil {
			return err
		}
		ts.Tool = t
	}
	if msg.Color != "" {
		c, err := state.ParseColor(msg.Color)
		if err != nil {
			return err
		}
		ts.Color = c
	}
	if msg.Size != 0 {
		ts.Width = msg.Size
	}
	if msg.Bold != nil {
		ts.TextStyle.Bold = *msg.Bold
	}
	if msg.Italic != nil {
		ts.TextStyle.Italic = *msg.Italic
	}
	return p.board.SetTools(ts)
}

// applyKey maps browser key names onto text overlay edits. Printable keys
// arrive as the character itself.
func (p *Peer) applyKey(key string) {
	switch key {
	case "Enter":
		p.board.ConfirmText()
	case "Escape":
		p.board.CancelText()
	case "Backspace":
		p.board.Backspace()
	default:
		if strings.Contains(key, "\n") || len([]rune(key)) != 1 {
			return
		}
		p.board.TypeRune([]rune(key)[0])
	}
}

func (p *Peer) stateReply() Reply {
	b := p.board
	ts := b.Tools()
	r := Reply{
		Type:     "state",
		ID:       b.DocumentID(),
		State:    b.State().String(),
		Revision: b.Revision(),
		Tools: &ToolsReply{
			Tool:   ts.Tool,
			Color:  state.FormatColor(ts.Color),
			Size:   ts.Width,
			Bold:   ts.TextStyle.Bold,
			Italic: ts.TextStyle.Italic,
		},
	}
	if s, anchor, ok := b.Text(); ok {
		r.Text = &TextReply{Value: s, Anchor: anchor}
	}
	return r
}
