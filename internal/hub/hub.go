// Package hub implements the chat core: the subscriber set, event
// dispatch, and moderation state. All shared state is owned by a single
// hub goroutine; connection events and moderation commands are funneled
// through channels so compound operations stay serialized and every
// client observes messages in append order.
package hub

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"chatrelay/internal/moderation"
	"chatrelay/internal/store"
	"chatrelay/pkg/types"
)

// Options tune per-deployment behavior.
type Options struct {
	// MessageMaxLen caps message bodies in runes. Non-positive means the
	// default of 1000.
	MessageMaxLen int
	// AnnounceLeave controls whether a system message is broadcast when a
	// joined user disconnects.
	AnnounceLeave bool
}

const defaultMessageMaxLen = 1000

// Stats is a point-in-time view of hub load, reported by /health.
type Stats struct {
	Connections int `json:"connections"`
	Messages    int `json:"messages"`
}

type inboundCtx struct {
	session *Session
	event   types.Inbound
}

type commandKind int

const (
	cmdBan commandKind = iota
	cmdUnban
	cmdDelete
)

type command struct {
	kind  commandKind
	arg   string
	reply chan error
}

// Hub coordinates connection lifecycle events and moderation commands
// against the shared MessageStore, BanList and RateLimiter.
type Hub struct {
	register   chan *Session
	unregister chan *Session
	inbound    chan inboundCtx
	commands   chan command
	shutdown   chan struct{}

	sessions map[*Session]bool // hub goroutine only

	store   *store.MessageStore
	bans    *moderation.BanList
	limiter *moderation.RateLimiter
	opts    Options

	mu        sync.RWMutex
	running   bool
	connCount int
}

// New creates a hub owning the given state. Nothing runs until Start.
func New(st *store.MessageStore, bans *moderation.BanList, limiter *moderation.RateLimiter, opts Options) *Hub {
	if opts.MessageMaxLen <= 0 {
		opts.MessageMaxLen = defaultMessageMaxLen
	}
	return &Hub{
		register:   make(chan *Session, 64),
		unregister: make(chan *Session, 64),
		inbound:    make(chan inboundCtx, 256),
		commands:   make(chan command, 16),
		shutdown:   make(chan struct{}),
		sessions:   make(map[*Session]bool),
		store:      st,
		bans:       bans,
		limiter:    limiter,
		opts:       opts,
	}
}

// Start launches the hub goroutine.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.mu.Unlock()

	go h.run(ctx)
	return nil
}

// Stop shuts the hub goroutine down. Pending events are discarded.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	select {
	case <-h.shutdown:
	default:
		close(h.shutdown)
	}
	return nil
}

// Connect registers a transport connection and returns its session. The
// current history snapshot is sent to this connection only.
func (h *Hub) Connect(conn Conn) (*Session, error) {
	if !h.isRunning() {
		return nil, ErrHubNotRunning
	}

	s := &Session{conn: conn}
	select {
	case h.register <- s:
		return s, nil
	default:
		return nil, ErrHubBusy
	}
}

// Disconnect removes a session. Safe to call more than once.
func (h *Hub) Disconnect(s *Session) {
	if s == nil || !h.isRunning() {
		return
	}
	select {
	case h.unregister <- s:
	default:
		// Queue full during shutdown; the session map dies with the hub.
	}
}

// Inbound queues a decoded client event for dispatch. Events are dropped
// when the hub is overloaded; the transport is best-effort.
func (h *Hub) Inbound(s *Session, ev types.Inbound) {
	if s == nil || !h.isRunning() {
		return
	}
	select {
	case h.inbound <- inboundCtx{session: s, event: ev}:
	default:
		log.Printf("[hub] inbound queue full, dropping %q event", ev.Type)
	}
}

// Ban adds a user to the ban list and announces it.
func (h *Hub) Ban(ctx context.Context, user string) error {
	return h.execute(ctx, command{kind: cmdBan, arg: user, reply: make(chan error, 1)})
}

// Unban removes a user from the ban list and announces it.
func (h *Hub) Unban(ctx context.Context, user string) error {
	return h.execute(ctx, command{kind: cmdUnban, arg: user, reply: make(chan error, 1)})
}

// Delete removes a message by ID, broadcasts a retraction notice and a
// confirmation. Returns ErrMessageNotFound for unknown IDs.
func (h *Hub) Delete(ctx context.Context, id string) error {
	return h.execute(ctx, command{kind: cmdDelete, arg: id, reply: make(chan error, 1)})
}

// Stats reports current connection and message counts.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Connections: h.connCount, Messages: h.store.Len()}
}

func (h *Hub) isRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// execute runs a moderation command on the hub goroutine and waits for
// the outcome, so HTTP callers observe the same ordering as chat events.
func (h *Hub) execute(ctx context.Context, cmd command) error {
	if !h.isRunning() {
		return ErrHubNotRunning
	}

	select {
	case h.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.shutdown:
		return ErrHubNotRunning
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.shutdown:
		return ErrHubNotRunning
	}
}

func (h *Hub) run(ctx context.Context) {
	defer log.Println("[hub] stopped")

	for {
		select {
		case s := <-h.register:
			h.handleRegister(s)
		case s := <-h.unregister:
			h.handleUnregister(s)
		case in := <-h.inbound:
			h.handleInbound(in.session, in.event)
		case cmd := <-h.commands:
			cmd.reply <- h.handleCommand(cmd)
		case <-h.shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRegister(s *Session) {
	h.sessions[s] = true
	h.setConnCount(len(h.sessions))

	// History replay goes to the new connection only, never broadcast.
	if err := s.conn.Send(types.HistoryEvent(h.store.Snapshot())); err != nil {
		h.drop(s)
	}
}

func (h *Hub) handleUnregister(s *Session) {
	if !h.sessions[s] {
		return
	}
	h.drop(s)

	if s.joined {
		h.limiter.Forget(s.name)
		if h.opts.AnnounceLeave {
			h.appendAndBroadcast(types.NewSystemMessage(fmt.Sprintf("%s left", s.name)))
		}
	}
}

func (h *Hub) handleInbound(s *Session, ev types.Inbound) {
	if !h.sessions[s] {
		return // already disconnected
	}

	switch ev.Type {
	case types.EventJoin:
		h.handleJoin(s, ev.User)
	case types.EventChat:
		h.handleMessage(s, ev.Text)
	case types.EventTyping:
		h.handleTyping(s, ev.Typing)
	default:
		// Untrusted payloads carry whatever clients send; ignore.
	}
}

func (h *Hub) handleJoin(s *Session, user string) {
	name := types.SanitizeName(user)
	s.name = name
	s.joined = true

	h.appendAndBroadcast(types.NewSystemMessage(fmt.Sprintf("%s joined", name)))
}

func (h *Hub) handleMessage(s *Session, text string) {
	if !s.joined {
		return
	}
	text = trimAndCap(text, h.opts.MessageMaxLen)
	if text == "" {
		return
	}

	if h.bans.IsBanned(s.name) {
		h.reject(s, types.ReasonBanned)
		return
	}
	if h.limiter.CheckAndRecord(s.name) {
		h.reject(s, types.ReasonRateLimit)
		return
	}
	// Back-to-back repeat suppression compares only the sender's most
	// recent accepted message, not full history.
	if text == s.lastText {
		h.reject(s, types.ReasonRepeat)
		return
	}

	s.lastText = text
	h.appendAndBroadcast(types.NewMessage(s.name, text))
}

func (h *Hub) handleTyping(s *Session, typing bool) {
	if !s.joined {
		return
	}
	h.broadcastExcept(s, types.TypingEvent(s.name, typing))
}

func (h *Hub) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdBan:
		user := moderation.Normalize(cmd.arg)
		h.bans.Ban(user)
		h.appendAndBroadcast(types.NewSystemMessage(fmt.Sprintf("%s was banned", user)))
		return nil

	case cmdUnban:
		user := moderation.Normalize(cmd.arg)
		h.bans.Unban(user)
		h.appendAndBroadcast(types.NewSystemMessage(fmt.Sprintf("%s was unbanned", user)))
		return nil

	case cmdDelete:
		removed, ok := h.store.RemoveByID(cmd.arg)
		if !ok {
			return ErrMessageNotFound
		}
		h.broadcast(types.DeletedEvent(removed.ID))
		h.appendAndBroadcast(types.NewSystemMessage("a message was removed by a moderator"))
		return nil
	}
	return fmt.Errorf("unknown command kind %d", cmd.kind)
}

// appendAndBroadcast is the single path by which messages enter the log,
// so broadcast order always matches store append order.
func (h *Hub) appendAndBroadcast(m types.Message) {
	h.store.Append(m)
	h.broadcast(types.MessageEvent(m))
}

func (h *Hub) broadcast(ev types.Event) {
	h.broadcastExcept(nil, ev)
}

func (h *Hub) broadcastExcept(skip *Session, ev types.Event) {
	var failed []*Session
	for s := range h.sessions {
		if s == skip {
			continue
		}
		if err := s.conn.Send(ev); err != nil {
			failed = append(failed, s)
		}
	}
	// A failed send means the client is gone or too slow to keep up;
	// drop it rather than stall the hub.
	for _, s := range failed {
		log.Printf("[hub] dropping unresponsive connection (user=%q)", s.name)
		h.drop(s)
	}
}

func (h *Hub) reject(s *Session, reason string) {
	if err := s.conn.Send(types.ErrorEvent(reason)); err != nil {
		h.drop(s)
	}
}

func (h *Hub) drop(s *Session) {
	if !h.sessions[s] {
		return
	}
	delete(h.sessions, s)
	h.setConnCount(len(h.sessions))
	if err := s.conn.Close(); err != nil {
		log.Printf("[hub] close failed: %v", err)
	}
}

func (h *Hub) setConnCount(n int) {
	h.mu.Lock()
	h.connCount = n
	h.mu.Unlock()
}

func trimAndCap(text string, max int) string {
	return types.Truncate(strings.TrimSpace(text), max)
}
