package gamesync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripshare/internal/game"
	"github.com/mmynk/tripshare/internal/metrics"
)

// DefaultSyncInterval is how often a player without state repeats
// REQUEST_SYNC.
const DefaultSyncInterval = 3 * time.Second

var (
	ErrNotHost  = errors.New("gamesync: only the host may dispatch actions")
	ErrNoGame   = errors.New("gamesync: no game state")
	ErrNoPlayer = errors.New("gamesync: session has no player id")
)

// Role is the part a session plays in a game.
type Role int

const (
	RoleHost Role = iota + 1
	RolePlayer
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RolePlayer:
		return "player"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// EventKind classifies session events.
type EventKind int

const (
	// EventState is emitted whenever the local state changes.
	EventState EventKind = iota + 1
	// EventKicked is emitted once when a joined player disappears from the
	// roster. The session stops after it.
	EventKicked
	// EventTerminated is emitted when the host ends the game.
	EventTerminated
)

// Event is a change observed by a session. State is a private copy.
type Event struct {
	Kind  EventKind
	State *game.GameState
}

// Config holds the parameters shared by host and player sessions.
type Config struct {
	GameID string
	// SelfID identifies this participant on the channel. For players it is
	// the player ID used on the roster.
	SelfID       string
	Transport    Transport
	SyncInterval time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

// Session is one participant's end of a game channel. A host session owns
// the canonical state; a player session mirrors it.
type Session struct {
	cfg     Config
	role    Role
	channel string
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    Subscription
	wg     sync.WaitGroup
	events chan Event

	mu        sync.Mutex
	state     *game.GameState
	questions []game.Question
	version   uint64
	// hostSender is the sender of the last adopted state. Only it may
	// terminate the game.
	hostSender string
	// pendingJoin is resent until the host lists this player.
	pendingJoin *game.Player
	joined      bool
	kicked      bool
	closed      bool

	// done is set by Close, a kick or a termination. A done session no
	// longer publishes and its subscription is closed.
	done atomic.Bool
}

func newSession(ctx context.Context, cfg Config, role Role) (*Session, error) {
	if cfg.GameID == "" {
		return nil, errors.New("gamesync: game id is required")
	}
	if cfg.Transport == nil {
		return nil, errors.New("gamesync: transport is required")
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SelfID == "" {
		cfg.SelfID = uuid.NewString()
	}

	channel := ChannelName(cfg.GameID)
	sub, err := cfg.Transport.Subscribe(ctx, channel)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		cfg:     cfg,
		role:    role,
		channel: channel,
		logger:  cfg.Logger.With("game", cfg.GameID, "role", role.String(), "self", cfg.SelfID),
		ctx:     sctx,
		cancel:  cancel,
		sub:     sub,
		events:  make(chan Event, 64),
	}
	s.wg.Add(1)
	go s.run()
	return s, nil
}

// NewHost subscribes to the game channel and creates the lobby. init.ID
// defaults to cfg.GameID and a missing SelfID is generated.
func NewHost(ctx context.Context, cfg Config, init game.InitLobby) (*Session, error) {
	if init.ID == "" {
		init.ID = cfg.GameID
	}
	s, err := newSession(ctx, cfg, RoleHost)
	if err != nil {
		return nil, err
	}
	if _, err := s.Dispatch(ctx, init); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.logger.Info("Hosting game", "questions", len(init.Questions))
	return s, nil
}

// NewPlayer subscribes to the game channel and keeps requesting a sync until
// the host answers.
func NewPlayer(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.SelfID == "" {
		return nil, ErrNoPlayer
	}
	s, err := newSession(ctx, cfg, RolePlayer)
	if err != nil {
		return nil, err
	}
	s.wg.Add(1)
	go s.requestSyncLoop()
	return s, nil
}

// Role returns whether this is a host or player session.
func (s *Session) Role() Role { return s.role }

// Events delivers state changes. It is closed by Close.
func (s *Session) Events() <-chan Event { return s.events }

// State returns a copy of the current local state, or nil.
func (s *Session) State() *game.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Kicked reports whether this player was removed from the roster.
func (s *Session) Kicked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kicked
}

// Dispatch applies action to the canonical state and broadcasts the result.
func (s *Session) Dispatch(ctx context.Context, action game.Action) (*game.GameState, error) {
	if s.role != RoleHost {
		return nil, ErrNotHost
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if err := s.applyLocked(ctx, action); err != nil {
		return s.state.Clone(), err
	}
	return s.state.Clone(), nil
}

// Join asks the host to add player. Players must join with their SelfID.
// A player session repeats the request whenever it adopts a state that does
// not list it yet, so joining before the host is live is fine.
func (s *Session) Join(ctx context.Context, player game.Player) error {
	if player.ID == "" {
		player.ID = s.cfg.SelfID
	}
	if s.role == RolePlayer {
		s.mu.Lock()
		if !s.joined && !s.done.Load() {
			p := player
			s.pendingJoin = &p
		}
		s.mu.Unlock()
	}
	return s.request(ctx, PlayerJoinRequest{Player: player}, false)
}

// SubmitGuess computes the distance to the current question and submits
// it. A player's own state reflects the guess immediately; the host's next
// broadcast confirms or replaces it.
func (s *Session) SubmitGuess(ctx context.Context, guess game.Location) error {
	if s.cfg.SelfID == "" {
		return ErrNoPlayer
	}
	s.mu.Lock()
	q, ok := s.state.CurrentQuestion()
	s.mu.Unlock()
	if !ok {
		return ErrNoGame
	}
	msg := PlayerGuessRequest{PlayerID: s.cfg.SelfID, Guess: guess, Distance: game.Distance(guess, q.Location)}
	return s.request(ctx, msg, true)
}

// UnlockGuess withdraws this player's guess.
func (s *Session) UnlockGuess(ctx context.Context) error {
	if s.cfg.SelfID == "" {
		return ErrNoPlayer
	}
	return s.request(ctx, PlayerUnlockRequest{PlayerID: s.cfg.SelfID}, true)
}

// RequestReveal asks for the countdown to start.
func (s *Session) RequestReveal(ctx context.Context) error {
	return s.request(ctx, HostRevealRequest{}, false)
}

// RequestForceReveal asks the host to reveal even though not everyone has
// guessed.
func (s *Session) RequestForceReveal(ctx context.Context) error {
	return s.request(ctx, ForceRevealRequest{}, false)
}

// RequestSync asks the host for a full state.
func (s *Session) RequestSync(ctx context.Context) error {
	if s.role == RoleHost {
		return nil
	}
	return s.publish(ctx, RequestSync{})
}

// request runs msg through the reducer directly on a host session and sends
// it to the host otherwise. With echo set, a player applies the action to its
// own copy right away.
func (s *Session) request(ctx context.Context, msg Message, echo bool) error {
	action, _ := ToAction(msg)
	if s.role == RoleHost {
		_, err := s.Dispatch(ctx, action)
		return err
	}

	s.mu.Lock()
	if s.done.Load() {
		s.mu.Unlock()
		return ErrClosed
	}
	if echo && s.state != nil {
		if next := game.Reduce(s.state, action); next != s.state {
			s.state = next
			s.emitLocked(EventState)
		}
	}
	s.mu.Unlock()
	return s.publish(ctx, msg)
}

// Exit leaves the game. A host terminates it for everyone first.
func (s *Session) Exit(ctx context.Context) error {
	var err error
	if s.role == RoleHost {
		_, err = s.Dispatch(ctx, game.ExitGame{})
	}
	return errors.Join(err, s.Close())
}

// Close stops the session and discards all local state.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.done.Store(true)
	s.mu.Unlock()

	s.cancel()
	err := s.sub.Close()
	s.wg.Wait()

	s.mu.Lock()
	s.state = nil
	s.questions = nil
	s.pendingJoin = nil
	close(s.events)
	s.mu.Unlock()
	return err
}

func (s *Session) run() {
	defer s.wg.Done()
	msgs := s.sub.Messages()
	for {
		select {
		case <-s.ctx.Done():
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			s.handle(data)
		}
	}
}

func (s *Session) requestSyncLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		need := s.state == nil && !s.done.Load()
		s.mu.Unlock()
		if need {
			if err := s.publish(s.ctx, RequestSync{}); err != nil && s.ctx.Err() == nil {
				s.logger.Warn("Failed to request sync", "error", err)
			}
		}
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) handle(data []byte) {
	frame, err := Decode(data)
	if err != nil {
		s.logger.Debug("Ignoring sync frame", "error", err)
		s.cfg.Metrics.DroppedState("undecodable")
		return
	}
	if frame.Sender != "" && frame.Sender == s.cfg.SelfID {
		return
	}
	s.cfg.Metrics.SyncMessage(string(frame.Message.Type()), "in")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done.Load() {
		return
	}

	switch m := frame.Message.(type) {
	case StateFull:
		if s.role == RoleHost {
			s.logger.Warn("Ignoring state from another host", "sender", frame.Sender)
			return
		}
		if m.Version != 0 && m.Version < s.version {
			s.drop("stale", m)
			return
		}
		s.questions = m.State.Questions
		if s.questions == nil {
			s.questions = []game.Question{}
		}
		s.version = m.Version
		s.adoptLocked(frame.Sender, m.State)
	case StateDynamic:
		if s.role == RoleHost {
			s.logger.Warn("Ignoring state from another host", "sender", frame.Sender)
			return
		}
		if s.questions == nil {
			s.drop("no_question_cache", m)
			return
		}
		if m.Version != 0 && m.Version <= s.version {
			s.drop("stale", m)
			return
		}
		state := m.State.Clone()
		state.Questions = s.questions
		s.version = m.Version
		s.adoptLocked(frame.Sender, state)
	case TerminateSession:
		if s.role == RoleHost {
			return
		}
		if s.state == nil || frame.Sender != s.hostSender {
			s.logger.Warn("Ignoring terminate from non-host", "sender", frame.Sender)
			s.cfg.Metrics.DroppedState("not_host")
			return
		}
		s.logger.Info("Game terminated by host")
		s.endLocked(EventTerminated)
	case RequestSync:
		if s.role == RoleHost && s.state != nil {
			s.broadcastLocked(s.ctx, true)
		}
	case PlayerJoinRequest, PlayerGuessRequest, PlayerUnlockRequest, HostRevealRequest, ForceRevealRequest:
		if s.role != RoleHost {
			return
		}
		action, _ := ToAction(m)
		if err := s.applyLocked(s.ctx, action); err != nil {
			s.logger.Warn("Failed to apply request", "type", m.Type(), "error", err)
		}
	}
}

func (s *Session) drop(reason string, m Message) {
	s.logger.Debug("Dropping state", "type", m.Type(), "reason", reason)
	s.cfg.Metrics.DroppedState(reason)
}

// adoptLocked replaces the local state with one received from the host and
// checks whether this player is still on the roster.
func (s *Session) adoptLocked(sender string, state *game.GameState) {
	s.state = game.Reduce(s.state, game.SyncState{State: state})
	s.hostSender = sender

	switch {
	case s.state.HasPlayer(s.cfg.SelfID):
		s.joined = true
		s.pendingJoin = nil
	case s.joined:
		s.logger.Info("Removed from game by host")
		s.kicked = true
		s.endLocked(EventKicked)
		return
	case s.pendingJoin != nil:
		if err := s.publish(s.ctx, PlayerJoinRequest{Player: *s.pendingJoin}); err != nil {
			s.logger.Warn("Failed to resend join", "error", err)
		}
	}
	s.emitLocked(EventState)
}

// endLocked drops all game data, reports kind and leaves the channel. Only
// Close is allowed afterwards.
func (s *Session) endLocked(kind EventKind) {
	s.state = nil
	s.questions = nil
	s.pendingJoin = nil
	s.hostSender = ""
	s.done.Store(true)
	s.cancel()
	if err := s.sub.Close(); err != nil {
		s.logger.Debug("Failed to close subscription", "error", err)
	}
	s.emitLocked(kind)
}

// applyLocked is the host's single write path.
func (s *Session) applyLocked(ctx context.Context, action game.Action) error {
	prev := s.state
	next := game.Reduce(prev, action)
	if next == prev {
		return nil
	}
	s.state = next

	if next == nil {
		s.emitLocked(EventTerminated)
		return s.publish(ctx, TerminateSession{})
	}
	s.emitLocked(EventState)

	full := prev == nil ||
		prev.Status != next.Status ||
		prev.CurrentQuestionIndex != next.CurrentQuestionIndex
	return s.broadcastLocked(ctx, full)
}

func (s *Session) broadcastLocked(ctx context.Context, full bool) error {
	s.version++
	var msg Message
	if full {
		msg = StateFull{State: s.state, Version: s.version}
	} else {
		msg = StateDynamic{State: s.state, Version: s.version}
	}
	if err := s.publish(ctx, msg); err != nil {
		s.logger.Warn("Failed to broadcast state", "type", msg.Type(), "error", err)
		return err
	}
	return nil
}

func (s *Session) publish(ctx context.Context, msg Message) error {
	if s.done.Load() {
		return ErrClosed
	}
	data, err := Encode(s.cfg.SelfID, msg)
	if err != nil {
		return err
	}
	if err := s.cfg.Transport.Publish(ctx, s.channel, data); err != nil {
		return err
	}
	s.cfg.Metrics.SyncMessage(string(msg.Type()), "out")
	return nil
}

func (s *Session) emitLocked(kind EventKind) {
	if s.closed {
		return
	}
	select {
	case s.events <- Event{Kind: kind, State: s.state.Clone()}:
	default:
		s.logger.Warn("Event buffer full, dropping event", "kind", kind)
	}
}
