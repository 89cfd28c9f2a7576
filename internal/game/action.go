package game

// ActionKind names a reducer action.
type ActionKind string

const (
	KindSyncState       ActionKind = "SYNC_STATE"
	KindInitLobby       ActionKind = "INIT_LOBBY"
	KindJoinPlayer      ActionKind = "JOIN_PLAYER"
	KindKickPlayer      ActionKind = "KICK_PLAYER"
	KindSetStatus       ActionKind = "SET_STATUS"
	KindSubmitGuess     ActionKind = "SUBMIT_GUESS"
	KindUnlockGuess     ActionKind = "UNLOCK_GUESS"
	KindForceReveal     ActionKind = "FORCE_REVEAL"
	KindCalculateScores ActionKind = "CALCULATE_SCORES"
	KindNextRound       ActionKind = "NEXT_ROUND"
	KindExitGame        ActionKind = "EXIT_GAME"
)

// Action is a reducer input. The set of actions is closed; see the types
// below.
type Action interface {
	Kind() ActionKind
	action()
}

// SyncState replaces the whole state with a host snapshot.
type SyncState struct {
	State *GameState
}

// InitLobby creates a new game in the lobby.
type InitLobby struct {
	ID           string
	Questions    []Question
	HostID       string
	StartingView *StartingView
}

// JoinPlayer adds a player unless one with the same ID exists.
type JoinPlayer struct {
	Player Player
}

// KickPlayer removes a player.
type KickPlayer struct {
	PlayerID string
}

// SetStatus overrides the status.
type SetStatus struct {
	Status Status
}

// SubmitGuess records a player's guess and its precomputed distance in km.
type SubmitGuess struct {
	PlayerID string
	Guess    Location
	Distance float64
}

// UnlockGuess withdraws a player's guess.
type UnlockGuess struct {
	PlayerID string
}

// ForceReveal gives every player who has not guessed the penalty distance
// and moves to the countdown.
type ForceReveal struct{}

// CalculateScores ranks players by distance and awards points.
type CalculateScores struct{}

// NextRound advances to the next question or finishes the game.
type NextRound struct{}

// ExitGame discards the game.
type ExitGame struct{}

func (SyncState) Kind() ActionKind       { return KindSyncState }
func (InitLobby) Kind() ActionKind       { return KindInitLobby }
func (JoinPlayer) Kind() ActionKind      { return KindJoinPlayer }
func (KickPlayer) Kind() ActionKind      { return KindKickPlayer }
func (SetStatus) Kind() ActionKind       { return KindSetStatus }
func (SubmitGuess) Kind() ActionKind     { return KindSubmitGuess }
func (UnlockGuess) Kind() ActionKind     { return KindUnlockGuess }
func (ForceReveal) Kind() ActionKind     { return KindForceReveal }
func (CalculateScores) Kind() ActionKind { return KindCalculateScores }
func (NextRound) Kind() ActionKind       { return KindNextRound }
func (ExitGame) Kind() ActionKind        { return KindExitGame }

func (SyncState) action()       {}
func (InitLobby) action()       {}
func (JoinPlayer) action()      {}
func (KickPlayer) action()      {}
func (SetStatus) action()       {}
func (SubmitGuess) action()     {}
func (UnlockGuess) action()     {}
func (ForceReveal) action()     {}
func (CalculateScores) action() {}
func (NextRound) action()       {}
func (ExitGame) action()        {}
