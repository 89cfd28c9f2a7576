// Package gamesync replicates game state from one authoritative host to any
// number of players over a shared broadcast channel.
//
// The host is the only writer of canonical state. Players send request
// messages; the host applies them through game.Reduce and broadcasts the
// result, either in full (STATE_FULL, with questions) or lean
// (STATE_DYNAMIC, without questions).
package gamesync

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmynk/tripshare/internal/game"
)

// MessageType is the wire discriminator of a sync message.
type MessageType string

const (
	TypeStateFull           MessageType = "STATE_FULL"
	TypeStateDynamic        MessageType = "STATE_DYNAMIC"
	TypeRequestSync         MessageType = "REQUEST_SYNC"
	TypePlayerJoinRequest   MessageType = "PLAYER_JOIN_REQUEST"
	TypePlayerGuessRequest  MessageType = "PLAYER_GUESS_REQUEST"
	TypePlayerUnlockRequest MessageType = "PLAYER_UNLOCK_REQUEST"
	TypeHostRevealRequest   MessageType = "HOST_REVEAL_REQUEST"
	TypeForceReveal         MessageType = "FORCE_REVEAL"
	TypeTerminateSession    MessageType = "TERMINATE_SESSION"
)

var (
	ErrUnknownMessage = errors.New("unknown sync message type")
	ErrInvalidMessage = errors.New("invalid sync message")
)

// Message is one sync protocol message. The set is closed.
type Message interface {
	Type() MessageType
	message()
}

// StateFull carries a complete snapshot including questions.
type StateFull struct {
	State   *game.GameState
	Version uint64
}

// StateDynamic carries a snapshot without questions.
type StateDynamic struct {
	State   *game.GameState
	Version uint64
}

// RequestSync asks the host for a StateFull.
type RequestSync struct{}

// PlayerJoinRequest asks the host to add a player.
type PlayerJoinRequest struct {
	Player game.Player
}

// PlayerGuessRequest asks the host to record a guess.
type PlayerGuessRequest struct {
	PlayerID string
	Guess    game.Location
	Distance float64
}

// PlayerUnlockRequest asks the host to withdraw a guess.
type PlayerUnlockRequest struct {
	PlayerID string
}

// HostRevealRequest asks the host to start the countdown.
type HostRevealRequest struct{}

// ForceRevealRequest asks the host to force the reveal.
type ForceRevealRequest struct{}

// TerminateSession tells players the game is over.
type TerminateSession struct{}

func (StateFull) Type() MessageType           { return TypeStateFull }
func (StateDynamic) Type() MessageType        { return TypeStateDynamic }
func (RequestSync) Type() MessageType         { return TypeRequestSync }
func (PlayerJoinRequest) Type() MessageType   { return TypePlayerJoinRequest }
func (PlayerGuessRequest) Type() MessageType  { return TypePlayerGuessRequest }
func (PlayerUnlockRequest) Type() MessageType { return TypePlayerUnlockRequest }
func (HostRevealRequest) Type() MessageType   { return TypeHostRevealRequest }
func (ForceRevealRequest) Type() MessageType  { return TypeForceReveal }
func (TerminateSession) Type() MessageType    { return TypeTerminateSession }

func (StateFull) message()           {}
func (StateDynamic) message()        {}
func (RequestSync) message()         {}
func (PlayerJoinRequest) message()   {}
func (PlayerGuessRequest) message()  {}
func (PlayerUnlockRequest) message() {}
func (HostRevealRequest) message()   {}
func (ForceRevealRequest) message()  {}
func (TerminateSession) message()    {}

// Frame is a decoded message plus the ID of the participant that sent it.
type Frame struct {
	Sender  string
	Message Message
}

type envelope struct {
	Type     MessageType     `json:"type"`
	Sender   string          `json:"sender,omitempty"`
	Version  uint64          `json:"version,omitempty"`
	State    *game.GameState `json:"state,omitempty"`
	Player   *game.Player    `json:"player,omitempty"`
	PlayerID string          `json:"playerId,omitempty"`
	Guess    *game.Location  `json:"guess,omitempty"`
	Distance *float64        `json:"distance,omitempty"`
}

// Encode serializes msg with the sender ID. StateDynamic is always sent
// without questions.
func Encode(sender string, msg Message) ([]byte, error) {
	env := envelope{Type: msg.Type(), Sender: sender}
	switch m := msg.(type) {
	case StateFull:
		env.State, env.Version = m.State, m.Version
	case StateDynamic:
		env.State, env.Version = m.State.Lean(), m.Version
	case PlayerJoinRequest:
		p := m.Player
		env.Player = &p
	case PlayerGuessRequest:
		guess, distance := m.Guess, m.Distance
		env.PlayerID, env.Guess, env.Distance = m.PlayerID, &guess, &distance
	case PlayerUnlockRequest:
		env.PlayerID = m.PlayerID
	case RequestSync, HostRevealRequest, ForceRevealRequest, TerminateSession:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Type(), err)
	}
	return data, nil
}

// Decode parses a frame. Unknown types return ErrUnknownMessage and missing
// required fields return ErrInvalidMessage.
func Decode(data []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	var msg Message
	switch env.Type {
	case TypeStateFull:
		if env.State == nil {
			return Frame{}, fmt.Errorf("%w: %s without state", ErrInvalidMessage, env.Type)
		}
		msg = StateFull{State: env.State, Version: env.Version}
	case TypeStateDynamic:
		if env.State == nil {
			return Frame{}, fmt.Errorf("%w: %s without state", ErrInvalidMessage, env.Type)
		}
		env.State.Questions = nil
		msg = StateDynamic{State: env.State, Version: env.Version}
	case TypeRequestSync:
		msg = RequestSync{}
	case TypePlayerJoinRequest:
		if env.Player == nil || env.Player.ID == "" {
			return Frame{}, fmt.Errorf("%w: %s without player", ErrInvalidMessage, env.Type)
		}
		msg = PlayerJoinRequest{Player: *env.Player}
	case TypePlayerGuessRequest:
		if env.PlayerID == "" || env.Guess == nil || env.Distance == nil {
			return Frame{}, fmt.Errorf("%w: incomplete %s", ErrInvalidMessage, env.Type)
		}
		msg = PlayerGuessRequest{PlayerID: env.PlayerID, Guess: *env.Guess, Distance: *env.Distance}
	case TypePlayerUnlockRequest:
		if env.PlayerID == "" {
			return Frame{}, fmt.Errorf("%w: %s without playerId", ErrInvalidMessage, env.Type)
		}
		msg = PlayerUnlockRequest{PlayerID: env.PlayerID}
	case TypeHostRevealRequest:
		msg = HostRevealRequest{}
	case TypeForceReveal:
		msg = ForceRevealRequest{}
	case TypeTerminateSession:
		msg = TerminateSession{}
	default:
		return Frame{}, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
	return Frame{Sender: env.Sender, Message: msg}, nil
}

// IsState reports whether t carries canonical state.
func IsState(t MessageType) bool {
	return t == TypeStateFull || t == TypeStateDynamic
}

// IsHostOnly reports whether only the host may send t: state and
// TERMINATE_SESSION. Everything else is a request.
func IsHostOnly(t MessageType) bool {
	return IsState(t) || t == TypeTerminateSession
}

// ToAction translates a player request into the reducer action the host
// applies. ok is false for messages that are not requests.
func ToAction(msg Message) (action game.Action, ok bool) {
	switch m := msg.(type) {
	case PlayerJoinRequest:
		return game.JoinPlayer{Player: m.Player}, true
	case PlayerGuessRequest:
		return game.SubmitGuess{PlayerID: m.PlayerID, Guess: m.Guess, Distance: m.Distance}, true
	case PlayerUnlockRequest:
		return game.UnlockGuess{PlayerID: m.PlayerID}, true
	case HostRevealRequest:
		return game.SetStatus{Status: game.StatusCountdown}, true
	case ForceRevealRequest:
		return game.ForceReveal{}, true
	}
	return nil, false
}
