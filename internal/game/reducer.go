package game

import (
	"math"
	"sort"
)

const (
	// PenaltyDistance is recorded for players who had not guessed when the
	// host forced the reveal.
	PenaltyDistance = 20000.0

	// ScoringCutoff is the distance at or beyond which a guess earns nothing.
	// It sits below PenaltyDistance so forced players always score zero.
	ScoringCutoff = 19000.0
)

// Reduce applies action to state and returns the resulting state. A nil
// state means no active game. Reduce never mutates state; actions naming
// unknown players are no-ops.
func Reduce(state *GameState, action Action) *GameState {
	switch a := action.(type) {
	case SyncState:
		return a.State.Clone()

	case InitLobby:
		if state != nil {
			return state
		}
		next := &GameState{
			ID:                   a.ID,
			Status:               StatusLobby,
			Questions:            append([]Question(nil), a.Questions...),
			CurrentQuestionIndex: 0,
			Players:              []Player{},
			HostID:               a.HostID,
		}
		if a.StartingView != nil {
			v := *a.StartingView
			next.StartingView = &v
		}
		return next

	case ExitGame:
		return nil
	}

	if state == nil {
		return nil
	}

	switch a := action.(type) {
	case JoinPlayer:
		if state.HasPlayer(a.Player.ID) {
			return state
		}
		next := state.Clone()
		next.Players = append(next.Players, a.Player.clone())
		return next

	case KickPlayer:
		next := state.Clone()
		kept := next.Players[:0]
		for _, p := range next.Players {
			if p.ID != a.PlayerID {
				kept = append(kept, p)
			}
		}
		next.Players = kept
		return next

	case SetStatus:
		next := state.Clone()
		next.Status = a.Status
		return next

	case SubmitGuess:
		return updatePlayers(state, func(p *Player) {
			if p.ID != a.PlayerID {
				return
			}
			guess, distance := a.Guess, a.Distance
			p.HasGuessed = true
			p.LastGuess = &guess
			p.LastDistance = &distance
		})

	case UnlockGuess:
		return updatePlayers(state, func(p *Player) {
			if p.ID != a.PlayerID {
				return
			}
			p.HasGuessed = false
			p.LastGuess = nil
			p.LastDistance = nil
		})

	case ForceReveal:
		next := updatePlayers(state, func(p *Player) {
			if p.HasGuessed {
				return
			}
			penalty := PenaltyDistance
			p.HasGuessed = true
			p.LastGuess = nil
			p.LastDistance = &penalty
		})
		next.Status = StatusCountdown
		return next

	case CalculateScores:
		return calculateScores(state)

	case NextRound:
		next := state.Clone()
		if state.IsLastQuestion() {
			next.Status = StatusFinished
			return next
		}
		for i := range next.Players {
			p := &next.Players[i]
			p.HasGuessed = false
			p.LastGuess = nil
			p.LastDistance = nil
			p.LastPointsGained = 0
		}
		next.CurrentQuestionIndex++
		next.Status = StatusPlaying
		return next

	default:
		return state
	}
}

func updatePlayers(state *GameState, fn func(p *Player)) *GameState {
	next := state.Clone()
	for i := range next.Players {
		fn(&next.Players[i])
	}
	return next
}

func distanceOrInf(p Player) float64 {
	if p.LastDistance == nil {
		return math.Inf(1)
	}
	return *p.LastDistance
}

// calculateScores ranks players by ascending distance, ties keeping roster
// order, and awards playerCount-rank points to every guess under the cutoff.
func calculateScores(state *GameState) *GameState {
	next := state.Clone()

	ranked := make([]Player, len(next.Players))
	copy(ranked, next.Players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return distanceOrInf(ranked[i]) < distanceOrInf(ranked[j])
	})
	rank := make(map[string]int, len(ranked))
	for i, p := range ranked {
		if _, seen := rank[p.ID]; !seen {
			rank[p.ID] = i
		}
	}

	count := len(next.Players)
	for i := range next.Players {
		p := &next.Players[i]
		points := 0
		if p.LastDistance != nil && *p.LastDistance < ScoringCutoff {
			points = max(0, count-rank[p.ID])
		}
		p.LastPointsGained = points
		p.Score += points
	}

	if state.IsLastQuestion() {
		next.Status = StatusFinished
	} else {
		next.Status = StatusScoreboard
	}
	return next
}

// Leaderboard returns the players ordered by score, highest first. Equal
// scores keep roster order.
func Leaderboard(state *GameState) []Player {
	if state == nil {
		return nil
	}
	out := make([]Player, len(state.Players))
	copy(out, state.Players)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
