// Package game implements the location-guessing game as a pure state machine.
//
// A game moves LOBBY -> PLAYING -> COUNTDOWN -> RESULTS -> SCOREBOARD and then
// back to PLAYING for the next question, or to FINISHED after the last one.
// Reduce is the only way state changes; it never mutates its input.
package game

// Status is the current phase of a game.
type Status string

const (
	StatusLobby      Status = "LOBBY"
	StatusPlaying    Status = "PLAYING"
	StatusCountdown  Status = "COUNTDOWN"
	StatusResults    Status = "RESULTS"
	StatusScoreboard Status = "SCOREBOARD"
	StatusFinished   Status = "FINISHED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusLobby, StatusPlaying, StatusCountdown, StatusResults, StatusScoreboard, StatusFinished:
		return true
	}
	return false
}

// Location is a point on the globe in degrees.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Question is one photo to be located. Questions never change during play.
type Question struct {
	ID       string   `json:"id"`
	ImageURL string   `json:"imageUrl"`
	Location Location `json:"location"`
	Title    string   `json:"title,omitempty"`
}

// StartingView is the initial map viewport shown to players.
type StartingView struct {
	Center Location `json:"center"`
	Zoom   float64  `json:"zoom"`
}

// Player is one participant's public state.
type Player struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Color            string    `json:"color"`
	Score            int       `json:"score"`
	LastGuess        *Location `json:"lastGuess,omitempty"`
	LastDistance     *float64  `json:"lastDistance,omitempty"`
	LastPointsGained int       `json:"lastPointsGained,omitempty"`
	HasGuessed       bool      `json:"hasGuessed"`
}

// GameState is the replicated state of one game.
type GameState struct {
	ID                   string        `json:"id"`
	Status               Status        `json:"status"`
	Questions            []Question    `json:"questions,omitempty"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Players              []Player      `json:"players"`
	HostID               string        `json:"hostId"`
	StartingView         *StartingView `json:"startingView,omitempty"`
}

// Clone returns a deep copy of s. Clone of nil is nil.
func (s *GameState) Clone() *GameState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Questions != nil {
		c.Questions = append([]Question(nil), s.Questions...)
	}
	if s.Players != nil {
		c.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			c.Players[i] = p.clone()
		}
	}
	if s.StartingView != nil {
		v := *s.StartingView
		c.StartingView = &v
	}
	return &c
}

func (p Player) clone() Player {
	if p.LastGuess != nil {
		g := *p.LastGuess
		p.LastGuess = &g
	}
	if p.LastDistance != nil {
		d := *p.LastDistance
		p.LastDistance = &d
	}
	return p
}

// Lean returns a copy of s without the question list, for dynamic sync.
func (s *GameState) Lean() *GameState {
	c := s.Clone()
	if c != nil {
		c.Questions = nil
	}
	return c
}

// Player returns the player with the given ID.
func (s *GameState) Player(id string) (Player, bool) {
	if s == nil {
		return Player{}, false
	}
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// HasPlayer reports whether a player with the given ID is on the roster.
func (s *GameState) HasPlayer(id string) bool {
	_, ok := s.Player(id)
	return ok
}

// CurrentQuestion returns the question being played.
func (s *GameState) CurrentQuestion() (Question, bool) {
	if s == nil || s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentQuestionIndex], true
}

// IsLastQuestion reports whether the current question is the final one.
func (s *GameState) IsLastQuestion() bool {
	return s != nil && s.CurrentQuestionIndex == len(s.Questions)-1
}
