package gamesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripshare/internal/game"
)

func sampleState() *game.GameState {
	d := 12.5
	return &game.GameState{
		ID:     "ABC123",
		Status: game.StatusPlaying,
		Questions: []game.Question{
			{ID: "q1", ImageURL: "https://img/1.jpg", Location: game.Location{Lat: 59.3, Lng: 18.1}, Title: "Stockholm"},
		},
		Players: []game.Player{
			{ID: "p1", Name: "Ann", Color: "#f00", LastDistance: &d, HasGuessed: true},
		},
		HostID: "host",
	}
}

func TestEncodeDecode_StateFullKeepsQuestions(t *testing.T) {
	data, err := Encode("host", StateFull{State: sampleState(), Version: 7})
	require.NoError(t, err)

	frame, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "host", frame.Sender)

	full, ok := frame.Message.(StateFull)
	require.True(t, ok, "got %T", frame.Message)
	assert.Equal(t, uint64(7), full.Version)
	assert.Equal(t, sampleState(), full.State)
}

func TestEncode_StateDynamicDropsQuestions(t *testing.T) {
	state := sampleState()
	data, err := Encode("host", StateDynamic{State: state, Version: 2})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "questions")
	assert.Len(t, state.Questions, 1, "encoding must not mutate the caller's state")

	frame, err := Decode(data)
	require.NoError(t, err)
	dyn := frame.Message.(StateDynamic)
	assert.Nil(t, dyn.State.Questions)
	assert.Equal(t, state.Players, dyn.State.Players)
}

func TestDecode_DynamicWithQuestionsIsStripped(t *testing.T) {
	data := []byte(`{"type":"STATE_DYNAMIC","state":{"id":"X","status":"LOBBY","questions":[{"id":"q"}],"players":[]}}`)
	frame, err := Decode(data)
	require.NoError(t, err)
	assert.Nil(t, frame.Message.(StateDynamic).State.Questions)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", `{`, ErrInvalidMessage},
		{"unknown type", `{"type":"CHAT"}`, ErrUnknownMessage},
		{"missing type", `{}`, ErrUnknownMessage},
		{"full without state", `{"type":"STATE_FULL"}`, ErrInvalidMessage},
		{"dynamic without state", `{"type":"STATE_DYNAMIC"}`, ErrInvalidMessage},
		{"join without player", `{"type":"PLAYER_JOIN_REQUEST"}`, ErrInvalidMessage},
		{"join without player id", `{"type":"PLAYER_JOIN_REQUEST","player":{"name":"x"}}`, ErrInvalidMessage},
		{"guess without distance", `{"type":"PLAYER_GUESS_REQUEST","playerId":"p","guess":{"lat":1,"lng":2}}`, ErrInvalidMessage},
		{"unlock without player", `{"type":"PLAYER_UNLOCK_REQUEST"}`, ErrInvalidMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecode_Requests(t *testing.T) {
	tests := []struct {
		data string
		want Message
	}{
		{`{"type":"REQUEST_SYNC"}`, RequestSync{}},
		{`{"type":"PLAYER_JOIN_REQUEST","player":{"id":"p1","name":"Ann","color":"#0f0","score":0}}`,
			PlayerJoinRequest{Player: game.Player{ID: "p1", Name: "Ann", Color: "#0f0"}}},
		{`{"type":"PLAYER_GUESS_REQUEST","playerId":"p1","guess":{"lat":1.5,"lng":2.5},"distance":0}`,
			PlayerGuessRequest{PlayerID: "p1", Guess: game.Location{Lat: 1.5, Lng: 2.5}, Distance: 0}},
		{`{"type":"PLAYER_UNLOCK_REQUEST","playerId":"p1"}`, PlayerUnlockRequest{PlayerID: "p1"}},
		{`{"type":"HOST_REVEAL_REQUEST"}`, HostRevealRequest{}},
		{`{"type":"FORCE_REVEAL"}`, ForceRevealRequest{}},
		{`{"type":"TERMINATE_SESSION"}`, TerminateSession{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.want.Type()), func(t *testing.T) {
			frame, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, "", frame.Sender)
			assert.Equal(t, tt.want, frame.Message)
		})
	}
}

func TestToAction(t *testing.T) {
	guess := game.Location{Lat: 1, Lng: 2}
	tests := []struct {
		msg    Message
		want   game.Action
		wantOK bool
	}{
		{PlayerJoinRequest{Player: game.Player{ID: "p"}}, game.JoinPlayer{Player: game.Player{ID: "p"}}, true},
		{PlayerGuessRequest{PlayerID: "p", Guess: guess, Distance: 3}, game.SubmitGuess{PlayerID: "p", Guess: guess, Distance: 3}, true},
		{PlayerUnlockRequest{PlayerID: "p"}, game.UnlockGuess{PlayerID: "p"}, true},
		{HostRevealRequest{}, game.SetStatus{Status: game.StatusCountdown}, true},
		{ForceRevealRequest{}, game.ForceReveal{}, true},
		{RequestSync{}, nil, false},
		{TerminateSession{}, nil, false},
		{StateFull{}, nil, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.msg.Type()), func(t *testing.T) {
			got, ok := ToAction(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsState(t *testing.T) {
	assert.True(t, IsState(TypeStateFull))
	assert.True(t, IsState(TypeStateDynamic))
	assert.False(t, IsState(TypeRequestSync))
	assert.False(t, IsState(TypeTerminateSession))
}

func TestIsHostOnly(t *testing.T) {
	for _, typ := range []MessageType{TypeStateFull, TypeStateDynamic, TypeTerminateSession} {
		assert.True(t, IsHostOnly(typ), typ)
	}
	for _, typ := range []MessageType{TypeRequestSync, TypePlayerJoinRequest, TypePlayerGuessRequest,
		TypePlayerUnlockRequest, TypeHostRevealRequest, TypeForceReveal} {
		assert.False(t, IsHostOnly(typ), typ)
	}
}
