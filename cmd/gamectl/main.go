// Command gamectl hosts or joins a location-guessing game through a tripshare
// relay. Commands are read line by line from stdin.
//
//	gamectl --server http://localhost:8080 host --questions questions.json
//	gamectl --server http://localhost:8080 join --room ABC123 --name Ana
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mmynk/tripshare/internal/game"
	"github.com/mmynk/tripshare/internal/gamesync"
	"github.com/mmynk/tripshare/pkg/logging"
)

func main() {
	logging.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("gamectl failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		server       string
		syncInterval time.Duration
	)
	sessionConfig := func() gamesync.Config {
		return gamesync.Config{
			Transport:    gamesync.NewWebSocketTransport(server, nil),
			SyncInterval: syncInterval,
			Logger:       slog.Default(),
		}
	}

	root := &cobra.Command{
		Use:           "gamectl",
		Short:         "Host or join a location-guessing game through a tripshare relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&server, "server", "http://localhost:8080", "relay base URL")
	root.PersistentFlags().DurationVar(&syncInterval, "sync-interval", gamesync.DefaultSyncInterval,
		"how often a player asks the host for state until it arrives")

	var questionsPath, hostRoom string
	host := &cobra.Command{
		Use:   "host",
		Short: "Create a lobby and run it from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHost(cmd.Context(), sessionConfig(), questionsPath, hostRoom)
		},
	}
	host.Flags().StringVar(&questionsPath, "questions", "questions.json", "JSON array of questions")
	host.Flags().StringVar(&hostRoom, "room", "", "room code (random when empty)")

	var joinRoom, name, color string
	join := &cobra.Command{
		Use:   "join",
		Short: "Join a lobby as a player",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJoin(cmd.Context(), sessionConfig(), joinRoom, name, color)
		},
	}
	join.Flags().StringVar(&joinRoom, "room", "", "room code")
	join.Flags().StringVar(&name, "name", "", "display name")
	join.Flags().StringVar(&color, "color", "#3b82f6", "marker color")
	_ = join.MarkFlagRequired("room")
	_ = join.MarkFlagRequired("name")

	root.AddCommand(host, join)
	return root
}

func loadQuestions(path string) ([]game.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}
	var questions []game.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, errors.New("questions file is empty")
	}
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
	}
	return questions, nil
}

func runHost(ctx context.Context, cfg gamesync.Config, questionsPath, room string) error {
	questions, err := loadQuestions(questionsPath)
	if err != nil {
		return err
	}
	cfg.GameID = game.NormalizeRoomCode(room)
	if cfg.GameID == "" {
		cfg.GameID = game.NewRoomCode()
	}

	s, err := gamesync.NewHost(ctx, cfg, game.InitLobby{Questions: questions})
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("Hosting room %s with %d questions\n", cfg.GameID, len(questions))
	fmt.Println("commands: start, reveal, force, scores, next, kick <id>, end")

	return serve(ctx, os.Stdin, os.Stdout, s.Events(), func(fields []string) (bool, error) {
		var action game.Action
		switch fields[0] {
		case "start":
			action = game.SetStatus{Status: game.StatusPlaying}
		case "reveal":
			action = game.SetStatus{Status: game.StatusCountdown}
		case "force":
			action = game.ForceReveal{}
		case "scores":
			action = game.CalculateScores{}
		case "next":
			action = game.NextRound{}
		case "kick":
			if len(fields) < 2 {
				return false, errors.New("kick needs a player id")
			}
			action = game.KickPlayer{PlayerID: fields[1]}
		case "end":
			return true, s.Exit(ctx)
		default:
			return false, fmt.Errorf("unknown command %q", fields[0])
		}
		_, err := s.Dispatch(ctx, action)
		return false, err
	})
}

func runJoin(ctx context.Context, cfg gamesync.Config, room, name, color string) error {
	cfg.GameID = game.NormalizeRoomCode(room)
	if cfg.GameID == "" || strings.TrimSpace(name) == "" {
		return errors.New("join needs --room and --name")
	}
	cfg.SelfID = uuid.NewString()

	s, err := gamesync.NewPlayer(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	player := game.Player{ID: cfg.SelfID, Name: strings.TrimSpace(name), Color: color}
	if err := s.Join(ctx, player); err != nil {
		return err
	}
	fmt.Printf("Joined room %s as %s (%s)\n", cfg.GameID, player.Name, player.ID)
	fmt.Println("commands: guess <lat> <lng>, unlock, reveal, sync, quit")

	return serve(ctx, os.Stdin, os.Stdout, s.Events(), func(fields []string) (bool, error) {
		switch fields[0] {
		case "guess":
			if len(fields) < 3 {
				return false, errors.New("guess needs lat and lng")
			}
			lat, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return false, fmt.Errorf("invalid lat: %w", err)
			}
			lng, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return false, fmt.Errorf("invalid lng: %w", err)
			}
			return false, s.SubmitGuess(ctx, game.Location{Lat: lat, Lng: lng})
		case "unlock":
			return false, s.UnlockGuess(ctx)
		case "reveal":
			return false, s.RequestReveal(ctx)
		case "sync":
			return false, s.RequestSync(ctx)
		case "quit":
			return true, s.Exit(ctx)
		default:
			return false, fmt.Errorf("unknown command %q", fields[0])
		}
	})
}

// readCommands feeds whitespace-split lines to handle until it reports done,
// stdin closes or ctx is cancelled.
func readCommands(ctx context.Context, r io.Reader, handle func(fields []string) (bool, error)) error {
	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			done, err := handle(fields)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			if done {
				return nil
			}
		}
	}
}

// serve prints session events while feeding commands to handle. It returns
// nil once the player is kicked or the game is terminated, without waiting
// for more input.
func serve(ctx context.Context, in io.Reader, out io.Writer, events <-chan gamesync.Event, handle func(fields []string) (bool, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ended := make(chan struct{})
	go func() {
		if printEvents(out, events) {
			close(ended)
			cancel()
		}
	}()

	err := readCommands(ctx, in, handle)
	select {
	case <-ended:
		return nil
	default:
		return err
	}
}

// printEvents renders events until the channel closes. It reports whether
// the session ended by a kick or termination.
func printEvents(w io.Writer, events <-chan gamesync.Event) bool {
	for ev := range events {
		switch ev.Kind {
		case gamesync.EventKicked:
			fmt.Fprintln(w, "You were removed from the game")
			return true
		case gamesync.EventTerminated:
			fmt.Fprintln(w, "The host ended the game")
			return true
		}
		printState(w, ev.State)
	}
	return false
}

func printState(w io.Writer, state *game.GameState) {
	if state == nil {
		return
	}
	fmt.Fprintf(w, "[%s] %s question %d/%d\n", time.Now().Format(time.TimeOnly),
		state.Status, state.CurrentQuestionIndex+1, len(state.Questions))
	for i, p := range game.Leaderboard(state) {
		line := fmt.Sprintf("  %d. %-16s %6d", i+1, p.Name, p.Score)
		if p.LastDistance != nil && state.Status != game.StatusPlaying {
			line += "  " + game.FormatDistance(*p.LastDistance)
		}
		if p.HasGuessed && state.Status == game.StatusPlaying {
			line += "  guessed"
		}
		fmt.Fprintln(w, line)
	}
}
