package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"horses/communication/client"
	"horses/communication/server"
	"horses/experiments"
	"horses/game"
	"horses/gamemaster"
	"horses/meta"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	mode := flag.String("mode", "tournament", "tournament, serve, play or throughput")
	configPath := flag.String("config", "", "YAML tournament config (defaults apply when empty)")
	addr := flag.String("addr", ":8080", "listen address in serve mode")
	remote := flag.String("remote", "", "server URL to play against in play mode (starts a local one when empty)")
	seed := flag.Uint64("seed", 0, "seed for generated boards (0 picks one from the clock)")
	difficulty := flag.String("difficulty", string(meta.Amateur), "engine level for live play")
	side := flag.String("side", "white", "side the human plays")
	boards := flag.Int("boards", 20, "boards per level in throughput mode")
	logLevel := flag.String("log-level", "info", "zerolog level")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	// play keeps the default interrupt handling since it blocks on stdin
	ctx := context.Background()
	if *mode != "play" {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	cfg := experiments.DefaultConfig()
	if *configPath != "" {
		cfg, err = experiments.LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load config")
		}
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	switch *mode {
	case "tournament":
		err = runTournament(ctx, cfg)
	case "throughput":
		err = runThroughput(ctx, cfg, *boards)
	case "serve":
		var session *gamemaster.Session
		session, err = newSession(*difficulty, *side, *seed)
		if err != nil {
			break
		}
		defer session.Close()
		err = serve(ctx, *addr, server.NewServer(session, cfg))
	case "play":
		var srv *server.Server
		var closeSession func()
		srv, closeSession, err = localServer(*remote, *difficulty, *side, *seed, cfg)
		if err != nil {
			break
		}
		defer closeSession()
		err = play(ctx, *remote, srv, os.Stdin, os.Stdout)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msgf("%s failed", *mode)
	}
}

func newSession(difficulty, side string, seed uint64) (*gamemaster.Session, error) {
	level, err := meta.ParseDifficulty(difficulty)
	if err != nil {
		return nil, err
	}
	human, err := game.ParsePlayer(side)
	if err != nil || human == game.None {
		return nil, fmt.Errorf("side must be white or black, got %q", side)
	}
	options := []gamemaster.Option{gamemaster.WithHumanSide(human)}
	if seed != 0 {
		options = append(options, gamemaster.WithSeed(seed))
	}
	return gamemaster.NewSession(level, options...)
}

// localServer builds the in-process server for play mode. A game against a
// remote server needs none, so the result is nil when remote is set.
func localServer(remote, difficulty, side string, seed uint64, cfg experiments.Config) (*server.Server, func(), error) {
	if remote != "" {
		return nil, func() {}, nil
	}
	session, err := newSession(difficulty, side, seed)
	if err != nil {
		return nil, nil, err
	}
	return server.NewServer(session, cfg), session.Close, nil
}

func runTournament(ctx context.Context, cfg experiments.Config) error {
	lastPairing := -1
	results, err := experiments.RunTournament(ctx, cfg, func(p experiments.Progress) {
		if p.Phase == experiments.PhaseRunning && p.CompletedPairings != lastPairing {
			lastPairing = p.CompletedPairings
			log.Info().Msgf("pairing %d/%d: %s", p.CompletedPairings+1, p.TotalPairings, p.CurrentMatchup)
		}
	})
	if err != nil {
		return err
	}
	fmt.Print(experiments.FormatResultsTable(results, cfg.Levels))
	return nil
}

func runThroughput(ctx context.Context, cfg experiments.Config, boards int) error {
	evaluate, err := game.HeuristicByName(cfg.FirstHeuristic)
	if err != nil {
		return err
	}
	out, err := experiments.MeasureThroughput(ctx, cfg.Levels, boards, cfg.Seed, evaluate)
	if err != nil {
		return err
	}
	for _, tp := range out {
		fmt.Printf("%-9s depth=%d searches=%d nodes=%d cutoffs=%d time=%s nodes/s=%.0f\n",
			tp.Level, tp.Depth, tp.Searches, tp.Nodes, tp.Cutoffs, tp.Duration, tp.NodesPerSec)
	}
	return nil
}

// serve runs the HTTP server until ctx is cancelled.
func serve(ctx context.Context, addr string, srv *server.Server) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serveListener(ctx, listener, srv)
}

func serveListener(ctx context.Context, listener net.Listener, srv *server.Server) error {
	httpServer := &http.Server{Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("listening on %s", listener.Addr())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// play runs a terminal game against remote, or against srv on a loopback port
// when remote is empty.
func play(ctx context.Context, remote string, srv *server.Server, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	if remote == "" {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return err
		}
		remote = "http://" + listener.Addr().String()
		g.Go(func() error {
			return serveListener(ctx, listener, srv)
		})
	}

	g.Go(func() error {
		defer cancel()
		return prompt(ctx, client.NewClient(remote), in, out)
	})
	return g.Wait()
}

func prompt(ctx context.Context, c *client.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		status, err := c.AwaitReply(ctx, 100*time.Millisecond)
		if err != nil {
			return err
		}
		if err := game.Render(out, &status.State); err != nil {
			return err
		}
		if status.GameOver {
			fmt.Fprintf(out, "game over, winner: %s\n", status.Winner)
		}
		fmt.Fprint(out, "move <row> <col> | hint | reset [level] | quit > ")

		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "quit", "exit":
			return nil
		case "hint":
			printHints(out, &status.State, status.Human)
		case "reset":
			var level meta.Difficulty
			if len(fields) > 1 {
				level = meta.Difficulty(fields[1])
			}
			if _, err := c.Reset(ctx, level); err != nil {
				fmt.Fprintln(out, err)
			}
		default:
			to, err := parsePosition(fields)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			from := status.State.Horse(status.Human).Position
			if _, err := c.Move(ctx, from, to); err != nil {
				fmt.Fprintln(out, err)
			}
		}
	}
}

func parsePosition(fields []string) (game.Position, error) {
	if fields[0] == "move" {
		fields = fields[1:]
	}
	if len(fields) != 2 {
		return game.Position{}, fmt.Errorf("expected <row> <col>")
	}
	row, errRow := strconv.Atoi(fields[0])
	col, errCol := strconv.Atoi(fields[1])
	if errRow != nil || errCol != nil {
		return game.Position{}, fmt.Errorf("row and col must be integers")
	}
	return game.Position{Row: row, Col: col}, nil
}

// printHints lists the human's moves, nearest to the best reward first.
func printHints(out io.Writer, state *game.GameState, human game.Player) {
	from := state.Horse(human).Position
	moves := make([]game.Move, 0, game.MaxKnightDestinations)
	for _, to := range state.MovesFrom(from) {
		moves = append(moves, game.Move{From: from, To: to})
	}
	if target, points, ok := state.HighestPoint(); ok {
		fmt.Fprintf(out, "best reward: %d at %s\n", points, target)
		moves = game.SortByProximity(moves, target)
	}
	for _, move := range moves {
		fmt.Fprintf(out, "  %s value=%.1f gain=%d\n", move.To, game.PositionValue(move.To, state), state.Cell(move.To).Points)
	}
}
