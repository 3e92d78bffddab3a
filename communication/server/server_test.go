package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"horses/communication/client"
	"horses/communication/server"
	"horses/engine"
	"horses/experiments"
	"horses/game"
	"horses/gamemaster"
	"horses/meta"
	"horses/searcher"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var layout = game.Layout{
	White: game.Position{Row: 2, Col: 2},
	Black: game.Position{Row: 7, Col: 7},
	Points: map[game.Position]int{
		{Row: 0, Col: 1}: 7,
		{Row: 5, Col: 6}: 3,
	},
}

func newTestServer(t *testing.T, options ...gamemaster.Option) (*httptest.Server, *gamemaster.Session) {
	t.Helper()
	options = append([]gamemaster.Option{gamemaster.WithReplyDelay(0), gamemaster.WithSeed(3), gamemaster.WithLayout(layout)}, options...)
	session, err := gamemaster.NewSession(meta.Beginner, options...)
	require.NoError(t, err)
	t.Cleanup(session.Close)

	ts := httptest.NewServer(server.NewServer(session, experiments.DefaultConfig()).Handler())
	t.Cleanup(ts.Close)
	return ts, session
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func readMessage(t *testing.T, conn *websocket.Conn) server.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	var msg server.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestGameAPI(t *testing.T) {
	ctx := context.Background()

	t.Run("reports the live state", func(t *testing.T) {
		ts, _ := newTestServer(t)
		c := client.NewClient(ts.URL)

		status, err := c.State(ctx)

		require.NoError(t, err)
		require.Equal(t, game.White, status.Human)
		require.Equal(t, meta.Beginner, status.Difficulty)
		require.Equal(t, game.Position{Row: 2, Col: 2}, status.State.WhiteHorse.Position)
		require.Equal(t, 7, status.State.Board[0][1].Points)
		require.Equal(t, status.State.Hash(), status.Hash)
		require.False(t, status.GameOver)
	})

	t.Run("plays a move and the engine replies", func(t *testing.T) {
		ts, session := newTestServer(t)
		c := client.NewClient(ts.URL)

		_, err := c.Move(ctx, game.Position{Row: 2, Col: 2}, game.Position{Row: 4, Col: 3})
		require.NoError(t, err)
		session.Wait()
		status, err := c.AwaitReply(ctx, 10*time.Millisecond)

		require.NoError(t, err)
		require.Equal(t, game.White, status.State.CurrentPlayer)
		require.Equal(t, game.Position{Row: 4, Col: 3}, status.State.WhiteHorse.Position)
	})

	t.Run("maps session errors to status codes", func(t *testing.T) {
		ts, _ := newTestServer(t, gamemaster.WithReplyDelay(time.Hour))
		c := client.NewClient(ts.URL)
		var apiErr *client.APIError

		_, err := c.Move(ctx, game.Position{Row: 2, Col: 2}, game.Position{Row: 3, Col: 3})
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadRequest, apiErr.Status)

		_, err = c.Move(ctx, game.Position{Row: 2, Col: 2}, game.Position{Row: 4, Col: 3})
		require.NoError(t, err)

		_, err = c.Move(ctx, game.Position{Row: 4, Col: 3}, game.Position{Row: 6, Col: 4})
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusConflict, apiErr.Status)
		require.Contains(t, apiErr.Message, gamemaster.ErrEngineThinking.Error())
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		ts, _ := newTestServer(t)

		resp, err := http.Post(ts.URL+"/api/move", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, err = http.Get(ts.URL + "/api/moves?row=a&col=1")
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lists destinations of the horse to move", func(t *testing.T) {
		ts, session := newTestServer(t)
		c := client.NewClient(ts.URL)
		state := session.State()

		destinations, err := c.Destinations(ctx, game.Position{Row: 2, Col: 2})
		require.NoError(t, err)
		require.Equal(t, state.MovesFrom(game.Position{Row: 2, Col: 2}), destinations)

		destinations, err = c.Destinations(ctx, game.Position{Row: 7, Col: 7})
		require.NoError(t, err)
		require.Empty(t, destinations)
	})

	t.Run("reset changes difficulty and board", func(t *testing.T) {
		ts, _ := newTestServer(t)
		c := client.NewClient(ts.URL)

		status, err := c.Reset(ctx, "expert")
		require.NoError(t, err)
		require.Equal(t, meta.Expert, status.Difficulty)
		require.Equal(t, game.TotalPoints, status.State.TotalRemainingPoints())

		_, err = c.Reset(ctx, "legend")
		var apiErr *client.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadRequest, apiErr.Status)
	})
}

func TestGameStream(t *testing.T) {
	ts, _ := newTestServer(t)
	c := client.NewClient(ts.URL)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/game"), nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	require.Equal(t, "status", first.Type)

	_, err = c.Move(context.Background(), game.Position{Row: 2, Col: 2}, game.Position{Row: 0, Col: 1})
	require.NoError(t, err)

	msg := readMessage(t, conn)
	require.Equal(t, "update", msg.Type)
	var u gamemaster.Update
	require.NoError(t, json.Unmarshal(msg.Payload, &u))
	require.Equal(t, game.White, u.Side)
	require.Equal(t, 7, u.State.WhiteScore)
	require.Equal(t, game.Position{Row: 0, Col: 1}, u.Move.To)
}

func TestTournamentStream(t *testing.T) {
	t.Run("streams progress then results", func(t *testing.T) {
		ts, _ := newTestServer(t)
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/tournament?levels=beginner&matches=1&seed=5"), nil)
		require.NoError(t, err)
		defer conn.Close()

		var last experiments.Progress
		for {
			msg := readMessage(t, conn)
			if msg.Type == "ping" {
				continue
			}
			if msg.Type == "results" {
				var result server.TournamentResult
				require.NoError(t, json.Unmarshal(msg.Payload, &result))
				pairing := result.Results["(BEGINNER,BEGINNER)"]
				require.Equal(t, 1, pairing.FirstWins+pairing.SecondWins+pairing.Draws)
				require.Contains(t, result.Table, "BEGINNER")
				break
			}
			require.Equal(t, "progress", msg.Type)
			require.NoError(t, json.Unmarshal(msg.Payload, &last))
		}
		require.Equal(t, experiments.PhaseCompleted, last.Phase)
		require.Equal(t, 1, last.CompletedMatches)
	})

	t.Run("rejects bad parameters before upgrading", func(t *testing.T) {
		ts, _ := newTestServer(t)

		resp, err := http.Get(ts.URL + "/ws/tournament?levels=legend")
		require.NoError(t, err)
		resp.Body.Close()

		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSearchAPI(t *testing.T) {
	t.Run("matches a local search", func(t *testing.T) {
		ts, _ := newTestServer(t)
		state, err := game.NewSeededGameState(13, game.Black)
		require.NoError(t, err)
		local, err := searcher.NewMinimax(4, searcher.WithEvaluationFn(game.EvaluateDefensive))
		require.NoError(t, err)
		remote := engine.NewRemoteAgent(ts.URL, "s1", meta.Amateur, "defensive")

		want, _ := local.FindBestMove(state)
		got, ok, metric := remote.Search(state)

		require.NoError(t, remote.Err())
		require.True(t, ok)
		require.Equal(t, want, got)
		require.Equal(t, 4, metric.Depth)
		require.Greater(t, metric.Nodes, 0)
	})

	t.Run("keeps the repetition history of a session", func(t *testing.T) {
		ts, _ := newTestServer(t)
		state, err := game.NewSeededGameState(14, game.White)
		require.NoError(t, err)
		require.Greater(t, len(state.LegalMoves()), 1)
		remote := engine.NewRemoteAgent(ts.URL, "s2", meta.Beginner, "aggressive")

		first, _, _ := remote.Search(state)
		remote.Search(state)
		third, _, _ := remote.Search(state)

		require.NoError(t, remote.Err())
		require.NotEqual(t, first, third, "Third pick of the same move should be refused")
	})

	t.Run("rejects unknown levels", func(t *testing.T) {
		ts, _ := newTestServer(t)
		state, err := game.NewSeededGameState(15, game.White)
		require.NoError(t, err)
		remote := engine.NewRemoteAgent(ts.URL, "", meta.Difficulty("LEGEND"), "aggressive")

		remote.Search(state)

		require.ErrorContains(t, remote.Err(), "400")
	})

	t.Run("serves the second side of a tournament", func(t *testing.T) {
		ts, _ := newTestServer(t)
		cfg := experiments.DefaultConfig()
		cfg.Levels = []meta.Difficulty{meta.Beginner}
		cfg.RemoteURL = ts.URL

		results, err := experiments.RunTournament(context.Background(), cfg, nil)

		require.NoError(t, err)
		pairing := results["(BEGINNER,BEGINNER)"]
		require.Equal(t, 1, pairing.FirstWins+pairing.SecondWins+pairing.Draws)
	})
}
