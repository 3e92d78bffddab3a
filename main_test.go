package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"horses/communication/server"
	"horses/experiments"
	"horses/game"
	"horses/gamemaster"
	"horses/meta"

	"github.com/stretchr/testify/require"
)

func TestPlayPrompt(t *testing.T) {
	session, err := gamemaster.NewSession(meta.Beginner,
		gamemaster.WithReplyDelay(0),
		gamemaster.WithLayout(game.Layout{
			White:  game.Position{Row: 2, Col: 2},
			Black:  game.Position{Row: 7, Col: 7},
			Points: map[game.Position]int{{Row: 0, Col: 1}: 7, {Row: 5, Col: 6}: 3},
		}))
	require.NoError(t, err)
	defer session.Close()
	srv := server.NewServer(session, experiments.DefaultConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out bytes.Buffer
	in := strings.NewReader("hint\nmove 9 9\n0 1\nquit\n")

	err = play(ctx, "", srv, in, &out)

	require.NoError(t, err)
	text := out.String()
	require.Contains(t, text, "best reward: 7 at (0,1)")
	require.Contains(t, text, "illegal move")
	require.Equal(t, 7, session.State().WhiteScore)
}

func TestPlayRemote(t *testing.T) {
	t.Run("no local session is built for a remote game", func(t *testing.T) {
		srv, closeSession, err := localServer("http://127.0.0.1:1", "BEGINNER", "black", 0, experiments.DefaultConfig())

		require.NoError(t, err)
		require.Nil(t, srv)
		closeSession()
	})

	t.Run("a local game gets its own server", func(t *testing.T) {
		srv, closeSession, err := localServer("", "BEGINNER", "white", 4, experiments.DefaultConfig())

		require.NoError(t, err)
		require.NotNil(t, srv)
		closeSession()
	})

	t.Run("plays against a remote server", func(t *testing.T) {
		session, err := gamemaster.NewSession(meta.Beginner,
			gamemaster.WithReplyDelay(0),
			gamemaster.WithLayout(game.Layout{
				White:  game.Position{Row: 2, Col: 2},
				Black:  game.Position{Row: 7, Col: 7},
				Points: map[game.Position]int{{Row: 0, Col: 1}: 7, {Row: 5, Col: 6}: 3},
			}))
		require.NoError(t, err)
		defer session.Close()
		ts := httptest.NewServer(server.NewServer(session, experiments.DefaultConfig()).Handler())
		defer ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var out bytes.Buffer
		err = play(ctx, ts.URL, nil, strings.NewReader("0 1\nquit\n"), &out)

		require.NoError(t, err)
		require.Equal(t, 7, session.State().WhiteScore)
	})
}

func TestParsePosition(t *testing.T) {
	pos, err := parsePosition([]string{"move", "3", "4"})
	require.NoError(t, err)
	require.Equal(t, game.Position{Row: 3, Col: 4}, pos)

	_, err = parsePosition([]string{"3"})
	require.Error(t, err)
	_, err = parsePosition([]string{"a", "b"})
	require.Error(t, err)
}
