package server

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/config"
	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/VelascoAMath/phase.ten/internal/lock"
	"github.com/VelascoAMath/phase.ten/internal/repository"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"
)

func newTestServer(t *testing.T, origins ...string) *httptest.Server {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return newTestServerWith(t, func(cfg *config.ServerConfig) { cfg.AllowedOrigins = origins })
}

func newTestServerWith(t *testing.T, tune func(cfg *config.ServerConfig)) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine := game.NewEngine(repository.NewMemory(), lock.NewLocal(), logger,
		game.WithRandSource(rand.NewSource(3)),
	)
	cfg := config.ServerConfig{
		ReadTimeout:    time.Minute,
		WriteTimeout:   5 * time.Second,
		AllowedOrigins: []string{"*"},
		PollInterval:   time.Hour,
		MaxMessageSize: 1 << 16,
	}
	tune(&cfg)
	hub := NewHub(engine, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	srv := httptest.NewServer(NewHTTPServer(cfg, hub).Handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// expect reads frames until one satisfies match. Unrelated pushes such as
// lobby broadcasts are skipped.
func expect(t *testing.T, conn *websocket.Conn, match func(gjson.Result) bool) gjson.Result {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		doc := gjson.ParseBytes(data)
		if match(doc) {
			return doc
		}
	}
}

func ofType(kind string) func(gjson.Result) bool {
	return func(doc gjson.Result) bool { return doc.Get("type").String() == kind }
}

func register(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	send(t, conn, map[string]any{"type": MsgRegister, "name": name})
	return expect(t, conn, ofType(MsgUser)).Get("data.id").String()
}

func TestLobbyAndPlayOverWebSocket(t *testing.T) {
	srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)

	aliceID := register(t, alice, "alice")
	bobID := register(t, bob, "bob")
	require.NotEmpty(t, aliceID)
	require.NotEqual(t, aliceID, bobID)

	send(t, alice, map[string]any{"type": MsgCreateGame, "user_id": aliceID})
	created := expect(t, alice, ofType(MsgPlayer))
	gameID := created.Get("data.game.id").String()
	assert.Equal(t, aliceID, created.Get("data.player.user_id").String())

	send(t, bob, map[string]any{"type": MsgJoinGame, "game_id": gameID, "user_id": bobID})
	joined := expect(t, bob, func(doc gjson.Result) bool {
		return ofType(MsgPlayer)(doc) && doc.Get("data.player.user_id").String() == bobID
	})
	assert.Equal(t, int64(2), joined.Get("data.game.players.#").Int())

	send(t, bob, map[string]any{"type": MsgStartGame, "game_id": gameID, "user_id": bobID})
	rejected := expect(t, bob, ofType(MsgRejection))
	assert.Contains(t, rejected.Get("data.message").String(), "only the host")

	send(t, alice, map[string]any{"type": MsgStartGame, "game_id": gameID, "user_id": aliceID})
	running := func(doc gjson.Result) bool {
		return ofType(MsgPlayer)(doc) && doc.Get("data.game.in_progress").Bool()
	}
	pushed := expect(t, alice, running)
	expect(t, bob, running)

	current := pushed.Get("data.game.current_player").String()
	conn := alice
	if current != pushed.Get("data.player.id").String() {
		conn = bob
	}
	send(t, conn, map[string]any{"type": MsgPlayerAction, "player_id": current, "action": "draw_deck"})
	drew := expect(t, conn, func(doc gjson.Result) bool {
		return ofType(MsgPlayer)(doc) && doc.Get("data.player.drew_card").Bool()
	})
	assert.Equal(t, int64(11), drew.Get("data.player.hand.#").Int())

	send(t, conn, map[string]any{"type": MsgPlayerAction, "player_id": current, "action": "draw_deck"})
	again := expect(t, conn, ofType(MsgRejection))
	assert.Contains(t, again.Get("data.message").String(), "already drew")

	send(t, alice, map[string]any{"type": MsgListGames})
	games := expect(t, alice, ofType(MsgGames))
	assert.Equal(t, int64(1), games.Get("data.#").Int())
	assert.True(t, games.Get("data.0.in_progress").Bool())
}

func TestMalformedMessagesAreRejected(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	for _, tt := range []struct {
		frame string
		want  string
	}{
		{`{"hello":"world"}`, "message has no type"},
		{`{"type":"fly"}`, "unknown message type fly"},
		{`{"type":"create_game","user_id":"not-a-uuid"}`, "malformed message"},
		{`{"type":"player_action","player_id":"00000000-0000-0000-0000-000000000001","action":"draw_deck"}`, "not found"},
		{`{"type":"register","name":""}`, "name must not be empty"},
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)))
		doc := expect(t, conn, ofType(MsgRejection))
		assert.Contains(t, doc.Get("data.message").String(), tt.want, tt.frame)
	}
}

func TestHostDeletingGameNotifiesSeats(t *testing.T) {
	srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	aliceID := register(t, alice, "alice")
	bobID := register(t, bob, "bob")

	send(t, alice, map[string]any{"type": MsgCreateGame, "user_id": aliceID})
	gameID := expect(t, alice, ofType(MsgPlayer)).Get("data.game.id").String()
	send(t, bob, map[string]any{"type": MsgJoinGame, "game_id": gameID, "user_id": bobID})
	expect(t, bob, ofType(MsgPlayer))

	send(t, alice, map[string]any{"type": MsgDeleteGame, "game_id": gameID, "user_id": aliceID})
	deleted := expect(t, bob, ofType(MsgGameDeleted))
	assert.Equal(t, gameID, deleted.Get("game_id").String())
	expect(t, alice, ofType(MsgGameDeleted))
}

func TestOriginCheck(t *testing.T) {
	srv := newTestServer(t, "http://good.example")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://good.example"}})
	require.NoError(t, err)
	conn.Close()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestReplayIsHiddenUntilGameIsWon(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)
	userID := register(t, conn, "alice")

	send(t, conn, map[string]any{"type": MsgCreateGame, "user_id": userID})
	gameID := expect(t, conn, ofType(MsgPlayer)).Get("data.game.id").String()

	send(t, conn, map[string]any{"type": MsgGetReplay, "game_id": gameID})
	doc := expect(t, conn, ofType(MsgRejection))
	assert.Contains(t, doc.Get("data.message").String(), "once the game is won")
}

func TestIdleClientIsKeptAlive(t *testing.T) {
	srv := newTestServerWith(t, func(cfg *config.ServerConfig) {
		cfg.ReadTimeout = 300 * time.Millisecond
	})
	conn := dial(t, srv)

	// The default ping handler answers with a pong, but only while reading.
	frames := make(chan []byte, 16)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			frames <- data
		}
	}()

	select {
	case err := <-readErr:
		t.Fatalf("idle connection dropped: %v", err)
	case <-time.After(time.Second):
	}

	send(t, conn, map[string]any{"type": MsgRegister, "name": "idle"})
	deadline := time.After(5 * time.Second)
	for {
		select {
		case data := <-frames:
			if gjson.GetBytes(data, "type").String() == MsgUser {
				assert.Equal(t, "idle", gjson.GetBytes(data, "data.name").String())
				return
			}
		case err := <-readErr:
			t.Fatalf("connection dropped: %v", err)
		case <-deadline:
			t.Fatal("no reply after idling")
		}
	}
}
