package server

import (
	"context"
	"sync"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/config"
	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub owns the connected clients and pushes game changes to them.
type Hub struct {
	engine *game.Engine
	logger *zap.Logger
	cfg    config.ServerConfig

	clients       map[*Client]bool
	register      chan *Client
	unregister    chan *Client
	notifications chan game.GameNotification
	direct        chan outbound
	done          chan struct{}

	botsMu  sync.Mutex
	botRuns map[uuid.UUID]bool
	wg      sync.WaitGroup
}

// NewHub creates a hub and subscribes it to the engine's notifications.
func NewHub(engine *game.Engine, cfg config.ServerConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		engine:        engine,
		logger:        logger,
		cfg:           cfg,
		clients:       make(map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		notifications: make(chan game.GameNotification, 256),
		direct:        make(chan outbound, 256),
		done:          make(chan struct{}),
		botRuns:       make(map[uuid.UUID]bool),
	}
	engine.SetNotificationHandler(h.enqueue)
	return h
}

// enqueue runs on the goroutine that applied the change, so it must not block.
func (h *Hub) enqueue(n game.GameNotification) {
	select {
	case h.notifications <- n:
	default:
		h.logger.Warn("notification queue full, dropping update",
			zap.String("game_id", n.GameID.String()),
			zap.String("type", n.Type),
		)
	}
}

type outbound struct {
	client  *Client
	message []byte
}

// send queues a reply to one client.
func (h *Hub) send(client *Client, message []byte) {
	select {
	case h.direct <- outbound{client: client, message: message}:
	case <-h.done:
	}
}

// Run serves the hub until ctx is done and then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.wg.Wait()
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("client registered", zap.String("remote", client.remote))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("client unregistered", zap.String("remote", client.remote))
			}

		case out := <-h.direct:
			if h.clients[out.client] {
				h.deliver(out.client, out.message)
			}

		case n := <-h.notifications:
			h.fanOut(ctx, n)
		}
	}
}

// deliver drops clients that stopped reading. Only Run may call it.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.send <- message:
	default:
		close(client.send)
		delete(h.clients, client)
		h.logger.Warn("client too slow, disconnected", zap.String("remote", client.remote))
	}
}

func (h *Hub) fanOut(ctx context.Context, n game.GameNotification) {
	switch n.Type {
	case game.NotificationLobby:
		h.broadcastGames(ctx)

	case game.NotificationGameDeleted:
		msg := encode(h.logger, WSMessage{Type: MsgGameDeleted, GameID: n.GameID})
		for client := range h.clients {
			if gameID, _ := client.seat(); gameID == n.GameID {
				client.leave()
				h.deliver(client, msg)
			}
		}
		h.broadcastGames(ctx)

	case game.NotificationGameUpdate:
		for client := range h.clients {
			gameID, playerID := client.seat()
			if gameID != n.GameID || playerID == uuid.Nil {
				continue
			}
			res, err := h.engine.GetPlayerView(ctx, playerID)
			if err != nil {
				h.logger.Debug("no view for client", zap.String("player_id", playerID.String()), zap.Error(err))
				continue
			}
			h.deliver(client, encode(h.logger, WSMessage{Type: MsgPlayer, GameID: gameID, PlayerID: playerID, Data: res}))
		}
		if changesLobby(n.Events) {
			h.broadcastGames(ctx)
		}
		h.startBots(ctx, n.GameID)
	}
}

func changesLobby(events []game.Event) bool {
	for _, ev := range events {
		switch ev.Type {
		case game.EventGameStarted, game.EventGameWon, game.EventPlayerJoined, game.EventPlayerLeft, game.EventPhasesEdited:
			return true
		}
	}
	return false
}

func (h *Hub) broadcastGames(ctx context.Context) {
	games, err := h.engine.ListGames(ctx)
	if err != nil {
		h.logger.Error("failed to list games", zap.Error(err))
		return
	}
	msg := encode(h.logger, WSMessage{Type: MsgGames, Data: games})
	for client := range h.clients {
		h.deliver(client, msg)
	}
}

// startBots plays pending bot turns of a game in the background. At most one
// run per game is active.
func (h *Hub) startBots(ctx context.Context, gameID uuid.UUID) {
	h.botsMu.Lock()
	if h.botRuns[gameID] {
		h.botsMu.Unlock()
		return
	}
	h.botRuns[gameID] = true
	h.botsMu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.botsMu.Lock()
			delete(h.botRuns, gameID)
			h.botsMu.Unlock()
		}()
		moves, err := h.engine.RunBots(ctx, gameID)
		if err != nil && ctx.Err() == nil {
			h.logger.Error("bot run failed", zap.String("game_id", gameID.String()), zap.Error(err))
			return
		}
		if moves > 0 {
			h.logger.Debug("bots moved", zap.String("game_id", gameID.String()), zap.Int("moves", moves))
		}
	}()
}

// PollSlowPlayers passes the turn of players who ran out of time, once per
// poll interval, until ctx is done.
func (h *Hub) PollSlowPlayers(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := h.engine.SkipExpired(ctx)
			if err != nil && ctx.Err() == nil {
				h.logger.Error("slow player poll failed", zap.Error(err))
				continue
			}
			if n > 0 {
				h.logger.Info("skipped slow players", zap.Int("games", n))
			}
		}
	}
}

func encode(logger *zap.Logger, msg WSMessage) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		data, _ = json.Marshal(WSMessage{Type: MsgRejection, Data: rejection{Message: "internal error"}})
	}
	return data
}
