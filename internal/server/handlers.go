package server

import (
	"context"
	"errors"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

func (h *Hub) handleMessage(c *Client, message []byte) {
	kind := gjson.GetBytes(message, "type").String()
	if kind == "" {
		h.reject(c, "message has no type")
		return
	}
	h.logger.Debug("message received", zap.String("type", kind), zap.String("remote", c.remote))

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := h.route(ctx, c, kind, message); err != nil {
		if game.IsRejection(err) {
			h.reject(c, err.Error())
			return
		}
		h.logger.Error("message failed", zap.String("type", kind), zap.Error(err))
		h.reject(c, "internal error")
	}
}

func (h *Hub) route(ctx context.Context, c *Client, kind string, message []byte) error {
	if kind == MsgPlayerAction {
		var action game.Action
		if err := json.Unmarshal(message, &action); err != nil {
			return &game.IllegalActionError{Reason: "malformed action: " + err.Error()}
		}
		res, err := h.engine.ProcessAction(ctx, action)
		if err != nil {
			return err
		}
		h.replyPlayer(c, res)
		return nil
	}

	switch kind {
	case MsgRegister:
		var req registerRequest
		if err := json.Unmarshal(message, &req); err != nil {
			return malformed(err)
		}
		u, err := h.engine.RegisterUser(ctx, req.Name, req.Display)
		if err != nil {
			return err
		}
		h.reply(c, WSMessage{Type: MsgUser, Data: u})
		return nil

	case MsgListGames:
		games, err := h.engine.ListGames(ctx)
		if err != nil {
			return err
		}
		h.reply(c, WSMessage{Type: MsgGames, Data: games})
		return nil
	}

	var req gameRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return malformed(err)
	}

	switch kind {
	case MsgCreateGame:
		res, err := h.engine.CreateGame(ctx, req.UserID)
		if err != nil {
			return err
		}
		h.replyPlayer(c, res)

	case MsgJoinGame:
		res, err := h.engine.JoinGame(ctx, req.GameID, req.UserID)
		if err != nil {
			return err
		}
		h.replyPlayer(c, res)

	case MsgAddBot:
		if _, err := h.engine.AddBot(ctx, req.GameID, req.UserID); err != nil {
			return err
		}

	case MsgLeaveGame:
		if err := h.engine.LeaveGame(ctx, req.PlayerID); err != nil {
			return err
		}
		c.leave()
		h.reply(c, WSMessage{Type: MsgLeft, PlayerID: req.PlayerID})

	case MsgEditPhases:
		view, err := h.engine.EditPhases(ctx, req.GameID, req.UserID, req.PhaseList)
		if err != nil {
			return err
		}
		h.reply(c, WSMessage{Type: MsgGame, GameID: view.ID, Data: view})

	case MsgStartGame:
		if _, err := h.engine.StartGame(ctx, req.GameID, req.UserID); err != nil {
			return err
		}

	case MsgDeleteGame:
		if err := h.engine.DeleteGame(ctx, req.GameID, req.UserID); err != nil {
			return err
		}

	case MsgGetPlayer:
		res, err := h.engine.GetPlayerView(ctx, req.PlayerID)
		if err != nil {
			return err
		}
		h.replyPlayer(c, res)

	case MsgSkipSlowPlayer:
		view, err := h.engine.SkipSlowPlayer(ctx, req.GameID)
		if err != nil {
			return err
		}
		h.reply(c, WSMessage{Type: MsgGame, GameID: view.ID, Data: view})

	case MsgGetReplay:
		view, err := h.engine.GetGameView(ctx, req.GameID)
		if err != nil {
			return err
		}
		// Snapshots show every hand.
		if !view.Winner.Valid {
			return &game.IllegalActionError{Action: MsgGetReplay, Reason: "replays are available once the game is won"}
		}
		replay, err := h.engine.Replay(req.GameID)
		if errors.Is(err, game.ErrNoReplay) {
			return &game.IllegalActionError{Action: MsgGetReplay, Reason: err.Error()}
		}
		if err != nil {
			return err
		}
		h.reply(c, WSMessage{Type: MsgReplay, GameID: req.GameID, Data: replay.States})

	default:
		return &game.IllegalActionError{Reason: "unknown message type " + kind}
	}
	return nil
}

func malformed(err error) error {
	return &game.IllegalActionError{Reason: "malformed message: " + err.Error()}
}

// replyPlayer sends the player's view and makes the client follow that seat.
func (h *Hub) replyPlayer(c *Client, res *game.Result) {
	var gameID, playerID uuid.UUID
	if res.Game != nil {
		gameID = res.Game.ID
	}
	if res.Player != nil {
		playerID = res.Player.ID
		c.attach(gameID, playerID)
	}
	h.reply(c, WSMessage{Type: MsgPlayer, GameID: gameID, PlayerID: playerID, Data: res})
}

func (h *Hub) reply(c *Client, msg WSMessage) {
	h.send(c, encode(h.logger, msg))
}

func (h *Hub) reject(c *Client, reason string) {
	h.reply(c, WSMessage{Type: MsgRejection, Data: rejection{Message: reason}})
}
