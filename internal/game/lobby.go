package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lobby action names used in rejections.
const (
	actionRegister   ActionType = "register"
	actionCreateGame ActionType = "create_game"
	actionJoinGame   ActionType = "join_game"
	actionLeaveGame  ActionType = "unjoin_game"
	actionAddBot     ActionType = "add_bot"
	actionEditPhases ActionType = "edit_game_phase"
	actionStartGame  ActionType = "start_game"
	actionDeleteGame ActionType = "delete_game"
	actionSkipSlow   ActionType = "skip_slow_player"
)

// RegisterUser returns the user with the given name, creating it first when
// it does not exist yet.
func (e *Engine) RegisterUser(ctx context.Context, name, display string) (*User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, illegal(actionRegister, "name must not be empty")
	}
	u, err := e.store.GetUserByName(ctx, name)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if display == "" {
		display = name
	}
	u = &User{
		ID:        uuid.New(),
		Name:      name,
		Display:   display,
		Token:     uuid.NewString(),
		CreatedAt: e.clock(),
	}
	if err := e.store.SaveUser(ctx, u); err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	e.logger.Info("user registered",
		zap.String("user_id", u.ID.String()),
		zap.String("name", u.Name),
	)
	return u, nil
}

// CreateGame opens a new game hosted by userID and seats the host.
func (e *Engine) CreateGame(ctx context.Context, userID uuid.UUID) (*Result, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsBot {
		return nil, illegal(actionCreateGame, "bots cannot host games")
	}
	now := e.clock()
	g := &Game{
		ID:        uuid.New(),
		PhaseList: append([]string(nil), e.defaultPhases...),
		Host:      u.ID,
		TimeLimit: e.defaultTimeLimit,
		LastMove:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t := &table{game: g, users: map[uuid.UUID]*User{u.ID: u}}
	host := t.seat(u, now)

	if err := e.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		return t.save(ctx, tx)
	}); err != nil {
		return nil, fmt.Errorf("save game %s: %w", g.ID, err)
	}
	e.logger.Info("game created",
		zap.String("game_id", g.ID.String()),
		zap.String("host", u.ID.String()),
	)
	e.emit(GameNotification{Type: NotificationLobby, GameID: g.ID, Timestamp: now})
	return e.result(t, host.ID), nil
}

func (t *table) seat(u *User, now time.Time) *Player {
	p := &Player{
		ID:        uuid.New(),
		GameID:    t.game.ID,
		UserID:    u.ID,
		TurnIndex: len(t.players),
		CreatedAt: now,
	}
	t.players = append(t.players, p)
	t.users[u.ID] = u
	t.record(EventPlayerJoined, p.ID, len(t.players))
	return p
}

func requireLobby(action ActionType, g *Game) error {
	if g.Over() {
		return ErrGameOver
	}
	if g.InProgress {
		return illegal(action, "game has already started")
	}
	return nil
}

func requireHost(action ActionType, g *Game, userID uuid.UUID) error {
	if g.Host != userID {
		return illegal(action, "only the host can do this")
	}
	return nil
}

func (e *Engine) join(ctx context.Context, action ActionType, gameID uuid.UUID, u *User, check func(t *table) error) (*Result, error) {
	var seated uuid.UUID
	t, err := e.withGame(ctx, gameID, func(t *table) error {
		if err := requireLobby(action, t.game); err != nil {
			return err
		}
		if check != nil {
			if err := check(t); err != nil {
				return err
			}
		}
		for _, p := range t.players {
			if p.UserID == u.ID {
				return illegal(action, "%s is already in this game", u.Name)
			}
		}
		seated = t.seat(u, e.clock()).ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notifyGame(gameID, seated, t.events)
	return e.result(t, seated), nil
}

// JoinGame seats userID in a game that has not started.
func (e *Engine) JoinGame(ctx context.Context, gameID, userID uuid.UUID) (*Result, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.join(ctx, actionJoinGame, gameID, u, nil)
}

// AddBot creates a bot user and seats it. Only the host may add bots.
func (e *Engine) AddBot(ctx context.Context, gameID, hostID uuid.UUID) (*Result, error) {
	bot := &User{
		ID:        uuid.New(),
		IsBot:     true,
		CreatedAt: e.clock(),
	}
	bot.Name = "bot-" + bot.ID.String()[:8]
	bot.Display = "Bot " + strings.ToUpper(bot.ID.String()[:4])

	if err := e.store.SaveUser(ctx, bot); err != nil {
		return nil, fmt.Errorf("save bot: %w", err)
	}
	res, err := e.join(ctx, actionAddBot, gameID, bot, func(t *table) error {
		return requireHost(actionAddBot, t.game, hostID)
	})
	if err != nil {
		if derr := e.store.DeleteUser(ctx, bot.ID); derr != nil {
			e.logger.Warn("failed to remove unused bot", zap.String("user_id", bot.ID.String()), zap.Error(derr))
		}
		return nil, err
	}
	return res, nil
}

// LeaveGame removes a seat before the game starts. When the host leaves the
// whole game is deleted.
func (e *Engine) LeaveGame(ctx context.Context, playerID uuid.UUID) error {
	p, err := e.store.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	g, err := e.store.GetGame(ctx, p.GameID)
	if err != nil {
		return err
	}
	if g.Host == p.UserID {
		return e.DeleteGame(ctx, g.ID, p.UserID)
	}

	t, err := e.withGame(ctx, p.GameID, func(t *table) error {
		if err := requireLobby(actionLeaveGame, t.game); err != nil {
			return err
		}
		if t.player(playerID) == nil {
			return notFound("player", playerID)
		}
		t.removePlayer(playerID)
		t.record(EventPlayerLeft, playerID, len(t.players))
		return nil
	})
	if err != nil {
		return err
	}
	e.notifyGame(t.game.ID, playerID, t.events)
	return nil
}

// EditPhases replaces the phase list of a game that has not started. Every
// entry must compile.
func (e *Engine) EditPhases(ctx context.Context, gameID, hostID uuid.UUID, phases []string) (*GameView, error) {
	cleaned := make([]string, 0, len(phases))
	for _, spec := range phases {
		if spec = strings.ToUpper(strings.TrimSpace(spec)); spec != "" {
			cleaned = append(cleaned, spec)
		}
	}
	if err := rules.ValidatePhaseList(cleaned); err != nil {
		return nil, err
	}
	t, err := e.withGame(ctx, gameID, func(t *table) error {
		if err := requireLobby(actionEditPhases, t.game); err != nil {
			return err
		}
		if err := requireHost(actionEditPhases, t.game, hostID); err != nil {
			return err
		}
		t.game.PhaseList = cleaned
		for _, p := range t.players {
			p.PhaseIndex = 0
		}
		t.record(EventPhasesEdited, uuid.Nil, len(cleaned))
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notifyGame(gameID, uuid.Nil, t.events)
	return e.gameView(t), nil
}

// StartGame shuffles the seating once and deals the first round.
func (e *Engine) StartGame(ctx context.Context, gameID, hostID uuid.UUID) (*GameView, error) {
	t, err := e.withGame(ctx, gameID, func(t *table) error {
		if err := requireLobby(actionStartGame, t.game); err != nil {
			return err
		}
		if err := requireHost(actionStartGame, t.game, hostID); err != nil {
			return err
		}
		if len(t.players) < 2 {
			return illegal(actionStartGame, "at least two players are needed")
		}
		e.shuffle(func(rng *rand.Rand) {
			rng.Shuffle(len(t.players), func(i, j int) {
				t.players[i], t.players[j] = t.players[j], t.players[i]
			})
		})
		t.reseat()
		t.actor, t.action = hostID, actionStartGame
		t.game.InProgress = true
		t.record(EventGameStarted, uuid.Nil, len(t.players))
		return e.startRound(t)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("game started",
		zap.String("game_id", gameID.String()),
		zap.Int("players", len(t.players)),
	)
	e.notifyGame(gameID, uuid.Nil, t.events)
	return e.gameView(t), nil
}

// DeleteGame removes a game with its seats and piles. Only the host may
// delete a game.
func (e *Engine) DeleteGame(ctx context.Context, gameID, hostID uuid.UUID) error {
	unlock, err := e.locker.Lock(ctx, gameLockKey(gameID))
	if err != nil {
		return fmt.Errorf("lock game %s: %w", gameID, err)
	}
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		unlock()
		return err
	}
	if err := requireHost(actionDeleteGame, g, hostID); err != nil {
		unlock()
		return err
	}
	err = e.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		if err := tx.DeletePhaseDecksInGame(ctx, gameID); err != nil {
			return err
		}
		players, err := tx.PlayersInGame(ctx, gameID)
		if err != nil {
			return err
		}
		for _, p := range players {
			if err := tx.DeletePlayer(ctx, p.ID); err != nil {
				return err
			}
		}
		return tx.DeleteGame(ctx, gameID)
	})
	unlock()
	if err != nil {
		return fmt.Errorf("delete game %s: %w", gameID, err)
	}

	if e.replays != nil {
		e.replays.ClearReplay(gameID)
	}
	e.logger.Info("game deleted", zap.String("game_id", gameID.String()))
	e.emit(GameNotification{Type: NotificationGameDeleted, GameID: gameID, Timestamp: e.clock()})
	return nil
}

// SkipSlowPlayer passes the turn of a current player who let the game's time
// limit run out.
func (e *Engine) SkipSlowPlayer(ctx context.Context, gameID uuid.UUID) (*GameView, error) {
	t, err := e.withGame(ctx, gameID, func(t *table) error {
		g := t.game
		if g.Over() {
			return ErrGameOver
		}
		if !g.InProgress {
			return illegal(actionSkipSlow, "game has not started")
		}
		if g.TimeLimit <= 0 {
			return illegal(actionSkipSlow, "game has no time limit")
		}
		if !e.clock().After(g.LastMove.Add(g.TimeLimit)) {
			return illegal(actionSkipSlow, "the current player still has time")
		}
		cur := t.player(g.CurrentPlayer)
		if cur == nil {
			return notFound("player", g.CurrentPlayer)
		}
		t.actor, t.action = cur.ID, actionSkipSlow
		t.record(EventSlowSkipped, cur.ID, 0)
		// The newest card goes on the discard, unless it is the last one.
		if cur.DrewCard && len(cur.Hand) > 1 {
			rest, card, _ := cur.Hand.Pop()
			cur.Hand = rest
			g.Discard = append(g.Discard, card)
			t.record(EventDiscarded, cur.ID, 1)
		}
		e.advance(t, cur)
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("slow player skipped",
		zap.String("game_id", gameID.String()),
		zap.String("next_player", t.game.CurrentPlayer.String()),
	)
	e.notifyGame(gameID, uuid.Nil, t.events)
	return e.gameView(t), nil
}

// SkipExpired runs SkipSlowPlayer on every game whose current player is out
// of time and reports how many turns were passed.
func (e *Engine) SkipExpired(ctx context.Context) (int, error) {
	games, err := e.store.ListGames(ctx)
	if err != nil {
		return 0, err
	}
	now := e.clock()
	skipped := 0
	for _, g := range games {
		if !g.InProgress || g.Over() || g.TimeLimit <= 0 || !now.After(g.LastMove.Add(g.TimeLimit)) {
			continue
		}
		if _, err := e.SkipSlowPlayer(ctx, g.ID); err != nil {
			if IsRejection(err) {
				continue
			}
			return skipped, err
		}
		skipped++
	}
	return skipped, nil
}
