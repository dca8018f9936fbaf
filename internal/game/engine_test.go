package game_test

import (
	"testing"

	"github.com/VelascoAMath/phase.ten/internal/game"
	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/VelascoAMath/phase.ten/internal/game/rules"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartGameDealsFirstRound(t *testing.T) {
	f := newFixture(t)
	gameID, seats := f.started("alice", "bob", "carol")

	g := f.game(gameID)
	assert.True(t, g.InProgress)
	assert.Equal(t, 1, g.Round)
	assert.Equal(t, seats[0].ID, g.CurrentPlayer)
	assert.Len(t, g.Discard, 1)
	assert.Len(t, g.Deck, cards.DeckSize-3*10-1)
	for i, p := range seats {
		assert.Equal(t, i, p.TurnIndex)
		assert.Len(t, p.Hand, 10)
		assert.Equal(t, 0, p.PhaseIndex)
	}

	first, err := f.engine.GetPlayerView(f.ctx, seats[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rules.TurnMustDraw.String(), first.Player.State)
	assert.NotEmpty(t, first.Game.Checksum.Hash)

	second, err := f.engine.GetPlayerView(f.ctx, seats[1].ID)
	require.NoError(t, err)
	assert.Equal(t, rules.TurnWaiting.String(), second.Player.State)
}

func TestActionsBeforeStartAreRejected(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.lobby("alice", "bob")
	players := f.seats(gameID)

	_, err := f.act(draw(players[0]))
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	assert.Contains(t, err.Error(), "has not started")

	_, err = f.act(game.Action{PlayerID: uuid.New(), Type: game.ActionDrawDeck})
	assert.ErrorIs(t, err, game.ErrNotFound)
}

func TestOutOfTurnActionLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	gameID, seats := f.started("alice", "bob", "carol")
	before := f.checksum(gameID)

	for _, a := range []game.Action{
		draw(seats[1]),
		{PlayerID: seats[2].ID, Type: game.ActionDrawDiscard},
		{PlayerID: seats[0].ID, Type: game.ActionDiscard, Cards: seats[0].Hand[:1]},
		{PlayerID: seats[0].ID, Type: game.ActionDoSkip},
		{PlayerID: seats[0].ID, Type: "shuffle_everything"},
	} {
		_, err := f.act(a)
		require.Error(t, err, "action %s by %s", a.Type, a.PlayerID)
		assert.True(t, game.IsRejection(err))
	}
	assert.Equal(t, before, f.checksum(gameID))
}

func TestDrawThenDiscardPassesTurn(t *testing.T) {
	f := newFixture(t)
	gameID, seats := f.started("alice", "bob")
	seats = f.arrange(gameID, layout{
		hands:   []string{"R1 R2 R3", "B1 B2 B3"},
		discard: "G7",
	})

	res := f.mustAct(draw(seats[0]))
	assert.Len(t, res.Player.Hand, 4)
	assert.True(t, res.Player.DrewCard)
	assert.Equal(t, rules.TurnMustAct.String(), res.Player.State)

	_, err := f.act(draw(seats[0]))
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionDrawDiscard})
	assert.ErrorIs(t, err, game.ErrIllegalAction)

	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionDiscard, CardID: uuid.New()})
	assert.ErrorIs(t, err, game.ErrIllegalAction)

	res = f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionDiscard, Cards: faces("R2")})
	assert.Len(t, res.Player.Hand, 3)
	assert.False(t, res.Player.DrewCard)
	assert.Equal(t, seats[1].ID, res.Game.CurrentPlayer)
	require.NotNil(t, res.Game.DiscardTop)
	assert.Equal(t, "R2", res.Game.DiscardTop.String())
	assert.True(t, hasEvent(res.Events, game.EventDiscarded))
	assert.True(t, hasEvent(res.Events, game.EventTurnAdvanced))

	res = f.mustAct(game.Action{PlayerID: seats[1].ID, Type: game.ActionDrawDiscard})
	assert.Equal(t, "R2", res.Player.Hand[len(res.Player.Hand)-1].String())
	assert.Equal(t, "G7", res.Game.DiscardTop.String())
}

func TestSkipCannotBeDrawnFromDiscard(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R1", "B1"},
		discard: "G7 S",
	})

	_, err := f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionDrawDiscard})
	require.ErrorIs(t, err, game.ErrIllegalAction)
	assert.Contains(t, err.Error(), "skip")
}

func TestDrawDeckReshufflesDiscard(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:     []string{"R1", "B1"},
		discard:   "G7",
		emptyDeck: true,
	})

	res := f.mustAct(draw(seats[0]))
	assert.True(t, hasEvent(res.Events, game.EventDeckReshuffled))
	assert.Equal(t, cards.DeckSize-3, res.Game.DeckSize)
	assert.Equal(t, 0, res.Game.DiscardSize)
	assert.Nil(t, res.Game.DiscardTop)
}

func TestDiscardRunsSkipChain(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob", "carol")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R1 R2", "R3", "R4"},
		skips:   []string{"", "S S"},
		discard: "G5",
	})

	f.mustAct(draw(seats[0]))
	res := f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionDiscard, Cards: faces("R1")})

	assert.Equal(t, seats[2].ID, res.Game.CurrentPlayer)
	assert.Equal(t, 4, res.Game.DiscardSize)
	assert.True(t, res.Game.DiscardTop.IsSkip())
	assert.Equal(t, 0, res.Game.Players[1].SkipCards)
	assert.Contains(t, res.Events, game.Event{Type: game.EventSkipConsumed, PlayerID: seats[1].ID, Count: 2})

	g := f.game(gameID)
	assert.Equal(t, "[G5 R1 S S]", g.Discard.String())
}

func TestSkippedPlayerMustDoSkip(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob", "carol")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R1", "R2", "R3"},
		skips:   []string{"", "S"},
		discard: "G5",
		current: 1,
	})

	view, err := f.engine.GetPlayerView(f.ctx, seats[1].ID)
	require.NoError(t, err)
	assert.Equal(t, rules.TurnSkipped.String(), view.Player.State)

	_, err = f.act(draw(seats[1]))
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionDoSkip})
	assert.ErrorIs(t, err, game.ErrIllegalAction)

	res := f.mustAct(game.Action{PlayerID: seats[1].ID, Type: game.ActionDoSkip})
	assert.Equal(t, seats[2].ID, res.Game.CurrentPlayer)
	assert.Equal(t, 0, res.Player.SkipCards)
	assert.True(t, res.Game.DiscardTop.IsSkip())
}

func TestSkipPlayerWithTwoSeatsReturnsTurn(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"S R1 R2", "R3"},
		discard: "G5",
	})

	_, err := f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionSkipPlayer, To: seats[1].ID})
	assert.ErrorIs(t, err, game.ErrIllegalAction, "must draw first")

	f.mustAct(draw(seats[0]))
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionSkipPlayer, To: seats[0].ID})
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionSkipPlayer, To: uuid.New()})
	assert.ErrorIs(t, err, game.ErrNotFound)

	// the target may be named by user id as well
	res := f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionSkipPlayer, To: seats[1].UserID})
	assert.True(t, hasEvent(res.Events, game.EventPlayerSkipped))
	assert.True(t, hasEvent(res.Events, game.EventSkipConsumed))
	assert.Equal(t, seats[0].ID, res.Game.CurrentPlayer)
	assert.False(t, res.Player.DrewCard)
	assert.Len(t, res.Player.Hand, 3)
	assert.Empty(t, f.player(seats[1].ID).SkipCards)
}

func TestSkipPlayerWithoutSkipCard(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R1 R2", "R3"},
		discard: "G5",
	})
	// the drawn card might be a skip, so keep the deck free of them
	g := f.game(gameID)
	kept := cards.Collection{}
	for _, c := range g.Deck {
		if c.IsSkip() {
			g.Discard = append(cards.Collection{c}, g.Discard...)
			continue
		}
		kept = append(kept, c)
	}
	g.Deck = kept
	require.NoError(t, f.store.SaveGame(f.ctx, g))

	f.mustAct(draw(seats[0]))
	_, err := f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionSkipPlayer, To: seats[1].ID})
	require.ErrorIs(t, err, game.ErrIllegalAction)
	assert.Contains(t, err.Error(), "no skip card")
}

func TestCompletePhaseLaysGeneralizedPiles(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R1 B1 G1 R2 B2 W Y9", "R3"},
		discard: "G5",
	})

	_, err := f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R1 B1 G1 R2 B2 W")})
	assert.ErrorIs(t, err, game.ErrIllegalAction, "must draw first")

	res := f.mustAct(draw(seats[0]))
	require.NotNil(t, res.Player.Score)
	assert.Equal(t, 0, *res.Player.Score)
	before := f.checksum(gameID)

	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R1 B1 R2 G1 B2 W")})
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R1 B1 G1 R2 B2 R12")})
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionPutDown})
	assert.ErrorIs(t, err, game.ErrIllegalAction, "phase not completed")
	assert.Equal(t, before, f.checksum(gameID))

	res = f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R1 B1 G1 R2 B2 W")})
	assert.True(t, res.Player.CompletedPhase)
	assert.Nil(t, res.Player.Score)
	assert.Len(t, res.Player.Hand, 2)
	require.Len(t, res.Game.Piles, 2)
	assert.Equal(t, "S", res.Game.Piles[0].Phase)
	assert.Equal(t, "[R1 B1 G1]", res.Game.Piles[0].Deck.String())
	assert.Equal(t, "S", res.Game.Piles[1].Phase)
	assert.Equal(t, "[R2 B2 W]", res.Game.Piles[1].Deck.String())
	assert.Equal(t, 1, res.Game.Piles[1].Position)

	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("Y9")})
	assert.ErrorIs(t, err, game.ErrIllegalAction)
}

func TestPutDownExtendsEitherEnd(t *testing.T) {
	f := newFixture(t, game.WithDefaultPhases([]string{"R4", "R4"}))
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R3 R4 R5 R6 Y2 Y7 B9 B10", "R1"},
		discard: "G5",
	})

	f.mustAct(draw(seats[0]))
	res := f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R3 R4 R5 R6")})
	require.Len(t, res.Game.Piles, 1)
	pile := res.Game.Piles[0]
	assert.Equal(t, "R", pile.Phase)

	put := func(text string, dir game.Direction) (*game.Result, error) {
		return f.act(game.Action{
			PlayerID:    seats[0].ID,
			Type:        game.ActionPutDown,
			PhaseDeckID: pile.ID,
			Direction:   dir,
			Cards:       faces(text),
		})
	}

	res, err := put("Y2", game.DirectionStart)
	require.NoError(t, err)
	assert.Equal(t, "[Y2 R3 R4 R5 R6]", res.Game.Piles[0].Deck.String())

	res, err = put("Y7", game.DirectionEnd)
	require.NoError(t, err)
	assert.Equal(t, "[Y2 R3 R4 R5 R6 Y7]", res.Game.Piles[0].Deck.String())

	before := f.checksum(gameID)
	_, err = put("B9", game.DirectionEnd)
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = put("B9", "middle")
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = put("G12", game.DirectionEnd)
	assert.ErrorIs(t, err, game.ErrIllegalAction)
	_, err = f.act(game.Action{PlayerID: seats[0].ID, Type: game.ActionPutDown, PhaseDeckID: uuid.New(), Direction: game.DirectionEnd, Cards: faces("B9")})
	assert.ErrorIs(t, err, game.ErrNotFound)
	assert.Equal(t, before, f.checksum(gameID))
}

func TestEmptyHandOnLastPhaseWinsGame(t *testing.T) {
	f := newFixture(t, game.WithDefaultPhases([]string{"S3"}))
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R5 B5 G5", "R3 R4"},
		discard: "G9",
	})

	f.mustAct(draw(seats[0]))
	res := f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R5 B5 G5")})
	require.Len(t, res.Player.Hand, 1)
	res = f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionDiscard, CardID: res.Player.Hand[0].ID})

	assert.True(t, hasEvent(res.Events, game.EventGameWon))
	assert.False(t, res.NextIsBot)
	g := f.game(gameID)
	assert.True(t, g.Over())
	assert.False(t, g.InProgress)
	assert.Equal(t, seats[0].ID, g.Winner.UUID)

	_, err := f.act(draw(seats[1]))
	assert.ErrorIs(t, err, game.ErrGameOver)
	_, err = f.act(game.Action{PlayerID: seats[1].ID, Type: game.ActionSortByRank})
	assert.ErrorIs(t, err, game.ErrGameOver)

	games, err := f.engine.ListGames(f.ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, seats[0].ID, games[0].Winner.UUID)
}

func TestEmptyHandStartsNextRound(t *testing.T) {
	f := newFixture(t, game.WithDefaultPhases([]string{"S3", "S3"}))
	gameID, _ := f.started("alice", "bob", "carol")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R5 B5 G5", "R3 R4", "Y1"},
		discard: "G9",
	})

	f.mustAct(draw(seats[0]))
	res := f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionCompletePhase, Cards: faces("R5 B5 G5")})
	res = f.mustAct(game.Action{PlayerID: seats[0].ID, Type: game.ActionDiscard, CardID: res.Player.Hand[0].ID})

	assert.True(t, hasEvent(res.Events, game.EventRoundStarted))
	assert.False(t, hasEvent(res.Events, game.EventGameWon))
	assert.Equal(t, 2, res.Game.Round)
	assert.Empty(t, res.Game.Piles)
	assert.Equal(t, 1, res.Game.DiscardSize)

	after := f.seats(gameID)
	require.Len(t, after, 3)
	assert.Equal(t, []uuid.UUID{seats[1].ID, seats[2].ID, seats[0].ID},
		[]uuid.UUID{after[0].ID, after[1].ID, after[2].ID})
	assert.Equal(t, after[0].ID, res.Game.CurrentPlayer)
	for _, p := range after {
		assert.Len(t, p.Hand, 10)
		assert.False(t, p.CompletedPhase)
		assert.False(t, p.DrewCard)
	}
	assert.Equal(t, 1, f.player(seats[0].ID).PhaseIndex)
	assert.Equal(t, 0, f.player(seats[1].ID).PhaseIndex)
	assert.Equal(t, "S3", res.Player.Phase)
}

func TestSortIsAllowedOutOfTurn(t *testing.T) {
	f := newFixture(t)
	gameID, _ := f.started("alice", "bob")
	seats := f.arrange(gameID, layout{
		hands:   []string{"R1", "B9 R1 W G5 S"},
		discard: "G7",
	})

	res := f.mustAct(game.Action{PlayerID: seats[1].ID, Type: game.ActionSortByRank})
	assert.Equal(t, "[R1 G5 B9 S W]", res.Player.Hand.String())
	assert.Equal(t, seats[0].ID, res.Game.CurrentPlayer)

	res = f.mustAct(game.Action{PlayerID: seats[1].ID, Type: game.ActionSortByColor})
	assert.Equal(t, "[R1 B9 G5 S W]", res.Player.Hand.String())
}

func TestAcceptedActionNotifiesListeners(t *testing.T) {
	f := newFixture(t)
	gameID, seats := f.started("alice", "bob")
	f.mustAct(draw(seats[0]))

	notes := f.notifications()
	require.NotEmpty(t, notes)
	last := notes[len(notes)-1]
	assert.Equal(t, game.NotificationGameUpdate, last.Type)
	assert.Equal(t, gameID, last.GameID)
	assert.Equal(t, seats[0].ID, last.PlayerID)
	assert.True(t, hasEvent(last.Events, game.EventDrew))
}
