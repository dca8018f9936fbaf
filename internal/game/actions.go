package game

import (
	"time"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/google/uuid"
)

// ActionType names a player action as it appears on the wire.
type ActionType string

const (
	ActionSortByColor   ActionType = "sort_by_color"
	ActionSortByRank    ActionType = "sort_by_rank"
	ActionDrawDeck      ActionType = "draw_deck"
	ActionDrawDiscard   ActionType = "draw_discard"
	ActionDoSkip        ActionType = "do_skip"
	ActionCompletePhase ActionType = "complete_phase"
	ActionPutDown       ActionType = "put_down"
	ActionSkipPlayer    ActionType = "skip_player"
	ActionDiscard       ActionType = "discard"
)

// Direction picks the end of a table pile that put_down extends.
type Direction string

const (
	DirectionStart Direction = "start"
	DirectionEnd   Direction = "end"
)

// Action is one inbound player action. Which optional fields matter depends
// on Type. Cards may name hand cards by id; cards without an id are matched
// by color and rank.
type Action struct {
	PlayerID    uuid.UUID        `json:"player_id"`
	Type        ActionType       `json:"action"`
	CardID      uuid.UUID        `json:"card_id,omitempty"`
	Cards       cards.Collection `json:"cards,omitempty"`
	PhaseDeckID uuid.UUID        `json:"phase_deck_id,omitempty"`
	Direction   Direction        `json:"direction,omitempty"`
	To          uuid.UUID        `json:"to,omitempty"`
}

// EventType classifies what an accepted action caused.
type EventType string

const (
	EventSorted         EventType = "sorted"
	EventDrew           EventType = "drew"
	EventDeckReshuffled EventType = "deck_reshuffled"
	EventDiscarded      EventType = "discarded"
	EventPhaseCompleted EventType = "phase_completed"
	EventPutDown        EventType = "put_down"
	EventPlayerSkipped  EventType = "player_skipped"
	EventSkipConsumed   EventType = "skip_consumed"
	EventTurnAdvanced   EventType = "turn_advanced"
	EventRoundStarted   EventType = "round_started"
	EventGameWon        EventType = "game_won"
	EventGameStarted    EventType = "game_started"
	EventPlayerJoined   EventType = "player_joined"
	EventPlayerLeft     EventType = "player_left"
	EventPhasesEdited   EventType = "phases_edited"
	EventSlowSkipped    EventType = "slow_player_skipped"
)

// Event is a follow-up produced while applying an action.
type Event struct {
	Type     EventType `json:"type"`
	PlayerID uuid.UUID `json:"player_id,omitempty"`
	Count    int       `json:"count,omitempty"`
}

// Result is what an accepted action returns: the actor's view, the shared
// game view and the events the action triggered.
type Result struct {
	Player    *PlayerView `json:"player,omitempty"`
	Game      *GameView   `json:"game"`
	Events    []Event     `json:"events"`
	NextIsBot bool        `json:"next_is_bot"`
}

// GameNotification tells listeners that a game changed.
type GameNotification struct {
	Type      string    `json:"type"`
	GameID    uuid.UUID `json:"game_id"`
	PlayerID  uuid.UUID `json:"player_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Events    []Event   `json:"events,omitempty"`
}

// NotificationHandler receives notifications after the game lock is released.
type NotificationHandler func(notification GameNotification)

const (
	NotificationGameUpdate  = "GAME_UPDATE"
	NotificationGameDeleted = "GAME_DELETED"
	NotificationLobby       = "LOBBY_UPDATE"
)
