package server

import "github.com/google/uuid"

// Inbound message types.
const (
	MsgRegister       = "register"
	MsgCreateGame     = "create_game"
	MsgJoinGame       = "join_game"
	MsgLeaveGame      = "unjoin_game"
	MsgAddBot         = "add_bot"
	MsgEditPhases     = "edit_game_phase"
	MsgStartGame      = "start_game"
	MsgDeleteGame     = "delete_game"
	MsgGetPlayer      = "get_player"
	MsgListGames      = "list_games"
	MsgSkipSlowPlayer = "skip_slow_player"
	MsgPlayerAction   = "player_action"
	MsgGetReplay      = "get_replay"
)

// Outbound message types.
const (
	MsgRejection   = "rejection"
	MsgUser        = "user"
	MsgPlayer      = "player"
	MsgGame        = "game"
	MsgGames       = "games"
	MsgGameDeleted = "game_deleted"
	MsgLeft        = "left"
	MsgReplay      = "replay"
)

// WSMessage is every outbound frame.
type WSMessage struct {
	Type     string    `json:"type"`
	GameID   uuid.UUID `json:"game_id,omitempty"`
	PlayerID uuid.UUID `json:"player_id,omitempty"`
	Data     any       `json:"data,omitempty"`
}

type rejection struct {
	Message string `json:"message"`
}

type registerRequest struct {
	Name    string `json:"name"`
	Display string `json:"display"`
}

// gameRequest covers every lobby message; each type reads the fields it needs.
type gameRequest struct {
	GameID    uuid.UUID `json:"game_id"`
	UserID    uuid.UUID `json:"user_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	PhaseList []string  `json:"phase_list"`
}
