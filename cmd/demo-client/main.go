package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// demo-client hosts a game against bots on a running server and plays the
// human seat by drawing from the deck and discarding the newest card.
func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	name := flag.String("name", "demo", "user name")
	bots := flag.Int("bots", 2, "number of bots to seat")
	phases := flag.String("phases", "S3,S3", "comma separated phase list")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("failed to connect", zap.String("url", u.String()), zap.Error(err))
	}
	defer conn.Close()

	d := &demo{conn: conn, logger: logger, deadline: time.Now().Add(*timeout)}
	if err := d.run(*name, *bots, strings.Split(*phases, ",")); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}
}

type demo struct {
	conn     *websocket.Conn
	logger   *zap.Logger
	deadline time.Time

	userID   string
	gameID   string
	playerID string
	lastHash string
}

func (d *demo) send(msg map[string]any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return d.conn.WriteMessage(websocket.TextMessage, data)
}

func (d *demo) read() (gjson.Result, error) {
	if err := d.conn.SetReadDeadline(d.deadline); err != nil {
		return gjson.Result{}, err
	}
	_, data, err := d.conn.ReadMessage()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(data), nil
}

// await skips frames until one of the given type arrives. A rejection ends
// the wait with an error.
func (d *demo) await(kind string) (gjson.Result, error) {
	for {
		doc, err := d.read()
		if err != nil {
			return doc, err
		}
		switch doc.Get("type").String() {
		case kind:
			return doc, nil
		case "rejection":
			return doc, fmt.Errorf("rejected: %s", doc.Get("data.message").String())
		}
	}
}

func (d *demo) run(name string, bots int, phases []string) error {
	if err := d.send(map[string]any{"type": "register", "name": name}); err != nil {
		return err
	}
	user, err := d.await("user")
	if err != nil {
		return err
	}
	d.userID = user.Get("data.id").String()

	if err := d.send(map[string]any{"type": "create_game", "user_id": d.userID}); err != nil {
		return err
	}
	created, err := d.await("player")
	if err != nil {
		return err
	}
	d.gameID = created.Get("data.game.id").String()
	d.playerID = created.Get("data.player.id").String()
	d.logger.Info("game created", zap.String("game_id", d.gameID))

	if err := d.send(map[string]any{"type": "edit_game_phase", "game_id": d.gameID, "user_id": d.userID, "phase_list": phases}); err != nil {
		return err
	}
	if _, err := d.await("game"); err != nil {
		return err
	}
	for i := 0; i < bots; i++ {
		if err := d.send(map[string]any{"type": "add_bot", "game_id": d.gameID, "user_id": d.userID}); err != nil {
			return err
		}
	}
	if err := d.send(map[string]any{"type": "start_game", "game_id": d.gameID, "user_id": d.userID}); err != nil {
		return err
	}

	for {
		doc, err := d.read()
		if err != nil {
			return err
		}
		switch doc.Get("type").String() {
		case "rejection":
			d.logger.Warn("rejected", zap.String("reason", doc.Get("data.message").String()))
			d.lastHash = ""
		case "player":
			done, err := d.play(doc.Get("data"))
			if err != nil || done {
				return err
			}
		}
	}
}

// play reacts to one view of the seat and reports whether the game ended.
func (d *demo) play(view gjson.Result) (bool, error) {
	g := view.Get("game")
	if !g.Get("in_progress").Bool() && g.Get("winner").Type == gjson.Null {
		return false, nil
	}
	if winner := g.Get("winner"); winner.Type != gjson.Null {
		d.logger.Info("game won",
			zap.String("winner", winner.String()),
			zap.Bool("we_won", winner.String() == d.playerID),
			zap.Int64("round", g.Get("round").Int()),
		)
		return true, d.showReplay()
	}

	hash := g.Get("checksum.hash").String()
	if hash == d.lastHash {
		return false, nil
	}
	me := view.Get("player")
	state := me.Get("state").String()

	var action map[string]any
	switch state {
	case "SKIPPED":
		action = map[string]any{"action": "do_skip"}
	case "MUST_DRAW":
		action = map[string]any{"action": "draw_deck"}
	case "MUST_ACT":
		hand := me.Get("hand").Array()
		if len(hand) == 0 {
			return false, nil
		}
		action = map[string]any{"action": "discard", "card_id": hand[len(hand)-1].Get("id").String()}
	default:
		return false, nil
	}
	d.lastHash = hash
	action["type"] = "player_action"
	action["player_id"] = d.playerID
	d.logger.Info("playing",
		zap.String("state", state),
		zap.Any("action", action["action"]),
		zap.String("phase", me.Get("phase").String()),
		zap.Int("hand", len(me.Get("hand").Array())),
	)
	return false, d.send(action)
}

func (d *demo) showReplay() error {
	if err := d.send(map[string]any{"type": "get_replay", "game_id": d.gameID}); err != nil {
		return err
	}
	doc, err := d.await("replay")
	if err != nil {
		d.logger.Warn("no replay", zap.Error(err))
		return nil
	}
	for _, snap := range doc.Get("data").Array() {
		fmt.Printf("%4d  %-16s %s\n", snap.Get("seq").Int(), snap.Get("action").String(), snap.Get("actor").String())
	}
	return nil
}
