package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/VelascoAMath/phase.ten/internal/game/cards"
	"github.com/google/uuid"
)

const checksumVersion = 1

// Checksum is a deterministic fingerprint of a game's card state. Two tables
// with equal checksums hold the same cards in the same places, down to card
// identity.
type Checksum struct {
	Hash    string `json:"hash"`
	Version int    `json:"version"`
}

func computeChecksum(t *table) Checksum {
	sum := sha256.Sum256([]byte(canonicalForm(t)))
	return Checksum{Hash: hex.EncodeToString(sum[:]), Version: checksumVersion}
}

// canonicalForm renders the table as text. Seat and pile order are part of
// the state, so nothing is sorted; timestamps are left out.
func canonicalForm(t *table) string {
	var buf bytes.Buffer
	g := t.game
	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%t|%s|%d\n",
		g.ID, strings.Join(g.PhaseList, ","), g.CurrentPlayer, g.InProgress, winnerText(g), g.Round)
	writeCards(&buf, "DECK", g.Deck)
	writeCards(&buf, "DISCARD", g.Discard)
	for _, p := range t.players {
		fmt.Fprintf(&buf, "PLAYER:%s|%d|%d|%t|%t\n",
			p.ID, p.TurnIndex, p.PhaseIndex, p.DrewCard, p.CompletedPhase)
		writeCards(&buf, "  HAND", p.Hand)
		writeCards(&buf, "  SKIPS", p.SkipCards)
	}
	for _, d := range t.piles {
		fmt.Fprintf(&buf, "PILE:%s|%s|%d\n", d.ID, d.Phase, d.Position)
		writeCards(&buf, "  CARDS", d.Deck)
	}
	return buf.String()
}

func winnerText(g *Game) string {
	if !g.Winner.Valid {
		return "-"
	}
	return g.Winner.UUID.String()
}

func writeCards(buf *bytes.Buffer, label string, c cards.Collection) {
	buf.WriteString(label)
	buf.WriteByte(':')
	for i, card := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(card.String())
		buf.WriteByte('#')
		buf.WriteString(card.ID.String())
	}
	buf.WriteByte('\n')
}

// verifyIntegrity checks that the game still holds exactly one full deck and
// that no card instance appears twice.
func verifyIntegrity(t *table) error {
	all := t.allCards()
	if err := cards.VerifyFullDeck(all); err != nil {
		return fmt.Errorf("game %s: %w: %v", t.game.ID, ErrIntegrity, err)
	}
	seen := make(map[uuid.UUID]struct{}, len(all))
	for _, c := range all {
		if c.ID == uuid.Nil {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("game %s: %w: card %s appears twice", t.game.ID, ErrIntegrity, c)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}
