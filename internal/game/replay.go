package game

import (
	"compress/gzip"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const replayVersion = 1

// ErrNoReplay is returned for a game that has no recorded replay.
var ErrNoReplay = errors.New("no replay recorded")

// Snapshot is a game right after one accepted change.
type Snapshot struct {
	Seq      int         `json:"seq"`
	At       time.Time   `json:"at"`
	Actor    uuid.UUID   `json:"actor"`
	Action   ActionType  `json:"action"`
	Events   []Event     `json:"events"`
	Checksum string      `json:"checksum"`
	Game     Game        `json:"game"`
	Players  []Player    `json:"players"`
	Piles    []PhaseDeck `json:"piles"`
}

func snapshotOf(t *table, seq int, at time.Time) *Snapshot {
	s := &Snapshot{
		Seq:      seq,
		At:       at,
		Actor:    t.actor,
		Action:   t.action,
		Events:   append([]Event(nil), t.events...),
		Checksum: computeChecksum(t).Hash,
		Game:     *t.game.Clone(),
		Players:  make([]Player, 0, len(t.players)),
		Piles:    make([]PhaseDeck, 0, len(t.piles)),
	}
	for _, p := range t.players {
		s.Players = append(s.Players, *p.Clone())
	}
	for _, d := range t.piles {
		s.Piles = append(s.Piles, *d.Clone())
	}
	return s
}

// Replay is the recorded history of one game with a playback cursor.
type Replay struct {
	GameID       uuid.UUID
	States       []*Snapshot
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(gameID uuid.UUID) *Replay {
	return &Replay{GameID: gameID}
}

func (r *Replay) add(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States = append(r.States, s)
}

// Start rewinds the cursor.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the snapshot under the cursor and moves past it, or nil at
// the end.
func (r *Replay) Next() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex < len(r.States) {
		s := r.States[r.CurrentIndex]
		r.CurrentIndex++
		return s
	}
	return nil
}

// Previous steps the cursor back and returns that snapshot, or nil at the
// beginning.
func (r *Replay) Previous() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count snapshots, clamped to the recording.
func (r *Replay) Skip(count int) *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.States) == 0 {
		return nil
	}
	idx := r.CurrentIndex + count
	if idx >= len(r.States) {
		idx = len(r.States) - 1
	}
	if idx < 0 {
		idx = 0
	}
	r.CurrentIndex = idx
	return r.States[idx]
}

// Size returns the number of snapshots.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.States)
}

// At returns the snapshot at index, or nil.
func (r *Replay) At(index int) *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= 0 && index < len(r.States) {
		return r.States[index]
	}
	return nil
}

type replayMetadata struct {
	GameID     uuid.UUID
	SavedAt    time.Time
	Version    int
	StateCount int
}

func replayPath(dir string, gameID uuid.UUID) string {
	return filepath.Join(dir, gameID.String()+".replay")
}

// SaveToFile writes the replay as a gzipped gob stream named after the game.
func (r *Replay) SaveToFile(dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create replay directory: %w", err)
	}
	file, err := os.Create(replayPath(dir, r.GameID))
	if err != nil {
		return fmt.Errorf("failed to create replay file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)
	meta := replayMetadata{
		GameID:     r.GameID,
		SavedAt:    time.Now().UTC(),
		Version:    replayVersion,
		StateCount: len(r.States),
	}
	if err := enc.Encode(&meta); err != nil {
		return fmt.Errorf("failed to encode replay metadata: %w", err)
	}
	for i, s := range r.States {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode snapshot %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(dir string, gameID uuid.UUID) (*Replay, error) {
	file, err := os.Open(replayPath(dir, gameID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNoReplay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open replay: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)
	var meta replayMetadata
	if err := dec.Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode replay metadata: %w", err)
	}
	if meta.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", meta.Version)
	}

	r := NewReplay(meta.GameID)
	for i := 0; i < meta.StateCount; i++ {
		var s Snapshot
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %d: %w", i, err)
		}
		r.States = append(r.States, &s)
	}
	return r, nil
}

// ReplayRecorder keeps the replays of running games in memory and writes
// each one to disk when its game is won.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[uuid.UUID]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder that saves into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[uuid.UUID]*Replay),
		saveDir: saveDir,
	}
}

// record must run under the game's lock so snapshots keep action order.
func (rr *ReplayRecorder) record(t *table, at time.Time) {
	rr.mu.Lock()
	r, ok := rr.replays[t.game.ID]
	if !ok {
		r = NewReplay(t.game.ID)
		rr.replays[t.game.ID] = r
	}
	rr.mu.Unlock()

	r.add(snapshotOf(t, r.Size(), at))
}

// GetReplay returns the in-memory replay of a running game.
func (rr *ReplayRecorder) GetReplay(gameID uuid.UUID) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	r, ok := rr.replays[gameID]
	return r, ok
}

// SaveReplay writes a replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID uuid.UUID) error {
	rr.mu.Lock()
	r, ok := rr.replays[gameID]
	delete(rr.replays, gameID)
	rr.mu.Unlock()
	if !ok {
		return fmt.Errorf("game %s: %w", gameID, ErrNoReplay)
	}

	if err := r.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("game_id", gameID.String()),
		zap.Int("state_count", r.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay returns the replay of a running game, or the saved one of a
// finished game.
func (rr *ReplayRecorder) LoadReplay(gameID uuid.UUID) (*Replay, error) {
	if r, ok := rr.GetReplay(gameID); ok {
		return r, nil
	}
	return LoadReplayFromFile(rr.saveDir, gameID)
}

// ClearReplay forgets a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(gameID uuid.UUID) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
}
