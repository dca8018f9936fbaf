package rules

import "github.com/VelascoAMath/phase.ten/internal/game/cards"

// build compiles one component and returns its start state and final states.
// The finals are not marked; New decides which ones end the phase.
func (r *PhaseRule) build(c Component) (stateID, []stateID) {
	switch c.Kind {
	case KindRun:
		return r.buildRun(c.Size)
	case KindSet:
		ranks := make([]cards.Rank, 0, cards.MaxRank)
		for rank := cards.MinRank; rank <= cards.MaxRank; rank++ {
			ranks = append(ranks, rank)
		}
		return buildGroup(r, c.Size, ranks, cards.WildRank, r.onRank)
	default:
		return buildGroup(r, c.Size, cards.NaturalColors, cards.WildColor, r.onColor)
	}
}

// buildRun lays out one row per starting rank. Each row accepts the next
// rank or a wild. A separate chain of leading wilds can join any row at the
// column where the next natural card fits. A bounded run of n keeps only
// rows that fit within the rank range; an unbounded run keeps every prefix
// of every row and makes all of them final.
func (r *PhaseRule) buildRun(n int) (stateID, []stateID) {
	top := int(cards.MaxRank)
	start := r.newState()

	var grid [][]stateID
	for first := int(cards.MinRank); first <= top; first++ {
		length := top - first + 1
		if n != Unbounded {
			if length < n {
				break
			}
			length = n
		}
		row := r.newColumn(length)
		r.onRank(start, cards.Rank(first), row[0])
		for j := 0; j+1 < length; j++ {
			r.onRank(row[j], cards.Rank(first+j+1), row[j+1])
			r.onRank(row[j], cards.WildRank, row[j+1])
		}
		grid = append(grid, row)
	}

	wildLen := n
	if n == Unbounded {
		wildLen = top
	}
	wild := r.newColumn(wildLen)
	r.onRank(start, cards.WildRank, wild[0])
	for j := 0; j+1 < wildLen; j++ {
		r.onRank(wild[j], cards.WildRank, wild[j+1])
		for i, row := range grid {
			if j+1 < len(row) {
				r.onRank(wild[j], cards.Rank(int(cards.MinRank)+i+j+1), row[j+1])
			}
		}
	}

	var finals []stateID
	if n == Unbounded {
		for _, row := range grid {
			finals = append(finals, row...)
		}
		finals = append(finals, wild...)
		return start, finals
	}
	for _, row := range grid {
		finals = append(finals, row[n-1])
	}
	finals = append(finals, wild[n-1])
	return start, finals
}

// buildGroup compiles a set (keyed by rank) or a color group (keyed by
// color). Bounded groups get one row of n states per key plus a wild row
// that can switch into any key's row at the next column. Unbounded groups
// collapse each row into one self-looping state.
func buildGroup[K comparable](r *PhaseRule, n int, keys []K, wildKey K, on func(stateID, K, stateID)) (stateID, []stateID) {
	start := r.newState()

	if n == Unbounded {
		wild := r.newState()
		on(start, wildKey, wild)
		on(wild, wildKey, wild)
		finals := []stateID{wild}
		for _, key := range keys {
			s := r.newState()
			on(start, key, s)
			on(s, key, s)
			on(s, wildKey, s)
			on(wild, key, s)
			finals = append(finals, s)
		}
		return start, finals
	}

	rows := make([][]stateID, len(keys))
	for k, key := range keys {
		rows[k] = r.newColumn(n)
		on(start, key, rows[k][0])
		for j := 0; j+1 < n; j++ {
			on(rows[k][j], key, rows[k][j+1])
			on(rows[k][j], wildKey, rows[k][j+1])
		}
	}
	wild := r.newColumn(n)
	on(start, wildKey, wild[0])
	for j := 0; j+1 < n; j++ {
		on(wild[j], wildKey, wild[j+1])
		for k, key := range keys {
			on(wild[j], key, rows[k][j+1])
		}
	}

	finals := make([]stateID, 0, len(keys)+1)
	for _, row := range rows {
		finals = append(finals, row[n-1])
	}
	return start, append(finals, wild[n-1])
}
