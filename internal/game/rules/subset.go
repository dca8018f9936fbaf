package rules

import (
	"github.com/VelascoAMath/phase.ten/internal/game/cards"
)

// A target fixes what a component is built around: the first rank of a run,
// the rank of a set, or the color of a color group.
type target int

// slot is one position of a targeted component that a natural card may fill.
type slot struct {
	kind  Kind
	rank  cards.Rank
	color cards.Color
}

func (s slot) accepts(c cards.Card) bool {
	if !c.IsNatural() {
		return false
	}
	if s.kind == KindColor {
		return c.Color == s.color
	}
	return c.Rank == s.rank
}

// assembly is the best arrangement found for one combination of targets.
type assembly struct {
	slots   []slot
	owner   []int // slot index -> hand index, -1 when a wild is needed
	matched int
	fill    int
}

// IsSubsetAccepted reports whether some selection of hand completes the
// phase. On success it returns the chosen cards arranged in an order that
// IsFullyAccepted accepts.
//
// Every combination of component targets is tried. Within a combination,
// natural cards are assigned to slots with a maximum bipartite matching and
// wilds cover the remaining slots. The arrangement that needs the fewest
// wilds wins; among equals the earliest combination in enumeration order
// wins, where runs are enumerated by ascending first rank, sets by ascending
// rank and color groups in red, blue, green, yellow order.
func (r *PhaseRule) IsSubsetAccepted(hand cards.Collection) (bool, cards.Collection) {
	if r.required == Unbounded {
		best := r.longestUnbounded(hand)
		if best == nil {
			return false, cards.Collection{}
		}
		return true, best
	}

	best := r.bestAssembly(r.components, hand)
	if best == nil || best.fill < r.required {
		return false, cards.Collection{}
	}
	return true, arrange(r.components, best, hand)
}

// Score is the number of cards still missing from the best partial
// arrangement of hand. A hand that completes the phase scores 0. Unbounded
// rules score 0 when any group can be formed and 1 otherwise.
func (r *PhaseRule) Score(hand cards.Collection) int {
	if r.required == Unbounded {
		if r.longestUnbounded(hand) != nil {
			return 0
		}
		return 1
	}
	best := r.bestAssembly(r.components, hand)
	if best == nil {
		return r.required
	}
	missing := r.required - best.fill
	if missing < 0 {
		return 0
	}
	return missing
}

// longestUnbounded tries bounded versions of the single unbounded component
// from the largest feasible size downwards.
func (r *PhaseRule) longestUnbounded(hand cards.Collection) cards.Collection {
	kind := r.components[0].Kind
	usable := hand.Count(func(c cards.Card) bool { return c.IsNatural() || c.IsWild() })
	limit := usable
	if kind == KindRun && limit > int(cards.MaxRank) {
		limit = int(cards.MaxRank)
	}
	for n := limit; n >= 1; n-- {
		comps := []Component{{Kind: kind, Size: n}}
		best := r.bestAssembly(comps, hand)
		if best != nil && best.fill == n {
			return arrange(comps, best, hand)
		}
	}
	return nil
}

func (r *PhaseRule) bestAssembly(comps []Component, hand cards.Collection) *assembly {
	wilds := hand.Count(cards.Card.IsWild)
	required := 0
	for _, c := range comps {
		required += c.Size
	}

	options := make([][]target, len(comps))
	for i, c := range comps {
		options[i] = candidateTargets(c, hand)
	}

	var best *assembly
	chosen := make([]target, len(comps))
	var walk func(i int)
	walk = func(i int) {
		if i == len(comps) {
			a := match(comps, chosen, hand)
			a.fill = a.matched + min(wilds, required-a.matched)
			if best == nil || a.fill > best.fill || (a.fill == best.fill && a.matched > best.matched) {
				best = a
			}
			return
		}
		for _, t := range options[i] {
			// Identical neighbouring components are interchangeable; only
			// visit non-decreasing target orders.
			if i > 0 && comps[i] == comps[i-1] && t < chosen[i-1] {
				continue
			}
			chosen[i] = t
			walk(i + 1)
		}
	}
	walk(0)
	return best
}

// candidateTargets lists targets that at least one natural card in hand
// could contribute to. With no such card the component can only be built
// from wilds, and a single representative target is returned.
func candidateTargets(c Component, hand cards.Collection) []target {
	var out []target
	switch c.Kind {
	case KindRun:
		for first := int(cards.MinRank); first+c.Size-1 <= int(cards.MaxRank); first++ {
			for _, card := range hand {
				if card.IsNatural() && int(card.Rank) >= first && int(card.Rank) < first+c.Size {
					out = append(out, target(first))
					break
				}
			}
		}
		if len(out) == 0 {
			out = append(out, target(cards.MinRank))
		}
	case KindSet:
		for rank := cards.MinRank; rank <= cards.MaxRank; rank++ {
			for _, card := range hand {
				if card.Rank == rank {
					out = append(out, target(rank))
					break
				}
			}
		}
		if len(out) == 0 {
			out = append(out, target(cards.MinRank))
		}
	case KindColor:
		for _, color := range cards.NaturalColors {
			for _, card := range hand {
				if card.Color == color {
					out = append(out, target(color))
					break
				}
			}
		}
		if len(out) == 0 {
			out = append(out, target(cards.Red))
		}
	}
	return out
}

func slotsFor(c Component, t target) []slot {
	out := make([]slot, c.Size)
	for i := range out {
		switch c.Kind {
		case KindRun:
			out[i] = slot{kind: KindRun, rank: cards.Rank(int(t) + i)}
		case KindSet:
			out[i] = slot{kind: KindSet, rank: cards.Rank(t)}
		case KindColor:
			out[i] = slot{kind: KindColor, color: cards.Color(t)}
		}
	}
	return out
}

// match assigns natural cards to the slots of every component with Kuhn's
// augmenting path algorithm. Cards are tried in hand order so the result is
// deterministic.
func match(comps []Component, targets []target, hand cards.Collection) *assembly {
	a := &assembly{}
	for i, c := range comps {
		a.slots = append(a.slots, slotsFor(c, targets[i])...)
	}
	a.owner = make([]int, len(a.slots))
	for i := range a.owner {
		a.owner[i] = -1
	}
	cardSlot := make([]int, len(hand))
	for i := range cardSlot {
		cardSlot[i] = -1
	}

	var augment func(s int, seen []bool) bool
	augment = func(s int, seen []bool) bool {
		for h, card := range hand {
			if seen[h] || !a.slots[s].accepts(card) {
				continue
			}
			seen[h] = true
			if cardSlot[h] == -1 || augment(cardSlot[h], seen) {
				cardSlot[h] = s
				a.owner[s] = h
				return true
			}
		}
		return false
	}

	for s := range a.slots {
		if augment(s, make([]bool, len(hand))) {
			a.matched++
		}
	}
	return a
}

// arrange lays out the chosen cards component by component. Runs keep rank
// order with wilds in the gaps; sets and color groups list their natural
// cards first and wilds after.
func arrange(comps []Component, a *assembly, hand cards.Collection) cards.Collection {
	var wilds cards.Collection
	for _, c := range hand {
		if c.IsWild() {
			wilds = append(wilds, c)
		}
	}
	takeWild := func() cards.Card {
		w := wilds[0]
		wilds = wilds[1:]
		return w
	}

	out := make(cards.Collection, 0, len(a.slots))
	offset := 0
	for _, c := range comps {
		slots := a.owner[offset : offset+c.Size]
		if c.Kind == KindRun {
			for _, h := range slots {
				if h >= 0 {
					out = append(out, hand[h])
				} else {
					out = append(out, takeWild())
				}
			}
		} else {
			missing := 0
			for _, h := range slots {
				if h >= 0 {
					out = append(out, hand[h])
				} else {
					missing++
				}
			}
			for ; missing > 0; missing-- {
				out = append(out, takeWild())
			}
		}
		offset += c.Size
	}
	return out
}
