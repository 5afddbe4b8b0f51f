// Package pathfinding computes weighted shortest paths and movement ranges
// over a battle grid. Edge weight is the destination tile's cost for the
// moving unit; the graph is 4-connected.
package pathfinding

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
)

// Policy controls how friendly units affect traversal. Units can never stop
// on an occupied tile either way.
type Policy struct {
	// AllyPassThrough lets a unit walk through tiles held by living allies.
	AllyPassThrough bool
}

func DefaultPolicy() Policy { return Policy{AllyPassThrough: true} }

// Path is start-exclusive and target-inclusive. Callers must treat it as
// read-only.
type Path struct {
	Steps []core.Coordinate
	Cost  int
}

func (p Path) Len() int { return len(p.Steps) }

// Last returns the final step, or InvalidCoordinate for an empty path.
func (p Path) Last() core.Coordinate {
	if len(p.Steps) == 0 {
		return core.InvalidCoordinate
	}
	return p.Steps[len(p.Steps)-1]
}

type Pathfinder struct {
	grid   *core.Grid
	policy Policy
}

func New(grid *core.Grid, policy Policy) *Pathfinder {
	return &Pathfinder{grid: grid, policy: policy}
}

func (p *Pathfinder) Policy() Policy { return p.policy }

// queueItem ordering is (cost, seq): equal-cost ties go to whichever tile was
// discovered first, which with the fixed N,E,S,W visit order makes results
// deterministic.
type queueItem struct {
	idx  int
	cost int
	seq  int
}

type queue []queueItem

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].cost != q[j].cost {
		return q[i].cost < q[j].cost
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x interface{}) { *q = append(*q, x.(queueItem)) }
func (q *queue) Pop() interface{} {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}

type search struct {
	dist []int
	prev []int
}

// stepCost is the price of u entering c, honoring the ally policy.
func (p *Pathfinder) stepCost(c core.Coordinate, u *core.Unit) int {
	cost := p.grid.Cost(c, u)
	if cost == core.Infinity || p.policy.AllyPassThrough {
		return cost
	}
	if occ := p.grid.UnitAt(c); occ != nil && occ.ID != u.ID && occ.Owner == u.Owner && occ.IsAlive() {
		return core.Infinity
	}
	return cost
}

// dijkstra settles tiles from u.Pos outward. It stops early once goal is
// settled (goal < 0 disables that) and never relaxes past budget.
func (p *Pathfinder) dijkstra(u *core.Unit, goal int, budget int) search {
	g := p.grid
	n := g.W * g.H
	s := search{dist: make([]int, n), prev: make([]int, n)}
	for i := range s.dist {
		s.dist[i] = core.Infinity
		s.prev[i] = -1
	}
	start := g.Idx(u.Pos)
	s.dist[start] = 0

	seq := 0
	q := &queue{{idx: start}}
	heap.Init(q)
	for q.Len() > 0 {
		cur := heap.Pop(q).(queueItem)
		if cur.cost != s.dist[cur.idx] {
			continue
		}
		if cur.idx == goal {
			break
		}
		for _, nb := range core.FromIndex(cur.idx, g.W).Neighbors() {
			if !g.IsInGrid(nb) {
				continue
			}
			step := p.stepCost(nb, u)
			if step == core.Infinity {
				continue
			}
			next := cur.cost + step
			if next > budget {
				continue
			}
			ni := g.Idx(nb)
			if next < s.dist[ni] {
				s.dist[ni] = next
				s.prev[ni] = cur.idx
				seq++
				heap.Push(q, queueItem{idx: ni, cost: next, seq: seq})
			}
		}
	}
	return s
}

// ShortestPath returns the cheapest path from u.Pos to target. A target equal
// to the start gives an empty zero-cost path, which is not the same as
// ErrUnreachable.
func (p *Pathfinder) ShortestPath(u *core.Unit, target core.Coordinate) (Path, error) {
	if !p.grid.IsInGrid(u.Pos) {
		return Path{}, fmt.Errorf("path start %s: %w", u.Pos, core.ErrOutOfBounds)
	}
	if !p.grid.IsInGrid(target) {
		return Path{}, fmt.Errorf("path target %s: %w", target, core.ErrOutOfBounds)
	}
	if target == u.Pos {
		return Path{}, nil
	}

	goal := p.grid.Idx(target)
	s := p.dijkstra(u, goal, core.Infinity-1)
	if s.dist[goal] == core.Infinity {
		return Path{}, fmt.Errorf("path %s -> %s: %w", u.Pos, target, core.ErrUnreachable)
	}

	start := p.grid.Idx(u.Pos)
	var rev []core.Coordinate
	for i := goal; i != start; i = s.prev[i] {
		rev = append(rev, core.FromIndex(i, p.grid.W))
	}
	steps := make([]core.Coordinate, len(rev))
	for i := range rev {
		steps[i] = rev[len(rev)-1-i]
	}
	return Path{Steps: steps, Cost: s.dist[goal]}, nil
}

// ReachableTiles lists every empty tile u can stop on with its remaining
// moves, in row-major order. The start tile is never included.
func (p *Pathfinder) ReachableTiles(u *core.Unit) []core.Coordinate {
	if !p.grid.IsInGrid(u.Pos) || u.MovesLeft <= 0 || !u.Caps.Movable {
		return nil
	}
	s := p.dijkstra(u, -1, u.MovesLeft)
	start := p.grid.Idx(u.Pos)

	var out []core.Coordinate
	for i, d := range s.dist {
		if i == start || d == core.Infinity {
			continue
		}
		c := core.FromIndex(i, p.grid.W)
		if t, _ := p.grid.Get(c); t.Occupied() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// MoveTowardsTarget walks the shortest path to u.Target as far as the move
// budget allows and returns the furthest step u may stop on. It returns u.Pos
// when the target is unreachable or no step fits.
func (p *Pathfinder) MoveTowardsTarget(u *core.Unit) core.Coordinate {
	path, err := p.ShortestPath(u, u.Target)
	if err != nil {
		return u.Pos
	}
	return p.Truncate(u, path)
}

// Truncate returns the furthest unoccupied step of path within u's budget.
func (p *Pathfinder) Truncate(u *core.Unit, path Path) core.Coordinate {
	best := u.Pos
	spent := 0
	for _, step := range path.Steps {
		spent += p.stepCost(step, u)
		if spent > u.MovesLeft {
			break
		}
		if t, err := p.grid.Get(step); err == nil && !t.Occupied() {
			best = step
		}
	}
	return best
}

// ShortestPath runs with DefaultPolicy.
func ShortestPath(grid *core.Grid, u *core.Unit, target core.Coordinate) (Path, error) {
	return New(grid, DefaultPolicy()).ShortestPath(u, target)
}

// ReachableTiles runs with DefaultPolicy.
func ReachableTiles(grid *core.Grid, u *core.Unit) []core.Coordinate {
	return New(grid, DefaultPolicy()).ReachableTiles(u)
}

// MoveTowardsTarget runs with DefaultPolicy.
func MoveTowardsTarget(grid *core.Grid, u *core.Unit) core.Coordinate {
	return New(grid, DefaultPolicy()).MoveTowardsTarget(u)
}
