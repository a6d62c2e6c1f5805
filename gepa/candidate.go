package gepa

import (
	"maps"
	"math/rand/v2"
	"slices"
)

// Candidate is one instruction assignment and its valset scores.
type Candidate struct {
	Components map[string]string `json:"components"`
	Parents    []int             `json:"parents,omitempty"`
	Scores     []float64         `json:"scores"`
}

func (c Candidate) Mean() float64 {
	if len(c.Scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range c.Scores {
		sum += s
	}
	return sum / float64(len(c.Scores))
}

type pool []Candidate

// best is the highest mean, earliest on ties.
func (p pool) best() int {
	ret := 0
	for i := range p {
		if p[i].Mean() > p[ret].Mean() {
			ret = i
		}
	}
	return ret
}

// front counts, per candidate, the valset examples on which it reaches the best score.
func (p pool) front() map[int]int {
	ret := make(map[int]int)
	if len(p) == 0 {
		return ret
	}
	for example := range p[0].Scores {
		top := p[0].Scores[example]
		for _, c := range p[1:] {
			top = max(top, c.Scores[example])
		}
		for i, c := range p {
			if c.Scores[example] == top {
				ret[i]++
			}
		}
	}
	return ret
}

// paretoMembers are the candidates that win at least one example, in index order.
func (p pool) paretoMembers() []int {
	return slices.Sorted(maps.Keys(p.front()))
}

// selectParent picks by strategy. Pareto selection weights front members by the examples they win.
func (p pool) selectParent(strategy string, rng *rand.Rand) int {
	if strategy == SelectCurrentBest {
		return p.best()
	}
	counts := p.front()
	members := p.paretoMembers()
	total := 0
	for _, i := range members {
		total += counts[i]
	}
	if total == 0 {
		return p.best()
	}
	n := rng.IntN(total)
	for _, i := range members {
		n -= counts[i]
		if n < 0 {
			return i
		}
	}
	return members[len(members)-1]
}

func (p pool) ancestors(i int) map[int]bool {
	ret := make(map[int]bool)
	queue := []int{i}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, parent := range p[cur].Parents {
			if !ret[parent] {
				ret[parent] = true
				queue = append(queue, parent)
			}
		}
	}
	return ret
}

// commonAncestor returns the most recent shared ancestor of i and j.
func (p pool) commonAncestor(i, j int) (int, bool) {
	a := p.ancestors(i)
	b := p.ancestors(j)
	ret := -1
	for k := range a {
		if b[k] && k > ret {
			ret = k
		}
	}
	return ret, ret >= 0
}
