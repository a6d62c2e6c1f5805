package gepa

import (
	"context"
	"maps"
)

// merge combines two front candidates sharing an ancestor. Each component takes
// the side that changed it relative to the ancestor. One call is one merge invocation.
// It reports whether the merged candidate joined the pool.
func (c *compilation) merge(ctx context.Context) bool {
	members := c.pool.paretoMembers()
	if len(members) < 2 {
		return false
	}
	c.rng.Shuffle(len(members), func(i, j int) {
		members[i], members[j] = members[j], members[i]
	})

	for x := range members {
		for y := x + 1; y < len(members); y++ {
			i, j := min(members[x], members[y]), max(members[x], members[y])
			if c.triedMerges[[2]int{i, j}] {
				continue
			}
			ancestor, ok := c.pool.commonAncestor(i, j)
			if !ok {
				continue
			}
			merged, ok := c.mergeComponents(i, j, ancestor)
			if !ok {
				continue
			}
			if c.metricCalls+len(c.valset) > c.budget {
				return false
			}
			c.triedMerges[[2]int{i, j}] = true
			c.merges++
			return c.tryMerged(ctx, merged, i, j)
		}
	}
	return false
}

func (c *compilation) mergeComponents(i, j, ancestor int) (map[string]string, bool) {
	a := c.pool[i].Components
	b := c.pool[j].Components
	base := c.pool[ancestor].Components
	ret := make(map[string]string, len(c.names))
	for _, name := range c.names {
		if a[name] == base[name] && b[name] != base[name] {
			ret[name] = b[name]
		} else {
			ret[name] = a[name]
		}
	}
	if maps.Equal(ret, a) || maps.Equal(ret, b) {
		return nil, false
	}
	return ret, true
}

func (c *compilation) tryMerged(ctx context.Context, merged map[string]string, i, j int) bool {
	handle, err := c.student.WithComponents(merged)
	if err != nil {
		c.logger.WarnContext(ctx, "gepa merge build failed",
			"error", err,
		)
		return false
	}
	candidate := Candidate{
		Components: merged,
		Parents:    []int{i, j},
		Scores:     scoresOf(c.evaluate(ctx, handle, c.valset)),
	}
	if candidate.Mean() < max(c.pool[i].Mean(), c.pool[j].Mean()) {
		c.logger.DebugContext(ctx, "gepa merge rejected",
			"parents", candidate.Parents,
			"score", candidate.Mean(),
		)
		return false
	}
	c.pool = append(c.pool, candidate)
	c.logger.InfoContext(ctx, "gepa merge accepted",
		"parents", candidate.Parents,
		"score", candidate.Mean(),
	)
	return true
}
