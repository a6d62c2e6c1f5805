package gepa

import (
	"context"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/programs"
)

// Engine evolves the instruction components of a program by reflection.
type Engine struct {
	config      Config
	countTokens lms.BPETokenCounter
	logger      logs.Logger
}

type NewEngine func(config Config) (*Engine, error)

func (Module) NewEngine(
	countTokens lms.BPETokenCounter,
	logger logs.Logger,
) NewEngine {
	return func(config Config) (*Engine, error) {
		if err := config.Validate(); err != nil {
			return nil, err
		}
		return &Engine{
			config:      config,
			countTokens: countTokens,
			logger:      logger,
		}, nil
	}
}

func (e *Engine) Config() Config {
	return e.config
}

type CompileInput struct {
	Student        programs.Handle
	Trainset       []Example
	Valset         []Example
	MaxFullEvals   int
	MaxMetricCalls int
	TrackStats     bool
}

// CompileInputFromParams reads compile params keyed by CompileParams names.
func CompileInputFromParams(params map[string]any) (ret CompileInput, err error) {
	for key, value := range params {
		var ok bool
		switch key {
		case "student":
			ret.Student, ok = value.(programs.Handle)
		case "trainset":
			ret.Trainset, ok = value.([]Example)
		case "valset":
			ret.Valset, ok = value.([]Example)
		case "max_full_evals":
			ret.MaxFullEvals, ok = value.(int)
		case "max_metric_calls":
			ret.MaxMetricCalls, ok = value.(int)
		case "track_stats":
			ret.TrackStats, ok = value.(bool)
		default:
			return ret, wrap(fmt.Errorf("%w: unknown compile param %s", ErrConfig, key))
		}
		if !ok {
			return ret, wrap(fmt.Errorf("%w: %s is %T", ErrConfig, key, value))
		}
	}
	return
}

type Result struct {
	Best           programs.Handle
	BestComponents map[string]string
	BestScore      float64
	MetricCalls    int
	Iterations     int
	Accepted       int
	Merges         int
	// Candidates is filled when TrackStats is set.
	Candidates []Candidate
}

// compilation is the state of one Compile call.
type compilation struct {
	*Engine
	student     programs.Mutable
	trainset    []Example
	valset      []Example
	budget      int
	rng         *rand.Rand
	pool        pool
	metricCalls int
	names       []string
	next        int
	merges      int
	triedMerges map[[2]int]bool
}

func (e *Engine) Compile(ctx context.Context, input CompileInput) (*Result, error) {
	student, ok := input.Student.(programs.Mutable)
	if !ok {
		return nil, wrap(fmt.Errorf("%w: %T", ErrNotMutable, input.Student))
	}
	if len(input.Trainset) == 0 {
		return nil, wrap(ErrNoExamples)
	}
	valset := input.Valset
	if len(valset) == 0 {
		valset = input.Trainset
	}
	seed := student.Components()
	if len(seed) == 0 {
		return nil, wrap(fmt.Errorf("%w: no components", ErrNotMutable))
	}

	c := &compilation{
		Engine:      e,
		student:     student,
		trainset:    input.Trainset,
		valset:      valset,
		budget:      Budget(e.config.Auto, input.MaxFullEvals, input.MaxMetricCalls, len(valset)),
		rng:         rand.New(rand.NewPCG(e.config.Seed, e.config.Seed)),
		names:       slices.Sorted(maps.Keys(seed)),
		triedMerges: make(map[[2]int]bool),
	}

	c.pool = append(c.pool, Candidate{
		Components: seed,
		Scores:     scoresOf(c.evaluate(ctx, student, valset)),
	})
	e.logger.InfoContext(ctx, "gepa seed evaluated",
		"score", c.pool[0].Mean(),
		"budget", c.budget,
		"components", c.names,
	)

	ret := new(Result)
	for c.metricCalls < c.budget {
		if err := ctx.Err(); err != nil {
			return nil, wrap(err)
		}
		ret.Iterations++
		accepted, err := c.iterate(ctx)
		if err != nil {
			return nil, err
		}
		if !accepted {
			continue
		}
		ret.Accepted++
		if e.config.UseMerge && c.merges < e.config.MaxMergeInvocations {
			if c.merge(ctx) {
				ret.Merges++
			}
		}
	}

	best := c.pool.best()
	handle, err := student.WithComponents(c.pool[best].Components)
	if err != nil {
		return nil, wrap(err)
	}
	ret.Best = handle
	ret.BestComponents = maps.Clone(c.pool[best].Components)
	ret.BestScore = c.pool[best].Mean()
	ret.MetricCalls = c.metricCalls
	if input.TrackStats {
		ret.Candidates = slices.Clone(c.pool)
	}
	e.logger.InfoContext(ctx, "gepa done",
		"score", ret.BestScore,
		"candidates", len(c.pool),
		"metric_calls", c.metricCalls,
	)
	return ret, nil
}

// iterate runs one reflective mutation. Only context errors are returned.
func (c *compilation) iterate(ctx context.Context) (bool, error) {
	parentIndex := c.pool.selectParent(c.config.CandidateSelectionStrategy, c.rng)
	parent := c.pool[parentIndex]
	parentHandle, err := c.student.WithComponents(parent.Components)
	if err != nil {
		return false, wrap(err)
	}

	batch := c.minibatch()
	records := c.evaluate(ctx, parentHandle, batch)
	if err := ctx.Err(); err != nil {
		return false, wrap(err)
	}
	parentScores := scoresOf(records)
	if c.config.SkipPerfectScore && slices.IndexFunc(parentScores, func(s float64) bool {
		return s < c.config.PerfectScore
	}) < 0 {
		return false, nil
	}

	component := c.names[c.next%len(c.names)]
	c.next++
	text, err := c.propose(ctx, component, parent.Components[component], records)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, wrap(ctxErr)
		}
		c.logger.WarnContext(ctx, "gepa proposal failed",
			"component", component,
			"error", err,
		)
		return false, nil
	}
	if text == parent.Components[component] {
		return false, nil
	}

	child := maps.Clone(parent.Components)
	child[component] = text
	childHandle, err := c.student.WithComponents(child)
	if err != nil {
		return false, wrap(err)
	}
	childScores := scoresOf(c.evaluate(ctx, childHandle, batch))
	if sum(childScores) <= sum(parentScores) {
		c.logger.DebugContext(ctx, "gepa child rejected",
			"component", component,
			"parent", sum(parentScores),
			"child", sum(childScores),
		)
		return false, nil
	}

	c.pool = append(c.pool, Candidate{
		Components: child,
		Parents:    []int{parentIndex},
		Scores:     scoresOf(c.evaluate(ctx, childHandle, c.valset)),
	})
	c.logger.InfoContext(ctx, "gepa child accepted",
		"component", component,
		"candidate", len(c.pool)-1,
		"score", c.pool[len(c.pool)-1].Mean(),
	)
	return true, nil
}

func (c *compilation) minibatch() []Example {
	size := c.config.ReflectionMinibatchSize
	if size <= 0 {
		size = defaultMinibatchSize
	}
	size = min(size, len(c.trainset))
	indexes := c.rng.Perm(len(c.trainset))[:size]
	ret := make([]Example, 0, size)
	for _, i := range indexes {
		ret = append(ret, c.trainset[i])
	}
	return ret
}
