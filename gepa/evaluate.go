package gepa

import (
	"context"
	"fmt"
	"sync"

	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/syncs"
)

const defaultThreads = 4

// record is one evaluated example.
type record struct {
	example  Example
	pred     programs.Prediction
	err      error
	feedback Feedback
}

func scoresOf(records []record) []float64 {
	ret := make([]float64, len(records))
	for i, r := range records {
		ret[i] = r.feedback.Score
	}
	return ret
}

func sum(scores []float64) (ret float64) {
	for _, s := range scores {
		ret += s
	}
	return
}

// evaluate runs handle over examples with bounded parallelism. Results are in example order.
func (c *compilation) evaluate(ctx context.Context, handle programs.Handle, examples []Example) []record {
	ret := make([]record, len(examples))
	threads := c.config.NumThreads
	if threads <= 0 {
		threads = defaultThreads
	}
	sem := syncs.NewSemaphore(threads)
	var wg sync.WaitGroup
	for i, example := range examples {
		if err := sem.AcquireContext(ctx); err != nil {
			ret[i] = c.failure(example, err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release()
			ret[i] = c.evaluateOne(ctx, handle, example)
		}()
	}
	wg.Wait()
	c.metricCalls += len(examples)
	return ret
}

func (c *compilation) evaluateOne(ctx context.Context, handle programs.Handle, example Example) (ret record) {
	defer func() {
		if p := recover(); p != nil {
			ret = c.failure(example, fmt.Errorf("panic: %v", p))
		}
	}()
	pred, err := handle.Call(ctx, example.Inputs())
	if err != nil {
		return c.failure(example, err)
	}
	return record{
		example:  example,
		pred:     pred,
		feedback: c.config.Metric(ctx, example, pred),
	}
}

func (c *compilation) failure(example Example, err error) record {
	return record{
		example: example,
		err:     err,
		feedback: Feedback{
			Score: c.config.FailureScore,
			Text:  fmt.Sprintf("The program failed: %v", err),
		},
	}
}
