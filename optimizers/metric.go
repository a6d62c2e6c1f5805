package optimizers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/reusee/optix/assertions"
	"github.com/reusee/optix/gepa"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/vars"
)

// neutralQuality is the quality of a prediction when no gold field can be compared.
const neutralQuality = 0.5

// Metric blends answer quality with output contract validity.
type Metric struct {
	outputs   []string
	weight    float64
	validator programs.PredictionValidator
	post      programs.PredictionPostprocessor

	mu    sync.Mutex
	stats MetricStats
}

type MetricStats struct {
	Count        int
	QualitySum   float64
	AssertionSum float64
	BlendedSum   float64
}

func (s MetricStats) averages() (quality, assertion, blended float64) {
	if s.Count == 0 {
		return
	}
	n := float64(s.Count)
	return s.QualitySum / n, s.AssertionSum / n, s.BlendedSum / n
}

func NewMetric(outputs []string, weight float64, caps programs.Capabilities) *Metric {
	return &Metric{
		outputs:   outputs,
		weight:    vars.Clamp(weight, 0, 1),
		validator: caps.PredictionValidator,
		post:      caps.PredictionPostprocessor,
	}
}

func (m *Metric) Stats() MetricStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Score returns (1-w)*quality + w*assertion. Failures score 0 and are not counted.
func (m *Metric) Score(gold map[string]any, pred programs.Prediction) float64 {
	score, _ := m.score(gold, pred)
	return score
}

// Feedback scores pred for the engine and explains the score to the reflection model.
func (m *Metric) Feedback(_ context.Context, gold gepa.Example, pred programs.Prediction) gepa.Feedback {
	score, notes := m.score(gold.Values, pred)
	return gepa.Feedback{
		Score: score,
		Text:  notes,
	}
}

func (m *Metric) score(gold map[string]any, pred programs.Prediction) (ret float64, notes string) {
	defer func() {
		if p := recover(); p != nil {
			ret = 0
			notes = fmt.Sprintf("The score could not be computed: %v", p)
		}
	}()

	predFields := programs.Fields(pred, m.outputs)
	quality, qualityNotes := Quality(gold, predFields, m.outputs)

	assertion := 1.0
	var assertionNotes []string
	if m.validator != nil {
		result := programs.ResultFields(pred, m.outputs)
		if m.post != nil {
			processed, err := m.post.PostprocessPrediction(pred, result, m.outputs)
			if err != nil {
				return 0, fmt.Sprintf("The output could not be postprocessed: %v", err)
			}
			if processed != nil {
				result = processed
			}
		}
		res := m.validator.ValidatePredictionResult(result)
		assertion = assertionScore(res)
		assertionNotes = res.Errors
	}
	assertion = vars.Clamp(assertion, 0, 1)

	blended := Blend(quality, assertion, m.weight)

	m.mu.Lock()
	m.stats.Count++
	m.stats.QualitySum += quality
	m.stats.AssertionSum += assertion
	m.stats.BlendedSum += blended
	m.mu.Unlock()

	lines := []string{
		fmt.Sprintf("Score %.3f (quality %.3f, output contract %.3f).", blended, quality, assertion),
	}
	lines = append(lines, qualityNotes...)
	for _, e := range assertionNotes {
		lines = append(lines, "Contract violation: "+e)
	}
	return blended, strings.Join(lines, "\n")
}

func assertionScore(res assertions.Result) float64 {
	if res.ChecksTotal > 0 || res.Score != 0 {
		return res.Score
	}
	if res.Passed {
		return 1
	}
	return 0
}

// Quality compares declared output fields as trimmed lowercase strings.
// Containment either way scores 1, otherwise the share of gold tokens found in the prediction.
// Empty gold fields are skipped; with nothing to compare the quality is neutral.
func Quality(gold map[string]any, pred map[string]any, outputs []string) (float64, []string) {
	var scores []float64
	var notes []string
	for _, field := range outputs {
		g := normalize(gold[field])
		if g == "" {
			continue
		}
		p := normalize(pred[field])
		if strings.Contains(p, g) || strings.Contains(g, p) {
			scores = append(scores, 1)
			continue
		}
		overlap := tokenOverlap(g, p)
		scores = append(scores, overlap)
		notes = append(notes, fmt.Sprintf("Expected %s to be %q but got %q.", field, g, p))
	}
	if len(scores) == 0 {
		return neutralQuality, notes
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), notes
}

func normalize(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

func tokenOverlap(gold string, pred string) float64 {
	goldTokens := make(map[string]bool)
	for _, t := range strings.Fields(gold) {
		goldTokens[t] = true
	}
	if len(goldTokens) == 0 {
		return 0
	}
	predTokens := make(map[string]bool)
	for _, t := range strings.Fields(pred) {
		predTokens[t] = true
	}
	hit := 0
	for t := range goldTokens {
		if predTokens[t] {
			hit++
		}
	}
	return float64(hit) / float64(len(goldTokens))
}

func Blend(quality, assertion, weight float64) float64 {
	return (1-weight)*quality + weight*assertion
}
