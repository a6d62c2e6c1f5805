package gepa

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/template"

	"github.com/reusee/optix/lms"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/prompts"
)

var (
	proposalTemplate = template.Must(template.New("proposal").Parse(prompts.InstructionProposal))
	recordTemplate   = template.Must(template.New("record").Parse(prompts.ReflectionRecord))
)

// propose asks the reflection model for a new text of component.
func (c *compilation) propose(ctx context.Context, component string, current string, records []record) (string, error) {
	var prompt strings.Builder
	if err := proposalTemplate.Execute(&prompt, map[string]any{
		"Component": component,
		"Current":   current,
		"Examples":  c.reflectiveDataset(records),
	}); err != nil {
		return "", wrap(err)
	}
	resp, err := c.config.ReflectionLM.Generate(ctx, lms.Prompt("", prompt.String()))
	if err != nil {
		return "", wrap(err)
	}
	text := extractInstruction(resp.Text)
	if text == "" {
		return "", wrap(ErrNoProposal)
	}
	return text, nil
}

// reflectiveDataset renders records until the token budget is spent. The first record is always kept.
func (c *compilation) reflectiveDataset(records []record) string {
	var b strings.Builder
	for i, r := range records {
		var entry strings.Builder
		if err := recordTemplate.Execute(&entry, map[string]any{
			"Index":    i + 1,
			"Inputs":   formatValues(r.example.Inputs()),
			"Outputs":  formatOutputs(r),
			"Feedback": r.feedback.Text,
		}); err != nil {
			continue
		}
		if i > 0 && c.config.ReflectionTokenBudget > 0 && c.countTokens != nil {
			n, err := c.countTokens(b.String() + entry.String())
			if err == nil && n > c.config.ReflectionTokenBudget {
				break
			}
		}
		b.WriteString(entry.String())
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func formatValues(values map[string]any) string {
	var lines []string
	for _, key := range slices.Sorted(maps.Keys(values)) {
		lines = append(lines, fmt.Sprintf("%s: %v", key, values[key]))
	}
	return strings.Join(lines, "\n")
}

func formatOutputs(r record) string {
	if r.err != nil {
		return fmt.Sprintf("Error: %v", r.err)
	}
	labels := slices.Sorted(maps.Keys(r.example.Labels()))
	fields := programs.Fields(r.pred, labels)
	if len(fields) == 0 {
		return fmt.Sprint(r.pred)
	}
	return formatValues(fields)
}

// extractInstruction takes the text between the first and the last fence, or the whole text without fences.
func extractInstruction(text string) string {
	start := strings.Index(text, "```")
	end := strings.LastIndex(text, "```")
	if start < 0 || start == end {
		return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))
	}
	inner := text[start+3 : end]
	// drop a language tag on the opening fence
	if nl := strings.Index(inner, "\n"); nl >= 0 && !strings.ContainsAny(strings.TrimSpace(inner[:nl]), " \t") {
		inner = inner[nl+1:]
	}
	return strings.TrimSpace(inner)
}
