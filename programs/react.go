package programs

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/reusee/optix/adapters"
	"github.com/reusee/optix/toolguards"
	"github.com/reusee/optix/vars"
)

const (
	finishTool      = "finish"
	trajectoryField = "trajectory"

	defaultMaxIters = 5
)

var reactOutputs = []adapters.Field{
	{Name: "next_thought", Type: "str", Description: "reasoning about the current situation"},
	{Name: "next_tool_name", Type: "str", Description: "one of the listed tools, or finish"},
	{Name: "next_tool_args", Type: "dict", Description: "arguments for the tool as a JSON object"},
}

func defaultReActInstruction(sig adapters.Signature) string {
	var inputs []string
	for _, field := range sig.Inputs {
		inputs = append(inputs, "`"+field.Name+"`")
	}
	return fmt.Sprintf(
		"You are an agent. You are given %s and the trajectory of your previous steps. "+
			"Use the tools to collect what is needed to produce %s. "+
			"In each step give your next thought, the tool to call and its arguments. "+
			"Call %s when you have enough information.",
		strings.Join(inputs, ", "),
		"`"+strings.Join(sig.OutputNames(), "`, `")+"`",
		finishTool,
	)
}

func toolList(tools []toolguards.Tool) string {
	var b strings.Builder
	b.WriteString("\n\nAvailable tools:\n")
	for i, tool := range tools {
		fmt.Fprintf(&b, "(%d) %s", i+1, tool.Name)
		if tool.Description != "" {
			fmt.Fprintf(&b, ": %s", tool.Description)
		}
		if len(tool.Params) > 0 {
			fmt.Fprintf(&b, " Arguments: %s.", strings.Join(tool.Params, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "(%d) %s: marks the task as complete. Arguments: none.", len(tools)+1, finishTool)
	return b.String()
}

// runReAct alternates model steps and tool calls, then extracts the outputs from the trajectory.
// Tool failures become observations; a failed step ends the loop early.
func (h *predictHandle) runReAct(ctx context.Context, sig adapters.Signature, inputs map[string]any) (Prediction, error) {
	tools := h.settings.Tools
	byName := make(map[string]toolguards.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	stepSig := adapters.Signature{
		Instruction: h.components[ComponentReAct] + toolList(tools),
		Inputs:      append(append([]adapters.Field(nil), sig.Inputs...), adapters.Field{Name: trajectoryField}),
		Outputs:     reactOutputs,
	}

	maxIters := vars.FirstNonZero(h.settings.Spec.Program.Tools.MaxIters, defaultMaxIters)
	var trajectory strings.Builder
	withTrajectory := func() map[string]any {
		ret := maps.Clone(inputs)
		if ret == nil {
			ret = make(map[string]any)
		}
		ret[trajectoryField] = trajectory.String()
		return ret
	}

	for i := range maxIters {
		step, err := h.adapter.Call(ctx, h.settings.LM, stepSig, withTrajectory())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			break
		}
		name := strings.TrimSpace(fmt.Sprint(step["next_tool_name"]))
		fmt.Fprintf(&trajectory, "thought_%d: %v\ntool_name_%d: %s\ntool_args_%d: %s\n",
			i, step["next_thought"], i, name, i, argsText(step["next_tool_args"]))
		if name == finishTool {
			break
		}

		var observation string
		tool, ok := byName[name]
		if !ok {
			observation = fmt.Sprintf("unknown tool %q", name)
		} else if out, err := tool.Call(ctx, toolArgs(step["next_tool_args"])); err != nil {
			observation = "error: " + err.Error()
		} else {
			observation = observationText(out)
		}
		fmt.Fprintf(&trajectory, "observation_%d: %s\n", i, observation)
	}

	extractSig := sig
	extractSig.Inputs = stepSig.Inputs
	fields, err := h.adapter.Call(ctx, h.settings.LM, extractSig, withTrajectory())
	if err != nil {
		return nil, err
	}
	fields[trajectoryField] = trajectory.String()
	return fields, nil
}

func toolArgs(v any) map[string]any {
	switch v := v.(type) {
	case map[string]any:
		return v
	case string:
		var ret map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &ret); err == nil {
			return ret
		}
	}
	return map[string]any{}
}

func argsText(v any) string {
	bs, err := json.Marshal(toolArgs(v))
	if err != nil {
		return "{}"
	}
	return string(bs)
}

func observationText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(bs)
}
