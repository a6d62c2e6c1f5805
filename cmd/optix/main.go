package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/cmds"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/modes"
	"github.com/reusee/optix/optimizers"
	"github.com/reusee/optix/optixconfigs"
	"github.com/reusee/optix/playbooks"
	"github.com/reusee/optix/programs"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/runners"
	"golang.org/x/term"
)

var (
	agentFlag   = cmds.Var[string]("-agent", "agent name under the agents directory")
	forceFlag   = cmds.Switch("-force", "re-optimize when optimized state exists")
	sessionFlag = cmds.Var[string]("-session", "session id for feedback tracking")

	command string
	query   string
)

func init() {
	cmds.Define("run", cmds.Func(func(q *string) {
		command = "run"
		query = *q
	}).Desc("answer a query, read from stdin when omitted"))
	cmds.Define("optimize", cmds.Func(func() {
		command = "optimize"
	}).Desc("optimize the agent against its playbook scenarios"))
	cmds.Define("chat", cmds.Func(func() {
		command = "chat"
	}).Desc("interactive session"))
}

// agentSetup is what every command needs about the selected agent.
type agentSetup struct {
	agent    playbooks.Agent
	spec     *playbooks.Spec
	program  programs.Program
	recaller runners.Recaller
}

func main() {
	cmds.Execute(os.Args[1:])
	if command == "" {
		cmds.GlobalExecutor.PrintUsage()
		os.Exit(2)
	}
	if *agentFlag == "" {
		exit(fmt.Errorf("-agent is required"))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	scope := dscope.New(
		new(Module),
		modes.ForProduction(),
	)

	scope.Call(func(
		agentsDir optixconfigs.AgentsDir,
		forSpec programs.ForSpec,
		logger logs.Logger,
	) {
		agent := playbooks.NewAgent(string(agentsDir), *agentFlag)
		spec, err := agent.LoadPlaybook()
		ce(err)
		setup := agentSetup{
			agent:   agent,
			spec:    spec,
			program: forSpec(agent.Name, spec),
		}
		if spec.RetrievalEnabled() {
			setup.recaller = runners.DirRecaller{
				Dir: filepath.Join(agent.Dir, "knowledge"),
			}
		}
		logger.InfoContext(ctx, "agent loaded",
			"agent", agent.Name,
			"command", command,
		)

		switch command {
		case "run":
			scope.Call(func(newRunner runners.NewRunner, overrides resolvers.Overrides) {
				runQuery(ctx, setup, newRunner, overrides)
			})
		case "optimize":
			scope.Call(func(newOptimizer optimizers.NewOptimizer, overrides resolvers.Overrides) {
				res := newOptimizer(setup.agent, setup.spec, setup.program, setup.recaller).Optimize(ctx, optimizers.OptimizeOptions{
					Force:     *forceFlag,
					Overrides: overrides,
				})
				printJSON(res)
				if !res.Success {
					os.Exit(1)
				}
			})
		case "chat":
			scope.Call(func(newRunner runners.NewRunner, overrides resolvers.Overrides) {
				chat(ctx, setup, newRunner, overrides)
			})
		}
	})
}

func runQuery(ctx context.Context, setup agentSetup, newRunner runners.NewRunner, overrides resolvers.Overrides) {
	input := query
	if stdin := getStdinContent(); len(stdin) > 0 {
		input = strings.TrimSpace(input + "\n" + string(stdin))
	}
	if input == "" {
		exit(fmt.Errorf("empty query"))
	}
	runner := newRunner(setup.agent, setup.spec, setup.program, runners.Collaborators{
		Recaller: setup.recaller,
	})
	res, err := runner.Run(ctx, input, runners.RunOptions{
		Overrides: overrides,
		SessionID: *sessionFlag,
	})
	if err != nil {
		exit(err)
	}
	printJSON(res.Map())
}

func getStdinContent() (ret []byte) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}
	ret, err := io.ReadAll(os.Stdin)
	ce(err)
	return
}

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	ce(encoder.Encode(v))
}

func ce(err error) {
	if err != nil {
		exit(err)
	}
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "%v\n", err)
	os.Exit(1)
}
