package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/reusee/optix/feedbacks"
	"github.com/reusee/optix/resolvers"
	"github.com/reusee/optix/runners"
	"github.com/reusee/optix/vars"
)

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "optix-chat-history")
}

// chat runs queries from a line editor until EOF. Runs share one session and one in-process memory.
func chat(ctx context.Context, setup agentSetup, newRunner runners.NewRunner, overrides resolvers.Overrides) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	path := historyPath()
	if path != "" {
		if f, err := os.Open(path); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(path); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	runner := newRunner(setup.agent, setup.spec, setup.program, runners.Collaborators{
		Recaller: setup.recaller,
		Memory:   new(runners.InMemory),
	})
	session := vars.FirstNonZero(*sessionFlag, feedbacks.NewSessionID())

	for ctx.Err() == nil {
		input, err := line.Prompt(setup.agent.Name + "> ")
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		ce(err)
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		res, err := runner.Run(ctx, input, runners.RunOptions{
			Overrides: overrides,
			SessionID: session,
		})
		if err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			continue
		}
		printJSON(res.Map())
	}
}
