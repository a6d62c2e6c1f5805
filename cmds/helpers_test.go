package cmds

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestVar(t *testing.T) {
	agent := Var[string]("TestVar-agent", "agent", "name")
	timeout := Var[time.Duration]("TestVar-timeout")
	GlobalExecutor.MustExecute([]string{
		"TestVar-agent", "adder",
		"TestVar-timeout", "1.5s",
	})
	if *agent != "adder" {
		t.Fatalf("got %v", *agent)
	}
	if *timeout != 1500*time.Millisecond {
		t.Fatalf("got %v", *timeout)
	}

	GlobalExecutor.MustExecute([]string{
		"TestVar-agent.",
	})
	if *agent != "" {
		t.Fatalf("got %v", *agent)
	}

	buf := new(bytes.Buffer)
	executor := &Executor{
		commands: GlobalExecutor.commands,
		output:   buf,
	}
	executor.PrintUsage()
	if !strings.Contains(buf.String(), "TestVar-agent\tagent name") {
		t.Fatalf("got %s", buf.String())
	}
	if strings.Contains(buf.String(), "TestVar-agent.") {
		t.Fatalf("reset command should be hidden: %s", buf.String())
	}
}

func TestSwitch(t *testing.T) {
	force := Switch("TestSwitch-force", "re-run")
	GlobalExecutor.MustExecute([]string{
		"TestSwitch-force",
	})
	if !*force {
		t.Fatal("should be set")
	}
	GlobalExecutor.MustExecute([]string{
		"!TestSwitch-force",
	})
	if *force {
		t.Fatal("should be cleared")
	}
}

func TestCollect(t *testing.T) {
	list := Collect[string]("TestCollect-tool")
	GlobalExecutor.MustExecute([]string{
		"TestCollect-tool", "calculator",
		"TestCollect-tool", "current_time",
	})
	if str := fmt.Sprintf("%v", *list); str != "[calculator current_time]" {
		t.Fatalf("got %s", str)
	}
}

func TestTypedVar(t *testing.T) {
	type Provider string
	v := Var[Provider]("TestTypedVar")
	GlobalExecutor.MustExecute([]string{
		"TestTypedVar", "ollama",
	})
	if *v != "ollama" {
		t.Fatalf("got %v", *v)
	}
}
