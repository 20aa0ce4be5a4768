package statemachine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
)

// PostconditionInput bundles everything a postcondition check needs: the
// result the worker reported, the artifact's text content (read by the
// caller from Task Memory before invoking the check), and, for stages that
// need it, the node's expected interface signals from the Design Context.
type PostconditionInput struct {
	Result          contracts.ResultMessage
	ArtifactText    string
	ExpectedSignals []contracts.Signal
	Snapshot        dag.Snapshot
}

// Postcondition validates that a stage's SUCCESS result actually satisfies
// the stage's exit criteria. A non-nil error here is an InterfaceMismatch-
// class failure: terminal, no retry.
type Postcondition func(PostconditionInput) error

// Postconditions maps each dispatchable stage to its check. DEBUGGING has
// no entry, so its SUCCESS is accepted without a check.
var Postconditions = map[dag.NodeState]Postcondition{
	dag.StateImplementing: checkImplementing,
	dag.StateTestbenching: checkTestbenching,
	dag.StateLinting:      checkToolExitZero,
	dag.StateSimulating:   checkToolExitZero,
	dag.StateDistilling:   checkDistilling,
	dag.StateReflecting:   checkReflecting,
}

var modulePattern = regexp.MustCompile(`\bmodule\s+(\w+)`)

// checkImplementing: artifact file exists, non-empty, declares a module
// matching the interface signal list (name/direction/width). Width and
// direction aren't recoverable from raw RTL text without a real parser, so
// this checks presence of every signal name as a conservative, cheap proxy
// — a missing name is certainly a mismatch.
func checkImplementing(in PostconditionInput) error {
	if strings.TrimSpace(in.ArtifactText) == "" {
		return fmt.Errorf("implementation artifact is empty")
	}
	if !modulePattern.MatchString(in.ArtifactText) {
		return fmt.Errorf("implementation artifact declares no module")
	}
	for _, sig := range in.ExpectedSignals {
		if !strings.Contains(in.ArtifactText, sig.Name) {
			return fmt.Errorf("implementation artifact missing signal %q", sig.Name)
		}
	}
	return nil
}

// checkTestbenching: artifact is non-empty, contains a module declaration,
// and names every input port. It does not check which module the testbench
// instantiates, nor that a named input port is actually driven.
func checkTestbenching(in PostconditionInput) error {
	if strings.TrimSpace(in.ArtifactText) == "" {
		return fmt.Errorf("testbench artifact is empty")
	}
	if !modulePattern.MatchString(in.ArtifactText) {
		return fmt.Errorf("testbench artifact does not instantiate a module")
	}
	for _, sig := range in.ExpectedSignals {
		if sig.Direction != "input" {
			continue
		}
		if !strings.Contains(in.ArtifactText, sig.Name) {
			return fmt.Errorf("testbench does not drive input port %q", sig.Name)
		}
	}
	return nil
}

// checkToolExitZero covers LINTING and SIMULATING: the worker's reported
// status already encodes tool exit code (SUCCESS implies zero), so this
// just confirms a log was captured.
func checkToolExitZero(in PostconditionInput) error {
	if strings.TrimSpace(in.Result.LogOutput) == "" {
		return fmt.Errorf("tool run produced no captured log")
	}
	return nil
}

func checkDistilling(in PostconditionInput) error {
	if in.Result.Distilled == nil || strings.TrimSpace(in.Result.Distilled.Path) == "" {
		return fmt.Errorf("distilled dataset path missing")
	}
	if in.Result.Distilled.Count <= 0 {
		return fmt.Errorf("distilled dataset is empty")
	}
	return nil
}

func checkReflecting(in PostconditionInput) error {
	if in.Result.Reflection == nil || strings.TrimSpace(in.Result.Reflection.Summary) == "" {
		return fmt.Errorf("reflection insights body is empty")
	}
	return nil
}
