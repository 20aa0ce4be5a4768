package taskmemory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
)

func TestRecordPublish_WritesTaskFile(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	msg := contracts.TaskMessage{TaskID: "t-1", CorrelationID: "c-1", Context: contracts.TaskContext{NodeID: "counter4"}}
	require.NoError(t, s.RecordPublish("counter4", dag.StateImplementing, 0, msg))

	path := filepath.Join(root, "counter4", "IMPLEMENTING", "task.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "t-1")
}

func TestRecordResult_RetryWritesSiblingFile(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	first := contracts.ResultMessage{TaskID: "t-1", Status: contracts.StatusFailure, LogOutput: "attempt 1 failed"}
	require.NoError(t, s.RecordResult("counter4", dag.StateSimulating, 0, first, ""))

	second := contracts.ResultMessage{TaskID: "t-2", Status: contracts.StatusSuccess, LogOutput: "attempt 2 ok"}
	require.NoError(t, s.RecordResult("counter4", dag.StateSimulating, 1, second, ""))

	dir := filepath.Join(root, "counter4", "SIMULATING")
	assert.FileExists(t, filepath.Join(dir, "result.json"))
	assert.FileExists(t, filepath.Join(dir, "result.1.json"))

	attempts, err := s.ListAttempts("counter4", dag.StateSimulating)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, contracts.StatusFailure, attempts[0].Status)
	assert.Equal(t, contracts.StatusSuccess, attempts[1].Status)
}

func TestRecordResult_CopiesTransientArtifact(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	transient := filepath.Join(t.TempDir(), "scratch.sv")
	require.NoError(t, os.WriteFile(transient, []byte("module top; endmodule"), 0o644))

	result := contracts.ResultMessage{TaskID: "t-1", Status: contracts.StatusSuccess, LogOutput: "ok"}
	require.NoError(t, s.RecordResult("counter4", dag.StateImplementing, 0, result, transient))

	path, ok := s.GetArtifactPath("counter4", dag.StateImplementing)
	require.True(t, ok)
	assert.NotEqual(t, transient, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "module top; endmodule", string(data))
}

func TestGetLogPath_ReflectsLatestAttempt(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.RecordResult("counter4", dag.StateLinting, 0, contracts.ResultMessage{Status: contracts.StatusFailure, LogOutput: "first"}, ""))
	require.NoError(t, s.RecordResult("counter4", dag.StateLinting, 1, contracts.ResultMessage{Status: contracts.StatusSuccess, LogOutput: "second"}, ""))

	text, ok := s.ReadLog("counter4", dag.StateLinting)
	require.True(t, ok)
	assert.Equal(t, "second", text)
}

func TestHasInFlight_TrueWhenTaskRecordedWithoutResult(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.RecordPublish("counter4", dag.StateTestbenching, 0, contracts.TaskMessage{TaskID: "t-1"}))

	inFlight, err := s.HasInFlight("counter4", dag.StateTestbenching)
	require.NoError(t, err)
	assert.True(t, inFlight)

	require.NoError(t, s.RecordResult("counter4", dag.StateTestbenching, 0, contracts.ResultMessage{Status: contracts.StatusSuccess, LogOutput: "ok"}, ""))
	inFlight, err = s.HasInFlight("counter4", dag.StateTestbenching)
	require.NoError(t, err)
	assert.False(t, inFlight)
}

func TestListAttempts_EmptyForUnknownNode(t *testing.T) {
	s := New(t.TempDir())
	attempts, err := s.ListAttempts("nope", dag.StateLinting)
	require.NoError(t, err)
	assert.Empty(t, attempts)
}
