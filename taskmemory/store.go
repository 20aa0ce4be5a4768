// Package taskmemory implements durable write-through storage for per-stage
// task envelopes, results, artifacts, and logs. The orchestrator is the
// store's sole writer; workers write artifacts to the paths the Context
// Builder hands them, and RecordResult copies each reported artifact into
// the stage's directory.
//
// Every write goes to a temp file in the destination directory and is
// renamed into place, so a reader never observes a torn write and a crash
// mid-write leaves only an orphaned temp file, never a corrupted one.
package taskmemory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
)

// Store is rooted at a single directory; every node gets a subdirectory
// named after its id, and every stage a subdirectory under that.
type Store struct {
	root string
	mu   sync.Mutex // serializes directory creation and rename races
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) stageDir(nodeID string, stage dag.NodeState) string {
	return filepath.Join(s.root, nodeID, string(stage))
}

// SpecsDir is the passthrough location for planner-supplied spec artifacts,
// copied verbatim and never written by the orchestrator itself.
func (s *Store) SpecsDir() string {
	return filepath.Join(s.root, "specs")
}

func (s *Store) ensureDir(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.MkdirAll(dir, 0o755)
}

// atomicWrite writes data to name by first writing to a sibling temp file
// and renaming it into place.
func atomicWrite(name string, data []byte) error {
	dir := filepath.Dir(name)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, name)
}

// attemptSuffix names attempt 0 "task.json"/"result.json" and attempt n>0
// "task.<n>.json"/"result.<n>.json" — a retry writes a sibling attempt
// file, it never overwrites the previous one.
func attemptSuffix(base string, ext string, attempt int) string {
	if attempt == 0 {
		return base + ext
	}
	return base + "." + strconv.Itoa(attempt) + ext
}

// RecordPublish persists the task envelope for a (node, stage) attempt.
func (s *Store) RecordPublish(nodeID string, stage dag.NodeState, attempt int, msg contracts.TaskMessage) error {
	dir := s.stageDir(nodeID, stage)
	if err := s.ensureDir(dir); err != nil {
		return fmt.Errorf("taskmemory: create stage dir: %w", err)
	}
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("taskmemory: marshal task: %w", err)
	}
	return atomicWrite(filepath.Join(dir, attemptSuffix("task", ".json", attempt)), data)
}

// RecordResult persists the result envelope. If artifactSrcPath is set and
// is not already the stage's canonical artifact file
// ("artifact[.<attempt>]<ext>" in the stage directory), the artifact is
// copied there and the recorded result points at the copy; otherwise the
// path is recorded as-is.
func (s *Store) RecordResult(nodeID string, stage dag.NodeState, attempt int, result contracts.ResultMessage, artifactSrcPath string) error {
	dir := s.stageDir(nodeID, stage)
	if err := s.ensureDir(dir); err != nil {
		return fmt.Errorf("taskmemory: create stage dir: %w", err)
	}

	if result.LogOutput != "" {
		logName := attemptSuffix("log", ".txt", attempt)
		if err := atomicWrite(filepath.Join(dir, logName), []byte(result.LogOutput)); err != nil {
			return fmt.Errorf("taskmemory: write log: %w", err)
		}
	}

	if artifactSrcPath != "" {
		canonical := filepath.Join(dir, attemptSuffix("artifact", filepath.Ext(artifactSrcPath), attempt))
		if filepath.Clean(artifactSrcPath) != filepath.Clean(canonical) {
			data, err := os.ReadFile(artifactSrcPath)
			if err != nil {
				return fmt.Errorf("taskmemory: read worker artifact: %w", err)
			}
			if err := atomicWrite(canonical, data); err != nil {
				return fmt.Errorf("taskmemory: copy artifact: %w", err)
			}
			result.ArtifactsPath = canonical
		} else {
			result.ArtifactsPath = artifactSrcPath
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("taskmemory: marshal result: %w", err)
	}
	return atomicWrite(filepath.Join(dir, attemptSuffix("result", ".json", attempt)), data)
}

// GetArtifactPath returns the canonical artifact path recorded for a
// node's stage, from its latest attempt's result.json.
func (s *Store) GetArtifactPath(nodeID string, stage dag.NodeState) (string, bool) {
	result, ok := s.latestResult(nodeID, stage)
	if !ok || result.ArtifactsPath == "" {
		return "", false
	}
	return result.ArtifactsPath, true
}

// GetLogPath returns the path to the latest attempt's captured log.
func (s *Store) GetLogPath(nodeID string, stage dag.NodeState) (string, bool) {
	attempt, ok := s.latestAttempt(nodeID, stage)
	if !ok {
		return "", false
	}
	path := filepath.Join(s.stageDir(nodeID, stage), attemptSuffix("log", ".txt", attempt))
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// ReadLog returns the text of the latest attempt's captured log.
func (s *Store) ReadLog(nodeID string, stage dag.NodeState) (string, bool) {
	path, ok := s.GetLogPath(nodeID, stage)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// AttemptDescriptor summarizes one recorded attempt for a (node, stage).
type AttemptDescriptor struct {
	Attempt  int
	HasTask  bool
	HasResult bool
	Status   contracts.TaskStatus
}

// ListAttempts returns every recorded attempt for (node, stage), ordered by
// attempt number, by scanning the stage directory for task/result files.
func (s *Store) ListAttempts(nodeID string, stage dag.NodeState) ([]AttemptDescriptor, error) {
	dir := s.stageDir(nodeID, stage)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taskmemory: list attempts: %w", err)
	}

	byAttempt := map[int]*AttemptDescriptor{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasPrefix(name, "task"):
			n := parseAttemptNumber(name, "task", ".json")
			d := byAttempt[n]
			if d == nil {
				d = &AttemptDescriptor{Attempt: n}
				byAttempt[n] = d
			}
			d.HasTask = true
		case strings.HasPrefix(name, "result"):
			n := parseAttemptNumber(name, "result", ".json")
			d := byAttempt[n]
			if d == nil {
				d = &AttemptDescriptor{Attempt: n}
				byAttempt[n] = d
			}
			d.HasResult = true
			if result, ok := s.readResultFile(filepath.Join(dir, name)); ok {
				d.Status = result.Status
			}
		}
	}

	out := make([]AttemptDescriptor, 0, len(byAttempt))
	for _, d := range byAttempt {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

// parseAttemptNumber extracts the attempt number from a file name of the
// form "<base><ext>" (attempt 0) or "<base>.<n><ext>" (attempt n).
func parseAttemptNumber(name, base, ext string) int {
	rest := strings.TrimPrefix(name, base)
	rest = strings.TrimSuffix(rest, ext)
	rest = strings.TrimPrefix(rest, ".")
	if rest == "" {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

func (s *Store) latestAttempt(nodeID string, stage dag.NodeState) (int, bool) {
	attempts, err := s.ListAttempts(nodeID, stage)
	if err != nil || len(attempts) == 0 {
		return 0, false
	}
	return attempts[len(attempts)-1].Attempt, true
}

func (s *Store) latestResult(nodeID string, stage dag.NodeState) (contracts.ResultMessage, bool) {
	attempt, ok := s.latestAttempt(nodeID, stage)
	if !ok {
		return contracts.ResultMessage{}, false
	}
	dir := s.stageDir(nodeID, stage)
	path := filepath.Join(dir, attemptSuffix("result", ".json", attempt))
	return s.readResultFile(path)
}

func (s *Store) readResultFile(path string) (contracts.ResultMessage, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return contracts.ResultMessage{}, false
	}
	var result contracts.ResultMessage
	if err := json.Unmarshal(data, &result); err != nil {
		return contracts.ResultMessage{}, false
	}
	return result, true
}

// HasInFlight reports whether a (node, stage) attempt has a recorded task
// but no recorded result — used at startup to decide whether a stage was
// mid-flight when the orchestrator last stopped.
func (s *Store) HasInFlight(nodeID string, stage dag.NodeState) (bool, error) {
	attempts, err := s.ListAttempts(nodeID, stage)
	if err != nil {
		return false, err
	}
	if len(attempts) == 0 {
		return false, nil
	}
	last := attempts[len(attempts)-1]
	return last.HasTask && !last.HasResult, nil
}
