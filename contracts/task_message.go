package contracts

import "time"

// Signal describes one port of a module's interface.
type Signal struct {
	Name      string `json:"name"`
	Direction string `json:"direction"` // "input" | "output" | "inout"
	Width     int    `json:"width"`
}

// Clocking describes clock/reset semantics for a node's module.
type Clocking struct {
	ClockName      string  `json:"clock"`
	FreqHz         float64 `json:"freq_hz"`
	Reset          string  `json:"reset"`
	ResetActiveLow bool    `json:"reset_active_low"`
}

// Interface bundles a module's signal list.
type Interface struct {
	Signals []Signal `json:"signals"`
}

// ArtifactRef points to a prior stage's recorded output.
type ArtifactRef struct {
	ArtifactPath string `json:"artifact_path"`
	LogPath      string `json:"log_path"`
}

// Settings carries optional per-task caps.
type Settings struct {
	Timeout   time.Duration `json:"timeout,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	ModelHint string        `json:"model_hint,omitempty"`
}

// TestPlanScenario is one testbench scenario entry.
type TestPlanScenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TaskContext is the structured payload built by the Context Builder for a
// single stage. Not every field is populated for every TaskKind — the
// Context Builder's per-stage functions populate the subset relevant to
// their stage.
type TaskContext struct {
	NodeID string `json:"node_id"`

	Interface     Interface `json:"interface,omitempty"`
	Clocking      Clocking  `json:"clocking,omitempty"`
	CoverageGoals []string  `json:"coverage_goals,omitempty"`

	RTLPath       string `json:"rtl_path,omitempty"`
	TestbenchPath string `json:"testbench_path,omitempty"`
	SpecSummary   string `json:"spec_summary,omitempty"`

	TestPlan []TestPlanScenario `json:"test_plan,omitempty"`

	ToolConfig map[string]string `json:"tool_config,omitempty"`

	DistilledDatasetPath string `json:"distilled_dataset_path,omitempty"`
	SimulationLogPath    string `json:"simulation_log_path,omitempty"`

	FailingRTLPath      string `json:"failing_rtl_path,omitempty"`
	ReflectionInsights  string `json:"reflection_insights,omitempty"`
	FailureSignature    string `json:"failure_signature,omitempty"`

	PriorArtifacts map[string]ArtifactRef `json:"prior_artifacts,omitempty"`
	Settings       *Settings              `json:"settings,omitempty"`
}

// TaskMessage is the envelope published to a worker queue. It is created
// once by the Context Builder and never mutated afterward.
type TaskMessage struct {
	TaskID        string      `json:"task_id"`
	CorrelationID string      `json:"correlation_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Priority      TaskPriority `json:"priority"`
	EntityType    EntityType  `json:"entity_type"`
	TaskKind      TaskKind    `json:"task_kind"`
	Context       TaskContext `json:"context"`

	// Ambient tracing fields, optional for workers to consume.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}
