package contracts

import "time"

// Metrics carries optional worker-reported cost/usage figures.
type Metrics struct {
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	CostUSD          float64 `json:"cost_usd,omitempty"`
}

// DistilledDataset describes a dataset a DISTILLER worker produced.
type DistilledDataset struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// ReflectionInsights describes the insights a REFLECTION worker produced.
type ReflectionInsights struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags,omitempty"`
}

// ResultMessage is the envelope consumed from the single results stream.
type ResultMessage struct {
	TaskID        string     `json:"task_id"`
	CorrelationID string     `json:"correlation_id"`
	CompletedAt   time.Time  `json:"completed_at"`
	Status        TaskStatus `json:"status"`

	ArtifactsPath string `json:"artifacts_path,omitempty"`
	LogOutput     string `json:"log_output"`
	Reflections   string `json:"reflections,omitempty"`

	Metrics *Metrics `json:"metrics,omitempty"`

	Distilled  *DistilledDataset   `json:"distilled,omitempty"`
	Reflection *ReflectionInsights `json:"reflection,omitempty"`

	// WorkerID is free-form, logged only — never used for routing decisions.
	WorkerID string `json:"worker_id,omitempty"`
}
