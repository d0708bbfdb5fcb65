package models

// Pipeline stages in execution order.
const (
	StageIngest   = "ingest"
	StageExtract  = "extract"
	StageValidate = "validate"
	StageRoute    = "route"
	StagePersist  = "persist"
	StageDone     = "done"
)

// Usage reports token consumption of a model call.
// A zero Usage means the provider did not report figures.
type Usage struct {
	InputTokens  int64  `json:"input_tokens,omitempty"`
	OutputTokens int64  `json:"output_tokens,omitempty"`
	TotalTokens  int64  `json:"total_tokens,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

// IsZero reports whether no usage figures were recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// Add sums two usages. Mode is kept from u unless empty.
func (u Usage) Add(o Usage) Usage {
	mode := u.Mode
	if mode == "" {
		mode = o.Mode
	}
	return Usage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
		TotalTokens:  u.TotalTokens + o.TotalTokens,
		Mode:         mode,
	}
}

// StageMetrics records latency and usage of one stage.
type StageMetrics struct {
	LatencyMS int64 `json:"latency_ms"`
	Usage     Usage `json:"usage"`
}

// RunState accumulates the outputs of one pipeline execution.
// It is owned by a single run and never shared.
type RunState struct {
	RequestID string `json:"request_id"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	FilePath  string `json:"file_path"`
	Stage     string `json:"stage"`

	Document          *DocumentText       `json:"doc_text,omitempty"`
	Contract          *ContractExtraction `json:"extracted_contract,omitempty"`
	RetrievedPolicies []RetrievedPolicy   `json:"retrieved_policies,omitempty"`
	Validation        *ValidationResult   `json:"validation_result,omitempty"`
	Routing           *RoutingDecision    `json:"routing_decision,omitempty"`
	ContractID        string              `json:"contract_id,omitempty"`

	Metrics map[string]StageMetrics `json:"metrics,omitempty"`
}

// NewRunState creates the initial state for a run.
func NewRunState(requestID, sender, subject, filePath string) *RunState {
	return &RunState{
		RequestID: requestID,
		Sender:    sender,
		Subject:   subject,
		FilePath:  filePath,
		Stage:     StageIngest,
		Metrics:   make(map[string]StageMetrics),
	}
}

// RecordStage stores the metrics of a completed stage.
func (s *RunState) RecordStage(stage string, m StageMetrics) {
	if s.Metrics == nil {
		s.Metrics = make(map[string]StageMetrics)
	}
	s.Metrics[stage] = m
}

// PipelineResult is what a completed run reports to its caller.
type PipelineResult struct {
	RequestID        string             `json:"request_id"`
	ContractID       string             `json:"contract_id"`
	Contract         ContractExtraction `json:"extracted_contract"`
	Routing          RoutingDecision    `json:"routing_decision"`
	Validation       ValidationResult   `json:"validation_result"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
}
