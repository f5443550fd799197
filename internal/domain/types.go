package domain

import (
	"encoding/json"
	"time"
)

type TaskType string

const (
	TaskAPIAnalysis         TaskType = "api_analysis"
	TaskConnectorGeneration TaskType = "connector_generation"
	TaskTestGeneration      TaskType = "test_generation"
	TaskConnectorFix        TaskType = "connector_fix"
)

type TaskRequest struct {
	TaskType TaskType       `json:"taskType" binding:"required"`
	Context  map[string]any `json:"context"`
	Prompt   string         `json:"prompt" binding:"required"`
	Actions  []string       `json:"actions,omitempty"`
	Config   map[string]any `json:"config,omitempty"`
}

// ModelOverride returns config.llm when the caller supplied a non-empty string.
func (r TaskRequest) ModelOverride() string {
	if r.Config == nil {
		return ""
	}
	model, ok := r.Config["llm"].(string)
	if !ok {
		return ""
	}
	return model
}

type TaskData struct {
	Result string `json:"result"`
	Raw    string `json:"raw"`
}

type TaskMetadata struct {
	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	Model           string   `json:"model,omitempty"`
	Provider        string   `json:"provider,omitempty"`
	TaskType        TaskType `json:"taskType,omitempty"`
	Traceback       string   `json:"traceback,omitempty"`
}

// TaskResult is the envelope every executor call produces.
type TaskResult struct {
	Success  bool          `json:"success"`
	Data     *TaskData     `json:"data,omitempty"`
	Error    string        `json:"error,omitempty"`
	Metadata *TaskMetadata `json:"metadata,omitempty"`
}

// ResultText returns data.result, or "" for failed envelopes.
func (r TaskResult) ResultText() string {
	if r.Data == nil {
		return ""
	}
	return r.Data.Result
}

type HealthResponse struct {
	Healthy      bool     `json:"healthy"`
	Version      string   `json:"version"`
	Timestamp    string   `json:"timestamp"`
	Capabilities []string `json:"capabilities"`
}

type SpecType string

const (
	SpecOpenAPI SpecType = "openapi"
	SpecGraphQL SpecType = "graphql"
	SpecPostman SpecType = "postman"
)

type AnalyzeRequest struct {
	SpecType SpecType       `json:"specType" binding:"required,oneof=openapi graphql postman"`
	Spec     map[string]any `json:"spec" binding:"required"`
}

type AnalyzeResponse struct {
	Success  bool            `json:"success"`
	Analysis json.RawMessage `json:"analysis"`
	Metadata *TaskMetadata   `json:"metadata"`
}

type GenerateConnectorRequest struct {
	Name              string         `json:"name" binding:"required"`
	SpecType          SpecType       `json:"specType" binding:"required"`
	Spec              map[string]any `json:"spec" binding:"required"`
	Language          string         `json:"language" binding:"required"`
	Runtime           string         `json:"runtime" binding:"required"`
	AuthConfig        map[string]any `json:"authConfig,omitempty"`
	SelectedEndpoints []string       `json:"selectedEndpoints,omitempty"`
	Customizations    map[string]any `json:"customizations,omitempty"`
}

type ConnectorFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type ConnectorArtifact struct {
	Name     string          `json:"name"`
	Language string          `json:"language"`
	Runtime  string          `json:"runtime"`
	Code     string          `json:"code"`
	Files    []ConnectorFile `json:"files"`
}

type GenerateConnectorResponse struct {
	Success   bool              `json:"success"`
	Connector ConnectorArtifact `json:"connector"`
	Metadata  *TaskMetadata     `json:"metadata"`
}

type GenerateTestsRequest struct {
	ConnectorCode string `json:"connectorCode"`
	Language      string `json:"language"`
}

type GenerateTestsResponse struct {
	Success  bool          `json:"success"`
	Tests    string        `json:"tests"`
	Metadata *TaskMetadata `json:"metadata"`
}

type FixConnectorRequest struct {
	ConnectorID   string         `json:"connectorId"`
	Error         map[string]any `json:"error"`
	ConnectorCode string         `json:"connectorCode"`
}

type FixConnectorResponse struct {
	Success     bool          `json:"success"`
	FixedCode   string        `json:"fixedCode"`
	Explanation string        `json:"explanation"`
	Metadata    *TaskMetadata `json:"metadata"`
}

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
)

type Job struct {
	ID        string      `json:"id"`
	State     JobState    `json:"state"`
	TaskType  TaskType    `json:"taskType"`
	Result    *TaskResult `json:"result,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type JobAccepted struct {
	JobID string   `json:"jobId"`
	State JobState `json:"state"`
}

type ErrorResponse struct {
	Detail    string `json:"detail"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}
