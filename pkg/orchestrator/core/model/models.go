package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/serialization"

	"github.com/google/uuid"
)

// JobStatus represents the state of a single job within an execution.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusCancelled JobStatus = "cancelled"
)

// String returns the string representation of the JobStatus.
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal checks whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusSkipped, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// SatisfiesDependency reports whether a job in this state releases its
// dependents. Only completed and skipped predecessors do; a failed or
// cancelled predecessor keeps every dependent pending.
func (s JobStatus) SatisfiesDependency() bool {
	return s == JobStatusCompleted || s == JobStatusSkipped
}

// ExecutionStatus represents the overall state of one execution.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// String returns the string representation of the ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}

// IsTerminal checks whether the execution has finished.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// CheckpointTrigger describes why a checkpoint snapshot was taken.
type CheckpointTrigger string

const (
	TriggerManual         CheckpointTrigger = "manual"
	TriggerTimeBased      CheckpointTrigger = "time-based"
	TriggerJobCompleted   CheckpointTrigger = "job-completed"
	TriggerLevelCompleted CheckpointTrigger = "level-completed"
	TriggerBeforeCritical CheckpointTrigger = "before-critical"
)

// BackfillInterval is the step unit of a backfill date range.
type BackfillInterval string

const (
	IntervalHour  BackfillInterval = "hour"
	IntervalDay   BackfillInterval = "day"
	IntervalWeek  BackfillInterval = "week"
	IntervalMonth BackfillInterval = "month"
)

// Valid reports whether the interval is one of the supported units.
func (i BackfillInterval) Valid() bool {
	switch i {
	case IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
		return true
	default:
		return false
	}
}

// JobParams is the opaque key-value configuration passed to a job handler.
type JobParams map[string]interface{}

// Value implements driver.Valuer, converting the params to a JSON string.
func (p JobParams) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to JobParams.
func (p *JobParams) Scan(value interface{}) error {
	return scanJSONMap((*map[string]interface{})(p), value, "JobParams")
}

// GetString retrieves the value for the specified key as a string.
func (p JobParams) GetString(key string) (string, bool) {
	val, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// GetBool retrieves the value for the specified key as a bool.
func (p JobParams) GetBool(key string) (bool, bool) {
	val, ok := p[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetInt retrieves the value for the specified key as an int.
// Numbers decoded from JSON arrive as float64 and are converted.
func (p JobParams) GetInt(key string) (int, bool) {
	val, ok := p[key]
	if !ok {
		return 0, false
	}
	if i, ok := val.(int); ok {
		return i, true
	}
	if f, ok := val.(float64); ok {
		return int(f), true
	}
	return 0, false
}

// JobOutput is the result a handler produces for a completed job.
type JobOutput map[string]interface{}

// Value implements driver.Valuer, converting the output to a JSON string.
func (o JobOutput) Value() (driver.Value, error) {
	if o == nil {
		return "{}", nil
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to a JobOutput.
func (o *JobOutput) Scan(value interface{}) error {
	return scanJSONMap((*map[string]interface{})(o), value, "JobOutput")
}

// scanJSONMap is the shared sql.Scanner body for JSON-backed map columns.
func scanJSONMap(dst *map[string]interface{}, value interface{}, typeName string) error {
	if value == nil {
		*dst = make(map[string]interface{})
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for %s: %T", typeName, value)
	}
	if len(b) == 0 {
		*dst = make(map[string]interface{})
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s JSON: %w", typeName, err)
	}
	return nil
}

// StringList is a JSON-backed string slice column (dependsOn, executionIds).
type StringList []string

// Value implements driver.Valuer, converting the list to a JSON string.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to a StringList.
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = make(StringList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for StringList: %T", value)
	}
	if len(b) == 0 {
		*l = make(StringList, 0)
		return nil
	}
	if err := json.Unmarshal(b, l); err != nil {
		return fmt.Errorf("failed to unmarshal StringList JSON: %w", err)
	}
	return nil
}

// OutputAccessor grants a condition predicate read-only access to the outputs
// of jobs that already reached a terminal state. GetJobOutput returns nil for
// jobs that produced no output (never ran, failed, or unknown id).
type OutputAccessor interface {
	GetJobOutput(jobID string) JobOutput
}

// Condition is a synchronous, side-effect-free predicate evaluated immediately
// before a job is dispatched. Returning false marks the job skipped without
// invoking its handler. Conditions never appear in serialized job definitions.
type Condition func(outputs OutputAccessor) bool

// JobConfig is the immutable definition of one job within an execution.
type JobConfig struct {
	// ID uniquely identifies the job within its execution.
	ID string `yaml:"id" json:"id"`
	// Name is the display name; it may contain hydration placeholders.
	Name string `yaml:"name" json:"name"`
	// Type is the dispatch key into the handler registry.
	Type string `yaml:"type" json:"type"`
	// Config is the opaque key-value map passed to the handler.
	Config JobParams `yaml:"config" json:"config"`
	// DependsOn lists job ids that must complete or skip before this job runs.
	DependsOn []string `yaml:"dependsOn" json:"dependsOn"`
	// Condition, when set, gates dispatch. Not serializable.
	Condition Condition `yaml:"-" json:"-"`
	// TimeoutSeconds bounds one handler invocation. Zero means no timeout.
	TimeoutSeconds int `yaml:"timeoutSeconds" json:"timeoutSeconds"`
}

// Critical reports whether the job is flagged critical in its config,
// which enables the before-critical checkpoint trigger.
func (jc JobConfig) Critical() bool {
	v, _ := jc.Config.GetBool("critical")
	return v
}

// Clone returns a deep copy of the JobConfig. The condition function is shared;
// it is stateless by contract.
func (jc JobConfig) Clone() JobConfig {
	out := jc
	if jc.Config != nil {
		data, err := json.Marshal(jc.Config)
		if err == nil {
			var cfg JobParams
			if json.Unmarshal(data, &cfg) == nil {
				out.Config = cfg
			}
		}
	}
	if jc.DependsOn != nil {
		out.DependsOn = append([]string(nil), jc.DependsOn...)
	}
	return out
}

// JobState is the mutable per-job record within one execution.
type JobState struct {
	JobID     string     `json:"jobId"`
	Status    JobStatus  `json:"status"`
	Output    JobOutput  `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// NewJobState creates a pending JobState for the given job id.
func NewJobState(jobID string) *JobState {
	return &JobState{JobID: jobID, Status: JobStatusPending}
}

// isValidJobTransition checks whether a job status transition is legal.
// Terminal states are final: a completed, failed, skipped or cancelled job
// never changes again within its execution.
func isValidJobTransition(current, next JobStatus) bool {
	switch current {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusSkipped || next == JobStatusCancelled
	case JobStatusRunning:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}

// TransitionTo transitions the job state, rejecting illegal transitions.
func (js *JobState) TransitionTo(next JobStatus) error {
	if !isValidJobTransition(js.Status, next) {
		return fmt.Errorf("job '%s': invalid state transition: %s -> %s", js.JobID, js.Status, next)
	}
	js.Status = next
	return nil
}

// MarkAsRunning transitions the job to running and stamps StartedAt.
func (js *JobState) MarkAsRunning() {
	if err := js.TransitionTo(JobStatusRunning); err != nil {
		logger.Warnf("Could not update job '%s' status to running: %v", js.JobID, err)
		return
	}
	now := time.Now()
	js.StartedAt = &now
}

// MarkAsCompleted transitions the job to completed with the handler output.
func (js *JobState) MarkAsCompleted(output JobOutput) {
	if err := js.TransitionTo(JobStatusCompleted); err != nil {
		logger.Warnf("Could not update job '%s' status to completed: %v", js.JobID, err)
		return
	}
	js.Output = output
	now := time.Now()
	js.EndedAt = &now
}

// MarkAsFailed transitions the job to failed and records the error message.
func (js *JobState) MarkAsFailed(err error) {
	if terr := js.TransitionTo(JobStatusFailed); terr != nil {
		logger.Warnf("Could not update job '%s' status to failed: %v", js.JobID, terr)
		return
	}
	if err != nil {
		js.Error = err.Error()
	}
	now := time.Now()
	js.EndedAt = &now
}

// MarkAsSkipped transitions the job to skipped with a reason. Downstream
// dependents treat a skipped job as satisfied.
func (js *JobState) MarkAsSkipped(reason string) {
	if err := js.TransitionTo(JobStatusSkipped); err != nil {
		logger.Warnf("Could not update job '%s' status to skipped: %v", js.JobID, err)
		return
	}
	js.Output = JobOutput{"skipped": true, "reason": reason}
	now := time.Now()
	js.EndedAt = &now
}

// MarkAsCancelled transitions a pending job to cancelled.
func (js *JobState) MarkAsCancelled() {
	if err := js.TransitionTo(JobStatusCancelled); err != nil {
		logger.Warnf("Could not update job '%s' status to cancelled: %v", js.JobID, err)
		return
	}
	now := time.Now()
	js.EndedAt = &now
}

// Clone returns a deep copy of the JobState.
func (js *JobState) Clone() *JobState {
	if js == nil {
		return nil
	}
	out := &JobState{JobID: js.JobID, Status: js.Status, Error: js.Error}
	if js.Output != nil {
		data, err := json.Marshal(js.Output)
		if err == nil {
			var o JobOutput
			if json.Unmarshal(data, &o) == nil {
				out.Output = o
			}
		}
	}
	if js.StartedAt != nil {
		t := *js.StartedAt
		out.StartedAt = &t
	}
	if js.EndedAt != nil {
		t := *js.EndedAt
		out.EndedAt = &t
	}
	return out
}

// JobConfigList is a JSON-backed job list column. Conditions are runtime-only
// and do not survive the round trip.
type JobConfigList []JobConfig

// Value implements driver.Valuer, converting the list to a JSON string.
func (l JobConfigList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to a JobConfigList.
func (l *JobConfigList) Scan(value interface{}) error {
	if value == nil {
		*l = make(JobConfigList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JobConfigList: %T", value)
	}
	if len(b) == 0 {
		*l = make(JobConfigList, 0)
		return nil
	}
	return json.Unmarshal(b, l)
}

// DateResultList is a JSON-backed backfill result column.
type DateResultList []DateExecutionResult

// Value implements driver.Valuer, converting the list to a JSON string.
func (l DateResultList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to a DateResultList.
func (l *DateResultList) Scan(value interface{}) error {
	if value == nil {
		*l = make(DateResultList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for DateResultList: %T", value)
	}
	if len(b) == 0 {
		*l = make(DateResultList, 0)
		return nil
	}
	return json.Unmarshal(b, l)
}

// JobStateMap maps job id to its JobState within one execution.
type JobStateMap map[string]*JobState

// Clone returns a deep copy of the map; mutations of the original never
// leak into the copy.
func (m JobStateMap) Clone() JobStateMap {
	out := make(JobStateMap, len(m))
	for id, js := range m {
		out[id] = js.Clone()
	}
	return out
}

// Value implements driver.Valuer, converting the map to a JSON string.
func (m JobStateMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to a JobStateMap.
func (m *JobStateMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(JobStateMap)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for JobStateMap: %T", value)
	}
	if len(b) == 0 {
		*m = make(JobStateMap)
		return nil
	}
	if err := json.Unmarshal(b, m); err != nil {
		return fmt.Errorf("failed to unmarshal JobStateMap JSON: %w", err)
	}
	return nil
}

// Execution is one run of a named job set. It is owned exclusively by the
// execution engine for its lifetime; checkpoints receive deep copies.
type Execution struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Status      ExecutionStatus `json:"status"`
	Jobs        JobStateMap     `json:"jobs"`
	JobConfigs  []JobConfig     `json:"jobConfigs"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// NewExecution creates a running Execution with a pending JobState per job.
func NewExecution(name string, jobs []JobConfig) *Execution {
	states := make(JobStateMap, len(jobs))
	for _, jc := range jobs {
		states[jc.ID] = NewJobState(jc.ID)
	}
	return &Execution{
		ID:         NewID(),
		Name:       name,
		Status:     ExecutionStatusRunning,
		Jobs:       states,
		JobConfigs: jobs,
		CreatedAt:  time.Now(),
	}
}

// MarkFinished sets the terminal execution status and stamps CompletedAt.
func (e *Execution) MarkFinished(status ExecutionStatus) {
	e.Status = status
	now := time.Now()
	e.CompletedAt = &now
}

// CountByStatus returns the number of jobs currently in the given status.
func (e *Execution) CountByStatus(status JobStatus) int {
	n := 0
	for _, js := range e.Jobs {
		if js.Status == status {
			n++
		}
	}
	return n
}

// TerminalCount returns the number of jobs that reached a terminal state.
func (e *Execution) TerminalCount() int {
	n := 0
	for _, js := range e.Jobs {
		if js.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the Execution, detached from the live run.
func (e *Execution) Clone() *Execution {
	out := &Execution{
		ID:        e.ID,
		Name:      e.Name,
		Status:    e.Status,
		Jobs:      e.Jobs.Clone(),
		CreatedAt: e.CreatedAt,
	}
	if e.JobConfigs != nil {
		out.JobConfigs = make([]JobConfig, 0, len(e.JobConfigs))
		for _, jc := range e.JobConfigs {
			out.JobConfigs = append(out.JobConfigs, jc.Clone())
		}
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Checkpoint is an immutable, durable snapshot of an execution's job map.
type Checkpoint struct {
	ID            string                 `json:"id"`
	ExecutionID   string                 `json:"executionId"`
	ExecutionName string                 `json:"executionName,omitempty"`
	Name          string                 `json:"name"`
	Trigger       CheckpointTrigger      `json:"trigger"`
	State         JobStateMap            `json:"state"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// NewCheckpoint creates a Checkpoint around an already deep-copied state map.
func NewCheckpoint(executionID, name string, trigger CheckpointTrigger, state JobStateMap, metadata map[string]interface{}) *Checkpoint {
	return &Checkpoint{
		ID:          NewID(),
		ExecutionID: executionID,
		Name:        name,
		Trigger:     trigger,
		State:       state,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
}

// Clone returns a deep copy of the Checkpoint. Snapshots are immutable once
// taken; readers always receive a detached copy.
func (c *Checkpoint) Clone() *Checkpoint {
	out := *c
	out.State = c.State.Clone()
	if c.Metadata != nil {
		md, err := serialization.DeepCopyMap(c.Metadata)
		if err == nil {
			out.Metadata = md
		}
	}
	return &out
}

// DateExecutionResult records the outcome of one backfill date.
type DateExecutionResult struct {
	Date        time.Time       `json:"date"`
	ExecutionID string          `json:"executionId,omitempty"`
	Status      ExecutionStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

// BackfillExecution aggregates per-date pipeline runs over a date range.
type BackfillExecution struct {
	ID                  string                `json:"id"`
	TemplateID          string                `json:"templateId"`
	TemplateName        string                `json:"templateName"`
	StartDate           time.Time             `json:"startDate"`
	EndDate             time.Time             `json:"endDate"`
	Interval            BackfillInterval      `json:"interval"`
	Status              ExecutionStatus       `json:"status"`
	TotalExecutions     int                   `json:"totalExecutions"`
	CompletedExecutions int                   `json:"completedExecutions"`
	FailedExecutions    int                   `json:"failedExecutions"`
	ExecutionIDs        StringList            `json:"executionIds"`
	Results             []DateExecutionResult `json:"results,omitempty"`
	CreatedAt           time.Time             `json:"createdAt"`
	CompletedAt         *time.Time            `json:"completedAt,omitempty"`
}

// NewBackfillExecution creates a running BackfillExecution for the given range.
func NewBackfillExecution(templateID, templateName string, start, end time.Time, interval BackfillInterval, total int) *BackfillExecution {
	return &BackfillExecution{
		ID:              NewID(),
		TemplateID:      templateID,
		TemplateName:    templateName,
		StartDate:       start,
		EndDate:         end,
		Interval:        interval,
		Status:          ExecutionStatusRunning,
		TotalExecutions: total,
		ExecutionIDs:    make(StringList, 0, total),
		CreatedAt:       time.Now(),
	}
}

// MarkFinished finalizes the backfill: failed if any date failed, else completed.
func (b *BackfillExecution) MarkFinished() {
	if b.FailedExecutions > 0 {
		b.Status = ExecutionStatusFailed
	} else {
		b.Status = ExecutionStatusCompleted
	}
	now := time.Now()
	b.CompletedAt = &now
}

// Clone returns a deep copy of the BackfillExecution.
func (b *BackfillExecution) Clone() *BackfillExecution {
	out := *b
	out.ExecutionIDs = append(StringList(nil), b.ExecutionIDs...)
	out.Results = append([]DateExecutionResult(nil), b.Results...)
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// Artifact is a named output of a job registered by its handler (model
// weights, a dataset, a metrics file). Immutable after registration except
// for expiration.
type Artifact struct {
	ID             string                 `json:"id"`
	ExecutionID    string                 `json:"executionId"`
	JobID          string                 `json:"jobId"`
	ArtifactType   string                 `json:"artifactType"`
	StoragePath    string                 `json:"storagePath"`
	StorageBackend string                 `json:"storageBackend"`
	SizeBytes      int64                  `json:"sizeBytes"`
	Checksum       string                 `json:"checksum"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Pinned         bool                   `json:"pinned"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// Clone returns a deep copy of the Artifact.
func (a *Artifact) Clone() *Artifact {
	out := *a
	if a.Metadata != nil {
		md, err := serialization.DeepCopyMap(a.Metadata)
		if err == nil {
			out.Metadata = md
		}
	}
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		out.ExpiresAt = &t
	}
	return &out
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
