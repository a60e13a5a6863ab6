package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/feature"
)

// Action is a routing verdict or a terminal decision-stage outcome.
type Action string

const (
	ActionAutoPR          Action = "auto_pr"
	ActionManualReview    Action = "manual_review"
	ActionReject          Action = "reject"
	ActionDisabled        Action = "disabled"
	ActionAutoPRAttempted Action = "auto_pr_attempted"
	ActionAutoPRFailed    Action = "auto_pr_failed"
	ActionFailed          Action = "failed"
)

// ScriptResult is the outcome of evaluating one script. It is built once by
// NewScriptResult; ready-for-PR is derived there and has no setter.
type ScriptResult struct {
	Path            string        `json:"script_path"`
	SyntaxValid     bool          `json:"syntax_valid"`
	ComplianceScore float64       `json:"compliance_score"`
	FunctionalScore float64       `json:"functional_score"`
	Confidence      float64       `json:"overall_confidence"`
	Passed          []string      `json:"passed_tests"`
	Failed          []string      `json:"failed_tests"`
	Warnings        []string      `json:"warnings"`
	ExecutionTime   time.Duration `json:"-"`
	readyForPR      bool
}

// ScriptScores carries the raw sub-test outcomes for NewScriptResult.
type ScriptScores struct {
	SyntaxValid     bool
	ComplianceScore float64
	FunctionalScore float64
	Confidence      float64
	Passed          []string
	Failed          []string
	Warnings        []string
	ExecutionTime   time.Duration
}

func NewScriptResult(path string, s ScriptScores, th config.Thresholds) ScriptResult {
	r := ScriptResult{
		Path:            path,
		SyntaxValid:     s.SyntaxValid,
		ComplianceScore: Clamp(s.ComplianceScore),
		FunctionalScore: Clamp(s.FunctionalScore),
		Confidence:      Clamp(s.Confidence),
		Passed:          append([]string{}, s.Passed...),
		Failed:          append([]string{}, s.Failed...),
		Warnings:        append([]string{}, s.Warnings...),
		ExecutionTime:   s.ExecutionTime,
	}
	if !r.SyntaxValid {
		r.Confidence = 0
	}
	r.readyForPR = r.SyntaxValid &&
		r.ComplianceScore >= th.ComplianceMinimum &&
		r.FunctionalScore >= th.FunctionalMinimum &&
		r.Confidence >= th.AutoPRThreshold
	return r
}

func (r ScriptResult) ReadyForPR() bool { return r.readyForPR }

// Reason names the first gate a script missed, in the order syntax,
// compliance, functional, overall confidence. Empty when ready.
func (r ScriptResult) Reason(th config.Thresholds) string {
	switch {
	case r.readyForPR:
		return ""
	case !r.SyntaxValid:
		return "Syntax issues"
	case r.ComplianceScore < th.ComplianceMinimum:
		return "Compliance issues"
	case r.FunctionalScore < th.FunctionalMinimum:
		return "Functional issues"
	default:
		return "Overall confidence below threshold"
	}
}

func (r ScriptResult) MarshalJSON() ([]byte, error) {
	type plain ScriptResult
	return json.Marshal(struct {
		plain
		ExecutionTime float64 `json:"execution_time"`
		ReadyForPR    bool    `json:"ready_for_pr"`
	}{plain(r), r.ExecutionTime.Seconds(), r.readyForPR})
}

// UnmarshalJSON restores a stored record as written; the stored ready flag
// is trusted because the thresholds it was computed against are not stored
// alongside it.
func (r *ScriptResult) UnmarshalJSON(data []byte) error {
	type plain ScriptResult
	var aux struct {
		plain
		ExecutionTime float64 `json:"execution_time"`
		ReadyForPR    bool    `json:"ready_for_pr"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ScriptResult(aux.plain)
	r.ExecutionTime = time.Duration(aux.ExecutionTime * float64(time.Second))
	r.readyForPR = aux.ReadyForPR
	return nil
}

// Clamp bounds a score to [0,100]. NaN maps to 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

type StageName string

const (
	StageTest     StageName = "test"
	StageScoring  StageName = "scoring"
	StageDecision StageName = "decision"
)

// StageOrder is the fixed execution order of a job.
var StageOrder = []StageName{StageTest, StageScoring, StageDecision}

type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

var ErrStageClosed = errors.New("stage already closed")

type StageRecord struct {
	Name       StageName       `json:"-"`
	Status     StageStatus     `json:"status"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Start stamps the start time of a pending stage.
func (s *StageRecord) Start(now time.Time) {
	if s.Status == StagePending && s.StartedAt == nil {
		s.StartedAt = &now
	}
}

// Complete moves a pending stage to completed with the given payload.
func (s *StageRecord) Complete(now time.Time, payload any) error {
	if s.Status != StagePending {
		return fmt.Errorf("completing %s: %w", s.Name, ErrStageClosed)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s result: %w", s.Name, err)
	}
	s.Result = data
	s.Status = StageCompleted
	s.FinishedAt = &now
	return nil
}

// Fail moves a pending stage to failed.
func (s *StageRecord) Fail(now time.Time, cause error) error {
	if s.Status != StagePending {
		return fmt.Errorf("failing %s: %w", s.Name, ErrStageClosed)
	}
	s.Status = StageFailed
	if cause != nil {
		s.Error = cause.Error()
	}
	s.FinishedAt = &now
	return nil
}

// Decode unmarshals the stage payload into v.
func (s *StageRecord) Decode(v any) error {
	if len(s.Result) == 0 || string(s.Result) == "null" {
		return fmt.Errorf("stage %s has no result", s.Name)
	}
	return json.Unmarshal(s.Result, v)
}

// Stages keeps stage records in execution order and encodes them as a JSON
// object whose keys follow that order.
type Stages []*StageRecord

func NewStages() Stages {
	stages := make(Stages, 0, len(StageOrder))
	for _, name := range StageOrder {
		stages = append(stages, &StageRecord{Name: name, Status: StagePending})
	}
	return stages
}

func (s Stages) Get(name StageName) *StageRecord {
	for _, st := range s {
		if st.Name == name {
			return st
		}
	}
	return nil
}

func (s Stages) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, st := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, _ := json.Marshal(string(st.Name))
		val, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func (s *Stages) UnmarshalJSON(data []byte) error {
	var byName map[string]*StageRecord
	if err := json.Unmarshal(data, &byName); err != nil {
		return err
	}
	out := make(Stages, 0, len(byName))
	for _, name := range StageOrder {
		if st, ok := byName[string(name)]; ok {
			st.Name = name
			out = append(out, st)
			delete(byName, string(name))
		}
	}
	if len(byName) > 0 {
		return fmt.Errorf("unknown stages in record: %d", len(byName))
	}
	*s = out
	return nil
}

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobRecord captures every stage of one pipeline run.
type JobRecord struct {
	JobID           string             `json:"job_id"`
	Descriptor      feature.Descriptor `json:"feature_data"`
	Timestamp       time.Time          `json:"timestamp"`
	Status          JobStatus          `json:"status"`
	Stages          Stages             `json:"stages"`
	FinalAction     Action             `json:"final_action"`
	FinalConfidence float64            `json:"final_confidence"`
	Error           string             `json:"error,omitempty"`
}

// NewJobRecord opens a running job with all stages pending.
func NewJobRecord(d feature.Descriptor, now time.Time) *JobRecord {
	return &JobRecord{
		JobID:      NewJobID(now),
		Descriptor: d,
		Timestamp:  now,
		Status:     JobRunning,
		Stages:     NewStages(),
	}
}

// NewJobID returns "job_<YYYYMMDD_HHMMSS>_<suffix>". The suffix is the random
// tail of a UUIDv7 so two jobs started in the same second never collide.
func NewJobID(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	s := id.String()
	return fmt.Sprintf("job_%s_%s", now.Format("20060102_150405"), s[len(s)-12:])
}

// TestSummary is the payload of the test stage.
type TestSummary struct {
	Status        string         `json:"status"`
	TotalScripts  int            `json:"total_scripts"`
	PassedScripts int            `json:"passed_scripts"`
	SuccessRate   float64        `json:"success_rate"`
	Results       []ScriptResult `json:"test_results"`
}

const (
	TestStatusCompleted = "completed"
	TestStatusNoScripts = "no_scripts"
)

// Summarize counts ready scripts in results.
func Summarize(results []ScriptResult) TestSummary {
	sum := TestSummary{
		Status:       TestStatusCompleted,
		TotalScripts: len(results),
		Results:      results,
	}
	if len(results) == 0 {
		sum.Status = TestStatusNoScripts
		sum.Results = []ScriptResult{}
		return sum
	}
	for _, r := range results {
		if r.ReadyForPR() {
			sum.PassedScripts++
		}
	}
	sum.SuccessRate = float64(sum.PassedScripts) / float64(sum.TotalScripts) * 100
	return sum
}

// Confidences returns per-script confidence values in result order.
func (t TestSummary) Confidences() []float64 {
	out := make([]float64, len(t.Results))
	for i, r := range t.Results {
		out[i] = r.Confidence
	}
	return out
}

// ScoringSummary is the payload of the scoring stage.
type ScoringSummary struct {
	FinalConfidence   float64           `json:"final_confidence"`
	ScriptConfidences []float64         `json:"script_confidences"`
	RecommendedAction Action            `json:"recommended_action"`
	Thresholds        config.Thresholds `json:"thresholds"`
	Justification     string            `json:"justification"`
	UsedFallback      bool              `json:"used_fallback"`
}

// SubmissionOutcome is what the submission collaborator reports back.
type SubmissionOutcome struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DecisionOutcome is the payload of the decision stage.
type DecisionOutcome struct {
	Action     Action             `json:"action"`
	Confidence float64            `json:"confidence"`
	Message    string             `json:"message,omitempty"`
	Submission *SubmissionOutcome `json:"pr_result,omitempty"`
	Error      string             `json:"error,omitempty"`
	Fallback   Action             `json:"fallback,omitempty"`
}
