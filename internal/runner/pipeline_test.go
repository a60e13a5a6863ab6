package runner_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/signalnine/scriptgate/internal/runner"
	"github.com/signalnine/scriptgate/internal/submission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFinder struct {
	explicit   map[string]bool
	categories map[string][]string
	all        []string
	discovered bool
}

func (f *fakeFinder) Resolve(files []string) []string {
	var out []string
	for _, name := range files {
		if f.explicit[name] {
			out = append(out, name)
		}
	}
	return out
}

func (f *fakeFinder) InCategory(category string) ([]string, error) {
	return f.categories[category], nil
}

func (f *fakeFinder) Discover() ([]string, error) {
	f.discovered = true
	return f.all, nil
}

type fakeSubmitter struct {
	out     *result.SubmissionOutcome
	err     error
	calls   int
	cluster string
	got     feature.Descriptor
}

func (s *fakeSubmitter) Submit(_ context.Context, cluster string, d feature.Descriptor) (*result.SubmissionOutcome, error) {
	s.calls++
	s.cluster = cluster
	s.got = d
	return s.out, s.err
}

type memStore struct {
	mu   sync.Mutex
	jobs []*result.JobRecord
	err  error
}

func (m *memStore) Save(_ context.Context, job *result.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return m.err
}

var pipelineNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newPipeline(ev runner.ScriptEvaluator, finder *fakeFinder, sub submission.Submitter, store *memStore) *runner.Pipeline {
	return &runner.Pipeline{
		Evaluator:  ev,
		Scripts:    finder,
		Submitter:  sub,
		Store:      store,
		Thresholds: config.DefaultThresholds(),
		Config: config.Pipeline{
			AutoPREnabled:      true,
			RetroactiveTesting: false,
			ClusterName:        "test-cluster",
			RetroConfidence:    85,
		},
		Workers: 2,
		Now:     func() time.Time { return pipelineNow },
	}
}

func decision(t *testing.T, job *result.JobRecord) result.DecisionOutcome {
	t.Helper()
	var out result.DecisionOutcome
	require.NoError(t, job.Stages.Get(result.StageDecision).Decode(&out))
	return out
}

func TestPipelineAutoPRAttempted(t *testing.T) {
	ev := stubEvaluator{confidences: map[string]float64{"a.sh": 100, "b.sh": 95}}
	finder := &fakeFinder{categories: map[string][]string{"volumes": {"a.sh", "b.sh"}}}
	sub := &fakeSubmitter{out: &result.SubmissionOutcome{Success: true, Reference: "pr-42"}}
	store := &memStore{}
	p := newPipeline(ev, finder, sub, store)

	job := p.Run(context.Background(), feature.Descriptor{FeatureName: "snap", Category: "volumes", ConfidenceScore: 50})

	assert.Equal(t, result.JobCompleted, job.Status)
	assert.Equal(t, result.ActionAutoPRAttempted, job.FinalAction)
	assert.InDelta(t, 98.33, job.FinalConfidence, 0.01)
	for _, st := range job.Stages {
		assert.Equal(t, result.StageCompleted, st.Status, "stage %s", st.Name)
	}

	out := decision(t, job)
	assert.Equal(t, "Auto-PR attempted with 98.3% confidence", out.Message)
	require.NotNil(t, out.Submission)
	assert.Equal(t, "pr-42", out.Submission.Reference)

	require.Equal(t, 1, sub.calls)
	assert.Equal(t, "test-cluster", sub.cluster)
	assert.Equal(t, true, sub.got.Annotations["test_validated"])
	assert.InDelta(t, 98.33, sub.got.ConfidenceScore, 0.01)

	require.Len(t, store.jobs, 1)
	assert.Same(t, job, store.jobs[0])
}

func TestPipelineSubmissionFailureFallsBack(t *testing.T) {
	for name, sub := range map[string]*fakeSubmitter{
		"error":          {err: errors.New("remote rejected push")},
		"outcome failed": {out: &result.SubmissionOutcome{Success: false, Error: "remote rejected push"}},
	} {
		t.Run(name, func(t *testing.T) {
			ev := stubEvaluator{confidences: map[string]float64{"a.sh": 100}}
			finder := &fakeFinder{explicit: map[string]bool{"a.sh": true}}
			p := newPipeline(ev, finder, sub, &memStore{})

			job := p.Run(context.Background(), feature.Descriptor{GeneratedFiles: []string{"a.sh"}})

			assert.Equal(t, result.JobCompleted, job.Status)
			assert.Equal(t, result.ActionAutoPRFailed, job.FinalAction)
			out := decision(t, job)
			assert.Equal(t, result.ActionManualReview, out.Fallback)
			assert.Equal(t, "remote rejected push", out.Error)
		})
	}
}

func TestPipelineNilSubmitterIsDisabledSubmission(t *testing.T) {
	ev := stubEvaluator{confidences: map[string]float64{"a.sh": 100}}
	p := newPipeline(ev, &fakeFinder{explicit: map[string]bool{"a.sh": true}}, nil, &memStore{})

	job := p.Run(context.Background(), feature.Descriptor{GeneratedFiles: []string{"a.sh"}})
	assert.Equal(t, result.ActionAutoPRFailed, job.FinalAction)
	assert.Equal(t, submission.ErrSubmissionDisabled.Error(), decision(t, job).Error)
}

func TestPipelineRouting(t *testing.T) {
	tests := []struct {
		name        string
		confidences map[string]float64
		disabled    bool
		want        result.Action
		message     string
	}{
		{"manual review", map[string]float64{"a.sh": 90, "b.sh": 85}, false, result.ActionManualReview, "Confidence 88.3% requires manual review"},
		{"reject", map[string]float64{"a.sh": 95, "b.sh": 70, "c.sh": 50}, false, result.ActionReject, "Confidence 80.0% below minimum threshold"},
		{"disabled", map[string]float64{"a.sh": 100}, true, result.ActionDisabled, "Auto-PR is disabled in configuration"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for n := range tt.confidences {
				names = append(names, n)
			}
			finder := &fakeFinder{categories: map[string][]string{"cat": names}}
			sub := &fakeSubmitter{out: &result.SubmissionOutcome{Success: true}}
			p := newPipeline(stubEvaluator{confidences: tt.confidences}, finder, sub, &memStore{})
			p.Config.AutoPREnabled = !tt.disabled

			job := p.Run(context.Background(), feature.Descriptor{Category: "cat"})

			assert.Equal(t, tt.want, job.FinalAction)
			assert.Equal(t, tt.message, decision(t, job).Message)
			assert.Zero(t, sub.calls)
		})
	}
}

func TestPipelineNoScriptsUsesDescriptorConfidence(t *testing.T) {
	finder := &fakeFinder{all: []string{"x.sh"}}
	sub := &fakeSubmitter{out: &result.SubmissionOutcome{Success: true}}
	p := newPipeline(stubEvaluator{}, finder, sub, &memStore{})

	job := p.Run(context.Background(), feature.Descriptor{ConfidenceScore: 93})

	assert.False(t, finder.discovered, "discovery must not run with retroactive testing off")
	var test result.TestSummary
	require.NoError(t, job.Stages.Get(result.StageTest).Decode(&test))
	assert.Equal(t, result.TestStatusNoScripts, test.Status)

	var sc result.ScoringSummary
	require.NoError(t, job.Stages.Get(result.StageScoring).Decode(&sc))
	assert.True(t, sc.UsedFallback)
	assert.Equal(t, 93.0, job.FinalConfidence)
	assert.Equal(t, result.ActionAutoPRAttempted, job.FinalAction)
}

func TestPipelineResolvesExplicitThenCategoryWithoutDuplicates(t *testing.T) {
	finder := &fakeFinder{
		explicit:   map[string]bool{"b.sh": true},
		categories: map[string][]string{"sub": {"a.sh", "b.sh"}},
		all:        []string{"z.sh"},
	}
	ev := stubEvaluator{confidences: map[string]float64{"a.sh": 90, "b.sh": 90}}
	p := newPipeline(ev, finder, nil, &memStore{})
	p.Config.RetroactiveTesting = true

	job := p.Run(context.Background(), feature.Descriptor{
		Category:       "parent",
		Subcategory:    "sub",
		GeneratedFiles: []string{"b.sh", "missing.sh"},
	})

	var test result.TestSummary
	require.NoError(t, job.Stages.Get(result.StageTest).Decode(&test))
	var paths []string
	for _, r := range test.Results {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"b.sh", "a.sh"}, paths)
	assert.False(t, finder.discovered)
}

func TestPipelineStageFailure(t *testing.T) {
	ev := stubEvaluator{errs: map[string]error{"a.sh": errors.New("reading script a.sh: permission denied")}}
	finder := &fakeFinder{categories: map[string][]string{"cat": {"a.sh"}}}
	store := &memStore{}
	p := newPipeline(ev, finder, nil, store)

	job := p.Run(context.Background(), feature.Descriptor{Category: "cat", ConfidenceScore: 70})

	assert.Equal(t, result.JobFailed, job.Status)
	assert.Equal(t, result.ActionFailed, job.FinalAction)
	assert.Zero(t, job.FinalConfidence)
	assert.Contains(t, job.Error, "permission denied")
	assert.Equal(t, result.StageFailed, job.Stages.Get(result.StageTest).Status)
	assert.Equal(t, result.StagePending, job.Stages.Get(result.StageScoring).Status)
	assert.Equal(t, result.StagePending, job.Stages.Get(result.StageDecision).Status)
	require.Len(t, store.jobs, 1, "failed jobs are still recorded")
}

func TestPipelineRejectsInvalidDescriptorConfidence(t *testing.T) {
	for _, bad := range []float64{150, -5, math.Inf(1), math.NaN()} {
		sub := &fakeSubmitter{out: &result.SubmissionOutcome{Success: true}}
		store := &memStore{}
		p := newPipeline(stubEvaluator{}, &fakeFinder{}, sub, store)

		job := p.Run(context.Background(), feature.Descriptor{FeatureName: "Out of range", ConfidenceScore: bad})

		assert.Equal(t, result.JobFailed, job.Status, "fallback %v", bad)
		assert.Equal(t, result.ActionFailed, job.FinalAction)
		assert.Zero(t, job.FinalConfidence)
		assert.Contains(t, job.Error, "scoring stage")
		assert.Equal(t, result.StageCompleted, job.Stages.Get(result.StageTest).Status)
		assert.Equal(t, result.StageFailed, job.Stages.Get(result.StageScoring).Status)
		assert.Equal(t, result.StagePending, job.Stages.Get(result.StageDecision).Status)
		assert.Zero(t, sub.calls)
		require.Len(t, store.jobs, 1)
	}
}

// rawEvaluator returns results as built, bypassing score clamping.
type rawEvaluator struct{ res result.ScriptResult }

func (r rawEvaluator) Evaluate(_ context.Context, path string) (result.ScriptResult, error) {
	out := r.res
	out.Path = path
	return out, nil
}

func TestPipelineUnrecordableStageIsMarkedFailed(t *testing.T) {
	ev := rawEvaluator{res: result.ScriptResult{SyntaxValid: true, Confidence: math.Inf(1)}}
	finder := &fakeFinder{categories: map[string][]string{"cat": {"a.sh"}}}
	p := newPipeline(ev, finder, nil, &memStore{})

	job := p.Run(context.Background(), feature.Descriptor{Category: "cat"})

	assert.Equal(t, result.JobFailed, job.Status)
	test := job.Stages.Get(result.StageTest)
	assert.Equal(t, result.StageFailed, test.Status)
	assert.Contains(t, test.Error, "marshaling")
	assert.NotNil(t, test.FinishedAt)
	assert.Equal(t, result.StagePending, job.Stages.Get(result.StageScoring).Status)
}

func TestPipelineStoreErrorDoesNotFailJob(t *testing.T) {
	ev := stubEvaluator{confidences: map[string]float64{"a.sh": 90}}
	store := &memStore{err: result.ErrJobExists}
	p := newPipeline(ev, &fakeFinder{categories: map[string][]string{"c": {"a.sh"}}}, nil, store)

	job := p.Run(context.Background(), feature.Descriptor{Category: "c"})
	assert.Equal(t, result.JobCompleted, job.Status)
	assert.Len(t, store.jobs, 1)
}

func TestPipelineCancelledJobFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev := stubEvaluator{delay: time.Second, confidences: map[string]float64{"a.sh": 100}}
	store := &memStore{}
	p := newPipeline(ev, &fakeFinder{categories: map[string][]string{"c": {"a.sh"}}}, nil, store)

	job := p.Run(ctx, feature.Descriptor{Category: "c"})
	assert.Equal(t, result.JobFailed, job.Status)
	assert.Contains(t, job.Error, context.Canceled.Error())
	assert.Len(t, store.jobs, 1, "cancelled jobs are still saved")
}

func TestRunRetroactive(t *testing.T) {
	finder := &fakeFinder{all: []string{"a.sh", "b.sh", "c.sh"}}
	ev := stubEvaluator{confidences: map[string]float64{"a.sh": 100, "b.sh": 95, "c.sh": 60}}
	sub := &fakeSubmitter{out: &result.SubmissionOutcome{Success: true}}
	p := newPipeline(ev, finder, sub, &memStore{})
	p.Config.RetroactiveTesting = true

	job, sum := p.RunRetroactive(context.Background())

	assert.True(t, finder.discovered)
	assert.Equal(t, "Retroactive Script Validation", job.Descriptor.FeatureName)
	assert.Equal(t, 3, sum.TotalScripts)
	assert.Equal(t, 2, sum.ReadyForAutoPR)
	assert.Equal(t, 1, sum.NeedManualReview)
	// (100 + 95/2 + 60/3) / (1 + 1/2 + 1/3)
	assert.InDelta(t, 91.36, sum.AverageConfidence, 0.01)
	assert.Equal(t, result.ActionManualReview, sum.RecommendedAction)
	assert.False(t, sum.AutoPRAttempted)
}
