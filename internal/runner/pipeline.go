package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/result"
	"github.com/signalnine/scriptgate/internal/scoring"
	"github.com/signalnine/scriptgate/internal/submission"
	"go.uber.org/zap"
)

// ScriptFinder resolves the scripts a job covers.
type ScriptFinder interface {
	Resolve(files []string) []string
	InCategory(category string) ([]string, error)
	Discover() ([]string, error)
}

// JobSaver persists a finished job.
type JobSaver interface {
	Save(ctx context.Context, job *result.JobRecord) error
}

// Pipeline runs jobs through the test, scoring and decision stages.
type Pipeline struct {
	Evaluator  ScriptEvaluator
	Scripts    ScriptFinder
	Submitter  submission.Submitter
	Store      JobSaver
	Thresholds config.Thresholds
	Config     config.Pipeline
	Workers    int
	Logger     *zap.Logger
	Now        func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return zap.NewNop()
}

// Run executes one job for d. It always returns a record with a final
// action and confidence; a stage error marks the job failed instead of
// being returned. The record is saved once before returning.
func (p *Pipeline) Run(ctx context.Context, d feature.Descriptor) *result.JobRecord {
	job := result.NewJobRecord(d, p.now())
	log := p.logger().With(zap.String("job_id", job.JobID), zap.String("feature", d.FeatureName))
	log.Info("Job started")

	var confidence float64
	if err := p.runStages(ctx, job, &confidence, log); err != nil {
		job.Status = result.JobFailed
		job.Error = err.Error()
		job.FinalAction = result.ActionFailed
		job.FinalConfidence = confidence
		log.Error("Job failed", zap.Error(err))
	} else {
		job.Status = result.JobCompleted
		log.Info("Job completed",
			zap.String("final_action", string(job.FinalAction)),
			zap.Float64("final_confidence", job.FinalConfidence))
	}

	if p.Store != nil {
		if err := p.Store.Save(context.WithoutCancel(ctx), job); err != nil {
			log.Warn("Could not save job record", zap.Error(err))
		}
	}
	return job
}

// runStages advances the stages in order. confidence receives the
// aggregated confidence once scoring has run, so a job failing later still
// reports it.
func (p *Pipeline) runStages(ctx context.Context, job *result.JobRecord, confidence *float64, log *zap.Logger) error {
	d := job.Descriptor

	test := job.Stages.Get(result.StageTest)
	test.Start(p.now())
	summary, err := p.testStage(ctx, d, log)
	if err != nil {
		_ = test.Fail(p.now(), err)
		return fmt.Errorf("test stage: %w", err)
	}
	if err := p.complete(test, summary); err != nil {
		return err
	}

	score := job.Stages.Get(result.StageScoring)
	score.Start(p.now())
	decision, err := scoring.Decide(summary.Confidences(), d.ConfidenceScore, p.Thresholds)
	if err != nil {
		_ = score.Fail(p.now(), err)
		return fmt.Errorf("scoring stage: %w", err)
	}
	if err := p.complete(score, decision); err != nil {
		return err
	}
	*confidence = decision.FinalConfidence
	log.Debug("Scored",
		zap.Float64("confidence", decision.FinalConfidence),
		zap.String("recommended", string(decision.RecommendedAction)),
		zap.Bool("fallback", decision.UsedFallback))

	stage := job.Stages.Get(result.StageDecision)
	stage.Start(p.now())
	outcome := p.decide(ctx, d, decision, log)
	if err := p.complete(stage, outcome); err != nil {
		return err
	}
	job.FinalAction = outcome.Action
	job.FinalConfidence = decision.FinalConfidence
	return nil
}

// complete closes st with payload. A payload that cannot be recorded fails
// the stage so the record shows where the job stopped.
func (p *Pipeline) complete(st *result.StageRecord, payload any) error {
	err := st.Complete(p.now(), payload)
	if err != nil {
		_ = st.Fail(p.now(), err)
	}
	return err
}

func (p *Pipeline) testStage(ctx context.Context, d feature.Descriptor, log *zap.Logger) (result.TestSummary, error) {
	paths, err := p.resolve(d)
	if err != nil {
		return result.TestSummary{}, err
	}
	if len(paths) == 0 {
		log.Info("No scripts to validate")
		return result.Summarize(nil), nil
	}
	log.Info("Validating scripts", zap.Int("count", len(paths)))
	results, err := EvaluateAll(ctx, p.Evaluator, paths, p.Workers)
	if err != nil {
		return result.TestSummary{}, err
	}
	return result.Summarize(results), nil
}

// resolve lists the explicit files followed by the category's scripts
// without duplicates. With neither, retroactive testing falls back to every
// discoverable script.
func (p *Pipeline) resolve(d feature.Descriptor) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(list []string) {
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				paths = append(paths, s)
			}
		}
	}

	add(p.Scripts.Resolve(d.GeneratedFiles))
	if cat := d.CategoryPath(); cat != "" {
		inCat, err := p.Scripts.InCategory(cat)
		if err != nil {
			return nil, fmt.Errorf("listing category %s: %w", cat, err)
		}
		add(inCat)
	}
	if len(paths) == 0 && p.Config.RetroactiveTesting {
		all, err := p.Scripts.Discover()
		if err != nil {
			return nil, fmt.Errorf("discovering scripts: %w", err)
		}
		add(all)
	}
	return paths, nil
}

func (p *Pipeline) decide(ctx context.Context, d feature.Descriptor, sc result.ScoringSummary, log *zap.Logger) result.DecisionOutcome {
	conf := sc.FinalConfidence
	if !p.Config.AutoPREnabled {
		return result.DecisionOutcome{
			Action:     result.ActionDisabled,
			Confidence: conf,
			Message:    "Auto-PR is disabled in configuration",
		}
	}

	switch sc.RecommendedAction {
	case result.ActionAutoPR:
		out, err := p.submit(ctx, d.Annotate(conf))
		if err != nil {
			log.Warn("Auto-PR submission failed", zap.Error(err))
			return result.DecisionOutcome{
				Action:     result.ActionAutoPRFailed,
				Confidence: conf,
				Submission: out,
				Error:      err.Error(),
				Fallback:   result.ActionManualReview,
			}
		}
		log.Info("Auto-PR submitted", zap.String("reference", out.Reference))
		return result.DecisionOutcome{
			Action:     result.ActionAutoPRAttempted,
			Confidence: conf,
			Message:    fmt.Sprintf("Auto-PR attempted with %.1f%% confidence", conf),
			Submission: out,
		}
	case result.ActionManualReview:
		return result.DecisionOutcome{
			Action:     result.ActionManualReview,
			Confidence: conf,
			Message:    fmt.Sprintf("Confidence %.1f%% requires manual review", conf),
		}
	default:
		return result.DecisionOutcome{
			Action:     result.ActionReject,
			Confidence: conf,
			Message:    fmt.Sprintf("Confidence %.1f%% below minimum threshold", conf),
		}
	}
}

// submit hands d to the submitter. An outcome reporting failure counts as
// an error.
func (p *Pipeline) submit(ctx context.Context, d feature.Descriptor) (*result.SubmissionOutcome, error) {
	if p.Submitter == nil {
		return nil, submission.ErrSubmissionDisabled
	}
	out, err := p.Submitter.Submit(ctx, p.Config.ClusterName, d)
	if err != nil {
		return out, err
	}
	if out == nil {
		return nil, errors.New("submitter returned no outcome")
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "submission reported failure"
		}
		return out, errors.New(msg)
	}
	return out, nil
}

// RetroSummary condenses a retroactive job.
type RetroSummary struct {
	TotalScripts      int           `json:"total_scripts"`
	ReadyForAutoPR    int           `json:"ready_for_auto_pr"`
	NeedManualReview  int           `json:"need_manual_review"`
	AverageConfidence float64       `json:"average_confidence"`
	RecommendedAction result.Action `json:"recommended_action"`
	AutoPRAttempted   bool          `json:"auto_pr_attempted"`
}

// RunRetroactive validates every discoverable script under a synthetic
// descriptor.
func (p *Pipeline) RunRetroactive(ctx context.Context) (*result.JobRecord, RetroSummary) {
	fallback := p.Config.RetroConfidence
	job := p.Run(ctx, feature.Retroactive(fallback))

	var sum RetroSummary
	var test result.TestSummary
	if st := job.Stages.Get(result.StageTest); st.Status == result.StageCompleted && st.Decode(&test) == nil {
		sum.TotalScripts = test.TotalScripts
		sum.ReadyForAutoPR = test.PassedScripts
		sum.NeedManualReview = test.TotalScripts - test.PassedScripts
	}
	var sc result.ScoringSummary
	if st := job.Stages.Get(result.StageScoring); st.Status == result.StageCompleted && st.Decode(&sc) == nil {
		sum.AverageConfidence = sc.FinalConfidence
		sum.RecommendedAction = sc.RecommendedAction
	} else {
		sum.AverageConfidence = job.FinalConfidence
		sum.RecommendedAction = job.FinalAction
	}
	sum.AutoPRAttempted = job.FinalAction == result.ActionAutoPRAttempted
	return job, sum
}
