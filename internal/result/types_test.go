package result_test

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/result"
)

func TestReadyForPRIsConjunction(t *testing.T) {
	th := config.DefaultThresholds()
	tests := []struct {
		name  string
		in    result.ScriptScores
		ready bool
	}{
		{"all gates met", result.ScriptScores{SyntaxValid: true, ComplianceScore: 85, FunctionalScore: 80, Confidence: 92}, true},
		{"syntax invalid", result.ScriptScores{SyntaxValid: false, ComplianceScore: 100, FunctionalScore: 100, Confidence: 100}, false},
		{"compliance short", result.ScriptScores{SyntaxValid: true, ComplianceScore: 84.9, FunctionalScore: 100, Confidence: 100}, false},
		{"functional short", result.ScriptScores{SyntaxValid: true, ComplianceScore: 100, FunctionalScore: 79.9, Confidence: 100}, false},
		{"confidence short", result.ScriptScores{SyntaxValid: true, ComplianceScore: 100, FunctionalScore: 100, Confidence: 91.9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := result.NewScriptResult("a.sh", tt.in, th)
			if r.ReadyForPR() != tt.ready {
				t.Errorf("ready: got %v, want %v", r.ReadyForPR(), tt.ready)
			}
			want := r.SyntaxValid && r.ComplianceScore >= th.ComplianceMinimum &&
				r.FunctionalScore >= th.FunctionalMinimum && r.Confidence >= th.AutoPRThreshold
			if r.ReadyForPR() != want {
				t.Errorf("ready flag disagrees with its definition")
			}
		})
	}
}

func TestNewScriptResultClampsAndZeroes(t *testing.T) {
	th := config.DefaultThresholds()
	r := result.NewScriptResult("a.sh", result.ScriptScores{
		SyntaxValid: true, ComplianceScore: 140, FunctionalScore: -3, Confidence: math.NaN(),
	}, th)
	if r.ComplianceScore != 100 || r.FunctionalScore != 0 || r.Confidence != 0 {
		t.Errorf("clamp: got %v/%v/%v", r.ComplianceScore, r.FunctionalScore, r.Confidence)
	}

	r = result.NewScriptResult("a.sh", result.ScriptScores{SyntaxValid: false, Confidence: 77}, th)
	if r.Confidence != 0 {
		t.Errorf("confidence with invalid syntax: got %v, want 0", r.Confidence)
	}
	if got := r.Reason(th); got != "Syntax issues" {
		t.Errorf("reason: got %q", got)
	}
}

func TestScriptResultJSON(t *testing.T) {
	r := result.NewScriptResult("a.sh", result.ScriptScores{
		SyntaxValid: true, ComplianceScore: 100, FunctionalScore: 100, Confidence: 100,
		ExecutionTime: 2500 * time.Millisecond,
	}, config.DefaultThresholds())
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{`"ready_for_pr":true`, `"execution_time":2.5`, `"overall_confidence":100`, `"passed_tests":[]`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
}

func TestStageTransitionsAreForwardOnly(t *testing.T) {
	st := result.NewStages().Get(result.StageScoring)
	st.Start(t0)
	if err := st.Complete(t0, map[string]int{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.Complete(t0, nil); !errors.Is(err, result.ErrStageClosed) {
		t.Errorf("re-complete: got %v, want ErrStageClosed", err)
	}
	if err := st.Fail(t0, errors.New("late")); !errors.Is(err, result.ErrStageClosed) {
		t.Errorf("fail after complete: got %v, want ErrStageClosed", err)
	}
	if st.Status != result.StageCompleted {
		t.Errorf("status changed after close: %s", st.Status)
	}

	failed := result.NewStages().Get(result.StageTest)
	if err := failed.Fail(t0, errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if err := failed.Complete(t0, nil); !errors.Is(err, result.ErrStageClosed) {
		t.Errorf("complete after fail: got %v, want ErrStageClosed", err)
	}
	if failed.Error != "boom" {
		t.Errorf("error: got %q", failed.Error)
	}
}

func TestSummarize(t *testing.T) {
	th := config.DefaultThresholds()
	ready := result.NewScriptResult("a.sh", result.ScriptScores{SyntaxValid: true, ComplianceScore: 100, FunctionalScore: 100, Confidence: 100}, th)
	weak := result.NewScriptResult("b.sh", result.ScriptScores{SyntaxValid: true, ComplianceScore: 50, FunctionalScore: 50, Confidence: 60}, th)

	sum := result.Summarize([]result.ScriptResult{ready, weak})
	if sum.TotalScripts != 2 || sum.PassedScripts != 1 || sum.SuccessRate != 50 {
		t.Errorf("summary: %+v", sum)
	}
	if got := sum.Confidences(); len(got) != 2 || got[0] != 100 || got[1] != 60 {
		t.Errorf("confidences: %v", got)
	}

	empty := result.Summarize(nil)
	if empty.Status != result.TestStatusNoScripts || empty.Results == nil {
		t.Errorf("empty summary: %+v", empty)
	}
}
