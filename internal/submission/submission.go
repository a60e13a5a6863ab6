// Package submission hands validated features to the system that opens pull
// requests. The pipeline only sees the Submitter interface; any error is
// treated as a failed auto-PR and never aborts a job.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalnine/scriptgate/internal/config"
	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/result"
)

// ErrSubmissionDisabled is returned by None.
var ErrSubmissionDisabled = errors.New("no submission backend configured")

type Submitter interface {
	Submit(ctx context.Context, cluster string, d feature.Descriptor) (*result.SubmissionOutcome, error)
}

// Request is the body sent to command and webhook backends.
type Request struct {
	Cluster string             `json:"cluster"`
	Feature feature.Descriptor `json:"feature_data"`
}

// None refuses every submission.
type None struct{}

func (None) Submit(context.Context, string, feature.Descriptor) (*result.SubmissionOutcome, error) {
	return nil, ErrSubmissionDisabled
}

// New builds the backend selected by cfg.Kind. workspace is the repository
// the git backend commits to.
func New(cfg config.Submission, workspace string) (Submitter, error) {
	switch cfg.Kind {
	case "", "none":
		return None{}, nil
	case "command":
		return &Command{Args: cfg.Command, Timeout: cfg.Timeout()}, nil
	case "webhook":
		return NewWebhook(cfg.URL, cfg.Timeout()), nil
	case "git":
		return &Git{
			Repo:      workspace,
			Remote:    cfg.Remote,
			PRCommand: cfg.PRCommand,
			Timeout:   cfg.Timeout(),
		}, nil
	default:
		return nil, fmt.Errorf("unknown submission kind %q", cfg.Kind)
	}
}
