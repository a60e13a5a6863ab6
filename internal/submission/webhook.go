package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/signalnine/scriptgate/internal/feature"
	"github.com/signalnine/scriptgate/internal/result"
)

// Webhook POSTs the request as JSON. Any 2xx is a success; a JSON body with
// a "reference" or "url" field supplies the reference.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (w *Webhook) Submit(ctx context.Context, cluster string, d feature.Descriptor) (*result.SubmissionOutcome, error) {
	body, err := json.Marshal(Request{Cluster: cluster, Feature: d})
	if err != nil {
		return nil, fmt.Errorf("encoding submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "scriptgate")

	resp, err := w.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("webhook returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if readErr != nil {
		return nil, fmt.Errorf("reading webhook reply: %w", readErr)
	}

	var reply struct {
		Reference string `json:"reference"`
		URL       string `json:"url"`
	}
	out := &result.SubmissionOutcome{Success: true}
	if json.Unmarshal(data, &reply) == nil {
		out.Reference = reply.Reference
		if out.Reference == "" {
			out.Reference = reply.URL
		}
	}
	return out, nil
}
