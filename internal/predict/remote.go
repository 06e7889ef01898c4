package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tigerroll/arbovirus-pipeline/pkg/batch/support/util/logger"
)

// Remote posts the series to an HTTP model server.
type Remote struct {
	url        string
	version    string
	minHistory int
	client     *http.Client
}

type remoteResponse struct {
	RiskScore    *float64 `json:"risk_score"`
	ModelVersion string   `json:"model_version"`
}

// NewRemote creates a Remote model. An empty version becomes "remote".
func NewRemote(url, version string, minHistory int, timeout time.Duration) *Remote {
	if version == "" {
		version = "remote"
	}
	if minHistory < 1 {
		minHistory = 1
	}
	return &Remote{url: url, version: version, minHistory: minHistory, client: &http.Client{Timeout: timeout}}
}

func (r *Remote) Version() string { return r.version }

func (r *Remote) MinHistory() int { return r.minHistory }

// Predict sends s as JSON and reads {risk_score, model_version}.
func (r *Remote) Predict(ctx context.Context, s Series) (float64, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("model server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("model server returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode model response: %w", err)
	}
	if out.RiskScore == nil {
		return 0, fmt.Errorf("model response without risk_score")
	}
	if out.ModelVersion != "" && out.ModelVersion != r.version {
		logger.Warnf("Model server answered as version '%s', configured '%s'.", out.ModelVersion, r.version)
	}
	return *out.RiskScore, nil
}
