package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DataflowConfig configures the remote pipeline backend. The service exposes
// a job submission endpoint and an operation polling endpoint; the harness
// waits until the operation reports done.
type DataflowConfig struct {
	BaseURL      string
	APIKey       string
	Project      string
	Region       string
	TempLocation string
	PollInterval time.Duration
	JobTimeout   time.Duration
}

type DataflowClient struct {
	cfg        DataflowConfig
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDataflowClient(cfg DataflowConfig, httpClient *http.Client, logger *slog.Logger) (*DataflowClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("dataflow base url is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &DataflowClient{cfg: cfg, httpClient: httpClient, logger: logger}, nil
}

type submitJobRequest struct {
	JobName           string `json:"job_name"`
	Project           string `json:"project,omitempty"`
	Region            string `json:"region,omitempty"`
	TempLocation      string `json:"temp_location,omitempty"`
	InputPattern      string `json:"input_pattern"`
	OutputTable       string `json:"output_table"`
	MergeStrategy     string `json:"variant_merge_strategy,omitempty"`
	WorkerMachineType string `json:"worker_machine_type,omitempty"`
	MaxNumWorkers     string `json:"max_num_workers,omitempty"`
	NumWorkers        string `json:"num_workers,omitempty"`
}

type jobStatus struct {
	JobID string `json:"job_id"`
	Done  bool   `json:"done"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func (c *DataflowClient) Run(ctx context.Context, request RunRequest) (RunResult, error) {
	start := time.Now()
	if c.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.JobTimeout)
		defer cancel()
	}

	body := submitJobRequest{
		JobName:           jobName(request.TestName, request.DatasetID),
		Project:           c.cfg.Project,
		Region:            c.cfg.Region,
		TempLocation:      c.cfg.TempLocation,
		InputPattern:      request.InputPattern,
		OutputTable:       request.DatasetID + "." + request.TableName,
		MergeStrategy:     request.MergeStrategy,
		WorkerMachineType: request.WorkerMachineType,
		MaxNumWorkers:     request.MaxNumWorkers,
		NumWorkers:        request.NumWorkers,
	}

	var status jobStatus
	if err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", body, &status); err != nil {
		return RunResult{}, fmt.Errorf("submit pipeline job: %w", err)
	}
	if status.JobID == "" {
		return RunResult{}, fmt.Errorf("pipeline service returned no job id")
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "pipeline job submitted",
			slog.String("job_id", status.JobID),
			slog.String("test_name", request.TestName),
		)
	}

	final, err := c.waitForJobDone(ctx, status.JobID)
	if err != nil {
		return RunResult{}, err
	}
	if final.Error != "" || strings.EqualFold(final.State, "failed") {
		message := final.Error
		if message == "" {
			message = "no failure detail; see pipeline service logs"
		}
		return RunResult{}, fmt.Errorf("pipeline job %q failed: %s", final.JobID, message)
	}

	return RunResult{JobID: final.JobID, Duration: time.Since(start)}, nil
}

func (c *DataflowClient) waitForJobDone(ctx context.Context, jobID string) (jobStatus, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		var status jobStatus
		if err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+jobID, nil, &status); err != nil {
			return jobStatus{}, fmt.Errorf("poll pipeline job %q: %w", jobID, err)
		}
		if status.Done {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return jobStatus{}, fmt.Errorf("wait for pipeline job %q: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *DataflowClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.cfg.APIKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(c.cfg.APIKey))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Job names combine the test name and dataset id; the service accepts
// dashes but not underscores.
func jobName(testName, datasetID string) string {
	return testName + "-" + strings.ReplaceAll(datasetID, "_", "-")
}
