package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/okian/speedglobe/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// PostJSON performs a POST request with a JSON body
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// PostFile uploads data as the multipart field "file".
func (c *HTTPClient) PostFile(ctx context.Context, url, filename string, data []byte) (*http.Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.client.Do(req)
}

// decodeResponse reads and closes the response body, decoding it into v
// when the status matches want.
func decodeResponse(resp *http.Response, want int, v any) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// uploadDataset posts the generated CSV and waits for the synchronous
// load, including coordinate resolution, to finish.
func uploadDataset(ctx context.Context, config *Config, data []byte, stats *Stats) (LoadReport, error) {
	logger.Get().Info(ctx, "uploading dataset", logger.Int("bytes", len(data)))

	client := newHTTPClient(config.Timeout)
	resp, err := client.PostFile(ctx, config.BaseURL+"/datasets?force=true", "loadtest.csv", data)
	if err != nil {
		return LoadReport{}, fmt.Errorf("upload failed: %w", err)
	}

	var report LoadReport
	if err := decodeResponse(resp, StatusCreated, &report); err != nil {
		return LoadReport{}, err
	}

	stats.RowsLoaded = report.Records
	stats.RowsResolved = report.Resolved
	stats.Fallbacks = report.Fallbacks

	logger.Get().Info(ctx, "dataset loaded",
		logger.String("id", report.ID),
		logger.Int("records", report.Records),
		logger.Int("resolved", report.Resolved),
		logger.Int("fallbacks", report.Fallbacks),
		logger.Int("diagnostics", report.Diagnostics),
		logger.Int("durationMs", int(report.DurationMS)))
	return report, nil
}

// selectYear moves the server's view to the year under test.
func selectYear(ctx context.Context, config *Config) error {
	client := newHTTPClient(config.Timeout)
	resp, err := client.PostJSON(ctx, config.BaseURL+"/state", map[string]string{
		"kind": "set_year",
		"year": config.Year,
	})
	if err != nil {
		return fmt.Errorf("set year failed: %w", err)
	}
	return decodeResponse(resp, StatusOK, nil)
}
