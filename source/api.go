package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ohler55/ojg/oj"

	"github.com/ftahirops/xrewind/model"
)

// dataTypes are the telemetry categories requested per window. The API
// partitions its output by category; all of them feed the same record store.
var dataTypes = []string{"htop", "spydergraph"}

// APISource fetches telemetry from the remote query endpoint.
type APISource struct {
	BaseURL string
	APIKey  string
	OrgUID  string
	Client  *http.Client
}

// NewAPISource creates a source with a bounded request timeout, so a hung
// remote surfaces as a recoverable load failure instead of a stuck UI.
func NewAPISource(baseURL, apiKey, orgUID string) *APISource {
	return &APISource{
		BaseURL: baseURL,
		APIKey:  apiKey,
		OrgUID:  orgUID,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *APISource) Name() string { return s.BaseURL }

// Fetch requests every data type for the window and concatenates the
// resulting NDJSON lines.
func (s *APISource) Fetch(ctx context.Context, machineID string, span model.Span) ([][]byte, error) {
	if s.APIKey == "" {
		return nil, &FetchError{Reason: "no API key configured"}
	}
	var lines [][]byte
	for _, dt := range dataTypes {
		part, err := s.query(ctx, machineID, span, dt)
		if err != nil {
			return nil, err
		}
		lines = append(lines, part...)
	}
	return lines, nil
}

func (s *APISource) query(ctx context.Context, machineID string, span model.Span, dataType string) ([][]byte, error) {
	body, err := oj.Marshal(map[string]any{
		"start_time": span.Start,
		"end_time":   span.End,
		"src_uid":    machineID,
		"org_uid":    s.OrgUID,
		"data_type":  dataType,
	})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	url := s.BaseURL + "/api/v1/source/query/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &FetchError{
			Reason: fmt.Sprintf("could not reach the API at %s", s.BaseURL),
			Err:    err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Reason: "reading the API response failed", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Reason: fmt.Sprintf("the API returned %s for %s data", resp.Status, dataType),
		}
	}
	return splitLines(data), nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}
