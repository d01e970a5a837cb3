package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/buildinfo"
	"github.com/otherjamesbrown/reelkit/pkg/export"
	"github.com/otherjamesbrown/reelkit/pkg/jobid"
)

// GenerateReelPath is the multipart upload endpoint under the render URL.
const GenerateReelPath = "/generate_reel"

// HTTPOptions configures an HTTPSubmitter.
type HTTPOptions struct {
	Timeout   time.Duration
	APIKey    string
	TLSConfig *tls.Config

	// Client overrides the constructed http.Client.
	Client *http.Client
}

// HTTPSubmitter uploads the document, video and images as one multipart form.
type HTTPSubmitter struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPSubmitter creates a submitter for the render endpoint at baseURL.
func NewHTTPSubmitter(baseURL string, opts HTTPOptions) *HTTPSubmitter {
	hc := opts.Client
	if hc == nil {
		hc = &http.Client{
			Timeout:   opts.Timeout,
			Transport: httpTransport(opts.TLSConfig),
		}
	}
	return &HTTPSubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  opts.APIKey,
		http:    hc,
	}
}

// Transport implements Submitter.
func (s *HTTPSubmitter) Transport() string { return string(config.TransportHTTP) }

// Submit implements Submitter. The endpoint may answer with an empty body;
// a local render job ID is minted in that case.
func (s *HTTPSubmitter) Submit(ctx context.Context, req *Request) (*Submission, error) {
	if req == nil || req.Document == nil {
		return nil, fmt.Errorf("submit request has no document")
	}
	if req.payload == nil {
		payload, err := export.Bundle(req.Document, req.Video, req.Images)
		if err != nil {
			return nil, err
		}
		req.payload = payload
	}
	payload := req.payload

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+GenerateReelPath, bytes.NewReader(payload.Body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", payload.ContentType)
	s.decorate(httpReq, req.RequestID)

	resp, err := s.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("posting reel: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("render endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ack struct {
		JobID  string `json:"job_id"`
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(body, &ack)

	sub := &Submission{
		JobID:     ack.JobID,
		Transport: s.Transport(),
		Status:    ack.Status,
		Accepted:  time.Now().UTC(),
	}
	if sub.JobID == "" {
		sub.JobID = ack.ID
	}
	if sub.JobID == "" {
		sub.JobID = jobid.New(jobid.KindRenderJob)
	}
	if sub.Status == "" {
		sub.Status = "queued"
	}
	return sub, nil
}

// CheckHealth probes the render URL. Any response below 500 counts as healthy.
func (s *HTTPSubmitter) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	s.decorate(req, "")

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probing render endpoint: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return &HealthStatus{
		Transport: s.Transport(),
		Target:    s.baseURL,
		Healthy:   resp.StatusCode < http.StatusInternalServerError,
		Status:    resp.Status,
		Latency:   time.Since(start),
	}, nil
}

func (s *HTTPSubmitter) decorate(req *http.Request, requestID string) {
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
}
