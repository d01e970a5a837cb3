package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/otherjamesbrown/reelkit/config"
	"github.com/otherjamesbrown/reelkit/pkg/export"
)

// RenderService is the fully qualified gRPC service name of the renderer.
const RenderService = "reelkit.render.v1.RenderService"

const submitReelMethod = "/" + RenderService + "/SubmitReel"

// Request is one reel handed to the renderer.
type Request struct {
	Document *export.Document
	Video    *export.MediaFile
	Images   []export.MediaFile

	// RequestID is forwarded as x-request-id when set.
	RequestID string

	// payload caches the multipart form so retries do not re-read media.
	payload *export.Payload
}

// Submission is the renderer's acknowledgement.
type Submission struct {
	JobID     string    `json:"job_id" yaml:"job_id"`
	Transport string    `json:"transport" yaml:"transport"`
	Status    string    `json:"status" yaml:"status"`
	Accepted  time.Time `json:"accepted" yaml:"accepted"`
}

// Submitter sends export documents to the renderer.
type Submitter interface {
	Transport() string
	Submit(ctx context.Context, req *Request) (*Submission, error)
}

// HealthStatus is the result of a render service health probe.
type HealthStatus struct {
	Transport string        `json:"transport" yaml:"transport"`
	Target    string        `json:"target" yaml:"target"`
	Healthy   bool          `json:"healthy" yaml:"healthy"`
	Status    string        `json:"status" yaml:"status"`
	Latency   time.Duration `json:"latency_ns" yaml:"latency"`
}

// GRPCSubmitter submits reels with the SubmitReel RPC. The request and
// response are google.protobuf.Struct messages; media travels by reference.
type GRPCSubmitter struct {
	client *GRPCClient
}

// NewGRPCSubmitter wraps a connected client.
func NewGRPCSubmitter(c *GRPCClient) *GRPCSubmitter {
	return &GRPCSubmitter{client: c}
}

// Transport implements Submitter.
func (s *GRPCSubmitter) Transport() string { return string(config.TransportGRPC) }

// Submit implements Submitter.
func (s *GRPCSubmitter) Submit(ctx context.Context, req *Request) (*Submission, error) {
	conn, err := s.client.connection()
	if err != nil {
		return nil, err
	}
	in, err := submitRequest(req)
	if err != nil {
		return nil, err
	}

	out := &structpb.Struct{}
	if err := conn.Invoke(s.client.outgoing(ctx, req.RequestID), submitReelMethod, in, out); err != nil {
		return nil, fmt.Errorf("SubmitReel RPC failed: %w", err)
	}

	jobID := out.GetFields()["job_id"].GetStringValue()
	if jobID == "" {
		return nil, fmt.Errorf("render service returned no job id")
	}
	status := out.GetFields()["status"].GetStringValue()
	if status == "" {
		status = "queued"
	}
	return &Submission{
		JobID:     jobID,
		Transport: s.Transport(),
		Status:    status,
		Accepted:  time.Now().UTC(),
	}, nil
}

// submitRequest encodes req as {"body": <document>, "media": [names...]}.
func submitRequest(req *Request) (*structpb.Struct, error) {
	if req == nil || req.Document == nil {
		return nil, fmt.Errorf("submit request has no document")
	}
	data, err := json.Marshal(req.Document)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	media := []any{}
	if req.Video != nil {
		media = append(media, export.PartVideo)
	}
	for _, img := range req.Images {
		media = append(media, img.Name)
	}

	s, err := structpb.NewStruct(map[string]any{"body": body, "media": media})
	if err != nil {
		return nil, fmt.Errorf("building request struct: %w", err)
	}
	return s, nil
}

// CheckHealth queries the standard gRPC health service for RenderService.
func (c *GRPCClient) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := healthpb.NewHealthClient(conn).Check(c.outgoing(ctx, ""), &healthpb.HealthCheckRequest{
		Service: RenderService,
	})
	if err != nil {
		return nil, fmt.Errorf("health check RPC failed: %w", err)
	}

	return &HealthStatus{
		Transport: string(config.TransportGRPC),
		Target:    c.serverAddr,
		Healthy:   resp.GetStatus() == healthpb.HealthCheckResponse_SERVING,
		Status:    resp.GetStatus().String(),
		Latency:   time.Since(start),
	}, nil
}
