package grpc

import (
	"context"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type DaemonStatus struct {
	Bind          string   `json:"bind"`
	DataDir       string   `json:"data_dir"`
	Model         string   `json:"model"`
	Providers     []string `json:"providers"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	StartedAt     string   `json:"started_at"`
}

type DaemonHandler struct {
	Bind      string
	DataDir   string
	Model     string
	Providers []string
	StartTime time.Time
	StopFunc  func()
}

func (h *DaemonHandler) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	daemonStatus := DaemonStatus{
		Bind:      h.Bind,
		DataDir:   h.DataDir,
		Model:     h.Model,
		Providers: h.Providers,
	}

	if !h.StartTime.IsZero() {
		daemonStatus.UptimeSeconds = int64(time.Since(h.StartTime).Seconds())
		daemonStatus.StartedAt = h.StartTime.Format(time.RFC3339)
	}

	return encode(daemonStatus)
}

func (h *DaemonHandler) Shutdown(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if h.StopFunc != nil {
		go h.StopFunc()
	}

	return encode(map[string]string{"message": "shutting down"})
}
