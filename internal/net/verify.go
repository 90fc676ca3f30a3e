package net

import (
	"encoding/json"
	nethttp "net/http"

	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/codec"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/content"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/replay"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/runtime"
	"github.com/hansjm10/Idle-Game-Engine-sub003/internal/telemetry"
	"github.com/hansjm10/Idle-Game-Engine-sub003/logging"
)

const (
	metricVerifyRequests = "verify_requests_total"
	metricVerifyFailed   = "verify_failed_total"
)

// VerifyHandler accepts a replay record stream over POST, re-executes it and
// reports the verification outcome. Diagnostics from the run go to the
// configured publisher, typically a feed.
type VerifyHandler struct {
	Pack      content.Pack
	Restore   runtime.RestoreFunc
	Limits    codec.DecodeLimits
	Publisher logging.Publisher
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
}

type verifyResponse struct {
	Status   string `json:"status"`
	Checksum string `json:"checksum,omitempty"`
	EndStep  int64  `json:"endStep,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ServeHTTP decodes the posted stream and runs it through a fresh runner.
// Decode faults answer 400, verification failures 422, success 200.
func (h *VerifyHandler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		nethttp.Error(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return
	}
	if h.Metrics != nil {
		h.Metrics.Add(metricVerifyRequests, 1)
	}

	dec := &codec.Decoder{Limits: h.Limits, Publisher: h.Publisher}
	rep, err := dec.Decode(r.Context(), r.Body)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Printf("verify: decode failed: %v", err)
		}
		if h.Metrics != nil {
			h.Metrics.Add(metricVerifyFailed, 1)
		}
		writeJSON(w, nethttp.StatusBadRequest, verifyResponse{Status: "malformed", Error: err.Error()})
		return
	}

	runner := replay.NewRunner(replay.RunnerConfig{
		Pack:      h.Pack,
		Restore:   h.Restore,
		Publisher: h.Publisher,
	})
	result, err := runner.Run(r.Context(), rep)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Printf("verify: replay diverged: %v", err)
		}
		if h.Metrics != nil {
			h.Metrics.Add(metricVerifyFailed, 1)
		}
		writeJSON(w, nethttp.StatusUnprocessableEntity, verifyResponse{Status: "diverged", Error: err.Error()})
		return
	}

	writeJSON(w, nethttp.StatusOK, verifyResponse{
		Status:   "verified",
		Checksum: result.Checksum,
		EndStep:  result.Snapshot.Runtime.Step,
	})
}

func writeJSON(w nethttp.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
