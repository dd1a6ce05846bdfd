package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/netplace/pkg/buildinfo"
	perrors "github.com/matzehuels/netplace/pkg/errors"
	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
	"github.com/matzehuels/netplace/pkg/observability"
	"github.com/matzehuels/netplace/pkg/pipeline"
)

// =============================================================================
// Request and Response Types
// =============================================================================

// PlaceRequest is the body of POST /v1/place.
type PlaceRequest struct {
	Netlist string                  `json:"netlist"`
	Options pipeline.Options        `json:"options"`
	Render  *pipeline.RenderOptions `json:"render,omitempty"`
	Refresh bool                    `json:"refresh,omitempty"`
}

// PlaceResponse is the body returned by POST /v1/place. Artifacts are
// base64 encoded by encoding/json.
type PlaceResponse struct {
	*pipeline.Result
	Artifacts map[string][]byte `json:"artifacts,omitempty"`
}

// EvalRequest is the body of POST /v1/eval. Without a placement every gate
// sits at the origin.
type EvalRequest struct {
	Netlist   string             `json:"netlist"`
	Placement *placeio.Placement `json:"placement,omitempty"`
}

// EvalResponse is the body returned by POST /v1/eval.
type EvalResponse struct {
	HPWL     float64           `json:"hpwl"`
	Nets     []NetScore        `json:"nets"`
	Warnings []perrors.Warning `json:"warnings,omitempty"`
}

// NetScore is the HPWL of one net.
type NetScore struct {
	Net       int     `json:"net"`
	Terminals int     `json:"terminals"`
	HPWL      float64 `json:"hpwl"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// =============================================================================
// Handlers
// =============================================================================

// HealthResponse is the body returned by GET /healthz.
type HealthResponse struct {
	Status string         `json:"status"`
	Build  buildinfo.Info `json:"build"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Build: buildinfo.Get()})
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	nl, err := parseNetlist(req.Netlist)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	opts := req.Options
	opts.Refresh = req.Refresh
	opts.Logger = s.logger.With("request", middleware.GetReqID(r.Context()))

	ctx := r.Context()
	result, err := s.runner.Execute(ctx, nl, opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := PlaceResponse{Result: result}
	if req.Render != nil {
		artifacts, hit, err := s.runner.RenderWithCacheInfo(ctx, result, nl.Geometry(), *req.Render)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Artifacts = artifacts
		resp.CacheInfo.RenderHit = hit
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	var req EvalRequest
	if err := s.decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	nl, err := parseNetlist(req.Netlist)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Placement != nil {
		if err := req.Placement.Apply(nl); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	per := objective.PerNet(nl)
	resp := EvalResponse{
		HPWL:     objective.HPWL(nl),
		Nets:     make([]NetScore, len(per)),
		Warnings: objective.Degenerate(nl),
	}
	for i, v := range per {
		resp.Nets[i] = NetScore{Net: netlist.ID(i), Terminals: nl.Nets()[i].Terminals(), HPWL: v}
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return perrors.Wrap(perrors.ErrCodeInvalidInput, err, "decode request")
	}
	return nil
}

func parseNetlist(text string) (*netlist.Netlist, error) {
	if strings.TrimSpace(text) == "" {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "netlist is required")
	}
	return placeio.ReadNetlist(strings.NewReader(text))
}

// fail writes err as JSON with a status derived from its code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := statusFor(err)
	code := string(perrors.GetCode(err))
	if code == "" {
		code = string(perrors.ErrCodeInternal)
	}

	observability.HTTP().OnError(ctx, r.Method, r.URL.Path, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
	}

	msg := perrors.UserMessage(err)
	if status >= http.StatusInternalServerError && perrors.GetCode(err) == "" {
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{
		Code:      code,
		Error:     msg,
		RequestID: middleware.GetReqID(ctx),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	}
	switch perrors.GetCode(err) {
	case perrors.ErrCodeInvalidInput, perrors.ErrCodeInvalidFormat, perrors.ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case perrors.ErrCodeStructural, perrors.ErrCodeNumerical, perrors.ErrCodeDegenerateInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
