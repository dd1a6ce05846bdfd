package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/netplace/pkg/cache"
	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/pipeline"
)

// chain is four gates strung between two pads at y=50.
const chain = `4 5
1 2 1 2
2 2 2 3
3 2 3 4
4 2 4 5
2
1 1 0 50
2 5 100 50
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	runner := pipeline.NewRunner(fc, nil, logger)
	ts := httptest.NewServer(New(runner, logger, Config{}).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[HealthResponse](t, resp)
	if got.Status != "ok" || got.Build.Version == "" {
		t.Errorf("health = %+v", got)
	}
}

func TestPlace(t *testing.T) {
	ts := newTestServer(t)
	req := PlaceRequest{
		Netlist: chain,
		Options: pipeline.Options{Stages: []string{pipeline.StageQuadratic}, Seed: 3},
		Render:  &pipeline.RenderOptions{Kinds: []string{pipeline.ArtifactDOT}},
	}

	resp := post(t, ts, "/v1/place", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[PlaceResponse](t, resp)

	if got.RunID == "" {
		t.Error("missing run id")
	}
	if math.Abs(got.After-100) > 1e-6 {
		t.Errorf("hpwl_after = %g, want 100", got.After)
	}
	if len(got.Placement.Gates) != 4 {
		t.Errorf("placed %d gates, want 4", len(got.Placement.Gates))
	}
	if !strings.HasPrefix(string(got.Artifacts[pipeline.ArtifactDOT]), "graph") {
		t.Errorf("dot artifact = %q", got.Artifacts[pipeline.ArtifactDOT])
	}

	again := decode[PlaceResponse](t, post(t, ts, "/v1/place", req))
	if !again.CacheInfo.PlacementHit || !again.CacheInfo.RenderHit {
		t.Errorf("second request cache info = %+v, want hits", again.CacheInfo)
	}
}

func TestEval(t *testing.T) {
	ts := newTestServer(t)
	placement := placeio.Placement{Gates: []placeio.GatePosition{
		{ID: 1, X: 20, Y: 50},
		{ID: 2, X: 40, Y: 50},
		{ID: 3, X: 60, Y: 50},
		{ID: 4, X: 80, Y: 50},
	}}

	resp := post(t, ts, "/v1/eval", EvalRequest{Netlist: chain, Placement: &placement})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	got := decode[EvalResponse](t, resp)
	if got.HPWL != 100 {
		t.Errorf("hpwl = %g, want 100", got.HPWL)
	}
	if len(got.Nets) != 5 {
		t.Fatalf("got %d nets, want 5", len(got.Nets))
	}
	for _, n := range got.Nets {
		if n.HPWL != 20 || n.Terminals != 2 {
			t.Errorf("net %d = %+v, want hpwl 20 with 2 terminals", n.Net, n)
		}
	}
}

func TestErrors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"empty netlist", "/v1/eval", EvalRequest{}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad format", "/v1/eval", EvalRequest{Netlist: "1 x\n"}, http.StatusBadRequest, "INVALID_FORMAT"},
		{"oversized header", "/v1/place", PlaceRequest{Netlist: "2000000000 1\n"}, http.StatusBadRequest, "INVALID_FORMAT"},
		{"unknown net", "/v1/eval", EvalRequest{Netlist: "1 1\n1 1 7\n0\n"}, http.StatusUnprocessableEntity, "STRUCTURAL"},
		{"unknown field", "/v1/eval", map[string]any{"netlist": chain, "bogus": 1}, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad stage", "/v1/place", PlaceRequest{Netlist: chain, Options: pipeline.Options{Stages: []string{"magic"}}}, http.StatusBadRequest, "INVALID_CONFIG"},
		{"unknown gate", "/v1/eval", EvalRequest{Netlist: chain, Placement: &placeio.Placement{Gates: []placeio.GatePosition{{ID: 9}}}}, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if got := decode[ErrorResponse](t, resp); got.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Code, tt.code)
			}
		})
	}
}

func TestRejectsNonJSON(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Post(ts.URL+"/v1/eval", "text/plain", strings.NewReader(chain))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", resp.StatusCode)
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	logger := log.NewWithOptions(&bytes.Buffer{}, log.Options{})
	s := New(pipeline.NewRunner(nil, nil, logger), logger, Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Errorf("ListenAndServe() = %v, want nil", err)
	}
}
