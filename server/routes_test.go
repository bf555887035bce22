package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/rbd"
	"github.com/meikuraledutech/rbd/memory"
	"github.com/meikuraledutech/rbd/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const workedExample = `{
  "id": "sp",
  "nodes": [{"name": "source"}, {"name": "sink"}, {"name": "n1"}],
  "components": [
    {"name": "A", "failure_probability": 0.1},
    {"name": "B", "failure_probability": 0.2},
    {"name": "C", "failure_probability": 0.05}
  ],
  "connections": [
    {"from": "source", "to": "n1", "component": "A"},
    {"from": "n1", "to": "sink", "component": "B"},
    {"from": "source", "to": "sink", "component": "C"}
  ]
}`

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := metrics.NewRegistry()
	analyzer := rbd.NewAnalyzer(rbd.WithLogger(logger), rbd.WithRecorder(registry), rbd.WithWorkers(2))
	return newApp(memory.New(), analyzer, registry, logger)
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func seed(t *testing.T, app *fiber.App) {
	t.Helper()
	resp, body := do(t, app, "POST", "/diagrams", workedExample)
	require.Equal(t, 201, resp.StatusCode, body)
}

func TestDiagramCRUD(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)

	resp, body := do(t, app, "GET", "/diagrams/sp", "")
	require.Equal(t, 200, resp.StatusCode)
	var d rbd.Diagram
	require.NoError(t, json.Unmarshal([]byte(body), &d))
	assert.Len(t, d.Components, 3)
	assert.Len(t, d.Connections, 3)
	for _, c := range d.Connections {
		assert.NotEmpty(t, c.ID)
	}

	resp, body = do(t, app, "GET", "/diagrams", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"diagrams":["sp"]}`, body)

	resp, _ = do(t, app, "DELETE", "/diagrams/sp", "")
	assert.Equal(t, 204, resp.StatusCode)

	resp, _ = do(t, app, "GET", "/diagrams/sp", "")
	assert.Equal(t, 404, resp.StatusCode)

	resp, _ = do(t, app, "DELETE", "/diagrams/sp", "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestPutDiagramReplaces(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)

	replacement := `{
  "nodes": [{"name": "source"}, {"name": "sink"}],
  "components": [{"name": "Z", "failure_probability": 0.25}],
  "connections": [{"from": "source", "to": "sink", "component": "Z"}]
}`
	resp, body := do(t, app, "PUT", "/diagrams/sp", replacement)
	require.Equal(t, 200, resp.StatusCode, body)

	resp, body = do(t, app, "POST", "/diagrams/sp/analysis", "")
	require.Equal(t, 200, resp.StatusCode, body)
	var res rbd.Result
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.InDelta(t, 0.25, res.Unreliability, 1e-12)
}

func TestAnalysis(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)

	resp, body := do(t, app, "POST", "/diagrams/sp/analysis", "")
	require.Equal(t, 200, resp.StatusCode, body)

	var res rbd.Result
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, "sp", res.DiagramID)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, rbd.ModeExact, res.Mode)
	assert.InDelta(t, 0.014, res.Unreliability, 1e-12)
	assert.InDelta(t, 0.986, res.Reliability, 1e-12)
	assert.ElementsMatch(t, []rbd.CutSet{{"A", "C"}, {"B", "C"}}, res.CutSets)
	assert.Len(t, res.Paths, 2)
	assert.Equal(t, 3, res.Terms)
}

func TestAnalysisModeQuery(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)

	resp, body := do(t, app, "POST", "/diagrams/sp/analysis?mode=rare-event", "")
	require.Equal(t, 200, resp.StatusCode, body)
	var res rbd.Result
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, rbd.ModeRareEvent, res.Mode)
	assert.InDelta(t, 0.015, res.Unreliability, 1e-12)

	resp, _ = do(t, app, "POST", "/diagrams/sp/analysis?mode=guess", "")
	assert.Equal(t, 422, resp.StatusCode)
}

func TestEditsUpdateAnalysis(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)

	resp, body := do(t, app, "PUT", "/diagrams/sp/components/C", `{"failure_probability": 0.5}`)
	require.Equal(t, 204, resp.StatusCode, body)

	resp, body = do(t, app, "POST", "/diagrams/sp/analysis", "")
	require.Equal(t, 200, resp.StatusCode, body)
	var res rbd.Result
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.InDelta(t, 0.14, res.Unreliability, 1e-12)
}

func TestEditRoutes(t *testing.T) {
	app := newTestApp(t)
	resp, body := do(t, app, "POST", "/diagrams", `{"id":"d1","nodes":[{"name":"source"},{"name":"sink"}]}`)
	require.Equal(t, 201, resp.StatusCode, body)

	resp, _ = do(t, app, "POST", "/diagrams/d1/nodes", `{"name":"n1"}`)
	assert.Equal(t, 201, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/diagrams/d1/nodes", `{"name":"n1"}`)
	assert.Equal(t, 409, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/diagrams/d1/nodes", `{}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = do(t, app, "POST", "/diagrams/d1/components", `{"name":"A","failure_probability":0.1}`)
	assert.Equal(t, 201, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/diagrams/d1/components", `{"name":"B","failure_probability":1.5}`)
	assert.Equal(t, 400, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/diagrams/d1/components", `{"name":"B"}`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, body = do(t, app, "POST", "/diagrams/d1/connections", `{"from":"source","to":"n1","component":"A"}`)
	require.Equal(t, 201, resp.StatusCode, body)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	require.NotEmpty(t, created.ID)

	resp, _ = do(t, app, "POST", "/diagrams/d1/connections", `{"from":"source","to":"n1","component":"A"}`)
	assert.Equal(t, 409, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/diagrams/d1/connections", `{"from":"n1","to":"sink","component":"X"}`)
	assert.Equal(t, 422, resp.StatusCode)
	resp, _ = do(t, app, "POST", "/diagrams/d1/connections", `{"from":"n1","to":"n1","component":"A"}`)
	assert.Equal(t, 422, resp.StatusCode)

	resp, _ = do(t, app, "DELETE", "/diagrams/d1/components/A", "")
	assert.Equal(t, 409, resp.StatusCode)
	resp, _ = do(t, app, "DELETE", "/diagrams/d1/nodes/source", "")
	assert.Equal(t, 422, resp.StatusCode)

	// No route to the sink yet.
	resp, _ = do(t, app, "POST", "/diagrams/d1/analysis", "")
	assert.Equal(t, 422, resp.StatusCode)

	resp, _ = do(t, app, "DELETE", "/diagrams/d1/connections/"+created.ID, "")
	assert.Equal(t, 204, resp.StatusCode)
	resp, _ = do(t, app, "DELETE", "/diagrams/d1/connections/"+created.ID, "")
	assert.Equal(t, 404, resp.StatusCode)
	resp, _ = do(t, app, "DELETE", "/diagrams/d1/components/A", "")
	assert.Equal(t, 204, resp.StatusCode)
	resp, _ = do(t, app, "DELETE", "/diagrams/d1/nodes/n1", "")
	assert.Equal(t, 204, resp.StatusCode)
	resp, _ = do(t, app, "PUT", "/diagrams/d1/components/A", `{"failure_probability":0.2}`)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestCreateDiagramErrors(t *testing.T) {
	app := newTestApp(t)

	resp, _ := do(t, app, "POST", "/diagrams", `{not json`)
	assert.Equal(t, 400, resp.StatusCode)

	resp, _ = do(t, app, "POST", "/diagrams", `{"id":"x","nodes":[{"name":"source"}]}`)
	assert.Equal(t, 422, resp.StatusCode)

	for _, body := range []string{
		`{"nodes":[{"name":"source"},{"name":"sink"}],"components":[{"name":"","failure_probability":0.1}]}`,
		`{"nodes":[{"name":"source"},{"name":"sink"},{"name":""}]}`,
		`{"nodes":[{"name":"source"},{"name":"sink"}],` +
			`"components":[{"name":"A","failure_probability":0.1}],` +
			`"connections":[{"from":"","to":"sink","component":"A"}]}`,
	} {
		resp, _ = do(t, app, "POST", "/diagrams", body)
		assert.Equal(t, 422, resp.StatusCode, body)
		resp, _ = do(t, app, "PUT", "/diagrams/x", body)
		assert.Equal(t, 422, resp.StatusCode, body)
	}

	resp, _ = do(t, app, "POST", "/diagrams/missing/nodes", `{"name":"n1"}`)
	assert.Equal(t, 404, resp.StatusCode)

	resp, _ = do(t, app, "POST", "/diagrams/missing/analysis", "")
	assert.Equal(t, 404, resp.StatusCode)
}

func TestExpressionAndReport(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)

	resp, body := do(t, app, "GET", "/diagrams/sp/expression", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.True(t, strings.HasPrefix(body, "R = 1 - P(system failure)\n"))
	assert.Contains(t, body, "  = 1 - P(C1 ∪ C2)\n")

	resp, body = do(t, app, "GET", "/diagrams/sp/report", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, "===== RELIABILITY ANALYSIS RESULTS =====")
	assert.Contains(t, body, "System Reliability: 0.986000000000")
	assert.Contains(t, body, "System Unreliability: 0.014000000000")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	seed(t, app)
	do(t, app, "POST", "/diagrams/sp/analysis", "")
	do(t, app, "GET", "/diagrams/missing", "")

	resp, body := do(t, app, "GET", "/metrics", "")
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `rbd_analyses_total{status="ok"} 1`)
	assert.Contains(t, body, `rbd_http_requests_total{method="GET",route="/diagrams/:id",status="404"} 1`)
	assert.Contains(t, body, `rbd_http_requests_total{method="POST",route="/diagrams",status="201"} 1`)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{rbd.ErrDiagramNotFound, 404},
		{rbd.ErrConnectionExists, 409},
		{&rbd.NoPathError{Source: rbd.Source, Sink: rbd.Sink}, 422},
		{rbd.ErrSystemTooLarge, 422},
		{fmt.Errorf("rbd: save diagram: %w", rbd.ErrInvalidDiagram), 422},
		{io.ErrUnexpectedEOF, 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
