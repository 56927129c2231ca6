package mcpgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/calc"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/chat"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/logging"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/mcpmgr"
	"github.com/vikashloomba/mcp-tool-gateway-go/pkg/servers"
)

type channelFunc func(ctx context.Context, name string, args any) (*mcpmgr.Result, error)

func (f channelFunc) CallTool(ctx context.Context, name string, args any) (*mcpmgr.Result, error) {
	return f(ctx, name, args)
}

func (f channelFunc) Close() error { return nil }

type fakeRegistry struct {
	mu        sync.Mutex
	channels  map[string]mcpmgr.Channel
	summaries []mcpmgr.ServerSummary
}

func (r *fakeRegistry) Lookup(key string) (mcpmgr.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[key]
	return ch, ok
}

func (r *fakeRegistry) GetServerSummaries() []mcpmgr.ServerSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mcpmgr.ServerSummary(nil), r.summaries...)
}

func textResult(s string) *mcpmgr.Result {
	return &mcpmgr.Result{Content: []mcpmgr.Content{{Type: "text", Text: s}}}
}

// calcChannel runs the real add tool body on the typed arguments it receives.
var calcChannel = channelFunc(func(ctx context.Context, name string, args any) (*mcpmgr.Result, error) {
	if name != calc.ToolName {
		return nil, fmt.Errorf("Unknown tool: %s", name)
	}
	text, err := calc.Add(ctx, args.(calc.AddArgs))
	if err != nil {
		return nil, err
	}
	return textResult(text), nil
})

var echoChannel = channelFunc(func(_ context.Context, _ string, args any) (*mcpmgr.Result, error) {
	return textResult("echo: " + args.(chat.ChatArgs).Prompt), nil
})

func defaultSummaries(status mcpmgr.ConnectionStatus) []mcpmgr.ServerSummary {
	var out []mcpmgr.ServerSummary
	for _, d := range servers.Default().Descriptors() {
		out = append(out, mcpmgr.ServerSummary{Key: d.Key, Name: d.Name, Status: status, Tools: d.ToolNames()})
	}
	return out
}

func connectedRegistry() *fakeRegistry {
	return &fakeRegistry{
		channels: map[string]mcpmgr.Channel{
			servers.CalcServerKey: calcChannel,
			servers.BotServerKey:  echoChannel,
		},
		summaries: defaultSummaries(mcpmgr.StatusConnected),
	}
}

func newTestGateway(t *testing.T, reg Registry, opts *Options) *Gateway {
	t.Helper()
	o := Options{}
	if opts != nil {
		o = *opts
	}
	o.Logger = logging.Discard()
	g, err := NewGateway(reg, &o)
	require.NoError(t, err)
	return g
}

func do(g *Gateway, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body %q", rec.Body.String())
	return body.Error
}

func TestCalcAddRoute(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)
	rec := do(g, http.MethodPost, "/api/calc/add", `{"a":2,"b":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"result":{"content":[{"type":"text","text":"5"}]}}`, rec.Body.String())
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestCalcAddProperty(t *testing.T) {
	g := newTestGateway(t, connectedRegistry(), nil)
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("integer sums render as String(a+b)", prop.ForAll(
		func(a, b int64) bool {
			rec := do(g, http.MethodPost, "/api/calc/add", fmt.Sprintf(`{"a":%d,"b":%d}`, a, b))
			if rec.Code != http.StatusOK {
				return false
			}
			var body struct {
				Result mcpmgr.Result `json:"result"`
			}
			if json.Unmarshal(rec.Body.Bytes(), &body) != nil {
				return false
			}
			return body.Result.Text() == fmt.Sprint(a+b)
		},
		gen.Int64Range(-1<<40, 1<<40),
		gen.Int64Range(-1<<40, 1<<40),
	))

	properties.Property("float sums render with FormatNumber", prop.ForAll(
		func(a, b float64) bool {
			payload, _ := json.Marshal(map[string]float64{"a": a, "b": b})
			rec := do(g, http.MethodPost, "/api/calc/add", string(payload))
			var body struct {
				Result mcpmgr.Result `json:"result"`
			}
			if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &body) != nil {
				return false
			}
			return body.Result.Text() == calc.FormatNumber(a+b)
		},
		gen.Float64Range(-1e12, 1e12),
		gen.Float64Range(-1e12, 1e12),
	))

	properties.TestingRun(t)
}

func TestCalcAddRejectsNonNumbers(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)
	for _, body := range []string{`{"a":"x","b":1}`, `{"a":1}`, `{}`, `{"a":null,"b":2}`, `{"a":true,"b":2}`, `not json`, ``} {
		rec := do(g, http.MethodPost, "/api/calc/add", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
		msg := decodeError(t, rec)
		require.Contains(t, msg, "'a'")
		require.Contains(t, msg, "'b'")
	}
}

func TestCalcAddRejectsStringsProperty(t *testing.T) {
	g := newTestGateway(t, connectedRegistry(), nil)
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("string addends are rejected with 400", prop.ForAll(
		func(a string, b int) bool {
			payload, _ := json.Marshal(map[string]any{"a": a, "b": b})
			rec := do(g, http.MethodPost, "/api/calc/add", string(payload))
			return rec.Code == http.StatusBadRequest &&
				strings.Contains(rec.Body.String(), "'a' and 'b'")
		},
		gen.AnyString(),
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestChatRoute(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)
	rec := do(g, http.MethodPost, "/api/ai/chat", `{"prompt":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"result":{"content":[{"type":"text","text":"echo: hello"}]}}`, rec.Body.String())
}

func TestChatRejectsBlankPromptsProperty(t *testing.T) {
	g := newTestGateway(t, connectedRegistry(), nil)
	whitespace := []string{" ", "\t", "\n", "\r"}
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("blank prompts are rejected with 400", prop.ForAll(
		func(idx []int) bool {
			var sb strings.Builder
			for _, i := range idx {
				sb.WriteString(whitespace[i])
			}
			payload, _ := json.Marshal(map[string]string{"prompt": sb.String()})
			rec := do(g, http.MethodPost, "/api/ai/chat", string(payload))
			return rec.Code == http.StatusBadRequest &&
				strings.Contains(rec.Body.String(), "'prompt' must be a non-empty string")
		},
		gen.SliceOf(gen.IntRange(0, len(whitespace)-1)),
	))

	properties.TestingRun(t)
}

func TestUnavailableServers(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, &fakeRegistry{summaries: defaultSummaries(mcpmgr.StatusDisconnected)}, nil)

	rec := do(g, http.MethodPost, "/api/calc/add", `{"a":2,"b":3}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Calculator service not available", decodeError(t, rec))

	rec = do(g, http.MethodPost, "/api/ai/chat", `{"prompt":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "AI service not available", decodeError(t, rec))

	// Validation still runs first.
	rec = do(g, http.MethodPost, "/api/calc/add", `{"a":"x","b":3}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToolFailuresBecomeServerErrors(t *testing.T) {
	t.Parallel()

	reg := connectedRegistry()
	reg.channels[servers.BotServerKey] = channelFunc(func(context.Context, string, any) (*mcpmgr.Result, error) {
		return nil, &mcpmgr.ToolError{ServerKey: servers.BotServerKey, Tool: "chat", Message: "Llama API error: Not Found"}
	})
	reg.channels[servers.CalcServerKey] = channelFunc(func(context.Context, string, any) (*mcpmgr.Result, error) {
		return nil, errors.New("")
	})
	g := newTestGateway(t, reg, nil)

	rec := do(g, http.MethodPost, "/api/ai/chat", `{"prompt":"hi"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Llama API error: Not Found", decodeError(t, rec))

	rec = do(g, http.MethodPost, "/api/calc/add", `{"a":1,"b":1}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "Internal server error", decodeError(t, rec))
}

func TestCallTimeout(t *testing.T) {
	t.Parallel()

	reg := connectedRegistry()
	reg.channels[servers.CalcServerKey] = channelFunc(func(ctx context.Context, _ string, _ any) (*mcpmgr.Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	g := newTestGateway(t, reg, &Options{CallTimeout: 20 * time.Millisecond})

	rec := do(g, http.MethodPost, "/api/calc/add", `{"a":1,"b":1}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, context.DeadlineExceeded.Error(), decodeError(t, rec))
}

func TestHealthListsEveryConfiguredServer(t *testing.T) {
	t.Parallel()

	reg := connectedRegistry()
	reg.summaries[1].Status = mcpmgr.StatusDisconnected
	g := newTestGateway(t, reg, nil)

	rec := do(g, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":{
		"calcServer":{"status":"connected","name":"calculation-server","tools":["add"]},
		"botServer":{"status":"disconnected","name":"bot-server","tools":["chat"]}
	}}`, rec.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)
	rec := do(g, http.MethodGet, "/api/calc/add", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), &Options{MaxBodyBytes: 16})
	rec := do(g, http.MethodPost, "/api/ai/chat", `{"prompt":"`+strings.Repeat("x", 64)+`"}`)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPanicRecovery(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		production bool
		want       string
	}{
		{production: false, want: "boom"},
		{production: true, want: "Internal server error"},
	} {
		g := newTestGateway(t, connectedRegistry(), &Options{Production: tc.production})
		g.ServeMux().HandleFunc("GET /api/panic", func(http.ResponseWriter, *http.Request) {
			panic(errors.New("boom"))
		})
		rec := do(g, http.MethodGet, "/api/panic", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Equal(t, tc.want, decodeError(t, rec))
	}
}

func TestRequestIDs(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))

	rec = do(g, http.MethodGet, "/api/health", "")
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	require.NoError(t, err)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/calc/add", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	require.Less(t, rec.Code, 300)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodPost, "/api/calc/add", strings.NewReader(`{"a":1,"b":2}`))
	req.Header.Set("Origin", "http://example.com")
	rec = httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := connectedRegistry()
	reg.summaries[1].Status = mcpmgr.StatusDisconnected
	g := newTestGateway(t, reg, nil)

	do(g, http.MethodPost, "/api/calc/add", `{"a":1,"b":2}`)
	do(g, http.MethodPost, "/api/calc/add", `{"a":"x"}`)

	require.Equal(t, 1.0, testutil.ToFloat64(g.metrics.toolCalls.WithLabelValues(servers.CalcServerKey, calc.ToolName, outcomeSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(g.metrics.toolCalls.WithLabelValues(servers.CalcServerKey, calc.ToolName, outcomeInvalid)))
	require.Equal(t, 1.0, testutil.ToFloat64(g.metrics.requests.WithLabelValues("/api/calc/add", http.MethodPost, "200")))

	rec := do(g, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `mcp_gateway_server_up{name="calculation-server",server="calcServer"} 1`)
	require.Contains(t, body, `mcp_gateway_server_up{name="bot-server",server="botServer"} 0`)
	require.Contains(t, body, "mcp_gateway_tool_calls_total")
}

// Verifies that consumers can add custom routes via ServeMux after the
// handler is already being served.
func TestGatewayServeMuxAllowsCustomRoutes(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	g.ServeMux().HandleFunc("/late", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ready"))
	})

	res, err := http.Get(srv.URL + "/late")
	if err != nil {
		t.Fatalf("GET /late: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || string(body) != "ready" {
		t.Fatalf("GET /late = %d %q, want 200 \"ready\"", res.StatusCode, body)
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Fatalf("custom routes should pass through the gateway middleware")
	}
}

func TestNewGatewayValidation(t *testing.T) {
	t.Parallel()

	_, err := NewGateway(nil, nil)
	require.Error(t, err)

	_, err = NewGateway(connectedRegistry(), &Options{Routes: []ToolRoute{{Path: "/x"}}})
	require.Error(t, err)

	route := DefaultRoutes()[0]
	_, err = NewGateway(connectedRegistry(), &Options{Routes: []ToolRoute{route, route}})
	require.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	t.Parallel()

	g := newTestGateway(t, connectedRegistry(), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/health"
	require.Eventually(t, func() bool {
		res, err := http.Get(url)
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	second, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Error(t, g.Serve(context.Background(), second), "second Serve must fail while running")

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatalf("Serve did not return after cancel")
	}
	require.NoError(t, g.Shutdown(context.Background()))
}
