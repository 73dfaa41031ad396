package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/xxxsen/ragcache/internal/handler"
	"github.com/xxxsen/ragcache/internal/middleware"
	"github.com/xxxsen/ragcache/internal/model"
	"github.com/xxxsen/ragcache/internal/pipeline"
	"github.com/xxxsen/ragcache/internal/pkg/errcode"
	"github.com/xxxsen/ragcache/internal/service"
	"github.com/xxxsen/ragcache/internal/store"
	"github.com/xxxsen/ragcache/internal/writer"
)

type fakeAsker struct {
	res   *pipeline.Result
	err   error
	calls []string
}

func (f *fakeAsker) Ask(_ context.Context, query string) (*pipeline.Result, error) {
	f.calls = append(f.calls, query)
	return f.res, f.err
}

type apiResult struct {
	Code int                    `json:"code"`
	Msg  string                 `json:"msg"`
	Data map[string]interface{} `json:"data"`
}

func setupRouter(t *testing.T, asker handler.Asker) (http.Handler, store.Collection) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	coll, err := store.NewMemoryBackend().Collection(context.Background(), "response_cache")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ragcache_test_total", Help: "test"}))

	deps := handler.RouterDeps{
		Ask:     handler.NewAskHandler(asker),
		Cache:   handler.NewCacheHandler(service.NewCacheAdminService(coll, nil)),
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine, coll
}

func do(t *testing.T, router http.Handler, method, path string, body []byte) apiResult {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	var out apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out
}

func TestAskHandler_Generated(t *testing.T) {
	asker := &fakeAsker{res: &pipeline.Result{
		Answer: &model.CachedAnswer{
			Answer:     "42",
			Documents:  [][]string{{"doc"}},
			Metadatas:  [][]map[string]string{{{"number": "1"}}},
			References: []string{"https://example.link/1"},
		},
		Submit: writer.Accepted,
	}}
	router, _ := setupRouter(t, asker)

	out := do(t, router, http.MethodPost, "/api/v1/ask", []byte(`{"query":"what is the answer"}`))
	require.Equal(t, 0, out.Code)
	assert.Equal(t, "42", out.Data["answer"])
	assert.Equal(t, false, out.Data["cached"])
	assert.Equal(t, writer.Accepted.String(), out.Data["cache_write"])
	assert.Equal(t, []string{"what is the answer"}, asker.calls)
}

func TestAskHandler_Cached(t *testing.T) {
	asker := &fakeAsker{res: &pipeline.Result{Answer: &model.CachedAnswer{Answer: "cached"}, Cached: true}}
	router, _ := setupRouter(t, asker)

	out := do(t, router, http.MethodPost, "/api/v1/ask", []byte(`{"query":"q"}`))
	require.Equal(t, 0, out.Code)
	assert.Equal(t, true, out.Data["cached"])
	_, hasWrite := out.Data["cache_write"]
	assert.False(t, hasWrite)
}

func TestAskHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"bad json", `{`, nil, errcode.ErrInvalid},
		{"empty query", `{"query":"  "}`, nil, errcode.ErrInvalid},
		{"no context", `{"query":"q"}`, &pipeline.QueryError{Stage: pipeline.StageRetrieve, Err: pipeline.ErrNoContext}, errcode.ErrNoContext},
		{"generate failed", `{"query":"q"}`, &pipeline.QueryError{Stage: pipeline.StageGenerate, Err: fmt.Errorf("timeout")}, errcode.ErrQueryFailed},
		{"unknown", `{"query":"q"}`, fmt.Errorf("boom"), errcode.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setupRouter(t, &fakeAsker{err: tt.err})
			out := do(t, router, http.MethodPost, "/api/v1/ask", []byte(tt.body))
			assert.Equal(t, tt.code, out.Code)
		})
	}
}

func TestCacheHandler_Flow(t *testing.T) {
	router, coll := setupRouter(t, &fakeAsker{})
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, coll.Insert(ctx, id, "q", []float32{1, 0}, map[string]string{"answer": id}))
	}

	out := do(t, router, http.MethodGet, "/api/v1/cache", nil)
	require.Equal(t, 0, out.Code)
	assert.Equal(t, float64(2), out.Data["total"])

	out = do(t, router, http.MethodDelete, "/api/v1/cache/a", nil)
	require.Equal(t, 0, out.Code)

	out = do(t, router, http.MethodDelete, "/api/v1/cache/a", nil)
	assert.Equal(t, errcode.ErrNotFound, out.Code)

	out = do(t, router, http.MethodGet, "/api/v1/cache/stats", nil)
	require.Equal(t, 0, out.Code)
	assert.Equal(t, float64(1), out.Data["response_entries"])

	out = do(t, router, http.MethodDelete, "/api/v1/cache", nil)
	require.Equal(t, 0, out.Code)
	assert.Equal(t, float64(1), out.Data["deleted"])

	ids, err := coll.ListIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMetricsRoute(t *testing.T) {
	router, _ := setupRouter(t, &fakeAsker{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "ragcache_test_total")
}
