package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	"github.com/yanqian/bank-support/internal/domain/support"
	"github.com/yanqian/bank-support/internal/infra/config"
	apperrors "github.com/yanqian/bank-support/pkg/errors"
	"github.com/yanqian/bank-support/pkg/metrics"
)

func TestRouter_SearchUsesGateDefaults(t *testing.T) {
	retriever := &stubRetriever{
		retrieveFn: func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
			require.Equal(t, "Как заблокировать карту", query)
			require.Equal(t, 3, k)
			require.Equal(t, 0.85, threshold)
			return knowledge.Outcome{Matches: []knowledge.Match{{Question: "Заблокировать карту", Answer: "В приложении", Score: 0.93}}}, nil
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":"Как заблокировать карту"}`, newRouterUnderTest(t, retriever, &stubAdmin{}, &stubSupport{}, config.RetryConfig{}))
	require.Equal(t, http.StatusOK, rec.Code)

	var got searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Found)
	require.Len(t, got.Matches, 1)
	require.Equal(t, "1. Вопрос: Заблокировать карту\nСходство: 0.930\nОтвет: В приложении", got.Context)
}

func TestRouter_SearchOverridesAndNoMatch(t *testing.T) {
	retriever := &stubRetriever{
		retrieveFn: func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
			require.Equal(t, 5, k)
			require.Equal(t, 0.5, threshold)
			return knowledge.NoMatch, nil
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":"Какая погода?","k":5,"threshold":0.5}`, newRouterUnderTest(t, retriever, &stubAdmin{}, &stubSupport{}, config.RetryConfig{}))
	require.Equal(t, http.StatusOK, rec.Code)

	var got searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.False(t, got.Found)
	require.NotNil(t, got.Matches)
	require.Empty(t, got.Matches)
	require.Equal(t, knowledge.NoMatchText, got.Context)
}

func TestRouter_SearchErrorMapping(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{knowledge.CodeInvalidQuery, http.StatusBadRequest},
		{knowledge.CodeEmptyStore, http.StatusServiceUnavailable},
		{knowledge.CodeEmbedding, http.StatusServiceUnavailable},
		{knowledge.CodeTimeout, http.StatusServiceUnavailable},
		{knowledge.CodeIndex, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		retriever := &stubRetriever{
			retrieveFn: func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
				return knowledge.Outcome{}, apperrors.Wrap(tc.code, "boom", nil)
			},
		}
		rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":"x"}`, newRouterUnderTest(t, retriever, &stubAdmin{}, &stubSupport{}, config.RetryConfig{}))
		require.Equal(t, tc.status, rec.Code, tc.code)
		require.Equal(t, tc.code, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
	}
}

func TestRouter_SearchInvalidJSON(t *testing.T) {
	rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":123}`, newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, &stubSupport{}, config.RetryConfig{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_request", decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_SearchRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	retriever := &stubRetriever{
		retrieveFn: func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
			require.Equal(t, "Как заблокировать карту", query)
			if calls.Add(1) == 1 {
				return knowledge.Outcome{}, apperrors.Wrap(knowledge.CodeEmbedding, "embed query", nil)
			}
			return knowledge.Outcome{Matches: []knowledge.Match{{Question: "q", Answer: "a", Score: 0.9}}}, nil
		},
	}
	retry := config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Paths: []string{"/api/v1/knowledge/search"}}

	rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":"Как заблокировать карту"}`, newRouterUnderTest(t, retriever, &stubAdmin{}, &stubSupport{}, retry))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int32(2), calls.Load())
}

func TestRouter_SearchDoesNotRetryCallerErrors(t *testing.T) {
	var calls atomic.Int32
	retriever := &stubRetriever{
		retrieveFn: func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
			calls.Add(1)
			return knowledge.Outcome{}, apperrors.Wrap(knowledge.CodeInvalidQuery, "query cannot be empty", nil)
		},
	}
	retry := config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Paths: []string{"/api/v1/knowledge/search"}}

	rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":" "}`, newRouterUnderTest(t, retriever, &stubAdmin{}, &stubSupport{}, retry))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, int32(1), calls.Load())
}

func TestRouter_SearchDoesNotRetryEmptyStore(t *testing.T) {
	var calls atomic.Int32
	retriever := &stubRetriever{
		retrieveFn: func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
			calls.Add(1)
			return knowledge.Outcome{}, apperrors.Wrap(knowledge.CodeEmptyStore, "knowledge store has no entries", nil)
		},
	}
	retry := config.RetryConfig{Enabled: true, MaxAttempts: 3, BaseBackoff: time.Millisecond, Paths: []string{"/api/v1/knowledge/search"}}

	rec := performRequest(http.MethodPost, "/api/v1/knowledge/search", `{"query":"Как заблокировать карту"}`, newRouterUnderTest(t, retriever, &stubAdmin{}, &stubSupport{}, retry))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, int32(1), calls.Load())
	require.Empty(t, rec.Header().Get(noRetryHeader))
	require.Equal(t, knowledge.CodeEmptyStore, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_RebuildAndStats(t *testing.T) {
	admin := &stubAdmin{
		stats: knowledge.Stats{Entries: 4, Fingerprint: "abc"},
		buildFn: func(ctx context.Context, path string) (knowledge.BuildReport, error) {
			require.Equal(t, "configs/faq.json", path)
			return knowledge.BuildReport{Entries: 4, Skipped: true, Fingerprint: "abc"}, nil
		},
	}
	server := newRouterUnderTest(t, &stubRetriever{}, admin, &stubSupport{}, config.RetryConfig{})

	rec := performRequest(http.MethodPost, "/api/v1/knowledge/rebuild", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
	var report map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, true, report["skipped"])

	rec = performRequest(http.MethodGet, "/api/v1/knowledge/stats", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats knowledge.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, admin.stats, stats)
}

func TestRouter_RebuildFailure(t *testing.T) {
	admin := &stubAdmin{
		buildFn: func(ctx context.Context, path string) (knowledge.BuildReport, error) {
			return knowledge.BuildReport{}, apperrors.Wrap(knowledge.CodeBuild, "corpus is empty", nil)
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/knowledge/rebuild", "", newRouterUnderTest(t, &stubRetriever{}, admin, &stubSupport{}, config.RetryConfig{}))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, knowledge.CodeBuild, decodeErrorBody(t, rec.Body.Bytes())["error"]["code"])
}

func TestRouter_Healthz(t *testing.T) {
	rec := performRequest(http.MethodGet, "/healthz", "", newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, &stubSupport{}, config.RetryConfig{}))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = performRequest(http.MethodGet, "/healthz", "", newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{stats: knowledge.Stats{Entries: 2}}, &stubSupport{}, config.RetryConfig{}))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.New(reg)
	recorder.ObserveRetrieval("match", time.Millisecond, 1)

	handler := NewHandler(&stubRetriever{}, &stubAdmin{}, &stubSupport{}, "configs/faq.json", newTestLogger())
	server := NewRouter(testConfig(config.RetryConfig{}), handler, reg, newTestLogger())

	rec := performRequest(http.MethodGet, "/metrics", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "banksupport_knowledge_retrievals_total")
}

func TestRouter_MessageReturnsReply(t *testing.T) {
	svc := &stubSupport{
		messageFn: func(ctx context.Context, userID int64, text string) (support.Reply, error) {
			require.Equal(t, int64(42), userID)
			require.Equal(t, "Какая погода?", text)
			return support.Reply{Kind: support.ReplyNoMatch, Text: support.TextNoMatch, OfferOperator: true}, nil
		},
	}

	rec := performRequest(http.MethodPost, "/api/v1/support/users/42/messages", `{"text":"Какая погода?"}`, newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, svc, config.RetryConfig{}))
	require.Equal(t, http.StatusOK, rec.Code)

	var got support.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, support.ReplyNoMatch, got.Kind)
	require.True(t, got.OfferOperator)
}

func TestRouter_SupportErrorMapping(t *testing.T) {
	svc := &stubSupport{
		callFn: func(ctx context.Context, userID int64) (support.Ticket, error) {
			return support.Ticket{}, apperrors.Wrap(support.CodeOperatorBusy, "operator is busy", nil)
		},
		rateFn: func(ctx context.Context, userID int64, score int) (support.Rating, error) {
			return support.Rating{}, apperrors.Wrap(support.CodeFeatureDisabled, "ratings are disabled", nil)
		},
	}
	server := newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, svc, config.RetryConfig{})

	rec := performRequest(http.MethodPost, "/api/v1/support/users/7/operator", "", server)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = performRequest(http.MethodPost, "/api/v1/support/users/7/ratings", `{"score":5}`, server)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = performRequest(http.MethodPost, "/api/v1/support/users/seven/messages", `{"text":"hi"}`, server)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RegisterDefaultsToUser(t *testing.T) {
	svc := &stubSupport{
		registerFn: func(ctx context.Context, userID int64, role support.Role) (support.Session, error) {
			require.Equal(t, support.RoleUser, role)
			return support.Session{UserID: userID, Role: role, Mode: support.ModeBot, LLMEnabled: true}, nil
		},
	}
	rec := performRequest(http.MethodPost, "/api/v1/support/users", `{"userId":9}`, newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, svc, config.RetryConfig{}))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RegisterAcceptsZeroUserID(t *testing.T) {
	var got *int64
	svc := &stubSupport{
		registerFn: func(ctx context.Context, userID int64, role support.Role) (support.Session, error) {
			got = &userID
			return support.Session{UserID: userID, Role: role}, nil
		},
	}
	server := newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, svc, config.RetryConfig{})

	rec := performRequest(http.MethodPost, "/api/v1/support/users", `{"userId":0,"role":"employee"}`, server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	require.Zero(t, *got)

	rec = performRequest(http.MethodPost, "/api/v1/support/users", `{"role":"user"}`, server)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_TicketsLimit(t *testing.T) {
	svc := &stubSupport{
		ticketsFn: func(ctx context.Context, limit int) ([]support.Ticket, error) {
			require.Equal(t, 10, limit)
			return nil, nil
		},
	}
	server := newRouterUnderTest(t, &stubRetriever{}, &stubAdmin{}, svc, config.RetryConfig{})

	rec := performRequest(http.MethodGet, "/api/v1/support/tickets?limit=10", "", server)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"tickets":[]}`, rec.Body.String())

	rec = performRequest(http.MethodGet, "/api/v1/support/tickets?limit=-1", "", server)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func testConfig(retry config.RetryConfig) *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Address:      ":0",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
			Retry:        retry,
		},
	}
}

func newRouterUnderTest(t *testing.T, retriever Retriever, admin KnowledgeAdmin, svc support.Service, retry config.RetryConfig) *http.Server {
	t.Helper()
	handler := NewHandler(retriever, admin, svc, "configs/faq.json", newTestLogger())
	return NewRouter(testConfig(retry), handler, prometheus.NewRegistry(), newTestLogger())
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

type stubRetriever struct {
	retrieveFn func(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error)
}

func (s *stubRetriever) Config() knowledge.Config {
	return knowledge.Config{TopK: 3, Threshold: 0.85, QueryTimeout: time.Second}
}

func (s *stubRetriever) RetrieveWith(ctx context.Context, query string, k int, threshold float64) (knowledge.Outcome, error) {
	if s.retrieveFn != nil {
		return s.retrieveFn(ctx, query, k, threshold)
	}
	return knowledge.NoMatch, nil
}

type stubAdmin struct {
	stats   knowledge.Stats
	buildFn func(ctx context.Context, path string) (knowledge.BuildReport, error)
}

func (s *stubAdmin) Stats(context.Context) (knowledge.Stats, error) {
	return s.stats, nil
}

func (s *stubAdmin) BuildFromFile(ctx context.Context, path string) (knowledge.BuildReport, error) {
	if s.buildFn != nil {
		return s.buildFn(ctx, path)
	}
	return knowledge.BuildReport{}, nil
}

type stubSupport struct {
	registerFn func(ctx context.Context, userID int64, role support.Role) (support.Session, error)
	messageFn  func(ctx context.Context, userID int64, text string) (support.Reply, error)
	callFn     func(ctx context.Context, userID int64) (support.Ticket, error)
	rateFn     func(ctx context.Context, userID int64, score int) (support.Rating, error)
	ticketsFn  func(ctx context.Context, limit int) ([]support.Ticket, error)
}

func (s *stubSupport) Register(ctx context.Context, userID int64, role support.Role) (support.Session, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, userID, role)
	}
	return support.Session{}, nil
}

func (s *stubSupport) HandleMessage(ctx context.Context, userID int64, text string) (support.Reply, error) {
	if s.messageFn != nil {
		return s.messageFn(ctx, userID, text)
	}
	return support.Reply{}, nil
}

func (s *stubSupport) CallOperator(ctx context.Context, userID int64) (support.Ticket, error) {
	if s.callFn != nil {
		return s.callFn(ctx, userID)
	}
	return support.Ticket{}, nil
}

func (s *stubSupport) EndDialog(ctx context.Context, userID int64) (support.Session, error) {
	return support.Session{UserID: userID}, nil
}

func (s *stubSupport) Rate(ctx context.Context, userID int64, score int) (support.Rating, error) {
	if s.rateFn != nil {
		return s.rateFn(ctx, userID, score)
	}
	return support.Rating{}, nil
}

func (s *stubSupport) Tickets(ctx context.Context, limit int) ([]support.Ticket, error) {
	if s.ticketsFn != nil {
		return s.ticketsFn(ctx, limit)
	}
	return nil, nil
}

func (s *stubSupport) RatingSummary(context.Context) (support.RatingSummary, error) {
	return support.RatingSummary{}, nil
}
