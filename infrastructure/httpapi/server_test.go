package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Webtech-MQP/webjam-sub000/infrastructure/cache"
	"github.com/Webtech-MQP/webjam-sub000/infrastructure/storage/memory"
	"github.com/Webtech-MQP/webjam-sub000/internal/application"
	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
	"github.com/Webtech-MQP/webjam-sub000/internal/observability"
	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
	"github.com/Webtech-MQP/webjam-sub000/internal/testutils"
)

const testSecret = "test-secret-0123456789"

type apiHarness struct {
	store   *memory.Store
	hub     *LiveHub
	server  *Server
	metrics *testutils.RecordingMetrics
}

func newAPIHarness(t *testing.T, cfg Config) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &apiHarness{store: memory.New(), metrics: testutils.NewRecordingMetrics()}
	h.hub = NewLiveHub(h.metrics, observability.Discard())
	deps := application.Dependencies{
		Store:   h.store,
		Cache:   cache.NewMemoryCache(),
		Events:  h.hub,
		Metrics: h.metrics,
		Logger:  observability.Discard(),
	}
	judging, err := application.NewJudgingService(deps)
	require.NoError(t, err)
	criteria, err := application.NewCriteriaService(deps)
	require.NoError(t, err)
	ranking, err := application.NewRankingService(deps, application.DefaultAppConfig().Scoring, time.Minute)
	require.NoError(t, err)
	lifecycle, err := application.NewLifecycleService(deps, ranking)
	require.NoError(t, err)

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = testSecret
	}
	reg := prometheus.NewRegistry()
	h.server, err = NewServer(cfg, Deps{
		Services: Services{Judging: judging, Criteria: criteria, Ranking: ranking, Lifecycle: lifecycle},
		Hub:      h.hub,
		Metrics:  h.metrics,
		Gatherer: reg,
		Logger:   observability.Discard(),
	})
	require.NoError(t, err)
	return h
}

func token(t *testing.T, p domain.Principal) string {
	t.Helper()
	claims := Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// do sends a request as p (anonymous when p has no ID) and decodes the body.
func (h *apiHarness) do(t *testing.T, p domain.Principal, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if p.ID != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, p))
	}
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestAPI_JudgeAndComplete(t *testing.T) {
	h := newAPIHarness(t, Config{})
	jam := testutils.TwoTeamJam(t, h.store)
	project := "/api/v1/projects/" + jam.Project.ID

	for _, c := range jam.Criteria {
		for team, score := range map[string]int{"TeamA": 7, "TeamB": 6} {
			path := fmt.Sprintf("/api/v1/submissions/%s/judgements/%s", jam.Latest[team].ID, c.ID)
			code, body := h.do(t, testutils.JudgeAlice, http.MethodPut, path, map[string]any{"score": score})
			require.Equal(t, http.StatusOK, code, body)
		}
	}

	code, body := h.do(t, testutils.JudgeBob, http.MethodGet, project+"/ranking/preview", nil)
	require.Equal(t, http.StatusOK, code)
	entries := body["data"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.InDelta(t, 7.0, first["composite_score"], 1e-9)

	teamA := jam.Teams["TeamA"].ID
	code, body = h.do(t, testutils.Admin, http.MethodPost, project+"/complete", map[string]any{
		"awards": map[string]any{"best-design": teamA},
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "completed", body["data"].(map[string]any)["status"])

	code, body = h.do(t, testutils.Participant, http.MethodGet, project+"/ranking", nil)
	require.Equal(t, http.StatusOK, code)
	rankings := body["data"].([]any)
	require.Len(t, rankings, 2)
	assert.Equal(t, teamA, rankings[0].(map[string]any)["instance_id"])

	code, body = h.do(t, testutils.Participant, http.MethodGet, project+"/awards", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"].([]any), 1)

	code, body = h.do(t, testutils.Admin, http.MethodPost, project+"/complete", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body["error"], "state error")
}

func TestAPI_ErrorMapping(t *testing.T) {
	h := newAPIHarness(t, Config{})
	jam := testutils.TwoTeamJam(t, h.store)
	project := "/api/v1/projects/" + jam.Project.ID
	judgement := fmt.Sprintf("/api/v1/submissions/%s/judgements/%s", jam.Latest["TeamA"].ID, jam.Criteria[0].ID)

	tests := []struct {
		name      string
		principal domain.Principal
		method    string
		path      string
		body      any
		want      int
	}{
		{"missing token", domain.Principal{}, http.MethodGet, project + "/criteria", nil, http.StatusUnauthorized},
		{"participant cannot judge", testutils.Participant, http.MethodPut, judgement, map[string]any{"score": 5}, http.StatusForbidden},
		{"score out of range", testutils.JudgeAlice, http.MethodPut, judgement, map[string]any{"score": 11}, http.StatusBadRequest},
		{"unknown submission", testutils.JudgeAlice, http.MethodPut, "/api/v1/submissions/nope/judgements/x", map[string]any{"score": 5}, http.StatusNotFound},
		{"unknown event", testutils.Admin, http.MethodPost, project + "/transitions", map[string]any{"event": "rewind"}, http.StatusBadRequest},
		{"missing event", testutils.Admin, http.MethodPost, project + "/transitions", map[string]any{}, http.StatusBadRequest},
		{"illegal transition", testutils.Admin, http.MethodPost, project + "/transitions", map[string]any{"event": "start"}, http.StatusConflict},
		{"criteria frozen", testutils.Admin, http.MethodPut, project + "/criteria", map[string]any{"criteria": []any{}}, http.StatusConflict},
		{"unknown project", testutils.Participant, http.MethodGet, "/api/v1/projects/nope/ranking", nil, http.StatusNotFound},
		{"live feed needs admin", testutils.JudgeAlice, http.MethodGet, project + "/live", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := h.do(t, tt.principal, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestAPI_CriteriaAndTransitions(t *testing.T) {
	h := newAPIHarness(t, Config{})
	jam := testutils.SeedJam(t, h.store, domain.StatusUpcoming, nil, nil)
	project := "/api/v1/projects/" + jam.Project.ID

	code, body := h.do(t, testutils.Admin, http.MethodPut, project+"/criteria", map[string]any{
		"criteria": []map[string]any{{"description": "Design", "weight": 60}, {"description": "Code", "weight": 40}},
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = h.do(t, testutils.Participant, http.MethodGet, project+"/criteria", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"].([]any), 2)

	for _, event := range []string{"start", "close_submissions"} {
		code, body = h.do(t, testutils.Admin, http.MethodPost, project+"/transitions", map[string]any{"event": event})
		require.Equal(t, http.StatusOK, code, body)
	}
	assert.Equal(t, "judging", body["data"].(map[string]any)["status"])
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	h := newAPIHarness(t, Config{})

	code, body := h.do(t, domain.Principal{}, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, float64(2), h.metrics.Counter(ports.MetricHTTPRequests))
}

func TestAPI_RateLimit(t *testing.T) {
	h := newAPIHarness(t, Config{RatePerSecond: 0.001, RateBurst: 2})
	jam := testutils.TwoTeamJam(t, h.store)
	path := "/api/v1/projects/" + jam.Project.ID + "/criteria"

	codes := make([]int, 3)
	for i := range codes {
		codes[i], _ = h.do(t, testutils.Participant, http.MethodGet, path, nil)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestAuthenticator(t *testing.T) {
	auth, err := NewAuthenticator(testSecret, "")
	require.NoError(t, err)

	sign := func(claims Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	p, err := auth.Principal(sign(Claims{Role: "judge", RegisteredClaims: valid}, testSecret))
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{ID: "u1", Role: domain.RoleJudge}, p)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(Claims{Role: "judge", RegisteredClaims: valid}, "another-secret-0123456")},
		{"unknown role", sign(Claims{Role: "root", RegisteredClaims: valid}, testSecret)},
		{"no subject", sign(Claims{Role: "judge", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: valid.ExpiresAt}}, testSecret)},
		{"no expiry", sign(Claims{Role: "judge", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}, testSecret)},
		{"expired", sign(Claims{Role: "judge", RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		}}, testSecret)},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Principal(tt.token)
			assert.Error(t, err)
		})
	}

	_, err = NewAuthenticator("short", "")
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewValidationError("x", "bad"), http.StatusBadRequest},
		{domain.NewNotFoundError("project", "p"), http.StatusNotFound},
		{domain.NewStateError("p", "op", domain.StatusActive), http.StatusConflict},
		{domain.NewConflictError("judgements", "k", errors.New("dup")), http.StatusConflict},
		{fmt.Errorf("%w: nope", domain.ErrForbidden), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestLiveFeed(t *testing.T) {
	h := newAPIHarness(t, Config{})
	jam := testutils.TwoTeamJam(t, h.store)

	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/projects/" + jam.Project.ID +
		"/live?access_token=" + token(t, testutils.Admin)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return h.hub.Connections() == 1 }, time.Second, 10*time.Millisecond)

	path := fmt.Sprintf("/api/v1/submissions/%s/judgements/%s", jam.Latest["TeamA"].ID, jam.Criteria[0].ID)
	code, _ := h.do(t, testutils.JudgeAlice, http.MethodPut, path, map[string]any{"score": 9})
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "judgement.recorded", event["type"])
	assert.Equal(t, jam.Project.ID, event["project_id"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.hub.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Run(t *testing.T) {
	h := newAPIHarness(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.server.Run(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
