package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/auth"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/config"
	"github.com/terra-clan/grade-compass/internal/health"
	"github.com/terra-clan/grade-compass/internal/models"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	adminEmail = "boss@example.com"
	userEmail  = "alice@example.com"
)

type recordingSink struct {
	mu          sync.Mutex
	signIns     int
	visits      int
	comparisons [][]string
}

func (s *recordingSink) TrackSignIn(p *models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signIns++
}

func (s *recordingSink) TrackVisit(p *models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits++
}

func (s *recordingSink) TrackComparison(p *models.Principal, grades []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comparisons = append(s.comparisons, grades)
}

type fakeStats struct {
	stats *models.Stats
	err   error
}

func (f *fakeStats) Stats(ctx context.Context) (*models.Stats, error) {
	return f.stats, f.err
}

type testEnv struct {
	server   *Server
	sink     *recordingSink
	stats    *fakeStats
	registry *health.Registry
	sessions *auth.SessionManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sessions := auth.NewSessionManager(testSecret, time.Hour, false)
	gate := auth.NewGate(
		auth.Policy{Domain: "example.com", AdminEmail: adminEmail},
		sessions,
		auth.NewStaticProvider(userEmail, "Alice", "http://localhost:8080/auth/callback"),
	)

	env := &testEnv{
		sink: &recordingSink{},
		stats: &fakeStats{stats: &models.Stats{
			TotalSignIns:     3,
			UniqueUsers:      2,
			TotalVisits:      9,
			TotalComparisons: 4,
			TopCombinations:  []models.ComboCount{{Grades: []string{"G6", "G7"}, Count: 3}},
		}},
		registry: health.NewRegistry(),
		sessions: sessions,
	}

	srv, err := NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 8080, PublicURL: "http://localhost:8080"},
		catalog.Default(), gate, env.sink, env.stats, env.registry,
	)
	require.NoError(t, err)
	env.server = srv
	return env
}

func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	token, _, err := e.sessions.Issue(&models.Principal{UserID: "id-" + email, Email: email})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) page(t *testing.T, method, target, email string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, nil)
	if email != "" {
		r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: e.token(t, email)})
	}
	return e.do(r)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	if data != nil && env.Data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// --- Access gate ---

func TestCompassRequiresSignIn(t *testing.T) {
	env := newTestEnv(t)

	rec := env.page(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Zero(t, env.sink.visits)
}

func TestWrongDomainNeverSeesCompass(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/", "/?g=G8", "/analytics"} {
		rec := env.page(t, http.MethodGet, target, "eve@other.org")
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/login?error=domain", rec.Header().Get("Location"), target)
		assert.NotContains(t, rec.Body.String(), "Compare grade levels")

		var cleared bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == auth.SessionCookie && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "session cookie cleared for %s", target)
	}
	assert.Zero(t, env.sink.visits)

	login := env.page(t, http.MethodGet, "/login?error=domain", "")
	assert.Equal(t, http.StatusOK, login.Code)
	assert.Contains(t, login.Body.String(), "Access restricted to @example.com accounts.")
}

func TestSignInFlow(t *testing.T) {
	env := newTestEnv(t)

	start := env.do(httptest.NewRequest(http.MethodGet, "/auth/start", nil))
	require.Equal(t, http.StatusFound, start.Code)
	location, err := url.Parse(start.Header().Get("Location"))
	require.NoError(t, err)

	callback := httptest.NewRequest(http.MethodGet, "/auth/callback?"+location.RawQuery, nil)
	for _, c := range start.Result().Cookies() {
		callback.AddCookie(c)
	}
	rec := env.do(callback)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.sink.signIns)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			session = c
		}
	}
	require.NotNil(t, session)

	home := httptest.NewRequest(http.MethodGet, "/", nil)
	home.AddCookie(session)
	assert.Equal(t, http.StatusOK, env.do(home).Code)

	// a signed-in user skips the login page
	login := httptest.NewRequest(http.MethodGet, "/login", nil)
	login.AddCookie(session)
	assert.Equal(t, http.StatusFound, env.do(login).Code)
}

func TestSignInForgedState(t *testing.T) {
	env := newTestEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/auth/callback?code=static&state=forged", nil)
	rec := env.do(r)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=state", rec.Header().Get("Location"))
	assert.Zero(t, env.sink.signIns)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rec := env.page(t, http.MethodPost, "/logout", userEmail)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

// --- Compass pages ---

func TestCompassPageDefaultSelection(t *testing.T) {
	env := newTestEnv(t)

	rec := env.page(t, http.MethodGet, "/", userEmail)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `value="G6,G7"`)
	assert.Contains(t, body, "UX Designer")
	assert.Contains(t, body, "Senior Designer")
	assert.Contains(t, body, "Scope &amp; Impact")
	assert.Contains(t, body, "UX Core Proficiency")
	assert.Contains(t, body, "Product Partners")
	assert.Contains(t, body, "<strong>Independent contributor</strong>")
	assert.NotContains(t, body, "Please select at least one grade level.")
	assert.Equal(t, 1, env.sink.visits)
	assert.Empty(t, env.sink.comparisons)
}

func TestCompassPageEmptySelection(t *testing.T) {
	env := newTestEnv(t)

	rec := env.page(t, http.MethodGet, "/?g=", userEmail)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Please select at least one grade level.")
	assert.Contains(t, body, "Select grades above to see the comparison matrix")
	assert.NotContains(t, body, "Product Partners")
}

func TestCompassPageUnknownGrade(t *testing.T) {
	env := newTestEnv(t)

	rec := env.page(t, http.MethodGet, "/?g=G6,G42", userEmail)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown grade level.")
	assert.Zero(t, env.sink.visits)
}

func TestCompassToggleForm(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"g": {"G6,G7"}, "toggle": {"G8"}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: env.token(t, userEmail)})

	rec := env.do(r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="G6,G7,G8"`)
	assert.Equal(t, [][]string{{"G6", "G7", "G8"}}, env.sink.comparisons)
	assert.Zero(t, env.sink.visits, "a toggle is not a visit")
}

func TestCompassToggleToEmpty(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"g": {"G6"}, "toggle": {"G6"}}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: env.token(t, userEmail)})

	rec := env.do(r)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please select at least one grade level.")
	assert.Empty(t, env.sink.comparisons)
}

// --- Admin gate ---

func TestAnalyticsPageAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	denied := env.page(t, http.MethodGet, "/analytics", userEmail)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.NotContains(t, denied.Body.String(), "Unique users")

	ok := env.page(t, http.MethodGet, "/analytics", adminEmail)
	require.Equal(t, http.StatusOK, ok.Code)
	body := ok.Body.String()
	assert.Contains(t, body, "Unique users")
	assert.Contains(t, body, "G6, G7")
}

func TestAnalyticsPageStoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.stats.err = analytics.ErrUnavailable

	rec := env.page(t, http.MethodGet, "/analytics", adminEmail)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Analytics are temporarily unavailable.")
	assert.Contains(t, rec.Body.String(), "No comparisons recorded yet.")
}

// --- JSON API ---

func (e *testEnv) api(t *testing.T, method, target, email string, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if email != "" {
		r.Header.Set("Authorization", "Bearer "+e.token(t, email))
	}
	return e.do(r)
}

func TestAPIRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.api(t, http.MethodGet, "/api/v1/grades", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decode(t, rec, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "not_authenticated", resp.Error.Code)

	wrong := env.api(t, http.MethodGet, "/api/v1/grades", "eve@other.org", "")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, "unauthorized", decode(t, wrong, nil).Error.Code)
}

func TestAPIGrades(t *testing.T) {
	env := newTestEnv(t)

	var list struct {
		Grades []catalog.Grade `json:"grades"`
		Total  int             `json:"total"`
	}
	rec := env.api(t, http.MethodGet, "/api/v1/grades", userEmail, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &list)
	assert.Equal(t, 7, list.Total)
	assert.Equal(t, "G5", list.Grades[0].ID)

	var grade catalog.Grade
	rec = env.api(t, http.MethodGet, "/api/v1/grades/G9", userEmail, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &grade)
	assert.Equal(t, "Principal Designer", grade.Label)
	assert.Equal(t, []string{"Senior Director", "VP"}, grade.Partners)

	rec = env.api(t, http.MethodGet, "/api/v1/grades/G42", userEmail, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.api(t, http.MethodGet, "/api/v1/scales", userEmail, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIView(t *testing.T) {
	env := newTestEnv(t)

	var view struct {
		Selection []string `json:"selection"`
		Empty     bool     `json:"empty"`
	}
	rec := env.api(t, http.MethodGet, "/api/v1/view?g=G10,G5", userEmail, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	assert.Equal(t, []string{"G5", "G10"}, view.Selection)

	rec = env.api(t, http.MethodGet, "/api/v1/view?g=X", userEmail, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_grade", decode(t, rec, nil).Error.Code)
}

func TestAPIToggle(t *testing.T) {
	env := newTestEnv(t)

	var resp ToggleResponse
	rec := env.api(t, http.MethodPost, "/api/v1/selection/toggle", userEmail, `{"selection":["G9"],"id":"G6"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, []string{"G6", "G9"}, resp.Selection)
	assert.Len(t, resp.View.Rows, 3)
	assert.Equal(t, [][]string{{"G6", "G9"}}, env.sink.comparisons)

	rec = env.api(t, http.MethodPost, "/api/v1/selection/toggle", userEmail, `{"id":"G7"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, []string{"G6"}, resp.Selection, "missing selection starts from the default pair")

	rec = env.api(t, http.MethodPost, "/api/v1/selection/toggle", userEmail, `{"selection":[],"id":"G99"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.api(t, http.MethodPost, "/api/v1/selection/toggle", userEmail, `{"selection":["G6"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode(t, rec, nil).Error.Code)

	rec = env.api(t, http.MethodPost, "/api/v1/selection/toggle", userEmail, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPIAnalyticsAdminOnly(t *testing.T) {
	env := newTestEnv(t)

	rec := env.api(t, http.MethodGet, "/api/v1/analytics", userEmail, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode(t, rec, nil).Error.Code)

	var stats models.Stats
	rec = env.api(t, http.MethodGet, "/api/v1/analytics", adminEmail, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.UniqueUsers)

	env.stats.err = errors.New("wrapped: " + analytics.ErrUnavailable.Error())
	rec = env.api(t, http.MethodGet, "/api/v1/analytics", adminEmail, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	env.stats.err = analytics.ErrUnavailable
	rec = env.api(t, http.MethodGet, "/api/v1/analytics", adminEmail, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIMe(t *testing.T) {
	env := newTestEnv(t)

	var me struct {
		Email   string `json:"email"`
		IsAdmin bool   `json:"is_admin"`
	}
	rec := env.api(t, http.MethodGet, "/api/v1/me", adminEmail, "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &me)
	assert.Equal(t, adminEmail, me.Email)
	assert.True(t, me.IsAdmin)
}

// --- Health ---

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	env.registry.Register("store", health.CheckerFunc(func(ctx context.Context) error {
		return errors.New("connection refused")
	}))
	rec := env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

// --- Live session ---

func TestLiveSession(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live?g=G6,G7"
	header := http.Header{}
	header.Set("Cookie", auth.SessionCookie+"="+env.token(t, userEmail))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	exchange := func(msg interface{}) LiveMessage {
		require.NoError(t, conn.WriteJSON(msg))
		var reply LiveMessage
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&reply))
		return reply
	}

	reply := exchange(LiveMessage{Type: "toggle", ID: "G8"})
	assert.Equal(t, "view", reply.Type)
	assert.Equal(t, []string{"G6", "G7", "G8"}, reply.Selection)
	assert.Contains(t, reply.HTML, "Lead Designer")

	reply = exchange(LiveMessage{Type: "toggle", ID: "G6"})
	assert.Equal(t, []string{"G7", "G8"}, reply.Selection)

	reply = exchange(LiveMessage{Type: "toggle", ID: "G99"})
	assert.Equal(t, "error", reply.Type)

	reply = exchange(LiveMessage{Type: "resize"})
	assert.Equal(t, "error", reply.Type)

	env.sink.mu.Lock()
	assert.Equal(t, [][]string{{"G6", "G7", "G8"}, {"G7", "G8"}}, env.sink.comparisons)
	env.sink.mu.Unlock()
}

func TestLiveRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/live"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}
