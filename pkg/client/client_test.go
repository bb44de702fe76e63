package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/grade-compass/internal/analytics"
	"github.com/terra-clan/grade-compass/internal/api"
	"github.com/terra-clan/grade-compass/internal/auth"
	"github.com/terra-clan/grade-compass/internal/catalog"
	"github.com/terra-clan/grade-compass/internal/config"
	"github.com/terra-clan/grade-compass/internal/health"
	"github.com/terra-clan/grade-compass/internal/models"
	"github.com/terra-clan/grade-compass/internal/storage"
)

type testService struct {
	url        string
	sessions   *auth.SessionManager
	dispatcher *analytics.Dispatcher
}

func newTestService(t *testing.T) *testService {
	t.Helper()

	repo := storage.NewMemoryRepository()
	dispatcher := analytics.NewDispatcher(repo, analytics.DispatcherConfig{})
	dispatcher.Start()
	t.Cleanup(func() {
		_ = dispatcher.Close(context.Background())
	})

	sessions := auth.NewSessionManager("0123456789abcdef0123456789abcdef", time.Hour, false)
	gate := auth.NewGate(
		auth.Policy{Domain: "example.com", AdminEmail: "boss@example.com"},
		sessions,
		auth.NewStaticProvider("alice@example.com", "Alice", "http://localhost/auth/callback"),
	)

	srv, err := api.NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 8080, PublicURL: "http://localhost:8080"},
		catalog.Default(), gate, dispatcher, analytics.NewService(repo, nil), health.NewRegistry(),
	)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testService{url: ts.URL, sessions: sessions, dispatcher: dispatcher}
}

func (s *testService) client(t *testing.T, email string) *Client {
	t.Helper()
	token, _, err := s.sessions.Issue(&models.Principal{UserID: "id-" + email, Email: email, DisplayName: "Test"})
	require.NoError(t, err)
	return NewClient(s.url, token, WithTimeout(5*time.Second))
}

func TestClientCatalog(t *testing.T) {
	svc := newTestService(t)
	c := svc.client(t, "alice@example.com")
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.False(t, me.IsAdmin)

	grades, err := c.ListGrades(ctx)
	require.NoError(t, err)
	require.Len(t, grades, 7)
	assert.Equal(t, "G5", grades[0].ID)
	assert.Equal(t, "G11", grades[6].ID)

	grade, err := c.GetGrade(ctx, "G10")
	require.NoError(t, err)
	assert.Equal(t, "Architect", grade.Label)
	assert.Equal(t, 88.0, grade.ScopePosition)

	_, err = c.GetGrade(ctx, "G42")
	assert.True(t, IsStatus(err, http.StatusNotFound))

	scales, err := c.Scales(ctx)
	require.NoError(t, err)
	assert.Len(t, scales, 2)
}

func TestClientView(t *testing.T) {
	svc := newTestService(t)
	c := svc.client(t, "alice@example.com")
	ctx := context.Background()

	view, err := c.View(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"G6", "G7"}, view.Selection)

	view, err = c.View(ctx, []string{})
	require.NoError(t, err)
	assert.True(t, view.Empty)
	assert.Empty(t, view.Selection)

	_, err = c.View(ctx, []string{"G3"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_grade", apiErr.Code)
}

func TestClientToggleAndStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := svc.client(t, "alice@example.com")

	result, err := user.Toggle(ctx, []string{"G6", "G7"}, "G11")
	require.NoError(t, err)
	assert.Equal(t, []string{"G6", "G7", "G11"}, result.Selection)

	result, err = user.Toggle(ctx, result.Selection, "G6")
	require.NoError(t, err)
	assert.Equal(t, []string{"G7", "G11"}, result.Selection)

	_, err = user.Stats(ctx)
	assert.True(t, IsStatus(err, http.StatusForbidden))

	require.NoError(t, svc.dispatcher.Close(ctx))

	stats, err := svc.client(t, "boss@example.com").Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalComparisons)
	require.Len(t, stats.Recent, 2)
	assert.Equal(t, []string{"G7", "G11"}, stats.Recent[0].Grades)
}

func TestClientWithoutSession(t *testing.T) {
	svc := newTestService(t)

	_, err := NewClient(svc.url, "").Me(context.Background())
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	_, err = NewClient(svc.url, "not-a-token").ListGrades(context.Background())
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
}
