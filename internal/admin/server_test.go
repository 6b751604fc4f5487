package admin

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsk/mskql/internal/adminauth"
	"github.com/martinsk/mskql/internal/catalog"
	"github.com/martinsk/mskql/internal/config"
	"github.com/martinsk/mskql/internal/schema"
)

type fakeSessionLister struct{ count int }

func (f fakeSessionLister) SessionCount() int { return f.count }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	db := schema.New("test")
	catalog.Rebuild(db)
	return NewServer(config.AdminConfig{Host: "127.0.0.1", Port: 0}, db, fakeSessionLister{count: 3}, nil, zerolog.Nop())
}

func TestHealthzReportsSessionCount(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sessions":3`)
}

func TestDebugRoutesOpenWhenAuthDisabled(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDebugRoutesRequireBearerTokenWhenAuthEnabled(t *testing.T) {
	db := schema.New("test")
	catalog.Rebuild(db)
	t.Setenv(adminauth.EnvTokenFallback, "secret-token")
	tokens := adminauth.NewSource(config.VaultConfig{}, zerolog.Nop())

	s := NewServer(config.AdminConfig{Host: "127.0.0.1", Port: 0}, db, fakeSessionLister{}, tokens, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/debug/sessions", nil)
	req2.Header.Set("Authorization", "Bearer secret-token")
	rec2 := httptest.NewRecorder()
	s.router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestSchemaYAMLDumpOmitsCatalogTables(t *testing.T) {
	db := schema.New("test")
	catalog.Rebuild(db)
	db.CreateTable("widgets", []schema.Column{{Name: "id", Type: 0}}, false)

	s := NewServer(config.AdminConfig{Host: "127.0.0.1", Port: 0}, db, fakeSessionLister{}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/debug/schema.yaml", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "widgets")
	assert.NotContains(t, body, "pg_namespace")
}
