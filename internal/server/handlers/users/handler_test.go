package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessd/accessd/internal/access"
	"github.com/accessd/accessd/internal/db"
	"github.com/accessd/accessd/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *access.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqldb, err := db.NewSqliteDB(db.WithPath(":memory:"), db.WithMaxOpenConns(1))
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	repo, err := store.NewSqliteRepository(sqldb)
	require.NoError(t, err)

	st := access.NewStore(repo)
	require.NoError(t, st.Start(context.Background()))
	_, err = st.EnsureUser(context.Background(), "alice", "Alice")
	require.NoError(t, err)

	h := New(st)
	router := gin.New()
	router.GET("/users", h.List)
	router.GET("/users/:username", h.Get)
	router.PUT("/users/:username/access", h.SetDefaultAccess)
	router.DELETE("/users/:username", func(ctx *gin.Context) {
		ctx.Set("user", "admin")
		h.Delete(ctx)
	})
	return router, st
}

func TestSetDefaultAccessEndpoint(t *testing.T) {
	router, st := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/users/alice/access",
		strings.NewReader(`{"action":"deny"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, access.ActionDeny, resp.DefaultAccess, "echoes the state this mutation produced")

	user, err := st.GetUser("alice")
	require.NoError(t, err)
	assert.Equal(t, access.ActionDeny, user.DefaultAccess)
}

func TestSetDefaultAccessEndpointErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/users/alice/access",
		strings.NewReader(`{"action":"launch"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/users/nobody/access",
		strings.NewReader(`{"action":"read"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUserEndpoint(t *testing.T) {
	router, st := newTestRouter(t)
	_, err := st.Assign(context.Background(), "alice", "/docs", access.ActionRead, true)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/users/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp UserDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp.Username)
	require.Len(t, resp.Permissions, 1)
	assert.Equal(t, "/docs", resp.Permissions[0].Path)
}

func TestDeleteUserEndpoint(t *testing.T) {
	router, st := newTestRouter(t)
	_, err := st.Assign(context.Background(), "alice", "/docs", access.ActionRead, false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/users/alice", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp DeleteUserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.RemovedCount)

	_, err = st.GetUser("alice")
	assert.ErrorIs(t, err, access.ErrNotFound)
}
