package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/logger"
	"github.com/nkiryanov/bemserver/internal/models"
	"github.com/nkiryanov/bemserver/internal/repository/postgres"
	"github.com/nkiryanov/bemserver/internal/service/account"
	"github.com/nkiryanov/bemserver/internal/service/auth"
	"github.com/nkiryanov/bemserver/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/bemserver/internal/service/authcode"
	"github.com/nkiryanov/bemserver/internal/service/user"
	"github.com/nkiryanov/bemserver/internal/testutil"
)

// Keep sent codes to use them later in test
type memorySender struct {
	codes []string
}

func (s *memorySender) SendCode(_ context.Context, _ models.User, _ string, code string) error {
	s.codes = append(s.codes, code)
	return nil
}

type testEnv struct {
	url    string
	users  *user.UserService
	tokens *tokenmanager.TokenManager
	sender *memorySender
	clock  *testutil.Clock
}

// Create user with password 'password123'
func (e testEnv) createUser(t *testing.T, email string, opts ...user.CreateOption) models.User {
	t.Helper()

	u, err := e.users.CreateUser(t.Context(), email, "password123", opts...)
	require.NoError(t, err)
	return u
}

func (e testEnv) bearer(t *testing.T, u models.User) string {
	t.Helper()

	pair, err := e.tokens.IssuePair(u)
	require.NoError(t, err)
	return "Bearer " + pair.Access.Value
}

type response struct {
	status int
	header http.Header
	body   string
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()

	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.body), &v), "body is not json object: %s", r.body)
	return v
}

func do(t *testing.T, method string, url string, authorization string, body string) response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, url, reader)
	require.NoError(t, err)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	return response{status: resp.StatusCode, header: resp.Header, body: string(data)}
}

// Run http server with production services bound to rolled back transaction
func withServer(t *testing.T, pg testutil.PostgresContainer, fn func(e testEnv)) {
	testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
		storage := postgres.NewStorage(tx)
		clock := testutil.NewClock(time.Now())
		hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

		tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret", Now: clock.Now})
		require.NoError(t, err, "token manager should be created without errors")

		authService, err := auth.NewService(
			auth.Config{Schemes: []auth.Scheme{auth.SchemeBearer, auth.SchemeBasic}, Hasher: hasher},
			tokens,
			storage.User(),
		)
		require.NoError(t, err, "auth service starting error")

		users := user.NewService(hasher, storage)
		sender := &memorySender{}
		codes := authcode.New(authcode.Config{Now: clock.Now}, storage)
		accounts := account.NewService(users, codes, sender)

		resolver, err := middleware.NewIPResolver(nil)
		require.NoError(t, err)

		router := NewRouter(authService, users, accounts, logger.NewNoOpLogger(), prometheus.NewRegistry(), resolver)
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(testEnv{
			url:    srv.URL,
			users:  users,
			tokens: tokens,
			sender: sender,
			clock:  clock,
		})
	})
}
