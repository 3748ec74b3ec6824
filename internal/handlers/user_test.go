package handlers

import (
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/bemserver/internal/service/user"
	"github.com/nkiryanov/bemserver/internal/testutil"
)

func Test_UserHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("me with bearer", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			john := e.createUser(t, "john@example.com", user.WithName("John"))

			resp := do(t, http.MethodGet, e.url+"/users/me", e.bearer(t, john), "")

			require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
			body := resp.json(t)
			require.Equal(t, john.ID.String(), body["id"])
			require.Equal(t, "john@example.com", body["email"])
			require.Equal(t, "John", body["name"])
			require.NotContains(t, body, "password_hash", "password hash never leaves the server")
		})
	})

	t.Run("me with basic", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			e.createUser(t, "john@example.com")
			credentials := base64.StdEncoding.EncodeToString([]byte("john@example.com:password123"))

			resp := do(t, http.MethodGet, e.url+"/users/me", "Basic "+credentials, "")

			require.Equal(t, http.StatusOK, resp.status)
			require.Equal(t, "john@example.com", resp.json(t)["email"])
		})
	})

	t.Run("me with expired token", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			john := e.createUser(t, "john@example.com")
			header := e.bearer(t, john)

			e.clock.Advance(25 * time.Hour)
			resp := do(t, http.MethodGet, e.url+"/users/me", header, "")

			require.Equal(t, http.StatusUnauthorized, resp.status)
			require.Contains(t, resp.body, "expired_token")
		})
	})

	t.Run("me with malformed header", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			resp := do(t, http.MethodGet, e.url+"/users/me", "Bearer", "")

			require.Equal(t, http.StatusBadRequest, resp.status)
		})
	})

	t.Run("get user", func(t *testing.T) {
		tests := []struct {
			name     string
			admin    bool
			target   string
			expected int
		}{
			{name: "self", admin: false, target: "self", expected: http.StatusOK},
			{name: "other as user", admin: false, target: "other", expected: http.StatusForbidden},
			{name: "other as admin", admin: true, target: "other", expected: http.StatusOK},
			{name: "missing as admin", admin: true, target: "missing", expected: http.StatusNotFound},
			{name: "missing as user", admin: false, target: "missing", expected: http.StatusForbidden},
			{name: "not uuid", admin: true, target: "not-uuid", expected: http.StatusNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withServer(t, pg, func(e testEnv) {
					var opts []user.CreateOption
					if tt.admin {
						opts = append(opts, user.WithAdmin())
					}
					current := e.createUser(t, "current@example.com", opts...)
					other := e.createUser(t, "other@example.com")

					target := map[string]string{
						"self":     current.ID.String(),
						"other":    other.ID.String(),
						"missing":  uuid.NewString(),
						"not-uuid": "not-uuid",
					}[tt.target]

					resp := do(t, http.MethodGet, e.url+"/users/"+target, e.bearer(t, current), "")

					require.Equalf(t, tt.expected, resp.status, "not expected code. Body: %s", resp.body)
					if tt.expected == http.StatusForbidden {
						require.JSONEq(t, `{"error":"authorization_failed","message":"Authorization error"}`, resp.body)
					}
				})
			})
		}
	})

	t.Run("metrics exposed", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			do(t, http.MethodGet, e.url+"/users/me", "", "")

			resp := do(t, http.MethodGet, e.url+"/metrics", "", "")

			require.Equal(t, http.StatusOK, resp.status)
			require.Contains(t, resp.body, `bemserver_auth_attempts_total{result="missing_authentication",scheme="none"} 1`)
		})
	})
}
