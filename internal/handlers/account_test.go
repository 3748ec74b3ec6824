package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/bemserver/internal/testutil"
)

func Test_AccountHandler(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("forgot and reset password", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			e.createUser(t, "john@example.com")

			resp := do(t, http.MethodPost, e.url+"/auth/password/forgot", "", `{"email": "john@example.com"}`)
			require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)
			require.Len(t, e.sender.codes, 1)

			body := fmt.Sprintf(`{"email": "john@example.com", "code": %q, "password": "new-password"}`, e.sender.codes[0])
			resp = do(t, http.MethodPost, e.url+"/auth/password/reset", "", body)
			require.Equalf(t, http.StatusOK, resp.status, "not expected code. Body: %s", resp.body)

			resp = do(t, http.MethodPost, e.url+"/auth/token", "", `{"email": "john@example.com", "password": "new-password"}`)
			require.Equal(t, "success", resp.json(t)["status"], "new password has to work")

			resp = do(t, http.MethodPost, e.url+"/auth/password/reset", "", body)
			require.Equal(t, http.StatusBadRequest, resp.status, "code works once")
		})
	})

	t.Run("forgot unknown email", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			resp := do(t, http.MethodPost, e.url+"/auth/password/forgot", "", `{"email": "nobody@example.com"}`)

			require.Equal(t, http.StatusOK, resp.status, "response must not reveal registered emails")
			require.Empty(t, e.sender.codes)
		})
	})

	t.Run("reset with wrong code", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			e.createUser(t, "john@example.com")

			resp := do(t, http.MethodPost, e.url+"/auth/password/reset", "", `{"email": "john@example.com", "code": "000000", "password": "new-password"}`)

			require.Equal(t, http.StatusBadRequest, resp.status)
			require.JSONEq(t, `{"error": "invalid_code", "message": "Code is wrong or expired"}`, resp.body)
		})
	})

	t.Run("reset with not a code", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			resp := do(t, http.MethodPost, e.url+"/auth/password/reset", "", `{"email": "john@example.com", "code": "12345", "password": "new-password"}`)

			require.Equal(t, http.StatusBadRequest, resp.status)
			require.Equal(t, "validation_failed", resp.json(t)["error"])
		})
	})

	t.Run("verify email", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			john := e.createUser(t, "john@example.com")
			header := e.bearer(t, john)

			resp := do(t, http.MethodPost, e.url+"/auth/email/verify/request", header, "")
			require.Equalf(t, http.StatusAccepted, resp.status, "not expected code. Body: %s", resp.body)
			require.Len(t, e.sender.codes, 1)

			body := fmt.Sprintf(`{"code": %q}`, e.sender.codes[0])
			resp = do(t, http.MethodPost, e.url+"/auth/email/verify", header, body)
			require.Equal(t, http.StatusNoContent, resp.status)

			resp = do(t, http.MethodPost, e.url+"/auth/email/verify", header, body)
			require.Equal(t, http.StatusBadRequest, resp.status)
		})
	})

	t.Run("verify email requires login", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			resp := do(t, http.MethodPost, e.url+"/auth/email/verify/request", "", "")

			require.Equal(t, http.StatusUnauthorized, resp.status)
		})
	})

	t.Run("code endpoints rate limited", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			for range codeRateLimit {
				resp := do(t, http.MethodPost, e.url+"/auth/password/forgot", "", `{"email": "nobody@example.com"}`)
				require.Equal(t, http.StatusOK, resp.status)
			}

			resp := do(t, http.MethodPost, e.url+"/auth/password/forgot", "", `{"email": "nobody@example.com"}`)

			require.Equal(t, http.StatusTooManyRequests, resp.status)
		})
	})

	t.Run("forwarded header does not reset rate limit", func(t *testing.T) {
		withServer(t, pg, func(e testEnv) {
			forgot := func(i int) int {
				req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, e.url+"/auth/password/forgot", strings.NewReader(`{"email": "nobody@example.com"}`))
				require.NoError(t, err)
				req.Header.Set("Content-Type", "application/json")
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))

				resp, err := http.DefaultClient.Do(req)
				require.NoError(t, err)
				defer resp.Body.Close() // nolint:errcheck
				return resp.StatusCode
			}

			for i := range codeRateLimit {
				require.Equal(t, http.StatusOK, forgot(i))
			}

			require.Equal(t, http.StatusTooManyRequests, forgot(codeRateLimit))
		})
	})
}
