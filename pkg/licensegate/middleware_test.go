package licensegate

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProtectedApp(t *testing.T, verifier *stubVerifier, sessions *session.Store) *fiber.App {
	t.Helper()
	g, err := New(verifier, DefaultConfig(), WithClock(newFakeClock()))
	require.NoError(t, err)

	app := fiber.New()
	app.Use(Middleware(g, MiddlewareConfig{
		LicenseKey:   "K1",
		ProductName:  "Product A",
		Sessions:     sessions,
		SkipPaths:    []string{"/health"},
		SkipPrefixes: []string{"/static/"},
	}))
	app.Get("/*", func(c *fiber.Ctx) error {
		verdict, ok := VerdictFromContext(c)
		if !ok {
			return c.SendString("unchecked")
		}
		return c.SendString(verdict.LicenseData.ClientName)
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestMiddleware_ValidLicensePassesThrough(t *testing.T) {
	verifier := &stubVerifier{verdict: validVerdict}
	app := newProtectedApp(t, verifier, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "a.com"
	resp, body := doRequest(t, app, req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme", body)
	assert.Equal(t, 1, verifier.Calls())
}

func TestMiddleware_DenialRendersPage(t *testing.T) {
	verifier := &stubVerifier{verdict: Verdict{Valid: false, Message: "Domain <mismatch>"}}
	app := newProtectedApp(t, verifier, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Host = "b.com"
	resp, body := doRequest(t, app, req)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, body, "Invalid License")
	assert.Contains(t, body, "Domain &lt;mismatch&gt;")
	assert.Contains(t, body, "b.com")
	assert.NotContains(t, body, "Acme")
}

func TestMiddleware_SkipsConfiguredPaths(t *testing.T) {
	verifier := &stubVerifier{verdict: Verdict{Valid: false, Message: "Invalid license key"}}
	app := newProtectedApp(t, verifier, nil)

	for _, path := range []string{"/health", "/static/app.css"} {
		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "unchecked", body, path)
	}
	assert.Equal(t, 0, verifier.Calls())
}

func TestMiddleware_SessionCookieReusesMemo(t *testing.T) {
	verifier := &stubVerifier{verdict: validVerdict}
	sessions := session.New()
	app := newProtectedApp(t, verifier, sessions)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.Host = "a.com"
	resp, _ := doRequest(t, app, first)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)

	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.Host = "a.com"
	for _, c := range cookies {
		second.AddCookie(c)
	}
	resp, body := doRequest(t, app, second)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Acme", body)
	assert.Equal(t, 1, verifier.Calls())
}
