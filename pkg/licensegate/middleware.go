package licensegate

import (
	"bytes"
	"errors"
	"html/template"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"go.uber.org/zap"
)

const verdictLocalsKey = "licensegate_verdict"

// MiddlewareConfig configures the fiber adapter of a Gate.
type MiddlewareConfig struct {
	LicenseKey  string
	ProductName string

	// Sessions provides the session identity for the revalidator. Nil skips the session layer.
	Sessions *session.Store

	// SkipPaths are matched exactly, SkipPrefixes by prefix. Skipped requests are not checked.
	SkipPaths    []string
	SkipPrefixes []string

	// Domain overrides how the requesting domain is derived. Defaults to c.Hostname().
	Domain func(c *fiber.Ctx) string

	// OnDenied renders the denial. Defaults to RenderDenial.
	OnDenied func(c *fiber.Ctx, denial *DenialError) error

	Logger *zap.Logger
}

// Middleware enforces the license on every request it does not skip. On denial the chain
// stops and nothing after the middleware runs.
func Middleware(g *Gate, cfg MiddlewareConfig) fiber.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	domainOf := cfg.Domain
	if domainOf == nil {
		domainOf = func(c *fiber.Ctx) string { return c.Hostname() }
	}
	onDenied := cfg.OnDenied
	if onDenied == nil {
		onDenied = RenderDenial
	}
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		path := c.Path()
		if _, ok := skip[path]; ok {
			return c.Next()
		}
		for _, prefix := range cfg.SkipPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		req := Request{
			LicenseKey:  cfg.LicenseKey,
			Domain:      domainOf(c),
			ProductName: cfg.ProductName,
			SessionID:   sessionID(c, cfg.Sessions, logger),
		}

		verdict, err := g.Enforce(c.UserContext(), req)
		if err != nil {
			var denial *DenialError
			if errors.As(err, &denial) {
				logger.Warn("request blocked by license gate",
					zap.String("domain", req.Domain),
					zap.String("path", path),
					zap.String("reason", denial.Verdict.Message))
				return onDenied(c, denial)
			}
			return err
		}

		c.Locals(verdictLocalsKey, verdict)
		return c.Next()
	}
}

// VerdictFromContext returns the verdict stored by Middleware for this request.
func VerdictFromContext(c *fiber.Ctx) (Verdict, bool) {
	verdict, ok := c.Locals(verdictLocalsKey).(Verdict)
	return verdict, ok
}

func sessionID(c *fiber.Ctx, store *session.Store, logger *zap.Logger) string {
	if store == nil {
		return ""
	}
	sess, err := store.Get(c)
	if err != nil {
		logger.Debug("session lookup failed", zap.Error(err))
		return ""
	}
	id := sess.ID()
	// Save issues the cookie so the same id comes back next request. sess is unusable after.
	if err := sess.Save(); err != nil {
		logger.Debug("session save failed", zap.Error(err))
	}
	return id
}

var denialPage = template.Must(template.New("denial").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Invalid License</title>
<style>
body{font-family:Arial,sans-serif;background:#f4f4f7;display:flex;align-items:center;justify-content:center;min-height:100vh;margin:0}
.box{background:#fff;padding:40px;border-radius:10px;box-shadow:0 10px 40px rgba(0,0,0,.2);text-align:center;max-width:500px}
h1{color:#e74c3c}
.info{background:#f8f9fa;padding:15px;border-radius:5px;margin-top:20px;font-size:14px}
</style>
</head>
<body>
<div class="box">
<h1>Invalid License</h1>
<p>This system requires a valid license to run.</p>
{{if .Reason}}<div class="info"><strong>Reason:</strong> {{.Reason}}</div>{{end}}
<div class="info"><strong>Domain:</strong> {{.Domain}}<br><strong>Product:</strong> {{.Product}}</div>
<p>Contact the software vendor to obtain a valid license.</p>
</div>
</body>
</html>
`))

// RenderDenial answers 403 with an HTML page carrying the denial message verbatim.
func RenderDenial(c *fiber.Ctx, denial *DenialError) error {
	var buf bytes.Buffer
	err := denialPage.Execute(&buf, struct {
		Reason  string
		Domain  string
		Product string
	}{Reason: denial.Verdict.Message, Domain: denial.Domain, Product: denial.Product})
	if err != nil {
		return c.Status(fiber.StatusForbidden).SendString(denial.Error())
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusForbidden).Send(buf.Bytes())
}
