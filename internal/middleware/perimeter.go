package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/infra"
	"tradejournal/internal/policy"
)

// PrincipalKey is the echo context key holding the cookie principal set by the perimeter
const PrincipalKey = "principal"

// publicPrefixes are served without any identity check
var publicPrefixes = []string{"/auth/", "/static/"}

var publicPaths = map[string]bool{
	"/":            true,
	"/auth":        true,
	"/banned":      true,
	"/health":      true,
	"/favicon.ico": true,
}

// Perimeter guards every route before it reaches a handler
type Perimeter struct {
	sessions *SessionManager
	resolver *identity.Resolver
	guard    *policy.Guard
	metrics  *infra.Metrics
	logger   logrus.FieldLogger
}

// NewPerimeter creates a new Perimeter
func NewPerimeter(sessions *SessionManager, resolver *identity.Resolver, guard *policy.Guard, metrics *infra.Metrics, logger logrus.FieldLogger) *Perimeter {
	return &Perimeter{sessions: sessions, resolver: resolver, guard: guard, metrics: metrics, logger: logger}
}

// IsPublic reports whether path skips the perimeter
func IsPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// routeAction classifies a path; ok is false for paths the perimeter does not govern
func routeAction(path string) (action policy.Action, privileged bool, ok bool) {
	switch {
	case path == "/admin" || strings.HasPrefix(path, "/admin/"):
		return policy.Route(policy.SurfacePage, true, policy.RequireSuperadmin), true, true
	case path == "/dashboard" || strings.HasPrefix(path, "/dashboard/"):
		return policy.Route(policy.SurfacePage, true, policy.RequireNone), false, true
	case strings.HasPrefix(path, "/api/"):
		return policy.Route(policy.SurfaceAPI, false, policy.RequireNone), strings.HasPrefix(path, "/api/admin/"), true
	default:
		return policy.Action{}, false, false
	}
}

// Middleware returns the echo middleware
func (p *Perimeter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if IsPublic(path) {
				return next(c)
			}
			p.refreshSession(c)

			action, privileged, governed := routeAction(path)
			if !governed {
				return next(c)
			}

			ctx := req.Context()
			log := p.logger.WithFields(logrus.Fields{"path": path, "method": req.Method})

			var principal *domain.Principal
			resolved, err := p.resolver.Resolve(ctx, req, nil, identity.Options{CookieOnly: true})
			switch {
			case err == nil:
				principal = &resolved
				c.Set(PrincipalKey, resolved)
			case errors.Is(err, domain.ErrUpstream):
				return p.policyFailure(c, next, log, err, privileged)
			}

			decision := p.guard.Authorize(ctx, principal, action)
			switch decision.Outcome {
			case policy.OutcomeAllow:
				return next(c)
			case policy.OutcomeRedirect:
				p.metrics.AuthRejected("page", "redirect")
				return c.Redirect(http.StatusFound, decision.Target)
			}

			if errors.Is(decision.Reason, domain.ErrUpstream) {
				return p.policyFailure(c, next, log, decision.Reason, privileged)
			}
			p.metrics.AuthRejected("api", strings.ToLower(http.StatusText(decision.Status)))
			return echo.NewHTTPError(decision.Status, http.StatusText(decision.Status)).SetInternal(decision.Reason)
		}
	}
}

// policyFailure fails closed on privileged paths and open elsewhere
func (p *Perimeter) policyFailure(c echo.Context, next echo.HandlerFunc, log logrus.FieldLogger, err error, privileged bool) error {
	if privileged {
		log.WithError(err).Error("Policy lookup failed on privileged path, denying")
		p.metrics.AuthRejected("perimeter", "upstream")
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
	}
	log.WithError(err).Warn("Policy lookup failed, allowing unprivileged path")
	return next(c)
}

// refreshSession reissues a valid session cookie that is close to expiry. Public paths,
// logout among them, never refresh.
func (p *Perimeter) refreshSession(c echo.Context) {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	claims, err := p.sessions.Verify(c.Request().Context(), cookie.Value)
	if err != nil || !p.sessions.NeedsRefresh(claims) {
		return
	}
	token, _, err := p.sessions.Issue(claims.UserID)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to refresh session token")
		return
	}
	c.SetCookie(p.sessions.Cookie(token))
}
