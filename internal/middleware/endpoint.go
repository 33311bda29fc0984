package middleware

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/infra"
	"tradejournal/internal/policy"
)

// Authorizer re-checks identity and permissions inside each sensitive handler,
// independently of what the perimeter decided
type Authorizer struct {
	resolver *identity.Resolver
	guard    *policy.Guard
	metrics  *infra.Metrics
	logger   logrus.FieldLogger
}

// NewAuthorizer creates a new Authorizer
func NewAuthorizer(resolver *identity.Resolver, guard *policy.Guard, metrics *infra.Metrics, logger logrus.FieldLogger) *Authorizer {
	return &Authorizer{resolver: resolver, guard: guard, metrics: metrics, logger: logger}
}

// Authenticate resolves the caller with the full credential precedence
func (a *Authorizer) Authenticate(c echo.Context, body []byte, opts identity.Options) (domain.Principal, error) {
	principal, err := a.resolver.Resolve(c.Request().Context(), c.Request(), body, opts)
	if err != nil {
		a.record(c, err)
		return domain.Principal{}, err
	}
	return principal, nil
}

// Enforce judges action for principal through the shared guard
func (a *Authorizer) Enforce(ctx context.Context, principal domain.Principal, action policy.Action) error {
	decision := a.guard.Authorize(ctx, &principal, action)
	if decision.Allowed() {
		return nil
	}
	if err := decision.Err(); err != nil {
		a.metrics.AuthRejected("api", reasonLabel(err))
		return err
	}
	return domain.ErrForbidden
}

// Require authenticates a body-less request and enforces action. API keys are accepted.
func (a *Authorizer) Require(c echo.Context, action policy.Action) (domain.Principal, error) {
	return a.require(c, action, identity.Options{})
}

// RequireSession is Require for account management routes, which only accept session tokens
func (a *Authorizer) RequireSession(c echo.Context, action policy.Action) (domain.Principal, error) {
	return a.require(c, action, identity.Options{SessionsOnly: true})
}

func (a *Authorizer) require(c echo.Context, action policy.Action, opts identity.Options) (domain.Principal, error) {
	principal, err := a.Authenticate(c, nil, opts)
	if err != nil {
		return domain.Principal{}, err
	}
	if err := a.Enforce(c.Request().Context(), principal, action); err != nil {
		return domain.Principal{}, err
	}
	return principal, nil
}

// PageRedirect is returned by Page when the guard sends the browser elsewhere
type PageRedirect struct {
	Target string
}

func (r *PageRedirect) Error() string {
	return "redirect to " + r.Target
}

// Page re-judges a page request for the cookie principal the perimeter put on the context.
// A redirect verdict comes back as *PageRedirect.
func (a *Authorizer) Page(c echo.Context, action policy.Action) (domain.Principal, error) {
	var principal *domain.Principal
	if p, ok := c.Get(PrincipalKey).(domain.Principal); ok {
		principal = &p
	}

	decision := a.guard.Authorize(c.Request().Context(), principal, action)
	switch decision.Outcome {
	case policy.OutcomeAllow:
		if principal == nil {
			return domain.Principal{}, domain.ErrUnauthorized
		}
		return *principal, nil
	case policy.OutcomeRedirect:
		a.metrics.AuthRejected("page", "redirect")
		return domain.Principal{}, &PageRedirect{Target: decision.Target}
	}

	if err := decision.Err(); err != nil {
		a.metrics.AuthRejected("page", reasonLabel(err))
		return domain.Principal{}, err
	}
	return domain.Principal{}, domain.ErrForbidden
}

func (a *Authorizer) record(c echo.Context, err error) {
	if errors.Is(err, domain.ErrUpstream) {
		a.logger.WithError(err).WithField("path", c.Path()).Error("Identity resolution failed upstream")
	}
	a.metrics.AuthRejected("api", reasonLabel(err))
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, domain.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, domain.ErrInvalidCredential):
		return "invalid_credential"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrUpstream):
		return "upstream"
	default:
		return "other"
	}
}
