package http

import (
	"embed"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"tradejournal/internal/delivery/http/dto"
	"tradejournal/internal/domain"
	"tradejournal/internal/middleware"
	"tradejournal/internal/policy"
	"tradejournal/internal/usecase"
	"tradejournal/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateRenderer renders the embedded page templates for echo
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses the embedded templates
func NewTemplateRenderer() (*TemplateRenderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &TemplateRenderer{templates: t}, nil
}

// Render implements echo.Renderer
func (r *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}

// WebHandler serves the server-rendered pages. Account pages are judged again by the
// guard after the perimeter has let them through.
type WebHandler struct {
	trades   *usecase.TradeService
	accounts *usecase.AccountService
	admin    *usecase.AdminService
	auth     *middleware.Authorizer
	loc      *time.Location
}

// NewWebHandler creates a new WebHandler. loc is the zone trade times are shown in.
func NewWebHandler(
	trades *usecase.TradeService,
	accounts *usecase.AccountService,
	admin *usecase.AdminService,
	auth *middleware.Authorizer,
	loc *time.Location,
) *WebHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &WebHandler{trades: trades, accounts: accounts, admin: admin, auth: auth, loc: loc}
}

var (
	memberPage = policy.Route(policy.SurfacePage, true, policy.RequireNone)
	adminPage  = policy.Route(policy.SurfacePage, true, policy.RequireSuperadmin)
)

type page map[string]interface{}

// GET / - landing, or the dashboard when a session cookie is present
func (h *WebHandler) HandleIndex(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		return c.Redirect(http.StatusFound, policy.DashboardPath)
	}
	return c.Render(http.StatusOK, "landing", page{"Title": "Welcome"})
}

// GET /auth/login
func (h *WebHandler) HandleLogin(c echo.Context) error {
	return c.Render(http.StatusOK, "login", page{
		"Title": "Sign in",
		"Error": c.QueryParam("error"),
	})
}

// GET /banned
func (h *WebHandler) HandleBanned(c echo.Context) error {
	return c.Render(http.StatusOK, "banned", page{"Title": "Suspended"})
}

// GET /dashboard
func (h *WebHandler) HandleDashboard(c echo.Context) error {
	data, principal, err := h.accountPage(c, "Dashboard", memberPage)
	if err != nil {
		return err
	}

	trades, err := h.trades.List(c.Request().Context(), principal.UserID)
	if err != nil {
		return err
	}
	rows := make([]dto.TradeViewModel, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, h.tradeRow(t))
	}
	data["Trades"] = rows

	return c.Render(http.StatusOK, "dashboard", data)
}

// GET /dashboard/settings
func (h *WebHandler) HandleSettings(c echo.Context) error {
	data, _, err := h.accountPage(c, "Settings", memberPage)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "settings", data)
}

// GET /admin
func (h *WebHandler) HandleAdmin(c echo.Context) error {
	data, _, err := h.accountPage(c, "Admin", adminPage)
	if err != nil {
		return err
	}

	users, err := h.admin.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	data["Users"] = users

	return c.Render(http.StatusOK, "admin", data)
}

// accountPage authorizes action for the cookie principal and loads the signed-in account
func (h *WebHandler) accountPage(c echo.Context, title string, action policy.Action) (page, domain.Principal, error) {
	principal, err := h.auth.Page(c, action)
	if err != nil {
		return nil, principal, err
	}

	account, err := h.accounts.Me(c.Request().Context(), principal.UserID)
	if err != nil {
		return nil, principal, err
	}
	role := account.Role()
	return page{
		"Title":        title,
		"Nav":          true,
		"Account":      account,
		"Role":         role,
		"IsSuperadmin": role == domain.RoleSuperadmin,
	}, principal, nil
}

func (h *WebHandler) tradeRow(t *domain.Trade) dto.TradeViewModel {
	side := "buy"
	if t.Direction == domain.DirectionSell {
		side = "sell"
	}
	return dto.TradeViewModel{
		Pair:      t.Pair,
		Timeframe: t.Timeframe,
		Direction: string(t.Direction),
		SideClass: side,
		Entry:     t.Entry.String(),
		TP:        optionalPrice(t.TP),
		SL:        optionalPrice(t.SL),
		Reasons:   utils.TruncateRunes(t.Reasons, 120),
		Status:    t.Status,
		Opened:    utils.FormatLocal(t.CreatedAt, h.loc),
	}
}

func optionalPrice(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
