package policy

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
)

// Redirect targets used by page decisions
const (
	LoginPath     = "/auth/login"
	BannedPath    = "/banned"
	DashboardPath = "/dashboard"
)

// Surface distinguishes browser pages from JSON endpoints
type Surface int

const (
	SurfaceAPI Surface = iota
	SurfacePage
)

// Requirement is the minimum role an action needs
type Requirement int

const (
	RequireNone Requirement = iota
	RequireAdmin
	RequireSuperadmin
)

// ActionKind names what the caller is attempting
type ActionKind string

// ActionKind constants
const (
	ActionAccessRoute      ActionKind = "access_route"
	ActionIngestSignal     ActionKind = "ingest_signal"
	ActionReadTrades       ActionKind = "read_trades"
	ActionUpdateTrade      ActionKind = "update_trade"
	ActionDeleteTrade      ActionKind = "delete_trade"
	ActionListUsers        ActionKind = "list_users"
	ActionBan              ActionKind = "ban"
	ActionUnban            ActionKind = "unban"
	ActionChangeRole       ActionKind = "change_role"
	ActionUpdateEmail      ActionKind = "update_email"
	ActionDeleteUser       ActionKind = "delete_user"
	ActionReadPreferences  ActionKind = "read_preferences"
	ActionWritePreferences ActionKind = "write_preferences"
	ActionGenerateKey      ActionKind = "generate_key"
	ActionReadKey          ActionKind = "read_key"
	ActionReadProfile      ActionKind = "read_profile"
	ActionWriteProfile     ActionKind = "write_profile"
	ActionReadOwnAccount   ActionKind = "read_own_account"
)

// Action is one access attempt to be judged
type Action struct {
	Kind          ActionKind
	Surface       Surface
	RequiresAuth  bool
	MinRole       Requirement
	ResourceOwner *uuid.UUID
	TargetUser    *uuid.UUID
}

// Route is a page or API path access checked at the perimeter
func Route(surface Surface, requiresAuth bool, minRole Requirement) Action {
	return Action{Kind: ActionAccessRoute, Surface: surface, RequiresAuth: requiresAuth, MinRole: minRole}
}

// Authenticated is an API action any signed-in user may take on their own data
func Authenticated(kind ActionKind) Action {
	return Action{Kind: kind, Surface: SurfaceAPI, RequiresAuth: true}
}

// Admin is an API action restricted to admin and superadmin
func Admin(kind ActionKind) Action {
	return Action{Kind: kind, Surface: SurfaceAPI, RequiresAuth: true, MinRole: RequireAdmin}
}

// Superadmin requires the superadmin role on the API surface
func Superadmin(kind ActionKind) Action {
	return Action{Kind: kind, Surface: SurfaceAPI, RequiresAuth: true, MinRole: RequireSuperadmin}
}

// OnTrade is an API action on a trade owned by owner
func OnTrade(kind ActionKind, owner uuid.UUID) Action {
	return Action{Kind: kind, Surface: SurfaceAPI, RequiresAuth: true, ResourceOwner: &owner}
}

// OnUser is a superadmin API action against another account
func OnUser(kind ActionKind, target uuid.UUID) Action {
	return Action{Kind: kind, Surface: SurfaceAPI, RequiresAuth: true, MinRole: RequireSuperadmin, TargetUser: &target}
}

// Outcome of a decision
type Outcome int

const (
	OutcomeAllow Outcome = iota
	OutcomeDeny
	OutcomeRedirect
)

// Decision is the verdict for one action
type Decision struct {
	Outcome Outcome
	Reason  error
	Status  int
	Target  string
}

// Allowed reports whether the action may proceed
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Err returns the denial reason, nil when allowed or redirected
func (d Decision) Err() error {
	if d.Outcome != OutcomeDeny {
		return nil
	}
	return d.Reason
}

func allow() Decision {
	return Decision{Outcome: OutcomeAllow, Status: http.StatusOK}
}

func deny(reason error, status int) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason, Status: status}
}

func redirect(target string) Decision {
	return Decision{Outcome: OutcomeRedirect, Status: http.StatusFound, Target: target}
}

// Guard is the single authorization decision point for pages and API endpoints
type Guard struct {
	accessor *Accessor
}

// NewGuard creates a new Guard
func NewGuard(accessor *Accessor) *Guard {
	return &Guard{accessor: accessor}
}

// Authorize judges action for principal. A nil principal, or one without a user, is anonymous.
func (g *Guard) Authorize(ctx context.Context, principal *domain.Principal, action Action) Decision {
	anonymous := principal == nil || principal.UserID == uuid.Nil
	if anonymous {
		if !action.RequiresAuth && action.MinRole == RequireNone {
			return allow()
		}
		return g.unauthenticated(action)
	}

	caller, err := g.accessor.Account(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return g.unauthenticated(action)
		}
		return deny(err, http.StatusInternalServerError)
	}

	if caller.IsBanned() && action.Kind != ActionUnban {
		if action.Surface == SurfacePage {
			return redirect(BannedPath)
		}
		return deny(domain.ErrForbidden, http.StatusForbidden)
	}

	role := caller.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !meets(role, action.MinRole) {
		if action.Surface == SurfacePage {
			return redirect(DashboardPath)
		}
		return deny(domain.ErrForbidden, http.StatusForbidden)
	}

	if action.ResourceOwner != nil && *action.ResourceOwner != caller.ID && role != domain.RoleSuperadmin {
		return deny(domain.ErrForbidden, http.StatusForbidden)
	}

	if action.TargetUser != nil {
		return g.protectTarget(ctx, caller, *action.TargetUser, action.Kind)
	}

	return allow()
}

func (g *Guard) unauthenticated(action Action) Decision {
	if action.Surface == SurfacePage {
		return redirect(LoginPath)
	}
	return deny(domain.ErrUnauthorized, http.StatusUnauthorized)
}

// protectTarget keeps superadmin rows out of reach of role, ban and delete actions
func (g *Guard) protectTarget(ctx context.Context, caller *domain.User, target uuid.UUID, kind ActionKind) Decision {
	if kind == ActionDeleteUser && target == caller.ID {
		return deny(domain.ErrForbidden, http.StatusForbidden)
	}

	switch kind {
	case ActionChangeRole, ActionBan, ActionUnban, ActionDeleteUser:
	default:
		return allow()
	}

	account, err := g.accessor.Account(ctx, target)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return deny(domain.ErrNotFound, http.StatusNotFound)
		}
		return deny(err, http.StatusInternalServerError)
	}
	if account.Role == domain.RoleSuperadmin {
		return deny(domain.ErrForbidden, http.StatusForbidden)
	}
	return allow()
}

func meets(role domain.Role, req Requirement) bool {
	switch req {
	case RequireSuperadmin:
		return role == domain.RoleSuperadmin
	case RequireAdmin:
		return role.AtLeastAdmin()
	default:
		return true
	}
}
