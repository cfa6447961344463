// Package guard decides client-side navigation from the cached identity.
// It only shapes what the client shows; the API enforces access on its own.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"go-task-manager/internal/model"
)

const (
	LoginPath     = "/login"
	AdminHome     = "/tabs/admin"
	DashboardHome = "/tabs/dashboard"
)

type access int

const (
	accessAuthenticated access = iota
	accessPublic
	accessAdminOnly
	accessNonAdminOnly
)

type route struct {
	path   string
	prefix bool
	access access
}

// Paths not listed here require authentication but no particular role.
var routes = []route{
	{path: "/login", access: accessPublic},
	{path: "/signup", access: accessPublic},
	{path: "/forgot-password", access: accessPublic},
	{path: "/tabs/admin", prefix: true, access: accessAdminOnly},
	{path: "/tabs/dashboard", prefix: true, access: accessNonAdminOnly},
	{path: "/tabs/tasks", prefix: true, access: accessNonAdminOnly},
	{path: "/tabs/resources", prefix: true, access: accessNonAdminOnly},
}

// Decision is either Allow or a redirect target.
type Decision struct {
	Allow      bool
	RedirectTo string
}

func allow() Decision {
	return Decision{Allow: true}
}

func redirect(to string) Decision {
	return Decision{RedirectTo: to}
}

func (d Decision) String() string {
	if d.Allow {
		return "allow"
	}
	return "redirect " + d.RedirectTo
}

// Home is the landing page for a role.
func Home(role model.Role) string {
	if role == model.RoleAdmin {
		return AdminHome
	}
	return DashboardHome
}

// RequiresAuth reports whether target is outside the public pages.
func RequiresAuth(target string) bool {
	return lookup(normalize(target)) != accessPublic
}

// Decide is the pure navigation rule. identity is nil when nothing valid
// is cached.
func Decide(identity *model.Identity, target string) Decision {
	target = normalize(target)

	if target == "/" {
		return redirect(LoginPath)
	}

	level := lookup(target)
	if level == accessPublic {
		return allow()
	}
	if identity == nil {
		return redirect(LoginPath)
	}

	home := Home(identity.Role)
	if target == "/tabs" {
		return redirect(home)
	}

	isAdmin := identity.Role == model.RoleAdmin
	switch {
	case level == accessAdminOnly && !isAdmin:
		return redirect(home)
	case level == accessNonAdminOnly && isAdmin:
		return redirect(home)
	}

	return allow()
}

func normalize(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	if target == "" {
		return "/"
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return path.Clean(target)
}

func lookup(target string) access {
	for _, r := range routes {
		if target == r.path || (r.prefix && strings.HasPrefix(target, r.path+"/")) {
			return r.access
		}
	}
	return accessAuthenticated
}

type identitySource interface {
	Identity(ctx context.Context) (*model.Identity, error)
	Clear(ctx context.Context) error
}

// Guard re-reads the cached identity on every navigation.
type Guard struct {
	sessions identitySource
	logger   *slog.Logger
}

func New(sessions identitySource, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{sessions: sessions, logger: logger}
}

// Navigate decides target against the current cache. When the target needs
// authentication and nothing valid is cached, both caches are wiped.
func (g *Guard) Navigate(ctx context.Context, target string) (Decision, error) {
	identity, err := g.sessions.Identity(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("read session: %w", err)
	}

	if identity == nil && RequiresAuth(target) {
		if err := g.sessions.Clear(ctx); err != nil {
			return Decision{}, fmt.Errorf("clear session: %w", err)
		}
	}

	decision := Decide(identity, target)
	g.logger.DebugContext(ctx, "navigation", "target", target, "decision", decision.String())
	return decision, nil
}
