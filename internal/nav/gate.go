package nav

import (
	"fmt"
	"strings"
)

// Path is a navigable location in the client
type Path string

const (
	PathLogin      Path = "/login"
	PathRegister   Path = "/register"
	PathIntakeForm Path = "/intake-form" // requires a session token
)

// Route describes one navigable view
type Route struct {
	Path      Path
	Title     string
	Protected bool
}

// Routes returns every route the client knows about
func Routes() []Route {
	return []Route{
		{Path: PathLogin, Title: "Login"},
		{Path: PathRegister, Title: "Register"},
		{Path: PathIntakeForm, Title: "Intake Form", Protected: true},
	}
}

// Action is what the UI should do with a navigation request
type Action int

const (
	ActionRender   Action = iota // show the requested view
	ActionRedirect               // show Decision.Path instead
)

// Decision is the outcome of resolving a path
type Decision struct {
	Action Action
	Path   Path
}

// Render returns a decision to show p
func Render(p Path) Decision { return Decision{Action: ActionRender, Path: p} }

// Redirect returns a decision to send the user to p
func Redirect(p Path) Decision { return Decision{Action: ActionRedirect, Path: p} }

func (d Decision) String() string {
	if d.Action == ActionRedirect {
		return fmt.Sprintf("redirect %s", d.Path)
	}
	return fmt.Sprintf("render %s", d.Path)
}

// TokenSource is anything that can report the current session token
type TokenSource interface {
	Token() (string, bool)
}

// Gate decides which views are reachable for the current session.
// It caches nothing: every Resolve consults the session afresh.
type Gate struct {
	loginPath Path
	routes    map[Path]Route
}

// NewGate creates a gate over Routes, redirecting to /login
func NewGate() *Gate {
	routes := make(map[Path]Route)
	for _, r := range Routes() {
		routes[r.Path] = r
	}
	return &Gate{loginPath: PathLogin, routes: routes}
}

// Resolve decides what to show for a request to path.
// Protected paths render only when session holds a non-empty token.
// Unknown paths redirect to the login view.
func (g *Gate) Resolve(path Path, session TokenSource) Decision {
	route, ok := g.routes[Normalize(path)]
	if !ok {
		return Redirect(g.loginPath)
	}
	if !route.Protected {
		return Render(route.Path)
	}
	if session == nil {
		return Redirect(g.loginPath)
	}
	if token, present := session.Token(); !present || token == "" {
		return Redirect(g.loginPath)
	}
	return Render(route.Path)
}

// Lookup returns the route registered for path
func (g *Gate) Lookup(path Path) (Route, bool) {
	r, ok := g.routes[Normalize(path)]
	return r, ok
}

// Normalize lower-cases a path, ensures a leading slash and drops trailing ones
func Normalize(p Path) Path {
	s := strings.ToLower(strings.TrimSpace(string(p)))
	s = strings.TrimRight(s, "/")
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	return Path(s)
}
