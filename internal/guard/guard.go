package guard

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/quayside/storefront/internal/identity"
)

//go:embed model.conf
var casbinModelContent string

//go:embed route_table.csv
var defaultRouteTable string

// Subject names the anonymous policy subject. Authenticated callers are
// enforced under their role name; role inheritance in the table makes every
// authenticated role a superset of anonymous access.
const anonymousSubject = "anonymous"

// Decision is the outcome of an authorization check. A denied decision
// carries only a redirect target, never anything describing the resource.
type Decision struct {
	Allowed  bool
	Redirect string
}

// Guard is the stateless authorization decision point mapping
// (identity, path) to allow or deny. It must be consulted on every request;
// decisions are never cached across requests.
type Guard struct {
	enforcer *casbin.SyncedEnforcer

	// SignInPath is where unauthenticated callers are sent on deny.
	SignInPath string
	// SafePath is where authenticated-but-unauthorized callers are sent.
	// Kept generic so denied responses leak nothing about the resource.
	SafePath string
}

// New builds a guard from the route classification table at routeTablePath
// (Casbin policy CSV). An empty path loads the embedded default table.
func New(routeTablePath string) (*Guard, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if routeTablePath != "" {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(routeTablePath))
		if err != nil {
			return nil, fmt.Errorf("create route guard enforcer: %w", err)
		}
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, fmt.Errorf("load route table %s: %w", routeTablePath, err)
		}
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err != nil {
			return nil, fmt.Errorf("create route guard enforcer: %w", err)
		}
		if err := loadEmbeddedTable(enforcer); err != nil {
			return nil, err
		}
	}

	return &Guard{
		enforcer:   enforcer,
		SignInPath: "/auth/signin",
		SafePath:   "/",
	}, nil
}

// Authorize decides whether the identity may reach the requested path.
// Fail-closed: any ambiguity (unrecognised role, unclassified path,
// enforcer error) resolves to deny.
func (g *Guard) Authorize(id identity.Identity, path string) Decision {
	subject := anonymousSubject
	if id.IsAuthenticated() {
		if !id.Role.Valid() {
			return g.deny(id)
		}
		subject = string(id.Role)
	}

	allowed, err := g.enforcer.Enforce(subject, path)
	if err != nil || !allowed {
		return g.deny(id)
	}
	return Decision{Allowed: true}
}

func (g *Guard) deny(id identity.Identity) Decision {
	if id.IsAuthenticated() {
		return Decision{Redirect: g.SafePath}
	}
	return Decision{Redirect: g.SignInPath}
}

// loadEmbeddedTable feeds the compiled-in default route table into the
// enforcer. Same CSV syntax the file adapter reads.
func loadEmbeddedTable(enforcer *casbin.SyncedEnforcer) error {
	for _, line := range strings.Split(defaultRouteTable, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) != 3 {
			return fmt.Errorf("malformed route table line: %q", line)
		}
		var err error
		switch fields[0] {
		case "p":
			_, err = enforcer.AddPolicy(fields[1], fields[2])
		case "g":
			_, err = enforcer.AddGroupingPolicy(fields[1], fields[2])
		default:
			err = fmt.Errorf("unknown rule type %q", fields[0])
		}
		if err != nil {
			return fmt.Errorf("load route table line %q: %w", line, err)
		}
	}
	return nil
}
