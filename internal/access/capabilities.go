package access

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"github.com/sirupsen/logrus"

	"github.com/nhle/tracker/internal/model"
)

// Action is a role-gated capability.
type Action string

const (
	ActionComment        Action = "comment"
	ActionViewSubtree    Action = "view_subtree"
	ActionViewAll        Action = "view_all"
	ActionEditTask       Action = "edit_task"
	ActionAddAssignee    Action = "add_assignee"
	ActionRemoveAssignee Action = "remove_assignee"
	ActionGrantProject   Action = "grant_project"
	ActionArchiveProject Action = "archive_project"
)

const roleModel = `
[request_definition]
r = sub, act

[policy_definition]
p = sub, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act
`

// defaultPolicy is the role capability table. Each role inherits every
// capability of the role it is grouped under.
var defaultPolicy = [][]string{
	{string(model.RoleStaff), string(ActionComment)},
	{string(model.RoleManager), string(ActionViewSubtree)},
	{string(model.RoleManager), string(ActionEditTask)},
	{string(model.RoleManager), string(ActionAddAssignee)},
	{string(model.RoleManager), string(ActionRemoveAssignee)},
	{string(model.RoleManager), string(ActionGrantProject)},
	{string(model.RoleManager), string(ActionArchiveProject)},
	{string(model.RoleHRAdmin), string(ActionViewAll)},
}

var defaultInheritance = [][]string{
	{string(model.RoleManager), string(model.RoleStaff)},
	{string(model.RoleHRAdmin), string(model.RoleManager)},
}

// Capabilities answers whether a role carries an action, backed by a casbin
// enforcer holding the role table.
type Capabilities struct {
	enforcer *casbin.Enforcer
	log      logrus.FieldLogger
	mu       sync.RWMutex
}

// NewCapabilities builds the default role table.
func NewCapabilities() (*Capabilities, error) {
	return newCapabilities(roleModel)
}

func newCapabilities(modelText string) (*Capabilities, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("access: parsing role model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("access: creating enforcer: %w", err)
	}
	if _, err := enf.AddPolicies(defaultPolicy); err != nil {
		return nil, fmt.Errorf("access: loading role policy: %w", err)
	}
	if _, err := enf.AddGroupingPolicies(defaultInheritance); err != nil {
		return nil, fmt.Errorf("access: loading role inheritance: %w", err)
	}
	return &Capabilities{
		enforcer: enf,
		log:      logrus.StandardLogger().WithField("component", "access"),
	}, nil
}

// SetLogger replaces the logger used to report enforcement failures.
func (c *Capabilities) SetLogger(l logrus.FieldLogger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l.WithField("component", "access")
}

// MustCapabilities is NewCapabilities for static wiring; the embedded table
// is fixed so failure means a programming error.
func MustCapabilities() *Capabilities {
	c, err := NewCapabilities()
	if err != nil {
		panic(err)
	}
	return c
}

// Enforce reports whether role carries act, surfacing enforcer failures.
func (c *Capabilities) Enforce(role model.Role, act Action) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ok, err := c.enforcer.Enforce(string(role), string(act))
	if err != nil {
		return false, fmt.Errorf("access: enforcing %s for %s: %w", act, role, err)
	}
	return ok, nil
}

// Allows reports whether role carries act. An enforcer failure is logged
// and denies.
func (c *Capabilities) Allows(role model.Role, act Action) bool {
	ok, err := c.Enforce(role, act)
	if err != nil {
		c.mu.RLock()
		log := c.log
		c.mu.RUnlock()
		log.WithError(err).WithFields(logrus.Fields{
			"role":   role,
			"action": act,
		}).Error("capability check failed")
		return false
	}
	return ok
}
