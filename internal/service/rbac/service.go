// Package rbac decides which roles may call which routes.
package rbac

import (
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"

	"github.com/jwalitptl/pharmacy-api/pkg/auth"
)

// Authenticated matches every caller with a verified token, whatever their roles.
const Authenticated = "authenticated"

const (
	ActionRead  = "^(GET|HEAD)$"
	ActionWrite = "^(POST|PUT|PATCH|DELETE)$"
	ActionAny   = "*"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (p.act == "*" || regexMatch(r.act, p.act))
`

// Rule grants Subject the methods matching Action on paths matching Object.
type Rule struct {
	Subject string
	Object  string
	Action  string
}

// DefaultRules is the route table used when configuration supplies none.
func DefaultRules(base string) []Rule {
	var rules []Rule
	grant := func(resource, action string, subjects ...string) {
		for _, s := range subjects {
			rules = append(rules,
				Rule{Subject: s, Object: base + resource, Action: action},
				Rule{Subject: s, Object: base + resource + "/*", Action: action},
			)
		}
	}

	grant("/doctors", ActionRead, Authenticated)
	grant("/doctors", ActionWrite, auth.RoleAdmin)
	grant("/customers", ActionAny, auth.RoleAdmin, auth.RoleSeller, auth.RoleDoctor)
	grant("/medicines", ActionAny, auth.RoleAdmin, auth.RoleSeller)
	grant("/medicines", ActionRead, auth.RoleCustomer)
	grant("/recipes", ActionAny, auth.RoleAdmin, auth.RoleDoctor)
	grant("/diagnoses", ActionAny, auth.RoleAdmin, auth.RoleDoctor)
	grant("/sick-leaves", ActionAny, auth.RoleAdmin, auth.RoleDoctor)
	grant("/reports", ActionRead, auth.RoleAdmin, auth.RoleDoctor, auth.RoleSeller)
	grant("/dashboard", ActionRead, auth.RoleAdmin, auth.RoleDoctor, auth.RoleSeller)
	grant("/my", ActionRead, auth.RoleCustomer)
	grant("/audit-logs", ActionRead, auth.RoleAdmin)
	return rules
}

type Service interface {
	// Authorize reports whether any of roles, or Authenticated, may call method on path.
	Authorize(roles []string, path, method string) (bool, error)
	Rules() []Rule
}

type service struct {
	enforcer *casbin.Enforcer
	rules    []Rule
}

func NewService(rules []Rule) (Service, error) {
	m, err := casbinmodel.NewModelFromString(policyModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	normalized := make([]Rule, 0, len(rules))
	for _, r := range rules {
		r.Subject = subjectName(r.Subject)
		if r.Subject == "" || r.Object == "" || r.Action == "" {
			return nil, fmt.Errorf("incomplete policy rule %+v", r)
		}
		if _, err := e.AddPolicy(r.Subject, r.Object, r.Action); err != nil {
			return nil, fmt.Errorf("failed to add policy %+v: %w", r, err)
		}
		normalized = append(normalized, r)
	}
	return &service{enforcer: e, rules: normalized}, nil
}

func (s *service) Authorize(roles []string, path, method string) (bool, error) {
	method = strings.ToUpper(method)
	for _, sub := range append([]string{Authenticated}, roles...) {
		ok, err := s.enforcer.Enforce(sub, path, method)
		if err != nil {
			return false, fmt.Errorf("failed to evaluate policy: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) Rules() []Rule {
	return append([]Rule(nil), s.rules...)
}

func subjectName(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, Authenticated) {
		return Authenticated
	}
	return auth.CanonicalRole(s)
}
