package auth

import (
	"strings"
)

// RolePrefix marks canonical role names.
const RolePrefix = "ROLE_"

const (
	RoleAdmin    = "ROLE_ADMIN"
	RoleDoctor   = "ROLE_DOCTOR"
	RoleSeller   = "ROLE_SELLER"
	RoleCustomer = "ROLE_CUSTOMER"
)

// Identity is the normalized view of a verified token.
type Identity struct {
	Subject string   `json:"sub,omitempty"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles"`
}

func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Anonymous is true when the token carried no usable email or username.
func (i Identity) Anonymous() bool {
	return i.Email == ""
}

// FromClaims builds an Identity from a claim set. Realm roles and the roles
// granted to clientID are merged, deduplicated and prefixed. Malformed or
// missing role claims yield no roles instead of an error.
func FromClaims(claims map[string]interface{}, clientID string) Identity {
	id := Identity{
		Subject: stringClaim(claims, "sub"),
		Email:   stringClaim(claims, "email"),
		Roles:   []string{},
	}
	if id.Email == "" {
		id.Email = stringClaim(claims, "preferred_username")
	}

	seen := make(map[string]struct{})
	add := func(raw []string) {
		for _, r := range raw {
			role := CanonicalRole(r)
			if role == "" {
				continue
			}
			if _, ok := seen[role]; ok {
				continue
			}
			seen[role] = struct{}{}
			id.Roles = append(id.Roles, role)
		}
	}

	add(rolesAt(claims, "realm_access"))
	if clientID != "" {
		if resources, ok := claims["resource_access"].(map[string]interface{}); ok {
			add(rolesAt(resources, clientID))
		}
	}

	return id
}

// CanonicalRole maps "doctor", "Doctor" or "ROLE_doctor" to "ROLE_DOCTOR".
func CanonicalRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	if role == "" || role == RolePrefix {
		return ""
	}
	if strings.HasPrefix(role, RolePrefix) {
		return role
	}
	return RolePrefix + role
}

func rolesAt(claims map[string]interface{}, key string) []string {
	scope, ok := claims[key].(map[string]interface{})
	if !ok {
		return nil
	}
	switch list := scope["roles"].(type) {
	case []interface{}:
		roles := make([]string, 0, len(list))
		for _, r := range list {
			if s, ok := r.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	case []string:
		return list
	default:
		return nil
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}
