package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromClaims(t *testing.T) {
	t.Run("merges realm and client roles", func(t *testing.T) {
		claims := map[string]interface{}{
			"email": "house@clinic.bg",
			"realm_access": map[string]interface{}{
				"roles": []interface{}{"doctor", "offline_access"},
			},
			"resource_access": map[string]interface{}{
				"pharmacy-app": map[string]interface{}{
					"roles": []interface{}{"Doctor", "seller"},
				},
				"other-app": map[string]interface{}{
					"roles": []interface{}{"admin"},
				},
			},
		}

		id := FromClaims(claims, "pharmacy-app")

		assert.Equal(t, "house@clinic.bg", id.Email)
		assert.Equal(t, []string{"ROLE_DOCTOR", "ROLE_OFFLINE_ACCESS", "ROLE_SELLER"}, id.Roles)
		assert.True(t, id.HasRole(RoleDoctor))
		assert.False(t, id.HasRole(RoleAdmin))
	})

	t.Run("falls back to preferred username", func(t *testing.T) {
		id := FromClaims(map[string]interface{}{
			"email":              "  ",
			"preferred_username": "jdoe",
		}, "")

		assert.Equal(t, "jdoe", id.Email)
		assert.False(t, id.Anonymous())
	})

	t.Run("no identity claims is anonymous", func(t *testing.T) {
		id := FromClaims(map[string]interface{}{}, "pharmacy-app")

		assert.True(t, id.Anonymous())
		assert.Empty(t, id.Roles)
	})

	t.Run("malformed role claims yield no roles", func(t *testing.T) {
		claims := map[string]interface{}{
			"email":        "a@b.c",
			"realm_access": "doctor",
			"resource_access": map[string]interface{}{
				"pharmacy-app": map[string]interface{}{"roles": "seller"},
			},
		}

		id := FromClaims(claims, "pharmacy-app")

		assert.Empty(t, id.Roles)
		assert.Equal(t, "a@b.c", id.Email)
	})

	t.Run("ignores non-string entries", func(t *testing.T) {
		claims := map[string]interface{}{
			"realm_access": map[string]interface{}{
				"roles": []interface{}{"customer", 42, nil, ""},
			},
		}

		assert.Equal(t, []string{"ROLE_CUSTOMER"}, FromClaims(claims, "").Roles)
	})
}

func TestCanonicalRole(t *testing.T) {
	assert.Equal(t, "ROLE_DOCTOR", CanonicalRole("doctor"))
	assert.Equal(t, "ROLE_DOCTOR", CanonicalRole(" ROLE_doctor "))
	assert.Equal(t, "", CanonicalRole(""))
	assert.Equal(t, "", CanonicalRole("role_"))
}
