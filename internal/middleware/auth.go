package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
	apperrors "github.com/jwalitptl/pharmacy-api/pkg/errors"
	"github.com/jwalitptl/pharmacy-api/pkg/httputil"
)

// ContextSubject holds the access.Subject of the authenticated caller.
const ContextSubject = "subject"

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (auth.Identity, error)
}

type SubjectResolver interface {
	Resolve(ctx context.Context, id auth.Identity) (access.Subject, error)
}

type RoutePolicy interface {
	Authorize(roles []string, path, method string) (bool, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	resolver SubjectResolver
	policy   RoutePolicy
}

func NewAuthMiddleware(verifier TokenVerifier, resolver SubjectResolver, policy RoutePolicy) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		resolver: resolver,
		policy:   policy,
	}
}

// Authenticate verifies the bearer token and stores the resolved Subject.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrMissingToken))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		ctx := c.Request.Context()
		identity, err := m.verifier.Verify(ctx, parts[1])
		if err != nil {
			log.Ctx(ctx).Debug().Err(err).Msg("Token rejected")
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		subject, err := m.resolver.Resolve(ctx, identity)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		l := log.Ctx(ctx).With().Str("user", subject.Actor()).Logger()
		c.Request = c.Request.WithContext(l.WithContext(ctx))
		c.Set(ContextSubject, subject)
		c.Next()
	}
}

// Authorize applies the route policy to the subject's roles.
func (m *AuthMiddleware) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := SubjectFrom(c)
		ok, err := m.policy.Authorize(subject.Identity.Roles, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Internal(err))
			return
		}
		if !ok {
			httputil.RespondWithError(c, apperrors.Forbidden("Access Denied"))
			return
		}
		c.Next()
	}
}

// SubjectFrom returns the caller stored by Authenticate, or the zero Subject.
func SubjectFrom(c *gin.Context) access.Subject {
	if v, ok := c.Get(ContextSubject); ok {
		if s, ok := v.(access.Subject); ok {
			return s
		}
	}
	return access.Subject{}
}
