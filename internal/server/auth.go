package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/societybill/internal/authorization"
	obscontext "github.com/smallbiznis/societybill/internal/observability/context"
)

const (
	headerAuthorization = "Authorization"
	contextActorKey     = "actor"
)

var errMissingSigningSecret = errors.New("missing_signing_secret")

// ActorClaims is the bearer token payload. Subject carries the actor id.
type ActorClaims struct {
	SocietyID string `json:"society_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// IssueActorToken signs an HS256 token for actor scoped to societyID.
func IssueActorToken(secret string, actor authorization.Actor, societyID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errMissingSigningSecret
	}
	now := time.Now()
	claims := ActorClaims{
		SocietyID: strings.TrimSpace(societyID),
		Role:      string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.TrimSpace(actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseActorToken(secret, token string) (*ActorClaims, error) {
	claims := &ActorClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Authenticated resolves the bearer token into an Actor. The token must be issued
// for the society in the request path.
func (s *Server) Authenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := strings.TrimSpace(s.cfg.AuthJWTSecret)
		if secret == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := strings.TrimSpace(c.GetHeader(headerAuthorization))
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == header {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := parseActorToken(secret, token)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		role, err := authorization.ParseRole(claims.Role)
		if err != nil || strings.TrimSpace(claims.Subject) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if claims.SocietyID != strings.TrimSpace(c.Param("society_id")) {
			AbortWithError(c, ErrForbidden)
			return
		}

		actor := authorization.Actor{ID: strings.TrimSpace(claims.Subject), Role: role}
		c.Set(contextActorKey, actor)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), string(actor.Role), actor.ID))
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	return actor, ok
}
