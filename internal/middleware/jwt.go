package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-session/internal/response"
	"github.com/stemsi/exstem-session/internal/service"
)

// ContextKeyClaims is the Gin context key for validated token claims.
const ContextKeyClaims = "claims"

var errNoToken = errors.New("no bearer token")

// tokenSource says where a guard looks for the bearer token.
type tokenSource int

const (
	// fromHeaderOrQuery reads Authorization first. The ?token= fallback
	// serves signal beacons sent on page unload, which cannot set headers.
	fromHeaderOrQuery tokenSource = iota
	// fromQuery serves WebSocket upgrades, where browsers cannot set headers.
	fromQuery
)

func (s tokenSource) extract(c *gin.Context) string {
	if s == fromHeaderOrQuery {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if ok && strings.EqualFold(scheme, "bearer") && token != "" {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

// claimCheck rejects a request whose claims do not fit it. It returns the
// refusal code, or "" to let the request through.
type claimCheck func(c *gin.Context, claims *service.Claims) response.ErrCode

// ownsPathSession binds a session token to the :id route param when present.
func ownsPathSession(c *gin.Context, claims *service.Claims) response.ErrCode {
	if id := c.Param("id"); id != "" && id != claims.SessionID {
		return response.ErrForbidden
	}
	return ""
}

// sameDevice refuses a session token replayed from another device. Requests
// without the device header are left to the routes that require it.
func sameDevice(c *gin.Context, claims *service.Claims) response.ErrCode {
	if id := c.GetHeader(HeaderDeviceID); id != "" && id != claims.DeviceID {
		return response.ErrDeviceMismatch
	}
	return ""
}

func guard(auth *service.AuthService, src tokenSource, want service.TokenType, checks ...claimCheck) gin.HandlerFunc {
	wrongType := response.ErrSessionTokenOnly
	if want == service.TokenTypeAdmin {
		wrongType = response.ErrAdminAccessOnly
	}

	return func(c *gin.Context) {
		claims, err := validate(auth, src.extract(c))
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, tokenErrCode(err))
			return
		}
		if claims.TokenType != want {
			response.AbortFail(c, http.StatusForbidden, wrongType)
			return
		}
		for _, check := range checks {
			if code := check(c, claims); code != "" {
				response.AbortFail(c, http.StatusForbidden, code)
				return
			}
		}
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireSessionJWT admits the holder of a session token. On routes with an
// :id param the token must belong to that session.
func RequireSessionJWT(auth *service.AuthService) gin.HandlerFunc {
	return guard(auth, fromHeaderOrQuery, service.TokenTypeSession, ownsPathSession, sameDevice)
}

// RequireAdminJWT admits the holder of an admin token.
func RequireAdminJWT(auth *service.AuthService) gin.HandlerFunc {
	return guard(auth, fromHeaderOrQuery, service.TokenTypeAdmin)
}

// RequireSessionWSAuth admits a WebSocket upgrade carrying a session token
// in ?token=.
func RequireSessionWSAuth(auth *service.AuthService) gin.HandlerFunc {
	return guard(auth, fromQuery, service.TokenTypeSession)
}

// GetClaims returns the claims stored by a guard, or nil outside one.
func GetClaims(c *gin.Context) *service.Claims {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*service.Claims)
	return claims
}

func validate(auth *service.AuthService, token string) (*service.Claims, error) {
	if token == "" {
		return nil, errNoToken
	}
	return auth.ValidateToken(token)
}

func tokenErrCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, errNoToken):
		return response.ErrTokenRequired
	case errors.Is(err, jwt.ErrTokenExpired):
		return response.ErrTokenExpired
	default:
		return response.ErrTokenInvalid
	}
}
