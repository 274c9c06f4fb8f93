package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

const principalContextKey = "driveshare.principal"

// principal is the identity asserted by the API gateway in front of this
// service. The gateway terminates authentication and forwards trusted
// identity headers; requests arriving without them are anonymous.
type principal struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	License string
}

type IdentityMiddleware struct{}

func (m IdentityMiddleware) Handle(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if id == "" {
		c.Next()
		return
	}
	setPrincipal(c, principal{
		ID:      id,
		Name:    strings.TrimSpace(c.GetHeader("X-User-Name")),
		Email:   strings.TrimSpace(c.GetHeader("X-User-Email")),
		Phone:   strings.TrimSpace(c.GetHeader("X-User-Phone")),
		License: strings.TrimSpace(c.GetHeader("X-User-License")),
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireUser(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}
