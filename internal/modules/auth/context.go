package auth

import "github.com/gin-gonic/gin"

const identityKey = "identity"

// SetIdentity stores the verified caller on the request. user_id and role
// are kept as plain keys for request logging.
func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
	c.Set("user_id", id.UserID)
	c.Set("role", string(id.Role))
}

func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok && id != nil
}

// MustIdentity returns the caller set by the auth middleware. Routes using
// it are only mounted behind that middleware.
func MustIdentity(c *gin.Context) *Identity {
	id, ok := IdentityFrom(c)
	if !ok {
		panic("auth: identity missing from context")
	}
	return id
}
