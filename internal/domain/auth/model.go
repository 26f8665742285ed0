package auth

import "time"

// UserSession binds a session token to the user name that established it.
// The lock protocol trusts this binding, not a per-lock secret.
type UserSession struct {
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
}

// AdminSession is a privileged bearer token with a hard expiry.
type AdminSession struct {
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// User is the identity returned to a successful login.
type User struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}
