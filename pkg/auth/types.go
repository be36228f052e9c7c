package auth

// Role is the account role stored on the user record
type Role string

const (
	RoleParent Role = "parent" // Orders lunches for their children
	RoleAdmin  Role = "admin"  // Manages schools and off-days
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleAdmin
}

// Identity is what a verified ID token says about the caller
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

// Principal is the authenticated account attached to a request
type Principal struct {
	UserID  string
	Subject string
	Email   string
	Role    Role
}

// IsAdmin reports whether the principal may use the admin endpoints
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
