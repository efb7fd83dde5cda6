// Package identity provides actor identity extraction and propagation for the
// baseline registry. Authentication itself is delegated to a fronting proxy
// or token issuer; this package only resolves who is calling.
package identity

import "context"

// CompanyRole mirrors baseline.CompanyRole without importing it; the two are
// kept string-compatible.
type CompanyRole string

const (
	RoleOwner    CompanyRole = "OWNER"
	RoleOrgAdmin CompanyRole = "ORG_ADMIN"
	RoleMember   CompanyRole = "MEMBER"
)

// Identity represents the authenticated actor making a request.
type Identity struct {
	UserID      string
	CompanyID   string
	CompanyRole CompanyRole
}

// identityCtxKey is an unexported type used as the context key for Identity.
type identityCtxKey struct{}

// WithIdentity returns a new context with the given Identity attached.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// FromContext retrieves the Identity from the context.
// Returns the zero value and false if no identity is set.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// normalizeRole maps arbitrary role strings onto a known CompanyRole,
// defaulting to MEMBER.
func normalizeRole(s string) CompanyRole {
	switch CompanyRole(s) {
	case RoleOwner:
		return RoleOwner
	case RoleOrgAdmin:
		return RoleOrgAdmin
	default:
		return RoleMember
	}
}
