package domain

// Shopper is the resolved caller identity supplied by the auth
// collaborator: a registered user id, or an anonymous session id, never
// both. Carts are owned by exactly one of the two.
type Shopper struct {
	UserID    *string
	SessionID *string
}

// IsKnown reports whether any identity was resolved at all.
func (s Shopper) IsKnown() bool {
	return s.UserID != nil || s.SessionID != nil
}
