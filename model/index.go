package model

// TokenClaim là thông tin lấy từ access token
type TokenClaim struct {
	UserId   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Scope is the access decision for order reads and writes. An owner scope
// only sees the user's own orders, an admin scope sees every order.
type Scope struct {
	UserID string
	Admin  bool
}

func OwnerScope(userID string) Scope {
	return Scope{UserID: userID}
}

func AdminScope() Scope {
	return Scope{Admin: true}
}

// OwnerFilter returns the user id queries must be narrowed to, or "" for
// an admin scope.
func (s Scope) OwnerFilter() string {
	if s.Admin {
		return ""
	}
	return s.UserID
}

// Allows reports whether the scope may access an order owned by ownerID.
// A non-admin scope without a user id allows nothing.
func (s Scope) Allows(ownerID string) bool {
	if s.Admin {
		return true
	}
	return s.UserID != "" && s.UserID == ownerID
}
