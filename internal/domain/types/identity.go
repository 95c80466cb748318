package types

// Profile is the local user as supplied by the identity provider.
type Profile struct {
	UserID      UserID `json:"user_id"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
}
