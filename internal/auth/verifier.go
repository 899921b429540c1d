package auth

// Verifier checks that a token was issued to a given user.
type Verifier struct {
	cfg *JWTConfig
}

// NewVerifier creates a verifier for HS256 tokens signed with cfg.Secret.
func NewVerifier(cfg *JWTConfig) *Verifier {
	return &Verifier{cfg: cfg}
}

// Verify returns nil if token is valid and belongs to userID. The user is
// taken from the user_id claim, falling back to the subject.
func (v *Verifier) Verify(token, userID string) error {
	if token == "" {
		return ErrMissingToken
	}
	claims, err := ValidateToken(v.cfg, token)
	if err != nil {
		return err
	}
	owner := claims.UserID
	if owner == "" {
		owner = claims.Subject
	}
	if owner == "" || owner != userID {
		return ErrUserMismatch
	}
	return nil
}
