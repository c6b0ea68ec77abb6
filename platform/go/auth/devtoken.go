package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// BuildUnsignedToken assembles an alg=none JWT from the given claims. It pairs
// with UnsignedTokenVerifier for local development; nothing in production
// accepts these tokens.
func BuildUnsignedToken(claims map[string]interface{}) (string, error) {
	header := map[string]string{"alg": "none", "typ": "JWT"}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(headerJSON) + "." + enc.EncodeToString(payloadJSON) + ".", nil
}

// DevClaims returns a standard claim set for a local development principal.
func DevClaims(uid, email, name string) map[string]interface{} {
	now := time.Now()
	claims := map[string]interface{}{
		"uid":            uid,
		"sub":            uid,
		"email":          email,
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(24 * time.Hour).Unix(),
	}
	if name != "" {
		claims["name"] = name
	}
	return claims
}
