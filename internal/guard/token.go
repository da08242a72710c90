package guard

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Versioned is implemented by every entity that carries a version token.
// VersionClaims must list every stored field value so that any change to
// the entity changes the token.
type Versioned interface {
	VersionClaims() map[string]any
}

// Signer derives version tokens from entity content.  A token is the HS256
// signature over the canonical JSON of the entity's claims, encoded as
// unpadded base64url.  Tokens are never stored: they are recomputed from
// the current state whenever they are needed.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer keyed with secret.
func NewSigner(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// signingString serializes claims canonically.  encoding/json writes map
// keys in sorted order, so equal claims always give equal bytes.
func signingString(v Versioned) (string, error) {
	b, err := json.Marshal(v.VersionClaims())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Token returns the version token of v.
func (s *Signer) Token(v Versioned) (string, error) {
	str, err := signingString(v)
	if err != nil {
		return "", err
	}
	sig, err := jwt.SigningMethodHS256.Sign(str, s.key)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// Matches reports whether token is the current version token of v.  The
// comparison is constant-time.
func (s *Signer) Matches(v Versioned, token string) bool {
	sig, err := base64.RawURLEncoding.DecodeString(Normalize(token))
	if err != nil {
		return false
	}
	str, err := signingString(v)
	if err != nil {
		return false
	}
	return jwt.SigningMethodHS256.Verify(str, sig, s.key) == nil
}

// Normalize extracts the raw token from an If-Match or ETag header value,
// dropping a weak prefix and the surrounding quotes.
func Normalize(header string) string {
	t := strings.TrimSpace(header)
	t = strings.TrimPrefix(t, "W/")
	return strings.Trim(t, `"`)
}

// Quote renders a token as an ETag header value.
func Quote(token string) string {
	return `"` + token + `"`
}
