// Package auth decodes the `auth` payload that the browser carries in the
// WebSocket query string and in the auth cookie.
package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingAuth      = errors.New("auth: missing auth payload")
	ErrMalformedAuth    = errors.New("auth: malformed auth payload")
	ErrMissingUsername  = errors.New("auth: payload has no username")
	ErrInvalidSignature = errors.New("auth: invalid signature")
)

type Payload struct {
	Username  string `json:"username"`
	Role      string `json:"role,omitempty"`
	Signature string `json:"signature,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Parse decodes the JSON object in raw. Values that are still URL-encoded
// (cookies) are unescaped first; query values arrive already decoded.
func Parse(raw string) (*Payload, error) {
	decoded := strings.TrimSpace(raw)
	if decoded == "" {
		return nil, ErrMissingAuth
	}

	if !strings.HasPrefix(decoded, "{") {
		var err error
		if decoded, err = url.QueryUnescape(decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAuth, err)
		}
	}

	var p Payload
	if err := json.Unmarshal([]byte(decoded), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAuth, err)
	}
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return nil, ErrMissingUsername
	}
	if strings.Contains(p.Username, ":") {
		return nil, fmt.Errorf("%w: username %q contains ':'", ErrMalformedAuth, p.Username)
	}
	return &p, nil
}

// Verifier resolves a raw payload to a Payload. With a secret it also requires
// Signature to be an HS256 token whose subject is the payload's username.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

func (v *Verifier) Verify(raw string) (*Payload, error) {
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if !v.Enabled() {
		return p, nil
	}
	if p.Signature == "" {
		return nil, ErrInvalidSignature
	}

	token, err := jwt.ParseWithClaims(p.Signature, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSignature
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub != p.Username {
		return nil, ErrInvalidSignature
	}
	return p, nil
}

// Sign issues the signature for username; the auth cookie issuer and tests use it.
func (v *Verifier) Sign(username string) (string, error) {
	claims := jwt.RegisteredClaims{Subject: username}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
