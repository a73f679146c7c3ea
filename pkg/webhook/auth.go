package webhook

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization header")
	ErrInvalidAuthorization = errors.New("invalid authorization header")
	ErrInvalidToken         = errors.New("invalid token")
)

// authenticate accepts any request when no token is configured.
func authenticate(token string, r *http.Request) error {
	if token == "" {
		return nil
	}

	header := r.Header.Get("Authorization")

	if header == "" {
		return ErrMissingAuthorization
	}

	if !strings.HasPrefix(header, "Bearer ") {
		return ErrInvalidAuthorization
	}

	val := strings.TrimPrefix(header, "Bearer ")

	if subtle.ConstantTimeCompare([]byte(val), []byte(token)) != 1 {
		return ErrInvalidToken
	}

	return nil
}
