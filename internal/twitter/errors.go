package twitter

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUserNotFound is returned when the requested account does not exist or
// is not accessible.
var ErrUserNotFound = errors.New("user not found")

// HTTPError is a non-2xx response from the scraping API.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twitter api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("twitter api: status %d: %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err looks like a credential rejection:
// HTTP 401/403, or an "authenticate" marker anywhere in the message. Expired
// cookie sessions surface both ways depending on the endpoint.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var he *HTTPError
	if errors.As(err, &he) {
		if he.StatusCode == http.StatusUnauthorized || he.StatusCode == http.StatusForbidden {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "authenticate")
}

// IsNotFound reports whether err means the target account is gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}
