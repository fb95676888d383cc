// ABOUTME: Classified relay failures returned to callers of Engine.Relay
// ABOUTME: Maps each failure kind to a user-facing message and HTTP status

package relay

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidRequest is returned when a relay request is missing a required field.
var ErrInvalidRequest = errors.New("invalid relay request")

// ErrorKind classifies a failed delivery.
type ErrorKind string

const (
	KindRemoteError ErrorKind = "remote_error" // agent answered with a non-2xx status
	KindTimeout     ErrorKind = "timeout"      // agent did not answer within the deadline
	KindUnreachable ErrorKind = "unreachable"  // DNS, connect or TLS failure
)

// RelayError describes why a message could not be delivered.
type RelayError struct {
	Kind         ErrorKind
	RemoteStatus int           // set for KindRemoteError
	Timeout      time.Duration // set for KindTimeout
	Detail       string        // transport detail for KindUnreachable
}

func (e *RelayError) Error() string {
	switch e.Kind {
	case KindRemoteError:
		return fmt.Sprintf("relay: agent returned status %d", e.RemoteStatus)
	case KindTimeout:
		return fmt.Sprintf("relay: agent timed out after %s", e.Timeout)
	default:
		return "relay: agent unreachable: " + e.Detail
	}
}

// UserMessage is the text shown to the person who sent the message.
func (e *RelayError) UserMessage() string {
	switch e.Kind {
	case KindRemoteError:
		return remoteErrorNotice(e.RemoteStatus)
	case KindTimeout:
		return fmt.Sprintf("agent did not respond within %s", e.Timeout)
	default:
		return "agent offline or endpoint misconfigured"
	}
}

// HTTPStatus is the status the gateway answers with.
func (e *RelayError) HTTPStatus() int {
	switch e.Kind {
	case KindRemoteError:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func remoteErrorNotice(status int) string {
	return fmt.Sprintf("agent returned an error (status %d)", status)
}
