package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// APIError is a failed REST call. Status is zero when no response arrived.
type APIError struct {
	Op      string
	Status  int
	Code    int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("discord %s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("discord %s: HTTP %d (code %d): %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("discord %s: HTTP %d", e.Op, e.Status)
}

func (e *APIError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the invoking user. It names the
// operation and status but never echoes Discord's response body.
func (e *APIError) UserMessage() string {
	switch e.Status {
	case 0:
		return fmt.Sprintf("Could not reach Discord to %s. Please try again.", e.Op)
	case http.StatusForbidden:
		return fmt.Sprintf("Discord rejected the request to %s (HTTP 403). Check my role position and permissions.", e.Op)
	case http.StatusTooManyRequests:
		return fmt.Sprintf("Discord rate limited the request to %s (HTTP 429). Please try again shortly.", e.Op)
	default:
		return fmt.Sprintf("Discord rejected the request to %s (HTTP %d).", e.Op, e.Status)
	}
}

// IsNotFound reports whether err is a 404 from Discord.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// wrap converts discordgo errors into *APIError.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Op: op, Err: err}

	var restErr *discordgo.RESTError
	var rateErr *discordgo.RateLimitError
	switch {
	case errors.As(err, &restErr):
		if restErr.Response != nil {
			apiErr.Status = restErr.Response.StatusCode
		}
		if restErr.Message != nil {
			apiErr.Code = restErr.Message.Code
			apiErr.Message = restErr.Message.Message
		}
	case errors.As(err, &rateErr):
		apiErr.Status = http.StatusTooManyRequests
	}
	return apiErr
}
