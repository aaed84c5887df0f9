package discord

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestWrapRESTError(t *testing.T) {
	restErr := &discordgo.RESTError{
		Response:     &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
		ResponseBody: []byte(`{"code":50013,"message":"Missing Permissions","secret":"token-ish"}`),
		Message:      &discordgo.APIErrorMessage{Code: 50013, Message: "Missing Permissions"},
	}

	err := wrap("kick the member", restErr)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Status != 403 || apiErr.Code != 50013 {
		t.Fatalf("unexpected fields: %+v", apiErr)
	}
	if !errors.Is(err, restErr) {
		t.Fatalf("APIError must unwrap to the REST error")
	}

	msg := apiErr.UserMessage()
	if !strings.Contains(msg, "kick the member") || !strings.Contains(msg, "403") {
		t.Fatalf("user message lacks op or status: %q", msg)
	}
	if strings.Contains(msg, "token-ish") || strings.Contains(msg, "Missing Permissions") {
		t.Fatalf("user message leaked response body: %q", msg)
	}
}

func TestWrapRateLimitAndTransport(t *testing.T) {
	rl := &discordgo.RateLimitError{RateLimit: &discordgo.RateLimit{TooManyRequests: &discordgo.TooManyRequests{}, URL: "x"}}
	var apiErr *APIError
	if !errors.As(wrap("ban the user", rl), &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("rate limit not mapped to 429: %+v", apiErr)
	}

	if !errors.As(wrap("ban the user", errors.New("dial tcp: timeout")), &apiErr) || apiErr.Status != 0 {
		t.Fatalf("transport error should have zero status: %+v", apiErr)
	}
	if !strings.Contains(apiErr.UserMessage(), "Could not reach Discord") {
		t.Fatalf("unexpected message %q", apiErr.UserMessage())
	}
	if wrap("noop", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(&APIError{Op: "fetch the member", Status: 404}) {
		t.Fatalf("404 not detected")
	}
	if IsNotFound(&APIError{Op: "fetch the member", Status: 403}) || IsNotFound(errors.New("x")) {
		t.Fatalf("false positive")
	}
}
