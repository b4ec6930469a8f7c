package events

import (
	"strings"
	"testing"
	"time"
)

func TestRateLimitExceeded(t *testing.T) {
	in := RateLimitExceeded("abc123", "contact-form", "penalty_block", 10*time.Minute, RequestMeta{
		IPAddress: "203.0.113.5",
		Method:    "POST",
		Path:      "/contact",
	})

	if in.Type != TypeRateLimitExceeded {
		t.Errorf("type = %q", in.Type)
	}
	if in.Severity != SeverityMedium {
		t.Errorf("severity = %q, want MEDIUM", in.Severity)
	}
	if in.ClientID != "abc123" {
		t.Errorf("clientID = %q", in.ClientID)
	}
	if in.Details["retryAfterSeconds"] != 600 {
		t.Errorf("retryAfterSeconds = %v, want 600", in.Details["retryAfterSeconds"])
	}
	if in.IPAddress != "203.0.113.5" || in.Path != "/contact" {
		t.Errorf("request meta not carried: %+v", in)
	}
}

func TestMaliciousInput_TruncatesPayload(t *testing.T) {
	payload := strings.Repeat("<script>", 200)

	in := MaliciousInput("abc123", "message", payload, TypeXSSAttempt, RequestMeta{})

	stored, _ := in.Details["payload"].(string)
	if len(stored) != maxCapturedPayload {
		t.Errorf("stored payload length = %d, want %d", len(stored), maxCapturedPayload)
	}
	if in.Severity != SeverityHigh {
		t.Errorf("severity = %q, want HIGH", in.Severity)
	}
}

func TestMaliciousInput_UnknownKindFallsBack(t *testing.T) {
	in := MaliciousInput("abc123", "email", "not-an-email", Type("SOMETHING_ELSE"), RequestMeta{})

	if in.Type != TypeInvalidInput {
		t.Errorf("type = %q, want INVALID_INPUT", in.Type)
	}
	if in.Severity != SeverityLow {
		t.Errorf("severity = %q, want LOW", in.Severity)
	}
}
