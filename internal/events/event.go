package events

import "time"

// Type enumerates the security conditions worth an audit record.
type Type string

const (
	TypeRateLimitExceeded   Type = "RATE_LIMIT_EXCEEDED"
	TypeCSRFFailed          Type = "CSRF_VALIDATION_FAILED"
	TypeSuspiciousActivity  Type = "SUSPICIOUS_ACTIVITY"
	TypeBotDetected         Type = "BOT_DETECTED"
	TypeXSSAttempt          Type = "XSS_ATTEMPT"
	TypeSQLInjectionAttempt Type = "SQL_INJECTION_ATTEMPT"
	TypeInvalidInput        Type = "INVALID_INPUT"
)

// Severity of a security event.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// maxCapturedPayload bounds how much raw attacker input ends up in the
// details column.
const maxCapturedPayload = 500

// SecurityEvent is one persisted audit record. Immutable except for the
// acknowledgment fields, which only Acknowledge touches.
type SecurityEvent struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	Severity       Severity               `json:"severity"`
	Message        string                 `json:"message"`
	Details        map[string]interface{} `json:"details,omitempty"`
	IPAddress      string                 `json:"ipAddress,omitempty"`
	UserAgent      string                 `json:"userAgent,omitempty"`
	Path           string                 `json:"path,omitempty"`
	Method         string                 `json:"method,omitempty"`
	ClientID       string                 `json:"clientId,omitempty"`
	SessionID      string                 `json:"sessionId,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	Acknowledged   bool                   `json:"acknowledged"`
	AcknowledgedAt *time.Time             `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string                 `json:"acknowledgedBy,omitempty"`
}

// Input describes an event to be logged. Severity defaults to MEDIUM
// when left empty.
type Input struct {
	Type      Type
	Severity  Severity
	Message   string
	Details   map[string]interface{}
	IPAddress string
	UserAgent string
	Path      string
	Method    string
	ClientID  string
	SessionID string
}

// RequestMeta carries the optional request context attached to an
// event by the convenience constructors.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	Path      string
	Method    string
	SessionID string
}

func (m RequestMeta) fill(in Input) Input {
	in.IPAddress = m.IPAddress
	in.UserAgent = m.UserAgent
	in.Path = m.Path
	in.Method = m.Method
	in.SessionID = m.SessionID
	return in
}

// RateLimitExceeded builds the event recorded when a client trips a
// rate limit. reason distinguishes ordinary blocks from penalty blocks.
func RateLimitExceeded(clientID, category, reason string, retryAfter time.Duration, meta RequestMeta) Input {
	return meta.fill(Input{
		Type:     TypeRateLimitExceeded,
		Severity: SeverityMedium,
		Message:  "rate limit exceeded for category " + category,
		ClientID: clientID,
		Details: map[string]interface{}{
			"category":          category,
			"reason":            reason,
			"retryAfterSeconds": int(retryAfter.Seconds()),
		},
	})
}

// CSRFFailure builds the event for a failed CSRF token validation.
func CSRFFailure(clientID string, meta RequestMeta) Input {
	return meta.fill(Input{
		Type:     TypeCSRFFailed,
		Severity: SeverityHigh,
		Message:  "CSRF token validation failed",
		ClientID: clientID,
	})
}

// SuspiciousActivity builds a generic suspicious-condition event.
func SuspiciousActivity(clientID, description string, severity Severity, meta RequestMeta) Input {
	return meta.fill(Input{
		Type:     TypeSuspiciousActivity,
		Severity: severity,
		Message:  description,
		ClientID: clientID,
	})
}

// BotDetected builds the event for automated-client detection.
func BotDetected(clientID, indicator string, meta RequestMeta) Input {
	return meta.fill(Input{
		Type:     TypeBotDetected,
		Severity: SeverityMedium,
		Message:  "bot activity detected",
		ClientID: clientID,
		Details: map[string]interface{}{
			"indicator": indicator,
		},
	})
}

// MaliciousInput builds the event for payloads matching an attack
// pattern. kind selects the specific type (XSS, SQL injection, or
// generic invalid input) and the captured payload is truncated so the
// audit trail never stores unbounded attacker input.
func MaliciousInput(clientID, field, payload string, kind Type, meta RequestMeta) Input {
	switch kind {
	case TypeXSSAttempt, TypeSQLInjectionAttempt, TypeInvalidInput:
	default:
		kind = TypeInvalidInput
	}

	severity := SeverityHigh
	if kind == TypeInvalidInput {
		severity = SeverityLow
	}

	return meta.fill(Input{
		Type:     kind,
		Severity: severity,
		Message:  "malicious input detected in field " + field,
		ClientID: clientID,
		Details: map[string]interface{}{
			"field":   field,
			"payload": truncate(payload, maxCapturedPayload),
		},
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
