package logger

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLevel(t *testing.T) {
	SetLevel(slog.LevelDebug)
	if DefaultLogger == nil {
		t.Error("Expected DefaultLogger to be set")
	}

	SetLevel(slog.LevelInfo)
	if DefaultLogger == nil {
		t.Error("Expected DefaultLogger to be set")
	}

	SetLevel(slog.LevelError)
	if DefaultLogger == nil {
		t.Error("Expected DefaultLogger to be set")
	}
}

func TestSetVerbose(t *testing.T) {
	SetVerbose(true)
	if DefaultLogger == nil {
		t.Error("Expected DefaultLogger to be set after SetVerbose(true)")
	}

	SetVerbose(false)
	if DefaultLogger == nil {
		t.Error("Expected DefaultLogger to be set after SetVerbose(false)")
	}
}

func TestLogFunctions(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	Info("test message")
	Info("test with args", "key", "value")
	InfoContext(ctx, "test message", "key", "value")
	Warn("warning message", "attempt", 3)
	WarnContext(ctx, "warning message")
	Error("error message", "error", "boom")
	ErrorContext(ctx, "error message")

	SetVerbose(true)
	Debug("debug message", "key", "value")
	DebugContext(ctx, "debug message")
	SetVerbose(false)
}

func TestRedactBearerToken(t *testing.T) {
	input := "authorization failed: Bearer eyJhbGciOiJIUzI1NiJ9.payload.sig"
	result := RedactSensitiveData(input)

	if strings.Contains(result, "eyJhbGci") {
		t.Errorf("Expected bearer token to be redacted, got: %s", result)
	}
	if !strings.Contains(result, "Bearer [REDACTED]") {
		t.Errorf("Expected redaction marker, got: %s", result)
	}
}

func TestRedactStripeKey(t *testing.T) {
	input := "billing sync failed with key sk_live_abcdefghij1234567890"
	result := RedactSensitiveData(input)

	if strings.Contains(result, "abcdefghij1234567890") {
		t.Errorf("Expected key to be redacted, got: %s", result)
	}
	if !strings.Contains(result, "sk_live_...[REDACTED]") {
		t.Errorf("Expected truncated key marker, got: %s", result)
	}
}

func TestRedactPatientIdentifier(t *testing.T) {
	input := "session started for PT-2038471 in room 4"
	result := RedactSensitiveData(input)

	if strings.Contains(result, "PT-2038471") {
		t.Errorf("Expected patient identifier to be redacted, got: %s", result)
	}
	if !strings.Contains(result, "PT-[REDACTED]") {
		t.Errorf("Expected redaction marker, got: %s", result)
	}
	if !strings.Contains(result, "in room 4") {
		t.Errorf("Expected surrounding text to be preserved, got: %s", result)
	}
}

func TestRedactLeavesCleanInputAlone(t *testing.T) {
	input := "channel connected in 120ms"
	if result := RedactSensitiveData(input); result != input {
		t.Errorf("Expected clean input to pass through, got: %s", result)
	}
}
