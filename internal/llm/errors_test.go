package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/joseph-ayodele/hr-extractor/constants"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want constants.ErrorKind
	}{
		{"nil", nil, ""},
		{"429 in text", errors.New("Error: 429 Too Many Requests"), constants.ErrorKindQuotaExceeded},
		{"quota upper case", errors.New("RESOURCE_EXHAUSTED: QUOTA reached"), constants.ErrorKindQuotaExceeded},
		{"exceeded", errors.New("You exceeded your current plan"), constants.ErrorKindQuotaExceeded},
		{"timeout text", errors.New("timeout"), constants.ErrorKindExtractionFailure},
		{"malformed", errors.New("schema validation failed"), constants.ErrorKindExtractionFailure},
		{"empty", ErrEmptyResponse, constants.ErrorKindExtractionFailure},
		{"status 429 without text", &GatewayError{Provider: "gemini", StatusCode: 429, Message: "slow down"}, constants.ErrorKindQuotaExceeded},
		{"wrapped gateway", fmt.Errorf("call: %w", &GatewayError{Provider: "openai", StatusCode: 500, Message: "quota project misconfigured"}), constants.ErrorKindQuotaExceeded},
		{"server error", &GatewayError{Provider: "gemini", StatusCode: 500, Message: "internal"}, constants.ErrorKindExtractionFailure},
		{"deadline exceeded", fmt.Errorf("post: %w", context.DeadlineExceeded), constants.ErrorKindExtractionFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestProviderErrorText(t *testing.T) {
	gemini := []byte(`{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`)
	if got := ProviderErrorText(gemini); got != "RESOURCE_EXHAUSTED: Resource has been exhausted (e.g. check quota)." {
		t.Fatalf("gemini text = %q", got)
	}
	openai := []byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`)
	if got := ProviderErrorText(openai); got != "insufficient_quota: You exceeded your current quota" {
		t.Fatalf("openai text = %q", got)
	}
	if got := ProviderErrorText([]byte("  upstream connect error  ")); got != "upstream connect error" {
		t.Fatalf("plain text = %q", got)
	}

	long := strings.Repeat("a", maxErrorTextBytes-1) + "ção"
	got := ProviderErrorText([]byte(long))
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8: %q", got[len(got)-8:])
	}
	if want := strings.Repeat("a", maxErrorTextBytes-1) + "…"; got != want {
		t.Fatalf("truncated tail = %q", got[maxErrorTextBytes-4:])
	}
}
