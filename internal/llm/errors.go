package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/hr-extractor/constants"
)

// ErrEmptyResponse is returned when the model answers without any content.
var ErrEmptyResponse = errors.New("sem resposta da IA")

// GatewayError carries the provider's raw error text.
type GatewayError struct {
	Provider   string
	StatusCode int // 0 when the request never got an HTTP response
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// quotaMarkers are matched case-insensitively against the error text.
var quotaMarkers = []string{"quota", "429", "exceeded"}

// Classify maps a gateway failure onto an ErrorKind. It is the only place where
// provider error text is interpreted; nil yields "".
func Classify(err error) constants.ErrorKind {
	if err == nil {
		return ""
	}
	var gw *GatewayError
	if errors.As(err, &gw) && gw.StatusCode == http.StatusTooManyRequests {
		return constants.ErrorKindQuotaExceeded
	}
	// Go reports timeouts as "... deadline exceeded" / "Client.Timeout exceeded"; those are
	// transport failures, not provider quota signals.
	if isTimeout(err) {
		return constants.ErrorKindExtractionFailure
	}
	msg := strings.ToLower(err.Error())
	for _, m := range quotaMarkers {
		if strings.Contains(msg, m) {
			return constants.ErrorKindQuotaExceeded
		}
	}
	return constants.ErrorKindExtractionFailure
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ProviderErrorText pulls a human-readable message out of a provider error body.
// Both Gemini ({"error":{"code","message","status"}}) and OpenAI ({"error":{"message","type","code"}})
// shapes are understood; anything else is returned trimmed.
func ProviderErrorText(raw []byte) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Error.Message != "" {
		var tags []string
		if env.Error.Status != "" {
			tags = append(tags, env.Error.Status)
		}
		if env.Error.Type != "" {
			tags = append(tags, env.Error.Type)
		}
		if len(tags) > 0 {
			return strings.Join(tags, "/") + ": " + env.Error.Message
		}
		return env.Error.Message
	}
	return truncateText(strings.TrimSpace(string(raw)), maxErrorTextBytes)
}

const maxErrorTextBytes = 500

// truncateText cuts s to at most n bytes without splitting a rune.
func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
