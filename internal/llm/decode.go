package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/joseph-ayodele/hr-extractor/internal/entity"
)

// ParseEmployeeJSON turns model text into a record: strip fences, sanitize, validate, unmarshal.
// It returns the cleaned JSON alongside the record; any step failing rejects the whole response.
func ParseEmployeeJSON(content string, logger *slog.Logger) (entity.EmployeeRecord, []byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	text := stripCodeFence(content)
	if text == "" {
		return entity.EmployeeRecord{}, nil, ErrEmptyResponse
	}

	cleaned, _, err := NormalizeAndSanitizeJSON([]byte(text), logger)
	if err != nil {
		return entity.EmployeeRecord{}, []byte(text), err
	}
	if err := ValidateEmployeeJSON(cleaned); err != nil {
		logger.Error("llm.extract.schema_validation_failed", "error", err,
			"bytes", len(cleaned), "keys", jsonKeys(cleaned))
		return entity.EmployeeRecord{}, cleaned, fmt.Errorf("schema validation failed: %w", err)
	}

	var out entity.EmployeeRecord
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return entity.EmployeeRecord{}, cleaned, fmt.Errorf("unmarshal fields: %w", err)
	}
	return out, cleaned, nil
}

// jsonKeys lists the top-level keys of obj; values stay out of logs.
func jsonKeys(obj []byte) []string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(obj, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
