package llm

import (
	"context"

	"github.com/joseph-ayodele/hr-extractor/internal/entity"
)

// ExtractRequest is one document handed to the model.
type ExtractRequest struct {
	Data      []byte
	MediaType string // canonical: image/png, image/jpeg, application/pdf
	Filename  string // logging only
}

// FieldExtractor is the interface the batch pipeline depends on.
// Implementations make exactly one remote call per invocation and return a *GatewayError
// (or an error wrapping one) when the provider rejects the request.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (entity.EmployeeRecord, []byte /*rawJSON*/, error)
}
