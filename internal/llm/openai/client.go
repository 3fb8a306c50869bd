package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
)

// ExtractFields implements llm.FieldExtractor using vision chat/completions in JSON mode.
// Images go as image_url parts, PDFs as file parts; both are inlined as data URLs.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (entity.EmployeeRecord, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"provider", provider,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"media_type", req.MediaType,
		"bytes", len(req.Data),
		"filename", req.Filename,
	)

	dataURL := llm.DataURL(req.Data, req.MediaType)
	var attachment map[string]any
	if req.MediaType == constants.MediaTypePDF {
		name := req.Filename
		if name == "" {
			name = "documento.pdf"
		}
		attachment = map[string]any{"type": "file", "file": map[string]any{"filename": name, "file_data": dataURL}}
	} else {
		attachment = map[string]any{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "high"}}
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": llm.BuildInstruction()},
				attachment,
			}},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := c.poster.Post(ctx, rid, endpoint, headers, body)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, raw, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, raw, &llm.GatewayError{Provider: provider, Message: llm.ErrEmptyResponse.Error(), Err: llm.ErrEmptyResponse}
	}
	msg := cc.Choices[0].Message
	if msg.Refusal != "" {
		return entity.EmployeeRecord{}, raw, &llm.GatewayError{Provider: provider, Message: "refusal: " + msg.Refusal}
	}
	if strings.TrimSpace(msg.Content) == "" {
		return entity.EmployeeRecord{}, raw, &llm.GatewayError{Provider: provider, Message: llm.ErrEmptyResponse.Error(), Err: llm.ErrEmptyResponse}
	}

	out, cleaned, err := llm.ParseEmployeeJSON(msg.Content, c.log)
	if err != nil {
		c.log.Error("llm.extract.parse_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, cleaned, err
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"nome", out.Nome != "",
		"cpf", out.CPF != "",
		"missing_required", out.MissingRequired(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, cleaned, nil
}
