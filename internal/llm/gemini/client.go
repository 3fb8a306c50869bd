package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/hr-extractor/internal/entity"
	"github.com/joseph-ayodele/hr-extractor/internal/llm"
)

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// ExtractFields implements llm.FieldExtractor with a single generateContent call carrying
// the document inline, the fixed instruction and a response schema.
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

	body := map[string]any{
		"contents": []map[string]any{{
			"parts": []part{
				{InlineData: &inlineData{MimeType: req.MediaType, Data: base64.StdEncoding.EncodeToString(req.Data)}},
				{Text: llm.BuildInstruction()},
			},
		}},
		"generationConfig": map[string]any{
			"responseMimeType": "application/json",
			"responseSchema":   llm.BuildGeminiResponseSchema(),
			"temperature":      c.cfg.Temperature,
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + c.cfg.Model + ":generateContent"
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}
	raw, err := c.poster.Post(ctx, rid, endpoint, headers, body)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, raw, err
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, raw, fmt.Errorf("decode gemini response: %w", err)
	}
	if gr.PromptFeedback.BlockReason != "" {
		return entity.EmployeeRecord{}, raw, &llm.GatewayError{
			Provider: provider,
			Message:  "prompt blocked: " + gr.PromptFeedback.BlockReason,
		}
	}

	var text strings.Builder
	for _, cand := range gr.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		c.log.Error("llm.extract.empty_response",
			"req_id", rid, "candidates", len(gr.Candidates),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.EmployeeRecord{}, raw, &llm.GatewayError{Provider: provider, Message: llm.ErrEmptyResponse.Error(), Err: llm.ErrEmptyResponse}
	}

	out, cleaned, err := llm.ParseEmployeeJSON(text.String(), c.log)
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
