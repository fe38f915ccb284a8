package content

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

const repairPrompt = `The previous response you sent was not valid JSON. Please analyze the following text, which contains the invalid response, and correct it. The corrected response MUST be a single, valid JSON object that conforms to the required structure. Do not include any explanatory text or apologies.

Required structure:
%s

Invalid response:
%s
`

// ParseError reports a response that could not be decoded as JSON, after the
// repair round-trip when one was attempted.
type ParseError struct {
	Topic    string
	Attempts int
	Raw      string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("content: %s: response is not valid JSON after %d attempt(s): %v", e.Topic, e.Attempts, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode parses a single response without any repair.
func Decode(topic, raw string, target any) error {
	if err := decode(raw, target); err != nil {
		return &ParseError{Topic: topic, Attempts: 1, Raw: raw, Err: err}
	}
	return nil
}

// GenerateJSON runs req and decodes the reply into target. A reply that does
// not parse is sent back once for repair; if the repaired reply still does not
// parse the call fails with a *ParseError. target is only assigned from a reply
// that decoded in full, so nothing from a rejected reply leaks into it.
func GenerateJSON(ctx context.Context, svc Service, req TextRequest, target any) error {
	raw, err := svc.GenerateText(ctx, req)
	if err != nil {
		return fmt.Errorf("content: %s: %w", req.Topic(), err)
	}
	if err := decode(raw, target); err == nil {
		return nil
	}
	repaired, err := svc.GenerateText(ctx, RepairRequest(req, raw))
	if err != nil {
		return fmt.Errorf("content: %s: repair: %w", req.Topic(), err)
	}
	if err := decode(repaired, target); err != nil {
		return &ParseError{Topic: req.Topic(), Attempts: 2, Raw: repaired, Err: err}
	}
	return nil
}

// RepairRequest builds the follow-up request that asks the backend to fix a
// malformed reply. The original prompt is carried along so the backend knows
// the required structure.
func RepairRequest(original TextRequest, raw string) TextRequest {
	return TextRequest{
		Step:      original.Step,
		Subject:   original.Subject,
		Index:     original.Index,
		Repair:    true,
		System:    original.System,
		Prompt:    fmt.Sprintf(repairPrompt, original.Prompt, raw),
		MaxTokens: original.MaxTokens,
	}
}

// StripFences removes markdown code fences and any prose surrounding the
// outermost JSON value.
func StripFences(raw string) string {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```json")
		clean = strings.TrimPrefix(clean, "```JSON")
		clean = strings.TrimPrefix(clean, "```")
		clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
		clean = strings.TrimSpace(clean)
	}
	start := strings.IndexAny(clean, "{[")
	if start < 0 {
		return clean
	}
	closer := "}"
	if clean[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(clean, closer)
	if end < start {
		return clean
	}
	return clean[start : end+1]
}

// decode unmarshals into a fresh value and copies it into target only on
// success. json.Unmarshal leaves target half filled on a type mismatch.
func decode(raw string, target any) error {
	clean := StripFences(raw)
	if clean == "" {
		return ErrEmptyResponse
	}
	dst := reflect.ValueOf(target)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return json.Unmarshal([]byte(clean), target)
	}
	scratch := reflect.New(dst.Elem().Type())
	if err := json.Unmarshal([]byte(clean), scratch.Interface()); err != nil {
		return err
	}
	dst.Elem().Set(scratch.Elem())
	return nil
}
