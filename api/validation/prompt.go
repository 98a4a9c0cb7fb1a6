package validation

import (
	"encoding/json"
)

type suggestSchema struct {
	Context string `json:"context" validate:"required,min=1,max=1000"`
}

type imageSchema struct {
	Prompt string `json:"prompt" validate:"required,min=1,max=300"`
}

// SuggestContext validates the body of a suggestion request and returns its
// context string.
func SuggestContext(raw map[string]json.RawMessage) (string, error) {
	var (
		schema suggestSchema
		errs   = FieldErrors{}
	)
	decodeString(raw, "context", &schema.Context, errs)
	collect(validate.Struct(schema), errs)
	if len(errs) > 0 {
		return "", errs
	}
	return schema.Context, nil
}

// ImagePrompt validates the body of an image generation request and returns
// its prompt.
func ImagePrompt(raw map[string]json.RawMessage) (string, error) {
	var (
		schema imageSchema
		errs   = FieldErrors{}
	)
	decodeString(raw, "prompt", &schema.Prompt, errs)
	collect(validate.Struct(schema), errs)
	if len(errs) > 0 {
		return "", errs
	}
	return schema.Prompt, nil
}
