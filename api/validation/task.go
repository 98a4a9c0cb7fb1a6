// Package validation turns untyped JSON request bodies into normalized domain
// values. Expected failures are returned as FieldErrors, never panics.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fastygo/taskflow/domain"
)

// ErrMalformedBody is returned when the body is not a JSON object.
var ErrMalformedBody = errors.New("malformed JSON body")

// FieldErrors maps a JSON field name to the reason it was rejected.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

var plainDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const msgNUL = "must not contain NUL characters"

// taskSchema carries the declarative rules shared by the full and partial
// task variants. Field names match the JSON keys via the json tag.
type taskSchema struct {
	Title       string  `json:"title" validate:"required,min=1,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Priority    string  `json:"priority" validate:"required,task_priority"`
	Status      string  `json:"status" validate:"required,task_status"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("task_priority", func(fl validator.FieldLevel) bool {
		return domain.Priority(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("task_status", func(fl validator.FieldLevel) bool {
		return domain.Status(fl.Field().String()).Valid()
	})
	return v
}

// DecodeObject parses body as a JSON object keyed by field name.
func DecodeObject(body []byte) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrMalformedBody
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, ErrMalformedBody
	}
	return raw, nil
}

// Task validates a full task body, as used by create and replace.
// Unknown keys are ignored.
func Task(raw map[string]json.RawMessage) (domain.TaskFields, error) {
	var (
		schema taskSchema
		fields domain.TaskFields
		errs   = FieldErrors{}
	)

	decodeString(raw, "title", &schema.Title, errs)
	decodeString(raw, "priority", &schema.Priority, errs)
	decodeString(raw, "status", &schema.Status, errs)
	schema.Status = string(domain.NormalizeStatus(schema.Status))
	schema.Description = decodeOptionalString(raw, "description", false, errs)
	schema.ImageURL = decodeOptionalString(raw, "image_url", true, errs)
	rejectEmptyURL(schema.ImageURL, errs)
	due, _ := decodeDueDate(raw, errs)

	collect(validate.Struct(schema), errs)
	if len(errs) > 0 {
		return domain.TaskFields{}, errs
	}

	fields.Title = schema.Title
	fields.Description = schema.Description
	fields.Priority = domain.Priority(schema.Priority)
	fields.Status = domain.Status(schema.Status)
	fields.DueDate = due
	fields.ImageURL = schema.ImageURL
	return fields, nil
}

// TaskPatch validates a partial task body: rules apply only to keys present.
// Keys outside the task schema, including "id", are ignored.
func TaskPatch(raw map[string]json.RawMessage) (domain.TaskPatch, error) {
	var (
		schema  taskSchema
		patch   domain.TaskPatch
		present []string
		errs    = FieldErrors{}
	)

	if _, ok := raw["title"]; ok {
		present = append(present, "Title")
		if decodeString(raw, "title", &schema.Title, errs) {
			patch.Title = &schema.Title
		}
	}
	if _, ok := raw["description"]; ok {
		present = append(present, "Description")
		schema.Description = decodeOptionalString(raw, "description", false, errs)
		patch.Description = schema.Description
	}
	if _, ok := raw["priority"]; ok {
		present = append(present, "Priority")
		if decodeString(raw, "priority", &schema.Priority, errs) {
			p := domain.Priority(schema.Priority)
			patch.Priority = &p
		}
	}
	if _, ok := raw["status"]; ok {
		present = append(present, "Status")
		if decodeString(raw, "status", &schema.Status, errs) {
			s := domain.NormalizeStatus(schema.Status)
			schema.Status = string(s)
			patch.Status = &s
		}
	}
	if _, ok := raw["image_url"]; ok {
		present = append(present, "ImageURL")
		schema.ImageURL = decodeOptionalString(raw, "image_url", true, errs)
		rejectEmptyURL(schema.ImageURL, errs)
		if schema.ImageURL == nil {
			patch.ClearImageURL = true
		} else {
			patch.ImageURL = schema.ImageURL
		}
	}
	if _, ok := raw["due_date"]; ok {
		due, set := decodeDueDate(raw, errs)
		if set && due == nil {
			patch.ClearDueDate = true
		} else {
			patch.DueDate = due
		}
	}

	if len(present) > 0 {
		collect(validate.StructPartial(schema, present...), errs)
	}
	if len(errs) > 0 {
		return domain.TaskPatch{}, errs
	}
	return patch, nil
}

// TaskID extracts the required string "id" key of a patch or delete body.
func TaskID(raw map[string]json.RawMessage) (string, bool) {
	v, ok := raw["id"]
	if !ok {
		return "", false
	}
	var id string
	if err := json.Unmarshal(v, &id); err != nil || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}

// decodeString reads a required-if-present string. null and non-strings are
// rejected. It reports whether a string was decoded.
func decodeString(raw map[string]json.RawMessage, key string, dst *string, errs FieldErrors) bool {
	v, ok := raw[key]
	if !ok {
		return false
	}
	if isNull(v) || json.Unmarshal(v, dst) != nil {
		errs[key] = "must be a string"
		return false
	}
	if hasNUL(*dst) {
		errs[key] = msgNUL
		return false
	}
	return true
}

// decodeOptionalString reads an optional string. When nullable is false a
// present null is an error; otherwise null yields nil.
func decodeOptionalString(raw map[string]json.RawMessage, key string, nullable bool, errs FieldErrors) *string {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	if isNull(v) {
		if !nullable {
			errs[key] = "must be a string"
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		errs[key] = "must be a string"
		return nil
	}
	if hasNUL(s) {
		errs[key] = msgNUL
		return nil
	}
	return &s
}

// decodeDueDate accepts YYYY-MM-DD (normalized to midnight UTC), an RFC 3339
// timestamp, or null. The second result reports whether the key was present
// and valid.
func decodeDueDate(raw map[string]json.RawMessage, errs FieldErrors) (*time.Time, bool) {
	v, ok := raw["due_date"]
	if !ok {
		return nil, false
	}
	if isNull(v) {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		errs["due_date"] = "must be a date string or null"
		return nil, false
	}
	t, err := ParseDueDate(s)
	if err != nil {
		errs["due_date"] = err.Error()
		return nil, false
	}
	return &t, true
}

// ParseDueDate normalizes a plain date or RFC 3339 timestamp to UTC.
func ParseDueDate(s string) (time.Time, error) {
	if plainDate.MatchString(s) {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q", s)
		}
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be YYYY-MM-DD or an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}

// rejectEmptyURL catches "" which the omitempty rule would otherwise let through.
func rejectEmptyURL(u *string, errs FieldErrors) {
	if u != nil && strings.TrimSpace(*u) == "" {
		errs["image_url"] = "must be a valid URL"
	}
}

// Postgres text columns cannot store NUL.
func hasNUL(s string) bool {
	return strings.IndexByte(s, 0) >= 0
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// collect folds validator output into errs without overwriting type errors
// already recorded for a field.
func collect(err error, errs FieldErrors) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return
	}
	for _, fe := range verrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs[fe.Field()] = describe(fe)
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "url":
		return "must be a valid URL"
	case "task_priority":
		return "must be one of Low, Medium, High"
	case "task_status":
		return "must be one of To Do, In Progress, Done"
	default:
		return "failed " + fe.Tag()
	}
}
