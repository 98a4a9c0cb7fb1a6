package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fastygo/taskflow/domain"
)

func mustObject(t *testing.T, body string) map[string]json.RawMessage {
	t.Helper()
	raw, err := DecodeObject([]byte(body))
	if err != nil {
		t.Fatalf("DecodeObject(%s) error = %v", body, err)
	}
	return raw
}

func TestDecodeObjectRejectsNonObjects(t *testing.T) {
	for _, body := range []string{"", "   ", "null", "[]", `"x"`, "{bad json"} {
		if _, err := DecodeObject([]byte(body)); !errors.Is(err, ErrMalformedBody) {
			t.Errorf("DecodeObject(%q) error = %v, want ErrMalformedBody", body, err)
		}
	}
}

func TestTaskNormalizes(t *testing.T) {
	raw := mustObject(t, `{
		"title": "Buy milk",
		"priority": "Low",
		"status": "Todo",
		"due_date": "2024-01-01",
		"unknown": 42
	}`)

	fields, err := Task(raw)
	if err != nil {
		t.Fatalf("Task() error = %v", err)
	}
	if fields.Status != domain.StatusToDo {
		t.Errorf("status = %q, want %q", fields.Status, domain.StatusToDo)
	}
	if fields.DueDate == nil {
		t.Fatal("due date not set")
	}
	if got := fields.DueDate.Format(time.RFC3339); got != "2024-01-01T00:00:00Z" {
		t.Errorf("due date = %s", got)
	}
	if fields.Description != nil || fields.ImageURL != nil {
		t.Errorf("absent optional fields should stay nil: %+v", fields)
	}
}

func TestTaskAcceptsTimestampAndNulls(t *testing.T) {
	raw := mustObject(t, `{
		"title": "Ship",
		"description": "release notes",
		"priority": "High",
		"status": "In Progress",
		"due_date": "2024-03-05T10:30:00+02:00",
		"image_url": null
	}`)

	fields, err := Task(raw)
	if err != nil {
		t.Fatalf("Task() error = %v", err)
	}
	if got := fields.DueDate.Format(time.RFC3339); got != "2024-03-05T08:30:00Z" {
		t.Errorf("due date = %s, want UTC normalized", got)
	}
	if fields.Description == nil || *fields.Description != "release notes" {
		t.Errorf("description = %v", fields.Description)
	}
	if fields.ImageURL != nil {
		t.Errorf("image url = %v, want nil", *fields.ImageURL)
	}
}

func TestTaskRejects(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"priority":"Low","status":"Done"}`, "title"},
		{"empty title", `{"title":"","priority":"Low","status":"Done"}`, "title"},
		{"long title", `{"title":"` + strings.Repeat("x", 121) + `","priority":"Low","status":"Done"}`, "title"},
		{"numeric title", `{"title":7,"priority":"Low","status":"Done"}`, "title"},
		{"null title", `{"title":null,"priority":"Low","status":"Done"}`, "title"},
		{"long description", `{"title":"t","description":"` + strings.Repeat("d", 2001) + `","priority":"Low","status":"Done"}`, "description"},
		{"null description", `{"title":"t","description":null,"priority":"Low","status":"Done"}`, "description"},
		{"bad priority", `{"title":"t","priority":"Urgent","status":"Done"}`, "priority"},
		{"lowercase priority", `{"title":"t","priority":"low","status":"Done"}`, "priority"},
		{"bad status", `{"title":"t","priority":"Low","status":"Blocked"}`, "status"},
		{"missing status", `{"title":"t","priority":"Low"}`, "status"},
		{"bad due date", `{"title":"t","priority":"Low","status":"Done","due_date":"tomorrow"}`, "due_date"},
		{"impossible date", `{"title":"t","priority":"Low","status":"Done","due_date":"2024-02-30"}`, "due_date"},
		{"numeric due date", `{"title":"t","priority":"Low","status":"Done","due_date":20240101}`, "due_date"},
		{"bad url", `{"title":"t","priority":"Low","status":"Done","image_url":"not a url"}`, "image_url"},
		{"empty url", `{"title":"t","priority":"Low","status":"Done","image_url":""}`, "image_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Task(mustObject(t, tt.body))
			var fe FieldErrors
			if !errors.As(err, &fe) {
				t.Fatalf("Task() error = %v, want FieldErrors", err)
			}
			if _, ok := fe[tt.field]; !ok {
				t.Errorf("errors = %v, want entry for %q", fe, tt.field)
			}
		})
	}
}

func TestRejectsNULCharacters(t *testing.T) {
	bodies := map[string]string{
		"title":       `{"title":"a\u0000b","priority":"Low","status":"Done"}`,
		"description": `{"title":"t","description":"x\u0000","priority":"Low","status":"Done"}`,
		"image_url":   `{"title":"t","image_url":"https://img/\u0000.png","priority":"Low","status":"Done"}`,
	}
	for field, body := range bodies {
		_, err := Task(mustObject(t, body))
		var fe FieldErrors
		if !errors.As(err, &fe) || fe[field] != msgNUL {
			t.Errorf("Task(%s) error = %v, want NUL error on %q", field, err, field)
		}
		_, err = TaskPatch(mustObject(t, body))
		fe = nil
		if !errors.As(err, &fe) || fe[field] != msgNUL {
			t.Errorf("TaskPatch(%s) error = %v, want NUL error on %q", field, err, field)
		}
	}
}

func TestTaskTitleCountsRunes(t *testing.T) {
	title := strings.Repeat("ж", 120)
	_, err := Task(mustObject(t, `{"title":"`+title+`","priority":"Low","status":"Done"}`))
	if err != nil {
		t.Fatalf("120-rune title rejected: %v", err)
	}
}

func TestTaskPatchOnlyPresentFields(t *testing.T) {
	patch, err := TaskPatch(mustObject(t, `{"id":"abc","status":"Todo"}`))
	if err != nil {
		t.Fatalf("TaskPatch() error = %v", err)
	}
	if patch.Status == nil || *patch.Status != domain.StatusToDo {
		t.Errorf("status = %v", patch.Status)
	}
	if patch.Title != nil || patch.Priority != nil || patch.Description != nil {
		t.Errorf("absent fields touched: %+v", patch)
	}
	if patch.IsEmpty() {
		t.Error("patch should not be empty")
	}
}

func TestTaskPatchNullsClear(t *testing.T) {
	patch, err := TaskPatch(mustObject(t, `{"due_date":null,"image_url":null}`))
	if err != nil {
		t.Fatalf("TaskPatch() error = %v", err)
	}
	if !patch.ClearDueDate || !patch.ClearImageURL {
		t.Errorf("expected clears, got %+v", patch)
	}
}

func TestTaskPatchEmpty(t *testing.T) {
	for _, body := range []string{`{}`, `{"id":"abc"}`, `{"id":"abc","user_id":"someone","color":"red"}`} {
		patch, err := TaskPatch(mustObject(t, body))
		if err != nil {
			t.Fatalf("TaskPatch(%s) error = %v", body, err)
		}
		if !patch.IsEmpty() {
			t.Errorf("TaskPatch(%s) = %+v, want empty", body, patch)
		}
	}
}

func TestTaskPatchRejects(t *testing.T) {
	tests := []struct {
		body  string
		field string
	}{
		{`{"title":""}`, "title"},
		{`{"title":null}`, "title"},
		{`{"priority":"Critical"}`, "priority"},
		{`{"status":null}`, "status"},
		{`{"image_url":"ftp:/broken path"}`, "image_url"},
		{`{"due_date":"01/02/2024"}`, "due_date"},
		{`{"description":null}`, "description"},
	}
	for _, tt := range tests {
		_, err := TaskPatch(mustObject(t, tt.body))
		var fe FieldErrors
		if !errors.As(err, &fe) {
			t.Errorf("TaskPatch(%s) error = %v, want FieldErrors", tt.body, err)
			continue
		}
		if _, ok := fe[tt.field]; !ok {
			t.Errorf("TaskPatch(%s) errors = %v, want %q", tt.body, fe, tt.field)
		}
	}
}

func TestTaskID(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{`{"id":"abc"}`, "abc", true},
		{`{"id":""}`, "", false},
		{`{"id":12}`, "", false},
		{`{}`, "", false},
	}
	for _, tt := range tests {
		got, ok := TaskID(mustObject(t, tt.body))
		if got != tt.want || ok != tt.ok {
			t.Errorf("TaskID(%s) = %q, %v; want %q, %v", tt.body, got, ok, tt.want, tt.ok)
		}
	}
}

func TestFieldErrorsMessageIsSorted(t *testing.T) {
	err := FieldErrors{"title": "is required", "priority": "bad"}
	if got := err.Error(); got != "invalid fields: priority: bad; title: is required" {
		t.Errorf("Error() = %q", got)
	}
}
