package postgres

import (
	"reflect"
	"testing"
	"time"

	"github.com/fastygo/taskflow/domain"
)

func TestPatchAssignments(t *testing.T) {
	title := "Buy oat milk"
	status := domain.StatusDone
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		patch    domain.TaskPatch
		wantSets []string
		wantArgs []interface{}
	}{
		{
			name:     "empty",
			patch:    domain.TaskPatch{},
			wantSets: nil,
			wantArgs: nil,
		},
		{
			name:     "title and status",
			patch:    domain.TaskPatch{Title: &title, Status: &status},
			wantSets: []string{"title = $3", "status = $4"},
			wantArgs: []interface{}{title, "Done"},
		},
		{
			name:     "due date set",
			patch:    domain.TaskPatch{DueDate: &due},
			wantSets: []string{"due_date = $3"},
			wantArgs: []interface{}{due},
		},
		{
			name:     "clears win over values",
			patch:    domain.TaskPatch{DueDate: &due, ClearDueDate: true, ClearImageURL: true},
			wantSets: []string{"due_date = $3", "image_url = $4"},
			wantArgs: []interface{}{nil, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, args := patchAssignments(tt.patch)
			if !reflect.DeepEqual(sets, tt.wantSets) {
				t.Errorf("sets = %v, want %v", sets, tt.wantSets)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	if got := clampLimit(0); got != nil {
		t.Errorf("clampLimit(0) = %v, want nil", got)
	}
	if got := clampLimit(25); got != 25 {
		t.Errorf("clampLimit(25) = %v, want 25", got)
	}
}
