package main

import (
	"reflect"
	"testing"
)

func TestMissingConstraints(t *testing.T) {
	tests := []struct {
		name  string
		found []string
		want  []string
	}{
		{"complete", []string{"exam_results_total_check", "users_username_key", "exam_results_session_id_key"}, nil},
		{"no results table", []string{"users_username_key"}, []string{"exam_results_session_id_key", "exam_results_total_check"}},
		{"empty database", nil, requiredConstraints},
		{"unrelated names ignored", []string{"users_username_key", "exam_results_session_id_key", "other_check"}, []string{"exam_results_total_check"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := missingConstraints(tt.found); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("missingConstraints() = %v, want %v", got, tt.want)
			}
		})
	}
}
