package sanitizer

import (
	"reflect"
	"testing"
)

func TestNormalizeIDs(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "trim whitespace",
			input: []string{" p1 ", "p2\t"},
			want:  []string{"p1", "p2"},
		},
		{
			name:  "remove duplicates keeping first",
			input: []string{"p2", "p1", " p2"},
			want:  []string{"p2", "p1"},
		},
		{
			name:  "filter empty and malformed",
			input: []string{"p1", "", "  ", "p 3"},
			want:  []string{"p1"},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeIDs(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeIDs(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
