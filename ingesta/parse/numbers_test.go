package parse

import (
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantPresent bool
		wantErr     bool
	}{
		{
			name:        "plain",
			input:       "123.45",
			want:        "123.45",
			wantPresent: true,
		},
		{
			name:        "comma decimal",
			input:       "123,45",
			want:        "123.45",
			wantPresent: true,
		},
		{
			name:        "annotated cell",
			input:       "123,45 (A)",
			want:        "123.45",
			wantPresent: true,
		},
		{
			name:        "european thousands",
			input:       "1.234,56",
			want:        "1234.56",
			wantPresent: true,
		},
		{
			name:        "us thousands",
			input:       "1,234.56",
			want:        "1234.56",
			wantPresent: true,
		},
		{
			name:        "repeated comma grouping",
			input:       "1,234,567",
			want:        "1234567",
			wantPresent: true,
		},
		{
			name:        "negative",
			input:       "-0,5",
			want:        "-0.5",
			wantPresent: true,
		},
		{name: "sentinel lowercase nd", input: "n.d."},
		{name: "sentinel uppercase nd", input: "N.D."},
		{name: "sentinel ne", input: "N/E"},
		{name: "sentinel dash", input: "-"},
		{name: "sentinel na", input: "N/A"},
		{name: "sentinel empty", input: ""},
		{name: "sentinel padded", input: "  n.d.  "},
		{name: "no numeric content", input: "texto", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, present, err := ParseNumber(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseNumber(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if present != tt.wantPresent {
				t.Errorf("ParseNumber(%q) present = %v, want %v", tt.input, present, tt.wantPresent)
				return
			}
			if tt.wantPresent && got.String() != tt.want {
				t.Errorf("ParseNumber(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestNormalizeSeparators(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"123,45", "123.45"},
		{"1,234,567", "1234567"},
		{"1234.5", "1234.5"},
		{"42", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := normalizeSeparators(tt.input); got != tt.want {
				t.Errorf("normalizeSeparators(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
