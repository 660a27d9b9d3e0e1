package normalize

import (
	"testing"
)

func TestDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		order   DateOrder
		want    string
		wantErr bool
	}{
		{
			name:  "iso passthrough",
			input: "2024-01-13",
			want:  "2024-01-13",
		},
		{
			name:  "iso with time truncated",
			input: "2024-01-13T10:30:00Z",
			want:  "2024-01-13",
		},
		{
			name:  "first component over 12 forces day-first",
			input: "13/01/2024",
			order: MonthFirst,
			want:  "2024-01-13",
		},
		{
			name:  "second component over 12 forces month-first",
			input: "01/13/2024",
			order: DayFirst,
			want:  "2024-01-13",
		},
		{
			name:  "ambiguous honors day-first preference",
			input: "01/02/2024",
			order: DayFirst,
			want:  "2024-02-01",
		},
		{
			name:  "ambiguous honors month-first preference",
			input: "01/02/2024",
			order: MonthFirst,
			want:  "2024-01-02",
		},
		{
			name:  "dash separated",
			input: "05-03-2024",
			order: DayFirst,
			want:  "2024-03-05",
		},
		{
			name:  "dot form always day-first",
			input: "01.02.2024",
			order: MonthFirst,
			want:  "2024-02-01",
		},
		{
			name:  "textual month fallback",
			input: "15 Jan 2024",
			want:  "2024-01-15",
		},
		{
			name:    "impossible date",
			input:   "31/02/2024",
			wantErr: true,
		},
		{
			name:    "garbage",
			input:   "not a date",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Date(tt.input, tt.order)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Date(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Date(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  COFFEE   SHOP  ", "coffee shop"},
		{"Amazon\tMarketplace", "amazon marketplace"},
		{"one\n two", "one two"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Description(tt.input); got != tt.want {
				t.Errorf("Description(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
