package normalize

import (
	"testing"

	"github.com/ledgerline/statements/internal/domain"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		defaultType domain.TransactionType
		wantMinor   int64
		wantType    domain.TransactionType
		wantErr     bool
	}{
		{
			name:        "US grouping",
			input:       "1,234.56",
			defaultType: domain.TypeCredit,
			wantMinor:   123456,
			wantType:    domain.TypeCredit,
		},
		{
			name:        "European grouping",
			input:       "1.234,56",
			defaultType: domain.TypeCredit,
			wantMinor:   123456,
			wantType:    domain.TypeCredit,
		},
		{
			name:        "negative maps to debit",
			input:       "-50.00",
			defaultType: domain.TypeCredit,
			wantMinor:   5000,
			wantType:    domain.TypeDebit,
		},
		{
			name:        "parenthesis wrapping is negative",
			input:       "(25.10)",
			defaultType: domain.TypeCredit,
			wantMinor:   2510,
			wantType:    domain.TypeDebit,
		},
		{
			name:        "currency symbol stripped",
			input:       "£99.99",
			defaultType: domain.TypeDebit,
			wantMinor:   9999,
			wantType:    domain.TypeDebit,
		},
		{
			name:        "euro symbol with european decimal",
			input:       "€ 2.500,00",
			defaultType: domain.TypeCredit,
			wantMinor:   250000,
			wantType:    domain.TypeCredit,
		},
		{
			name:        "no decimals",
			input:       "1200",
			defaultType: domain.TypeCredit,
			wantMinor:   120000,
			wantType:    domain.TypeCredit,
		},
		{
			name:        "rounds to nearest minor unit",
			input:       "10.005",
			defaultType: domain.TypeCredit,
			wantMinor:   1001,
			wantType:    domain.TypeCredit,
		},
		{
			name:        "empty default falls back to credit",
			input:       "3.00",
			defaultType: "",
			wantMinor:   300,
			wantType:    domain.TypeCredit,
		},
		{
			name:    "garbage",
			input:   "n/a",
			wantErr: true,
		},
		{
			name:    "blank",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			minor, txType, err := Amount(tt.input, tt.defaultType)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Amount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if minor != tt.wantMinor {
				t.Errorf("Amount(%q) minor = %d, want %d", tt.input, minor, tt.wantMinor)
			}
			if txType != tt.wantType {
				t.Errorf("Amount(%q) type = %s, want %s", tt.input, txType, tt.wantType)
			}
		})
	}
}

func TestAmountParseErrorType(t *testing.T) {
	_, _, err := Amount("abc", domain.TypeCredit)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*domain.ParseError); !ok {
		t.Errorf("error type = %T, want *domain.ParseError", err)
	}
}
