package gen_test

import (
	"encoding/hex"
	"testing"

	"grabtube/pkg/gen"
)

func TestShortID(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{name: "default", n: 8, want: 8},
		{name: "zero clamps to one", n: 0, want: 1},
		{name: "negative clamps to one", n: -3, want: 1},
		{name: "full", n: 32, want: 32},
		{name: "too long clamps", n: 64, want: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gen.ShortID(tt.n)
			if len(got) != tt.want {
				t.Fatalf("ShortID(%d) = %q, len %d, want %d", tt.n, got, len(got), tt.want)
			}

			padded := got
			if len(padded)%2 == 1 {
				padded += "0"
			}

			if _, err := hex.DecodeString(padded); err != nil {
				t.Fatalf("ShortID(%d) = %q is not hex: %v", tt.n, got, err)
			}
		})
	}
}

func TestShortIDUnique(t *testing.T) {
	next := gen.ShortIDFunc(8)
	seen := make(map[string]struct{}, 200)

	for range 200 {
		id := next()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}

		seen[id] = struct{}{}
	}
}
