package ptr_test

import (
	"testing"

	"grabtube/pkg/ptr"
)

func of[T any](v T) *T { return &v }

func TestDeref(t *testing.T) {
	if got := ptr.Deref[int](nil); got != 0 {
		t.Fatalf("Deref(nil) = %d", got)
	}

	if got := ptr.Deref(of("x")); got != "x" {
		t.Fatalf("Deref(Of(x)) = %q", got)
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name string
		in   []*string
		want string
	}{
		{name: "none", in: nil, want: "Unknown"},
		{name: "all nil", in: []*string{nil, nil}, want: "Unknown"},
		{name: "skips empty", in: []*string{of(""), of("channel")}, want: "channel"},
		{name: "first wins", in: []*string{of("uploader"), of("channel")}, want: "uploader"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ptr.Coalesce("Unknown", tt.in...); got != tt.want {
				t.Fatalf("Coalesce() = %q, want %q", got, tt.want)
			}
		})
	}
}
