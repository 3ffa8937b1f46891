package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/paydesk/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Insufficient balance", "Insufficient balance"},
		{"trims", "  Updated \n", "Updated"},
		{"bold", "<b>Insufficient</b> balance", "Insufficient balance"},
		{"script", "Done<script>alert('xss')</script>", "Done"},
		{"entity", "Can&#39;t approve", "Can&#39;t approve"},
		{"entity in markup", "<p>Can&#39;t approve</p>", "Can't approve"},
		{"lone less-than", "amount < 0", "amount < 0"},
		{"link", `<a href="javascript:alert(1)">click</a>`, "click"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"no tags", true},
		{"a < b", true},
		{"a > b", true},
		{"<br>", false},
		{"x <i>y</i>", false},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.in); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
