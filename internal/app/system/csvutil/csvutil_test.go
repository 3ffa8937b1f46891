package csvutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	err := WriteTable(&buf, []string{"ID", "Amount", "Note"}, [][]string{
		{"1", "1,250.00", "plain"},
		{"2", "-5.00", "=HYPERLINK(\"x\")"},
		{"3", "10.00", "-rm"},
	})
	if err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	want := "ID,Amount,Note\n" +
		"1,\"1,250.00\",plain\n" +
		"2,-5.00,\"'=HYPERLINK(\"\"x\"\")\"\n" +
		"3,10.00,'-rm\n"
	if got := buf.String(); got != want {
		t.Errorf("csv mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestEscapeFormula(t *testing.T) {
	tests := map[string]string{
		"":        "",
		"abc":     "abc",
		"=1+1":    "'=1+1",
		"+1":      "'+1",
		"@SUM":    "'@SUM",
		"-12.5":   "-12.5",
		"-1,000":  "-1,000",
		"-cmd":    "'-cmd",
		"-":       "'-",
		"\tx":     "'\tx",
	}
	for in, want := range tests {
		if got := EscapeFormula(in); got != want {
			t.Errorf("EscapeFormula(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadKeys_CompositeWithHeader(t *testing.T) {
	in := "\ufeffbankAccNo,bankCode\n001,BK1\n002, BK2\n\n001,BK1\n"
	keys, err := ReadKeys(strings.NewReader(in), []string{"bankAccNo", "bankCode"})
	if err != nil {
		t.Fatalf("ReadKeys: %v", err)
	}
	if diff := cmp.Diff([]string{"001|BK1", "002|BK2"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestReadKeys_SingleFieldNoHeader(t *testing.T) {
	keys, err := ReadKeys(strings.NewReader("7\n8\n9"), []string{"id"})
	if err != nil {
		t.Fatalf("ReadKeys: %v", err)
	}
	if diff := cmp.Diff([]string{"7", "8", "9"}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestReadKeys_ShortLine(t *testing.T) {
	_, err := ReadKeys(strings.NewReader("001,BK1\n002\n"), []string{"bankAccNo", "bankCode"})
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("err = %v, want a line 2 error", err)
	}
}

func TestReadKeys_Empty(t *testing.T) {
	keys, err := ReadKeys(strings.NewReader(""), []string{"id"})
	if err != nil || len(keys) != 0 {
		t.Errorf("keys = %v, err = %v", keys, err)
	}
	if _, err := ReadKeys(strings.NewReader("1"), nil); err == nil {
		t.Error("expected error without key fields")
	}
}
