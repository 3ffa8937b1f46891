package deskctl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/paydesk/internal/testutil"
)

// run executes deskctl against a fresh fake backend with stdin as input.
func run(t *testing.T, php *testutil.PHPServer, stdin string, args ...string) (string, error) {
	t.Helper()
	cfg := writeConfig(t, "webservices_url: "+php.BaseURL()+"\nbatch_delay: 0s\nactor: ops.tester\n")
	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func newBackend(t *testing.T, n int) (*testutil.PHPServer, *testutil.DepositTable) {
	t.Helper()
	php := testutil.NewPHPServer(t)
	table := testutil.NewDepositTable(n)
	table.Serve(php)
	return php, table
}

func TestScreensCmd(t *testing.T) {
	php, _ := newBackend(t, 1)
	out, err := run(t, php, "", "screens")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "deposits") || !strings.Contains(out, "approve*") {
		t.Errorf("output:\n%s", out)
	}
	if php.Calls("deposit/list.php") != 0 {
		t.Error("screens should not fetch anything")
	}
}

func TestListCmd(t *testing.T) {
	php, _ := newBackend(t, 30)
	out, err := run(t, php, "", "list", "deposits", "--filter", "status=0", "--sort", "amount", "--desc", "--per-page", "10")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	// header, 10 rows, status line
	if len(lines) != 12 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "29 ") {
		t.Errorf("first row = %q, want deposit 29", lines[1])
	}
	last := lines[len(lines)-1]
	if !strings.Contains(last, "rows 1-10 of 15 (filtered from 30)") || !strings.Contains(last, "sort amount desc") {
		t.Errorf("status line = %q", last)
	}
}

func TestListCmd_Errors(t *testing.T) {
	php, _ := newBackend(t, 3)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown screen", []string{"list", "payouts"}, "unknown screen"},
		{"bad filter column", []string{"list", "deposits", "-f", "amount=1"}, "filter"},
		{"bad per page", []string{"list", "deposits", "--per-page", "7"}, "per-page"},
		{"bad param", []string{"list", "deposits", "-p", "from"}, "--param"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, php, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestActCmd_ConfirmPrompt(t *testing.T) {
	php, table := newBackend(t, 3)

	out, err := run(t, php, "n\n", "act", "deposits", "1", "approve")
	if err == nil {
		t.Fatal("expected the declined prompt to fail")
	}
	if !strings.Contains(out, "Approve this deposit? [y/N]") {
		t.Errorf("no prompt in output:\n%s", out)
	}
	if php.Calls("deposit/approve.php") != 0 || table.Status("1") != "0" {
		t.Fatal("declined action was sent")
	}

	out, err = run(t, php, "y\n", "act", "deposits", "1", "approve")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Deposit approved") {
		t.Errorf("output:\n%s", out)
	}
	if table.Status("1") != "1" {
		t.Error("deposit 1 not approved")
	}
	if got := php.Payloads("deposit/approve.php")[0]["id"]; got != "1" {
		t.Errorf("payload id = %v", got)
	}
}

func TestActCmd_Validation(t *testing.T) {
	php, _ := newBackend(t, 3)
	_, err := run(t, php, "", "act", "deposits", "1", "reject")
	if err == nil || !strings.Contains(err.Error(), "Reason is required.") {
		t.Fatalf("err = %v", err)
	}
	if _, err := run(t, php, "", "act", "deposits", "1", "reject", "--field", "reason=duplicate"); err != nil {
		t.Fatal(err)
	}
	if php.Calls("deposit/reject.php") != 1 {
		t.Errorf("reject calls = %d, want 1", php.Calls("deposit/reject.php"))
	}
}

func TestBatchCmd(t *testing.T) {
	php, table := newBackend(t, 10)
	keysFile := filepath.Join(t.TempDir(), "keys.csv")
	if err := os.WriteFile(keysFile, []byte("id\n7\n9\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, php, "", "batch", "deposits", "approve", "--keys", "1,2,3", "--keys-file", keysFile, "--yes", "--size", "2")
	if err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	for _, id := range []string{"1", "3", "7", "9"} {
		if table.Status(id) != "1" {
			t.Errorf("deposit %s not approved", id)
		}
	}
	if !strings.Contains(out, "skipped") {
		t.Errorf("deposit 2 should be reported skipped:\n%s", out)
	}
	if php.Calls("deposit/approve.php") != 4 {
		t.Errorf("approve calls = %d, want 4", php.Calls("deposit/approve.php"))
	}
}

func TestBatchCmd_NoKeys(t *testing.T) {
	php, _ := newBackend(t, 2)
	if _, err := run(t, php, "", "batch", "deposits", "approve", "--yes"); err == nil {
		t.Fatal("expected error without keys")
	}
}

func TestExportCmd(t *testing.T) {
	php, _ := newBackend(t, 4)
	out, err := run(t, php, "", "export", "deposits", "-f", "status=1")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "ID,Merchant") {
		t.Errorf("header = %q", lines[0])
	}
}
