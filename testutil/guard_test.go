package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, _ ...any) { r.msg = format }

func TestIOImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"os", true},
		{"net/http", true},
		{"database/sql", true},
		{"strings", false},
		{"golang.org/x/sync/errgroup", false},
	}
	for _, c := range cases {
		if got := IOImportForbidden(c.in); got != c.want {
			t.Fatalf("IOImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInfraImportForbiddenPredicate(t *testing.T) {
	if !InfraImportForbidden("slideapp/internal/infra/blob/s3") {
		t.Fatalf("expected infra import to be forbidden")
	}
	if InfraImportForbidden("slideapp/internal/rules") {
		t.Fatalf("rules import must be allowed")
	}
}

// TestAssertNoDirectImports exercises the success path by creating a tiny temp package with safe imports.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, IOImportForbidden, "none")
}

func TestDirectImportViolationsSkipsTestsAndDirs(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"a.go":      "package tmp\nimport \"os\"\nvar _ = os.Args",
		"a_test.go": "package tmp\nimport \"net\"\nvar _ net.Conn",
		"sub/b.go":  "package sub\nimport \"net/http\"\nvar _ http.Client",
	}
	for name, src := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	viols, err := directImportViolations(dir, IOImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.HasPrefix(viols[0], "os (in a.go)") {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestDirectImportViolationsParseError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte("package"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := directImportViolations(dir, IOImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTransitiveViolationsUsesGoList(t *testing.T) {
	orig := goListDeps
	defer func() { goListDeps = orig }()
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nnet/http\n\nslideapp/internal/rules\n"), nil
	}
	viols, _, err := transitiveDependencyViolations("./...", IOImportForbidden)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(viols) != 1 || viols[0] != "net/http" {
		t.Fatalf("unexpected violations %v", viols)
	}
}

func TestFailIfViolations(t *testing.T) {
	rec := &recordingFatal{}
	failIfViolations(rec, "headline", "reason", nil)
	if rec.msg != "" {
		t.Fatalf("no violations must not fail")
	}
	failIfViolations(rec, "headline", "reason", []string{"os"})
	if rec.msg == "" {
		t.Fatalf("expected failure to be reported")
	}
}
