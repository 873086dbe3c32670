package git

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v error: %v, output=%s", args, err, string(output))
	}
}

func TestParseRepoName(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://github.com/acme/demo-api", "demo-api"},
		{"https://github.com/acme/demo-api.git", "demo-api"},
		{"git@github.com:acme/demo-api.git", "demo-api"},
		{"https://github.com/acme/demo-api/", "demo-api"},
	}
	for _, c := range cases {
		if got := ParseRepoName(c.url); got != c.want {
			t.Errorf("ParseRepoName(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	urlA, keyA, err := NormalizeRepoURL("https://github.com/Acme/Demo-API.git")
	if err != nil {
		t.Fatalf("NormalizeRepoURL error: %v", err)
	}
	if urlA != "https://github.com/acme/demo-api" {
		t.Errorf("normalized = %q", urlA)
	}

	_, keyB, err := NormalizeRepoURL("git@github.com:acme/demo-api.git")
	if err != nil {
		t.Fatalf("NormalizeRepoURL ssh error: %v", err)
	}
	if keyA != keyB {
		t.Errorf("https and ssh forms should share a dedup key: %q vs %q", keyA, keyB)
	}

	for _, bad := range []string{"", "ftp://example.com/a/b", "https://github.com/acme", "not a url"} {
		if _, _, err := NormalizeRepoURL(bad); err == nil {
			t.Errorf("NormalizeRepoURL(%q) should fail", bad)
		}
	}
}

func TestDirSizeMB(t *testing.T) {
	dir := t.TempDir()
	data := make([]byte, 2*1024*1024)
	if err := os.WriteFile(filepath.Join(dir, "a.bin"), data, 0644); err != nil {
		t.Fatalf("write file error: %v", err)
	}

	size, err := DirSizeMB(dir)
	if err != nil {
		t.Fatalf("DirSizeMB error: %v", err)
	}
	if math.Abs(size-2.0) > 0.05 {
		t.Fatalf("unexpected sizeMB: %.4f", size)
	}
}

func TestHeadCommit(t *testing.T) {
	dir := t.TempDir()
	cmd := exec.Command("git", "init")
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("git unavailable: %v, output=%s", err, string(output))
	}

	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "test")

	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("write file error: %v", err)
	}
	runGit(t, dir, "add", ".")
	runGit(t, dir, "commit", "-m", "init")

	commit, err := HeadCommit(dir)
	if err != nil {
		t.Fatalf("HeadCommit error: %v", err)
	}
	if commit == "" {
		t.Fatalf("commit is empty")
	}
}
