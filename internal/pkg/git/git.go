package git

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const defaultCloneTimeout = 10 * time.Minute

type CloneOptions struct {
	URL       string
	TargetDir string
	Depth     int // 0 表示浅克隆 depth=1
	Timeout   time.Duration
}

// Clone 浅克隆仓库到目标目录，受 ctx 与超时双重约束
func Clone(ctx context.Context, opts CloneOptions) error {
	if opts.Timeout == 0 {
		opts.Timeout = defaultCloneTimeout
	}
	if opts.Depth <= 0 {
		opts.Depth = 1
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(opts.TargetDir), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", fmt.Sprintf("%d", opts.Depth), opts.URL, opts.TargetDir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone failed: %s, output: %s", err, string(output))
	}
	return nil
}

// ParseRepoName 从仓库 URL 提取仓库名
func ParseRepoName(url string) string {
	url = strings.TrimSuffix(url, ".git")
	url = strings.TrimSuffix(url, "/")

	re := regexp.MustCompile(`[:/]([^/:]+/[^/:]+)$`)
	matches := re.FindStringSubmatch(url)
	if len(matches) > 1 {
		parts := strings.Split(matches[1], "/")
		if len(parts) >= 2 {
			return parts[len(parts)-1]
		}
	}

	parts := strings.Split(url, "/")
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1]
	}
	return "repository"
}

func RemoveRepo(path string) error {
	return os.RemoveAll(path)
}

// NormalizeRepoURL 规整仓库 URL 并返回 host/owner/repo 形式的去重键。
// 支持 https 与 ssh 两种写法，带不带 .git 后缀视为同一仓库。
func NormalizeRepoURL(raw string) (string, string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty url")
	}

	if strings.HasPrefix(trimmed, "git@") {
		re := regexp.MustCompile(`^git@([^:]+):([^/]+)/([^/]+?)(?:\.git)?/?$`)
		matches := re.FindStringSubmatch(trimmed)
		if len(matches) != 4 {
			return "", "", fmt.Errorf("invalid ssh url")
		}
		host := strings.ToLower(matches[1])
		owner := strings.ToLower(matches[2])
		repo := strings.ToLower(matches[3])
		normalized := fmt.Sprintf("git@%s:%s/%s.git", host, owner, repo)
		key := fmt.Sprintf("%s/%s/%s", host, owner, repo)
		return normalized, key, nil
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", "", fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme")
	}
	if parsed.Host == "" {
		return "", "", fmt.Errorf("missing host")
	}

	path := strings.Trim(parsed.Path, "/")
	path = strings.TrimSuffix(path, ".git")
	if path == "" {
		return "", "", fmt.Errorf("missing repo path")
	}
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repo path")
	}
	host := strings.ToLower(parsed.Host)
	owner := strings.ToLower(parts[0])
	repo := strings.ToLower(parts[1])
	normalized := fmt.Sprintf("%s://%s/%s/%s", strings.ToLower(parsed.Scheme), host, owner, repo)
	key := fmt.Sprintf("%s/%s/%s", host, owner, repo)
	return normalized, key, nil
}

// HeadCommit 返回克隆目录 HEAD 的短提交号
func HeadCommit(repoPath string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = repoPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w, output: %s", err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// DirSizeMB 统计目录大小（MB）
func DirSizeMB(path string) (float64, error) {
	var totalSize int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		totalSize += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(totalSize) / (1024 * 1024), nil
}
