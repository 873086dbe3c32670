package docgen

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

// Generator 根据文件分析结果渲染 Markdown 文档
type Generator struct {
	RepoName string
	RepoURL  string
}

// Document 一份渲染完成的文档
type Document struct {
	Title    string
	Filename string
	Content  string
}

func NewGenerator(repoName, repoURL string) *Generator {
	return &Generator{RepoName: repoName, RepoURL: repoURL}
}

// GenerateAll 生成全部文档（README、API 参考、部署指南）
func (g *Generator) GenerateAll(files []*extractor.FileAnalysis) []Document {
	return []Document{
		{Title: "Project Overview", Filename: "README.md", Content: g.GenerateReadme(files)},
		{Title: "API Reference", Filename: "API_REFERENCE.md", Content: g.GenerateAPIReference(files)},
		{Title: "Setup Guide", Filename: "SETUP_GUIDE.md", Content: g.GenerateSetupGuide(files)},
	}
}

// GenerateReadme 生成项目概览文档
func (g *Generator) GenerateReadme(files []*extractor.FileAnalysis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Documentation\n\n", g.RepoName)
	if g.RepoURL != "" {
		fmt.Fprintf(&b, "Source: %s\n\n", g.RepoURL)
	}

	totalFuncs, totalClasses, totalEndpoints := 0, 0, 0
	byLang := map[string]int{}
	for _, f := range files {
		totalFuncs += len(f.Functions)
		totalClasses += len(f.Classes)
		totalEndpoints += len(f.Endpoints)
		byLang[f.Language]++
	}

	b.WriteString("## Project Statistics\n\n")
	fmt.Fprintf(&b, "- **Total Files:** %d\n", len(files))
	fmt.Fprintf(&b, "- **Total Functions:** %d\n", totalFuncs)
	fmt.Fprintf(&b, "- **Total Classes:** %d\n", totalClasses)
	fmt.Fprintf(&b, "- **API Endpoints:** %d\n\n", totalEndpoints)

	b.WriteString("## Files by Language\n\n")
	b.WriteString("| Language | Count |\n|----------|-------|\n")
	for _, lang := range sortedKeys(byLang) {
		fmt.Fprintf(&b, "| %s | %d |\n", lang, byLang[lang])
	}
	b.WriteString("\n")

	b.WriteString("## File Summaries\n\n")
	sorted := sortByPath(files)
	for _, f := range sorted {
		fmt.Fprintf(&b, "### %s\n\n", f.Path)
		fmt.Fprintf(&b, "**Language:** %s | **Functions:** %d | **Classes:** %d | **Lines:** %d\n\n",
			f.Language, len(f.Functions), len(f.Classes), f.LinesOfCode)
		if f.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", f.Summary)
		}
		if len(f.Insights) > 0 {
			b.WriteString("**Key Insights:**\n")
			for _, ins := range limitStrings(f.Insights, 3) {
				fmt.Fprintf(&b, "- %s\n", ins)
			}
			b.WriteString("\n")
		}
		b.WriteString("---\n\n")
	}

	return b.String()
}

// GenerateAPIReference 生成 API 参考文档
func (g *Generator) GenerateAPIReference(files []*extractor.FileAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s API Reference\n\n", g.RepoName)

	withEndpoints := make([]*extractor.FileAnalysis, 0)
	for _, f := range sortByPath(files) {
		if len(f.Endpoints) > 0 {
			withEndpoints = append(withEndpoints, f)
		}
	}

	if len(withEndpoints) == 0 {
		b.WriteString("No API endpoints detected in the analyzed files.\n\n")
		b.WriteString("This could mean the project does not expose REST APIs, ")
		b.WriteString("or the routes use patterns not currently detected.\n")
		return b.String()
	}

	total := 0
	for _, f := range withEndpoints {
		total += len(f.Endpoints)
	}
	fmt.Fprintf(&b, "Total endpoints: %d\n\n", total)

	for _, f := range withEndpoints {
		fmt.Fprintf(&b, "## %s\n\n", f.Path)
		if f.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", f.Summary)
		}
		b.WriteString("| Method | Path | Line |\n|--------|------|------|\n")
		for _, ep := range f.Endpoints {
			fmt.Fprintf(&b, "| %s | `%s` | %d |\n", ep.Method, ep.Path, ep.Line)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// GenerateSetupGuide 生成部署指南，汇总 LLM 提取出的安装与使用要点
func (g *Generator) GenerateSetupGuide(files []*extractor.FileAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s Setup Guide\n\n", g.RepoName)

	b.WriteString("## Quick Start\n\n")
	fmt.Fprintf(&b, "1. Clone the repository: `git clone %s`\n", g.RepoURL)
	b.WriteString("2. Install dependencies for the languages listed below\n")
	b.WriteString("3. Follow the per-file setup notes\n\n")

	setupNotes := collectTagged(files, "SETUP")
	usageNotes := collectTagged(files, "USAGE")

	if len(setupNotes) > 0 {
		b.WriteString("## Setup Notes\n\n")
		for _, n := range setupNotes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	if len(usageNotes) > 0 {
		b.WriteString("## Usage Examples\n\n")
		for _, n := range usageNotes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	backend := make([]string, 0)
	for _, f := range sortByPath(files) {
		if f.IsBackend {
			backend = append(backend, f.Path)
		}
	}
	if len(backend) > 0 {
		b.WriteString("## Backend Entry Points\n\n")
		for _, p := range backend {
			fmt.Fprintf(&b, "- `%s`\n", p)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// collectTagged 收集带指定段落标签的洞察（形如 "[SETUP_INSTRUCTIONS] ..."）
func collectTagged(files []*extractor.FileAnalysis, tag string) []string {
	var notes []string
	for _, f := range sortByPath(files) {
		for _, ins := range f.Insights {
			end := strings.Index(ins, "]")
			if !strings.HasPrefix(ins, "[") || end < 0 {
				continue
			}
			if !strings.Contains(ins[:end], tag) {
				continue
			}
			body := strings.TrimSpace(ins[end+1:])
			if body != "" {
				notes = append(notes, fmt.Sprintf("**%s**: %s", filepath.Base(f.Path), body))
			}
		}
	}
	return notes
}

func sortByPath(files []*extractor.FileAnalysis) []*extractor.FileAnalysis {
	out := make([]*extractor.FileAnalysis, len(files))
	copy(out, files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func limitStrings(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
