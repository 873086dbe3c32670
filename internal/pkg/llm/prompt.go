package llm

import (
	"fmt"
	"strings"

	"github.com/anwitac246/github-to-docs/internal/pkg/extractor"
)

const maxPromptContent = 4000

// OptimizeContent 压缩文件内容使其适配 API 限制。
// 优先保留文件前段（函数与路由定义通常在前面），仍超长时只保留定义行。
func OptimizeContent(content string) string {
	if len(content) <= maxPromptContent {
		return content
	}

	lines := strings.Split(content, "\n")
	total := len(lines)
	keepStart := total * 8 / 10
	keepEnd := total / 10

	parts := append([]string{}, lines[:keepStart]...)
	parts = append(parts, "... [TRUNCATED] ...")
	parts = append(parts, lines[total-keepEnd:]...)
	optimized := strings.Join(parts, "\n")
	if len(optimized) <= maxPromptContent {
		return optimized
	}

	// 仍然超长，只保留定义行及其上下文
	var defLines []string
	for i, line := range lines {
		if containsDefinition(line) {
			hi := min(i+3, total)
			defLines = append(defLines, lines[i:hi]...)
			if len(defLines) >= 100 {
				break
			}
		}
	}
	if len(defLines) > 0 {
		return strings.Join(defLines[:min(100, len(defLines))], "\n")
	}
	return strings.Join(lines[:min(50, total)], "\n")
}

func containsDefinition(line string) bool {
	for _, kw := range []string{"function ", "def ", "func ", "app.", "router.", "export", "class ", "@"} {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// BuildPrompt 按文件类型生成分析提示词
func BuildPrompt(fa *extractor.FileAnalysis, content string) string {
	baseInfo := fmt.Sprintf(`FILE: %s
LANGUAGE: %s
FUNCTIONS: %d
CLASSES: %d
API_ENDPOINTS: %d`,
		fa.Path, fa.Language, len(fa.Functions), len(fa.Classes), len(fa.Endpoints))

	switch {
	case len(fa.Endpoints) > 0:
		return buildAPIPrompt(baseInfo, content, fa)
	case fa.IsBackend:
		return buildServicePrompt(baseInfo, content)
	default:
		return buildGeneralPrompt(baseInfo, content)
	}
}

func buildAPIPrompt(baseInfo, content string, fa *extractor.FileAnalysis) string {
	var apiInfo strings.Builder
	fmt.Fprintf(&apiInfo, "\nAPI ENDPOINTS DETECTED: %d", len(fa.Endpoints))
	for i, ep := range fa.Endpoints {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&apiInfo, "\n- %s %s", ep.Method, ep.Path)
	}

	return fmt.Sprintf(`Analyze this API file and provide COMPLETE documentation for running and using the application:

%s%s

CODE:
`+"```"+`
%s
`+"```"+`

Provide COMPREHENSIVE analysis in this format:

SUMMARY: [Detailed description of what this API file does and its role in the application]

API_ENDPOINTS: [For EACH endpoint: purpose, required parameters with types, request/response format with examples, authentication requirements, error codes]

SETUP_INSTRUCTIONS: [Step-by-step instructions to run this API: prerequisites, environment variables, how to start the server, port information]

USAGE_EXAMPLES: [Working examples: cURL commands for each endpoint, fetch/requests snippets]

Focus on providing COMPLETE, ACTIONABLE instructions.`, baseInfo, apiInfo.String(), content)
}

func buildServicePrompt(baseInfo, content string) string {
	return fmt.Sprintf(`Analyze this backend service file and provide complete documentation:

%s

CODE:
`+"```"+`
%s
`+"```"+`

Provide analysis in this format:

SUMMARY: [What this service does and its role in the application]

KEY_FUNCTIONS: [For each important function: purpose, inputs, outputs, side effects]

SETUP_INSTRUCTIONS: [Dependencies, configuration and how this service is wired into the application]

USAGE_EXAMPLES: [How other modules call into this service]`, baseInfo, content)
}

func buildGeneralPrompt(baseInfo, content string) string {
	return fmt.Sprintf(`Analyze this code file and provide a structured description:

%s

CODE:
`+"```"+`
%s
`+"```"+`

Provide analysis in this format:

SUMMARY: [2-3 sentence description of what this file does]

KEY_FUNCTIONS: [Key functionality and responsibilities]

USAGE_EXAMPLES: [How this file fits into the overall application architecture]`, baseInfo, content)
}

// ParseSummary 把模型的分节输出拆成摘要和要点列表。
// 解析不到 SUMMARY 节时退回用文件名兜底。
func ParseSummary(path, content string) (string, []string) {
	var summary string
	var insights []string
	section := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SUMMARY:"):
			section = "summary"
			summary = strings.TrimSpace(strings.TrimPrefix(line, "SUMMARY:"))
		case strings.HasPrefix(line, "API_ENDPOINTS:"):
			section = "api_endpoints"
		case strings.HasPrefix(line, "SETUP_INSTRUCTIONS:"):
			section = "setup"
		case strings.HasPrefix(line, "USAGE_EXAMPLES:"):
			section = "usage"
		case strings.HasPrefix(line, "KEY_FUNCTIONS:"):
			section = "functions"
		case section != "" && line != "":
			if section == "summary" {
				summary += " " + line
			} else {
				insights = append(insights, fmt.Sprintf("[%s] %s", strings.ToUpper(section), line))
			}
		}
	}

	if summary == "" {
		summary = "Comprehensive analysis of " + baseName(path)
	}
	if len(insights) > 10 {
		insights = insights[:10]
	}
	return summary, insights
}

func baseName(path string) string {
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
