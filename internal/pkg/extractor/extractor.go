package extractor

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FunctionInfo 提取到的函数定义
type FunctionInfo struct {
	Name       string   `json:"name"`
	Parameters []string `json:"parameters"`
	ReturnType string   `json:"return_type,omitempty"`
	Line       int      `json:"line"`
}

// ClassInfo 提取到的类/类型定义
type ClassInfo struct {
	Name string `json:"name"`
	Base string `json:"base,omitempty"`
	Line int    `json:"line"`
}

// ImportInfo 提取到的外部依赖
type ImportInfo struct {
	Module string `json:"module"`
	Line   int    `json:"line"`
}

// APIEndpoint 提取到的路由定义
type APIEndpoint struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Framework string `json:"framework"`
	Line      int    `json:"line"`
}

// FileAnalysis 单个文件的结构化分析结果。
// Summary/Insights 由 LLM 处理阶段就地填充；
// EnrichError 记录跳过模式下该文件重试耗尽的原因。
type FileAnalysis struct {
	Path        string         `json:"path"`
	Language    string         `json:"language"`
	Content     string         `json:"-"`
	LinesOfCode int            `json:"lines_of_code"`
	Functions   []FunctionInfo `json:"functions"`
	Classes     []ClassInfo    `json:"classes"`
	Imports     []ImportInfo   `json:"imports"`
	Endpoints   []APIEndpoint  `json:"endpoints"`
	IsBackend   bool           `json:"is_backend"`
	Purpose     string         `json:"purpose"`
	Summary     string         `json:"summary,omitempty"`
	Insights    []string       `json:"insights,omitempty"`
	EnrichError string         `json:"enrich_error,omitempty"`
}

var languageExtensions = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".php":  "php",
	".rs":   "rust",
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".next":        true,
}

// DetectLanguage 按扩展名识别语言，未知返回空串
func DetectLanguage(filename string) string {
	return languageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ShouldSkipDir 判断目录是否跳过扫描
func ShouldSkipDir(dirname string) bool {
	return skipDirs[dirname]
}

// IsConfigFile 判断是否纯配置/清单类文件，这类文件不值得 LLM 分析
func IsConfigFile(path string) bool {
	lower := strings.ToLower(path)
	base := filepath.Base(lower)
	switch filepath.Ext(base) {
	case ".json", ".yaml", ".yml", ".toml", ".ini", ".lock":
		return true
	}
	return strings.Contains(base, "config") || strings.Contains(base, ".config.")
}

var (
	pyFuncPattern    = regexp.MustCompile(`(?m)^\s*def\s+(\w+)\s*\(([^)]*)\)\s*(?:->\s*([^:]+))?:`)
	pyClassPattern   = regexp.MustCompile(`(?m)^\s*class\s+(\w+)(?:\(([^)]*)\))?:`)
	pyImportPattern  = regexp.MustCompile(`(?m)^(?:from\s+(\w+)|import\s+(\w+))`)
	jsFuncPatterns   []*regexp.Regexp
	jsClassPattern   = regexp.MustCompile(`(?m)class\s+(\w+)(?:\s+extends\s+(\w+))?`)
	jsImportPatterns []*regexp.Regexp
	goFuncPattern    = regexp.MustCompile(`(?m)^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(([^)]*)\)`)
	goTypePattern    = regexp.MustCompile(`(?m)^type\s+(\w+)\s+struct\b`)
	goImportPattern  = regexp.MustCompile(`(?m)^\s*(?:\w+\s+)?"([^"]+)"`)

	flaskRoutePattern   = regexp.MustCompile(`(?i)@app\.route\s*\(\s*["']([^"']+)["'](?:[^)]*methods\s*=\s*\[([^\]]+)\])?`)
	fastapiRoutePattern = regexp.MustCompile(`(?i)@(?:app|router)\.(get|post|put|delete|patch)\s*\(\s*["']([^"']+)["']`)
	expressRoutePattern = regexp.MustCompile(`(?i)(?:app|router)\.(get|post|put|delete|patch)\s*\(\s*["']([^"']+)["']`)
	ginRoutePattern     = regexp.MustCompile(`\.(GET|POST|PUT|DELETE|PATCH)\s*\(\s*"([^"]+)"`)
)

func init() {
	jsFuncPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:async\s+)?function\s+(\w+)\s*\(([^)]*)\)`),
		regexp.MustCompile(`(\w+)\s*=\s*function\s*\(([^)]*)\)`),
		regexp.MustCompile(`(\w+)\s*=\s*(?:async\s*)?\(([^)]*)\)\s*=>`),
	}
	jsImportPatterns = []*regexp.Regexp{
		regexp.MustCompile(`import\s+.*?from\s+["']([^"']+)["']`),
		regexp.MustCompile(`require\s*\(\s*["']([^"']+)["']\s*\)`),
	}
}

// Extract 对单个文件做正则结构提取
func Extract(path, content, language string) *FileAnalysis {
	fa := &FileAnalysis{
		Path:        path,
		Language:    language,
		Content:     content,
		LinesOfCode: countNonEmptyLines(content),
	}

	switch language {
	case "python":
		extractPython(content, fa)
	case "javascript", "typescript":
		extractJavaScript(content, fa)
	case "go":
		extractGo(content, fa)
	}
	fa.Endpoints = extractEndpoints(content)
	fa.IsBackend = isBackendFile(path, content)
	fa.Purpose = determinePurpose(path)
	return fa
}

func extractPython(content string, fa *FileAnalysis) {
	for _, m := range pyFuncPattern.FindAllStringSubmatchIndex(content, -1) {
		name := content[m[2]:m[3]]
		params := splitParams(sliceAt(content, m, 2))
		ret := strings.TrimSpace(sliceAt(content, m, 3))
		fa.Functions = append(fa.Functions, FunctionInfo{
			Name:       name,
			Parameters: params,
			ReturnType: ret,
			Line:       lineAt(content, m[0]),
		})
	}
	for _, m := range pyClassPattern.FindAllStringSubmatchIndex(content, -1) {
		fa.Classes = append(fa.Classes, ClassInfo{
			Name: content[m[2]:m[3]],
			Base: sliceAt(content, m, 2),
			Line: lineAt(content, m[0]),
		})
	}
	for _, m := range pyImportPattern.FindAllStringSubmatchIndex(content, -1) {
		mod := sliceAt(content, m, 1)
		if mod == "" {
			mod = sliceAt(content, m, 2)
		}
		if mod != "" && !stdlibPython[mod] {
			fa.Imports = append(fa.Imports, ImportInfo{Module: mod, Line: lineAt(content, m[0])})
		}
	}
}

func extractJavaScript(content string, fa *FileAnalysis) {
	seen := map[string]bool{}
	for _, p := range jsFuncPatterns {
		for _, m := range p.FindAllStringSubmatchIndex(content, -1) {
			name := content[m[2]:m[3]]
			if seen[name] {
				continue
			}
			seen[name] = true
			fa.Functions = append(fa.Functions, FunctionInfo{
				Name:       name,
				Parameters: splitParams(sliceAt(content, m, 2)),
				Line:       lineAt(content, m[0]),
			})
		}
	}
	for _, m := range jsClassPattern.FindAllStringSubmatchIndex(content, -1) {
		fa.Classes = append(fa.Classes, ClassInfo{
			Name: content[m[2]:m[3]],
			Base: sliceAt(content, m, 2),
			Line: lineAt(content, m[0]),
		})
	}
	for _, p := range jsImportPatterns {
		for _, m := range p.FindAllStringSubmatchIndex(content, -1) {
			mod := content[m[2]:m[3]]
			if strings.HasPrefix(mod, ".") || strings.HasPrefix(mod, "/") {
				continue
			}
			fa.Imports = append(fa.Imports, ImportInfo{
				Module: strings.Split(mod, "/")[0],
				Line:   lineAt(content, m[0]),
			})
		}
	}
}

func extractGo(content string, fa *FileAnalysis) {
	for _, m := range goFuncPattern.FindAllStringSubmatchIndex(content, -1) {
		fa.Functions = append(fa.Functions, FunctionInfo{
			Name:       content[m[2]:m[3]],
			Parameters: splitParams(sliceAt(content, m, 2)),
			Line:       lineAt(content, m[0]),
		})
	}
	for _, m := range goTypePattern.FindAllStringSubmatchIndex(content, -1) {
		fa.Classes = append(fa.Classes, ClassInfo{
			Name: content[m[2]:m[3]],
			Line: lineAt(content, m[0]),
		})
	}
	if block := extractGoImportBlock(content); block != "" {
		for _, m := range goImportPattern.FindAllStringSubmatch(block, -1) {
			fa.Imports = append(fa.Imports, ImportInfo{Module: m[1]})
		}
	}
}

func extractGoImportBlock(content string) string {
	start := strings.Index(content, "import (")
	if start < 0 {
		return ""
	}
	end := strings.Index(content[start:], ")")
	if end < 0 {
		return ""
	}
	return content[start : start+end]
}

func extractEndpoints(content string) []APIEndpoint {
	var endpoints []APIEndpoint

	for _, m := range flaskRoutePattern.FindAllStringSubmatchIndex(content, -1) {
		path := content[m[2]:m[3]]
		methods := []string{"GET"}
		if raw := sliceAt(content, m, 2); raw != "" {
			methods = methods[:0]
			for _, meth := range strings.Split(raw, ",") {
				methods = append(methods, strings.ToUpper(strings.Trim(strings.TrimSpace(meth), `"'`)))
			}
		}
		for _, meth := range methods {
			endpoints = append(endpoints, APIEndpoint{
				Method: meth, Path: path, Framework: "Flask", Line: lineAt(content, m[0]),
			})
		}
	}
	for _, m := range fastapiRoutePattern.FindAllStringSubmatchIndex(content, -1) {
		endpoints = append(endpoints, APIEndpoint{
			Method:    strings.ToUpper(content[m[2]:m[3]]),
			Path:      content[m[4]:m[5]],
			Framework: "FastAPI",
			Line:      lineAt(content, m[0]),
		})
	}
	for _, m := range expressRoutePattern.FindAllStringSubmatchIndex(content, -1) {
		endpoints = append(endpoints, APIEndpoint{
			Method:    strings.ToUpper(content[m[2]:m[3]]),
			Path:      content[m[4]:m[5]],
			Framework: "Express",
			Line:      lineAt(content, m[0]),
		})
	}
	for _, m := range ginRoutePattern.FindAllStringSubmatchIndex(content, -1) {
		endpoints = append(endpoints, APIEndpoint{
			Method:    content[m[2]:m[3]],
			Path:      content[m[4]:m[5]],
			Framework: "Gin",
			Line:      lineAt(content, m[0]),
		})
	}
	return dedupEndpoints(endpoints)
}

// dedupEndpoints FastAPI 和 Express 的正则会匹配到同一行，去重
func dedupEndpoints(endpoints []APIEndpoint) []APIEndpoint {
	seen := map[string]bool{}
	out := endpoints[:0]
	for _, ep := range endpoints {
		key := ep.Method + " " + ep.Path
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ep)
	}
	return out
}

var backendPathIndicators = []string{
	"api", "server", "backend", "service", "controller",
	"route", "model", "handler", "middleware",
}

var backendContentIndicators = []string{
	"fastapi", "flask", "express", "django", "gin.",
	"@app.route", "app.get", "app.post", "router.",
	"http.handlefunc", "restcontroller",
}

func isBackendFile(path, content string) bool {
	pathLower := strings.ToLower(path)
	for _, ind := range backendPathIndicators {
		if strings.Contains(pathLower, ind) {
			return true
		}
	}
	contentLower := strings.ToLower(content)
	for _, ind := range backendContentIndicators {
		if strings.Contains(contentLower, ind) {
			return true
		}
	}
	return false
}

func determinePurpose(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.Contains(lower, "test") || strings.Contains(lower, "spec"):
		return "Testing"
	case strings.Contains(lower, "config") || strings.Contains(lower, "setting"):
		return "Configuration"
	case strings.Contains(lower, "model") || strings.Contains(lower, "schema"):
		return "Data Model"
	case strings.Contains(lower, "service"):
		return "Business Logic"
	case strings.Contains(lower, "controller") || strings.Contains(lower, "route") || strings.Contains(lower, "handler"):
		return "API Controller"
	case strings.Contains(lower, "component"):
		return "UI Component"
	case strings.Contains(lower, "util") || strings.Contains(lower, "helper"):
		return "Utilities"
	case strings.Contains(lower, "middleware"):
		return "Middleware"
	}
	return "General Purpose"
}

var stdlibPython = map[string]bool{
	"os": true, "sys": true, "json": true, "re": true,
	"time": true, "datetime": true, "typing": true,
}

func splitParams(raw string) []string {
	var params []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

func countNonEmptyLines(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func lineAt(content string, offset int) int {
	return strings.Count(content[:offset], "\n") + 1
}

// sliceAt 取第 n 个分组的文本，分组未参与匹配时返回空串
func sliceAt(content string, m []int, group int) string {
	lo, hi := m[group*2], m[group*2+1]
	if lo < 0 || hi < 0 {
		return ""
	}
	return content[lo:hi]
}
