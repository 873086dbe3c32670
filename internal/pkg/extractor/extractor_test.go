package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Python(t *testing.T) {
	content := `from flask import Flask
import requests

app = Flask(__name__)

class UserStore:
    def __init__(self):
        self.users = []

@app.route('/users', methods=['GET', 'POST'])
def list_users():
    return []

def create_user(name, email) -> dict:
    return {}
`
	fa := Extract("server/routes.py", content, "python")

	names := make([]string, 0, len(fa.Functions))
	for _, f := range fa.Functions {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "list_users")
	assert.Contains(t, names, "create_user")

	if assert.Len(t, fa.Classes, 1) {
		assert.Equal(t, "UserStore", fa.Classes[0].Name)
	}

	// @app.route 带两个 method，各展开一条
	assert.Len(t, fa.Endpoints, 2)
	assert.Equal(t, "/users", fa.Endpoints[0].Path)

	assert.True(t, fa.IsBackend)
	assert.Equal(t, "API Controller", fa.Purpose)
}

func TestExtract_PythonFunctionDetails(t *testing.T) {
	fa := Extract("util.py", "def add(a, b) -> int:\n    return a + b\n", "python")

	if len(fa.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(fa.Functions))
	}
	fn := fa.Functions[0]
	if fn.Name != "add" {
		t.Errorf("name = %q", fn.Name)
	}
	if len(fn.Parameters) != 2 {
		t.Errorf("parameters = %v", fn.Parameters)
	}
	if fn.ReturnType != "int" {
		t.Errorf("return type = %q", fn.ReturnType)
	}
	if fn.Line != 1 {
		t.Errorf("line = %d", fn.Line)
	}
}

func TestExtract_JavaScript(t *testing.T) {
	content := `const express = require('express');
const app = express();

function getUsers(req, res) {}
const createUser = async (req, res) => {};

app.get('/api/users', getUsers);
app.post('/api/users', createUser);
`
	fa := Extract("src/server.js", content, "javascript")

	assert.Len(t, fa.Functions, 2)
	assert.Len(t, fa.Endpoints, 2)
	assert.Equal(t, "GET", fa.Endpoints[0].Method)
	assert.Equal(t, "/api/users", fa.Endpoints[0].Path)
	assert.True(t, fa.IsBackend)

	// 相对路径导入被过滤，express 保留
	mods := make([]string, 0, len(fa.Imports))
	for _, im := range fa.Imports {
		mods = append(mods, im.Module)
	}
	assert.Contains(t, mods, "express")
}

func TestExtract_Go(t *testing.T) {
	content := `package main

import (
	"fmt"
	"net/http"
)

type Server struct {
	addr string
}

func NewServer(addr string) *Server {
	return &Server{addr: addr}
}

func main() {
	r := gin.Default()
	r.GET("/ping", pong)
	fmt.Println("ok")
}
`
	fa := Extract("main.go", content, "go")

	assert.GreaterOrEqual(t, len(fa.Functions), 2)
	if assert.Len(t, fa.Classes, 1) {
		assert.Equal(t, "Server", fa.Classes[0].Name)
	}
	if assert.Len(t, fa.Endpoints, 1) {
		assert.Equal(t, "GET", fa.Endpoints[0].Method)
		assert.Equal(t, "/ping", fa.Endpoints[0].Path)
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := map[string]string{
		"main.go":       "go",
		"app.py":        "python",
		"index.tsx":     "typescript",
		"server.js":     "javascript",
		"readme.md":     "",
		"Dockerfile":    "",
		"Component.JSX": "javascript",
	}
	for file, want := range tests {
		if got := DetectLanguage(file); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", file, got, want)
		}
	}
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, IsConfigFile("package.json"))
	assert.True(t, IsConfigFile("config/settings.yaml"))
	assert.True(t, IsConfigFile("webpack.config.js"))
	assert.True(t, IsConfigFile("Cargo.lock"))
	assert.False(t, IsConfigFile("server/routes.py"))
	assert.False(t, IsConfigFile("main.go"))
}

func TestShouldSkipDir(t *testing.T) {
	assert.True(t, ShouldSkipDir("node_modules"))
	assert.True(t, ShouldSkipDir(".git"))
	assert.False(t, ShouldSkipDir("src"))
}
