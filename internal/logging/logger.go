// Package logging provides categorized file-based logging for shellpilot.
// Each category writes to its own file under the agent home directory so a
// session can be inspected per subsystem without interleaving. Before
// Initialize is called all loggers discard their output, which keeps tests
// quiet.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Category selects the log file a message lands in.
type Category string

const (
	CategoryBoot    Category = "boot"    // startup, configuration
	CategorySession Category = "session" // REPL turns, slash commands
	CategoryAPI     Category = "api"     // model oracle calls
	CategoryContext Category = "context" // transcript compression
	CategoryGuard   Category = "guard"   // command screening
	CategoryExec    Category = "exec"    // shell execution
	CategoryTools   Category = "tools"   // tool dispatch
	CategoryMCP     Category = "mcp"     // MCP transport and servers
)

// Logger writes leveled lines for one category.
type Logger struct {
	out   *log.Logger
	debug bool
}

var (
	mu      sync.Mutex
	loggers = make(map[Category]*Logger)
	files   []*os.File
	baseDir string
	debugOn bool
)

// Initialize points the loggers at dir. Debug messages are dropped unless
// debug is true. Should be called once at startup.
func Initialize(dir string, debug bool) error {
	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	baseDir = dir
	debugOn = debug
	loggers = make(map[Category]*Logger)
	return nil
}

// Close closes every open log file and resets the package to the
// discarding state.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, f := range files {
		_ = f.Close()
	}
	files = nil
	loggers = make(map[Category]*Logger)
	baseDir = ""
}

// Get returns the logger for a category, creating its file on first use.
func Get(cat Category) *Logger {
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	var w io.Writer = io.Discard
	if baseDir != "" {
		path := filepath.Join(baseDir, string(cat)+".log")
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			files = append(files, f)
			w = f
		}
	}
	l := &Logger{
		out:   log.New(w, fmt.Sprintf("[%s] ", cat), log.LstdFlags|log.Lmicroseconds),
		debug: debugOn,
	}
	loggers[cat] = l
	return l
}

func (l *Logger) Info(format string, args ...any) {
	l.out.Printf("INFO  "+format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.out.Printf("WARN  "+format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.out.Printf("ERROR "+format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.out.Printf("DEBUG "+format, args...)
}

// Per-category helpers so call sites stay one line.

func Boot(format string, args ...any)         { Get(CategoryBoot).Info(format, args...) }
func BootWarn(format string, args ...any)     { Get(CategoryBoot).Warn(format, args...) }
func Session(format string, args ...any)      { Get(CategorySession).Info(format, args...) }
func API(format string, args ...any)          { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...any)     { Get(CategoryAPI).Debug(format, args...) }
func Context(format string, args ...any)      { Get(CategoryContext).Info(format, args...) }
func ContextDebug(format string, args ...any) { Get(CategoryContext).Debug(format, args...) }
func GuardWarn(format string, args ...any)    { Get(CategoryGuard).Warn(format, args...) }
func Exec(format string, args ...any)         { Get(CategoryExec).Info(format, args...) }
func ExecWarn(format string, args ...any)     { Get(CategoryExec).Warn(format, args...) }
func ExecDebug(format string, args ...any)    { Get(CategoryExec).Debug(format, args...) }
func Tools(format string, args ...any)        { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...any)   { Get(CategoryTools).Debug(format, args...) }
func MCP(format string, args ...any)          { Get(CategoryMCP).Info(format, args...) }
func MCPWarn(format string, args ...any)      { Get(CategoryMCP).Warn(format, args...) }
func MCPDebug(format string, args ...any)     { Get(CategoryMCP).Debug(format, args...) }
