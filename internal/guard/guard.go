// Package guard screens shell commands before execution. It is a best
// effort text filter, not a sandbox: a determined command can still escape,
// but the obvious destructive patterns and path escapes are rejected before
// anything reaches the shell.
package guard

import (
	"strings"

	shellwords "github.com/mattn/go-shellwords"

	"shellpilot/internal/logging"
)

// Reason classifies why a command was rejected.
type Reason string

const (
	ReasonEmpty       Reason = "empty"
	ReasonPathOutside Reason = "path_outside"
	ReasonDangerous   Reason = "dangerous"
)

// denyPatterns match as exact substrings of the lowercased command.
var denyPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	":(){:|:&};:",
}

// dangerousTokens also match as substrings. Crude on purpose: a false
// positive costs one blocked command, a false negative costs the machine.
var dangerousTokens = []string{
	"sudo",
	"mkfs",
	"shutdown",
	"reboot",
	"dd",
	"iptables",
	"chmod 777 -r",
	"chown -r /",
}

// Verdict is the outcome of screening one command.
type Verdict struct {
	Blocked bool
	Reason  Reason
	Detail  string
}

// IsDangerous reports whether the command matches a deny pattern, a
// dangerous token, or references a sensitive system directory.
func IsDangerous(command string) bool {
	lowered := strings.ToLower(strings.TrimSpace(command))
	for _, p := range denyPatterns {
		if strings.Contains(lowered, p) {
			logging.GuardWarn("deny pattern %q matched: %.50s", p, command)
			return true
		}
	}
	for _, tok := range dangerousTokens {
		if strings.Contains(lowered, tok) {
			logging.GuardWarn("dangerous token %q matched: %.50s", tok, command)
			return true
		}
	}
	if strings.Contains(lowered, " /etc") || strings.Contains(lowered, " /root") {
		logging.GuardWarn("sensitive directory referenced: %.50s", command)
		return true
	}
	return false
}

// LeavesWorkDir reports whether any shell-tokenized argument is an absolute
// path or climbs out through a parent-directory segment. Tokenization
// honors shell quoting, so a quoted argument counts as a single token.
// A command that cannot be tokenized is treated as escaping.
func LeavesWorkDir(command string) bool {
	if strings.TrimSpace(command) == "" {
		return false
	}
	tokens, err := shellwords.Parse(command)
	if err != nil {
		logging.GuardWarn("unparseable command treated as escaping: %.50s", command)
		return true
	}
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "/") {
			return true
		}
		for _, part := range strings.Split(tok, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// Evaluate screens a command against every check. The work dir only feeds
// the rejection detail; the path check itself is purely textual.
func Evaluate(command, workDir string) Verdict {
	if strings.TrimSpace(command) == "" {
		return Verdict{Blocked: true, Reason: ReasonEmpty, Detail: "empty command"}
	}
	if IsDangerous(command) {
		return Verdict{Blocked: true, Reason: ReasonDangerous, Detail: "blocked: dangerous command"}
	}
	if LeavesWorkDir(command) {
		return Verdict{Blocked: true, Reason: ReasonPathOutside, Detail: "blocked: path outside work dir (" + workDir + ")"}
	}
	return Verdict{}
}
