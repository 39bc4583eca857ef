package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		command string
		blocked bool
		reason  Reason
	}{
		{"plain command", "echo hello", false, ""},
		{"relative paths", "cat notes/todo.txt", false, ""},
		{"quoted spaces", `echo "a b" c`, false, ""},
		{"empty", "", true, ReasonEmpty},
		{"whitespace only", "   ", true, ReasonEmpty},
		{"wipe root", "rm -rf /", true, ReasonDangerous},
		{"wipe root glob", "rm -rf /*", true, ReasonDangerous},
		{"fork bomb", ":(){:|:&};:", true, ReasonDangerous},
		{"privilege escalation", "sudo apt install curl", true, ReasonDangerous},
		{"power state", "shutdown -h now", true, ReasonDangerous},
		{"sensitive dir", "cat /etc/passwd", true, ReasonDangerous},
		{"sensitive dir quoted", "echo ' /root'", true, ReasonDangerous},
		{"absolute path", "ls /tmp", true, ReasonPathOutside},
		{"parent traversal", "cat ../secret.txt", true, ReasonPathOutside},
		{"nested traversal", "cp a/../../b .", true, ReasonPathOutside},
		{"dotdot inside name ok", "cat notes..txt", false, ""},
		{"unbalanced quote", `echo "oops`, true, ReasonPathOutside},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.command, "/work")
			assert.Equal(t, tt.blocked, v.Blocked)
			if tt.blocked {
				assert.Equal(t, tt.reason, v.Reason)
				assert.NotEmpty(t, v.Detail)
			}
		})
	}
}

func TestIsDangerous_SubstringMatching(t *testing.T) {
	// Token matching is deliberately substring-based, so embedded
	// occurrences are caught (and some benign commands with them).
	assert.True(t, IsDangerous("echo hi && sudo true"))
	assert.True(t, IsDangerous("SUDO true"))
	assert.True(t, IsDangerous("dd if=img of=disk"))
	assert.False(t, IsDangerous("echo hello"))
	assert.False(t, IsDangerous("ls -la"))
}

func TestLeavesWorkDir(t *testing.T) {
	assert.False(t, LeavesWorkDir(""))
	assert.False(t, LeavesWorkDir("echo hello"))
	assert.True(t, LeavesWorkDir("touch /outside"))
	assert.True(t, LeavesWorkDir("cat ../up"))
	// Quoting is honored: the quoted argument is one token and the
	// absolute path inside it is still visible.
	assert.True(t, LeavesWorkDir(`cat "/etc/passwd"`))
	assert.False(t, LeavesWorkDir(`echo "a b/c d"`))
}
