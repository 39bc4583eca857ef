// Package ux renders the agent's terminal output and reads user input.
// All output goes through one Console so tests can capture it.
package ux

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"shellpilot/internal/config"
	"shellpilot/internal/history"
	"shellpilot/internal/shell"
)

// Console renders styled output to out and reads lines from in. REPL input
// and confirmation prompts share the same reader.
type Console struct {
	out io.Writer
	in  *bufio.Reader

	title   lipgloss.Style
	info    lipgloss.Style
	dim     lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	success lipgloss.Style
	panel   lipgloss.Style
	prompt  lipgloss.Style
}

// NewConsole creates a console. in may be nil when no input is needed.
func NewConsole(out io.Writer, in io.Reader) *Console {
	c := &Console{
		out:     out,
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		warn:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		fail:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46")),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1),
		prompt: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
	}
	if in != nil {
		c.in = bufio.NewReader(in)
	}
	return c
}

// ReadLine prints the prompt and reads one trimmed input line. io.EOF
// surfaces unchanged so the caller can exit cleanly on Ctrl-D.
func (c *Console) ReadLine(prompt string) (string, error) {
	fmt.Fprint(c.out, c.prompt.Render(prompt))
	if c.in == nil {
		return "", io.EOF
	}
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks whether a command may run. Only an explicit yes runs it.
func (c *Console) Confirm(command string) bool {
	fmt.Fprintln(c.out, c.panel.Render(c.warn.Render("About to execute:")+"\n"+command))
	answer, err := c.ReadLine("Run this command? [y/N] ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// StartupPanel shows the session parameters once at boot.
func (c *Console) StartupPanel(cfg *config.Config, mcpStatus string, mcpDetails []string) {
	lines := []string{
		c.title.Render("shellpilot"),
		c.dim.Render("conversational shell agent"),
		"",
		fmt.Sprintf("%s %s", c.info.Render("Model:"), cfg.Model),
		fmt.Sprintf("%s %s", c.info.Render("Workdir:"), cfg.WorkDir),
		fmt.Sprintf("%s %s / %s", c.info.Render("Platform:"), cfg.OSName, cfg.ShellType),
		fmt.Sprintf("%s %s", c.info.Render("MCP:"), mcpStatus),
	}
	for _, d := range mcpDetails {
		lines = append(lines, c.dim.Render("  "+d))
	}
	fmt.Fprintln(c.out, c.panel.Render(strings.Join(lines, "\n")))
}

// SingleQueryPanel echoes the one-shot instruction before running it.
func (c *Console) SingleQueryPanel(query string) {
	fmt.Fprintln(c.out, c.panel.Render(c.info.Render("Query: ")+query))
}

// AgentResponse prints the model's final answer for a turn.
func (c *Console) AgentResponse(text string) {
	fmt.Fprintln(c.out, c.title.Render("Agent: ")+text)
}

// CommandResult echoes what a dispatched command produced.
func (c *Console) CommandResult(res shell.Result) {
	if res.Ran && res.ExitCode == 0 {
		fmt.Fprintln(c.out, c.success.Render("command succeeded"))
	} else {
		fmt.Fprintln(c.out, c.fail.Render(fmt.Sprintf("command failed (exit %d)", res.ExitCode)))
	}
	if res.Stdout != "" {
		fmt.Fprintln(c.out, c.info.Render("stdout:")+" "+res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintln(c.out, c.fail.Render("stderr:")+" "+res.Stderr)
	}
	if res.Reason != "" {
		fmt.Fprintln(c.out, c.warn.Render("reason:")+" "+res.Reason)
	}
}

// CompressionReport summarizes a compression outcome.
func (c *Console) CompressionReport(r history.Report) {
	if !r.Compressed {
		c.Warnf("not compressed: %s", r.Refusal)
		return
	}
	c.Successf("history compressed")
	saved := r.TokensBefore - r.TokensAfter
	pct := 0.0
	if r.TokensBefore > 0 {
		pct = float64(saved) / float64(r.TokensBefore) * 100
	}
	fmt.Fprintf(c.out, "%s %d -> %d messages, %d -> %d tokens (saved %.1f%%)\n",
		c.info.Render("compression:"),
		r.MessagesBefore, r.MessagesAfter, r.TokensBefore, r.TokensAfter, pct)
}

// StatsTable prints the session token accounting.
func (c *Console) StatsTable(prompt, completion, total, apiCalls, compressions, messages, estTokens int) {
	rows := [][2]string{
		{"Prompt tokens", fmt.Sprintf("%d", prompt)},
		{"Completion tokens", fmt.Sprintf("%d", completion)},
		{"Total tokens", fmt.Sprintf("%d", total)},
		{"API calls", fmt.Sprintf("%d", apiCalls)},
		{"Compressions", fmt.Sprintf("%d", compressions)},
		{"Transcript messages", fmt.Sprintf("%d", messages)},
		{"Transcript tokens (est)", fmt.Sprintf("%d", estTokens)},
	}
	var b strings.Builder
	b.WriteString(c.title.Render("Token usage") + "\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "%s %s\n", c.info.Render(fmt.Sprintf("%-24s", row[0])), row[1])
	}
	fmt.Fprintln(c.out, c.panel.Render(strings.TrimRight(b.String(), "\n")))
}

// Help prints the REPL command reference.
func (c *Console) Help(cfg *config.Config, mcpStatus string, mcpDetails []string) {
	var b strings.Builder
	b.WriteString(c.title.Render("Commands") + "\n")
	for _, row := range [][2]string{
		{"/help", "show this help"},
		{"/stats", "show token usage"},
		{"/clear", "reset the conversation and the stats"},
		{"/compress", "compress older history now"},
		{"/exit", "quit (also: quit, Ctrl-D)"},
	} {
		fmt.Fprintf(&b, "  %s %s\n", c.info.Render(fmt.Sprintf("%-10s", row[0])), row[1])
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", c.info.Render("Workdir:"), cfg.WorkDir)
	fmt.Fprintf(&b, "%s %s / %s\n", c.info.Render("Platform:"), cfg.OSName, cfg.ShellType)
	fmt.Fprintf(&b, "%s %s\n", c.info.Render("MCP:"), mcpStatus)
	for _, d := range mcpDetails {
		b.WriteString(c.dim.Render("  "+d) + "\n")
	}
	fmt.Fprint(c.out, b.String())
}

func (c *Console) Infof(format string, args ...any) {
	fmt.Fprintln(c.out, c.info.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Warnf(format string, args ...any) {
	fmt.Fprintln(c.out, c.warn.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Errorf(format string, args ...any) {
	fmt.Fprintln(c.out, c.fail.Render(fmt.Sprintf(format, args...)))
}

func (c *Console) Successf(format string, args ...any) {
	fmt.Fprintln(c.out, c.success.Render(fmt.Sprintf(format, args...)))
}
