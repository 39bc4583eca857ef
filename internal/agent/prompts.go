package agent

import (
	_ "embed"
	"strings"
	"time"

	"shellpilot/internal/config"
)

//go:embed prompts/system.md
var systemPromptTemplate string

//go:embed prompts/summary.md
var summaryPrompt string

// SystemPrompt renders the system prompt template for the current session.
func SystemPrompt(cfg *config.Config, now time.Time) string {
	return strings.NewReplacer(
		"${WORK_DIR}", cfg.WorkDir,
		"${NOW_ISO}", now.UTC().Format(time.RFC3339),
		"${OS_NAME}", cfg.OSName,
		"${SHELL_TYPE}", cfg.ShellType,
	).Replace(systemPromptTemplate)
}

// SummaryPrompt returns the system prompt used for history summarization.
func SummaryPrompt() string {
	return summaryPrompt
}
