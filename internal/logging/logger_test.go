package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestLogging(t *testing.T, debug bool) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, Initialize(dir, debug))
	t.Cleanup(Close)
	return dir
}

func readCategoryLog(t *testing.T, dir string, cat Category) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, string(cat)+".log"))
	require.NoError(t, err)
	return string(data)
}

func TestCategoriesWriteToSeparateFiles(t *testing.T) {
	dir := initTestLogging(t, false)

	Boot("starting up")
	Session("turn %d", 1)
	GuardWarn("blocked: %s", "sudo reboot")
	Close()

	boot := readCategoryLog(t, dir, CategoryBoot)
	assert.Contains(t, boot, "starting up")
	assert.Contains(t, boot, "[boot]")
	assert.NotContains(t, boot, "turn 1")

	session := readCategoryLog(t, dir, CategorySession)
	assert.Contains(t, session, "turn 1")

	guard := readCategoryLog(t, dir, CategoryGuard)
	assert.Contains(t, guard, "WARN")
	assert.Contains(t, guard, "sudo reboot")
}

func TestDebugGating(t *testing.T) {
	dir := initTestLogging(t, false)
	APIDebug("hidden detail")
	API("visible line")
	Close()

	content := readCategoryLog(t, dir, CategoryAPI)
	assert.NotContains(t, content, "hidden detail")
	assert.Contains(t, content, "visible line")

	dir = initTestLogging(t, true)
	APIDebug("now visible")
	Close()

	content = readCategoryLog(t, dir, CategoryAPI)
	assert.Contains(t, content, "DEBUG")
	assert.Contains(t, content, "now visible")
}

func TestDiscardsBeforeInitialize(t *testing.T) {
	Close()
	// Must not panic or create files anywhere.
	Exec("into the void")
	Get(CategoryMCP).Error("also discarded")
}

func TestLazyFileCreation(t *testing.T) {
	dir := initTestLogging(t, false)
	Tools("only tools spoke")
	Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tools.log", entries[0].Name())
}
