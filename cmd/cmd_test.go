package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyerfyer/docling-nodes/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guideMarkdown = "# Guide\n\nIntro text.\n\n## Install\n\nRun the binary.\n"

func runConvert(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{
		"convert",
		"--config", filepath.Join(dir, "missing.yaml"),
		"--env-file", filepath.Join(dir, "missing.env"),
	}, args...))
	err := rootCmd.Execute()
	return stdout.String(), err
}

func decodeLines(t *testing.T, out string) []map[string]interface{} {
	t.Helper()
	var objs []map[string]interface{}
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var obj map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &obj))
		objs = append(objs, obj)
	}
	return objs
}

func writeGuide(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(p, []byte(guideMarkdown), 0644))
	return p
}

func TestConvertCmd_Nodes(t *testing.T) {
	path := writeGuide(t)

	out, err := runConvert(t, "-q", "--chunk=true", "-e", "markdown", "--id-generator", "doc_hash", path)
	require.NoError(t, err)

	nodes := decodeLines(t, out)
	require.Len(t, nodes, 2)
	first := nodes[0]["id_"].(string)
	assert.True(t, strings.HasSuffix(first, "_0"))
	assert.Contains(t, nodes[1]["text"], "Run the binary.")

	rels := nodes[1]["relationships"].(map[string]interface{})
	assert.Contains(t, rels, "1")
	assert.Contains(t, rels, "2")
}

func TestConvertCmd_Documents(t *testing.T) {
	a := writeGuide(t)
	b := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(b, []byte("plain notes"), 0644))

	out, err := runConvert(t, "-q", "--chunk=false", "-e", "markdown", "--id-generator", "uuid", a, b)
	require.NoError(t, err)

	docs := decodeLines(t, out)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0]["text"], "# Guide")
	assert.Contains(t, docs[1]["text"], "plain notes")

	meta := docs[0]["metadata"].(map[string]interface{})
	assert.Equal(t, a, meta["origin"])
}

func TestConvertCmd_Errors(t *testing.T) {
	path := writeGuide(t)

	_, err := runConvert(t, "-q", "--chunk=false", "-e", "html", "--id-generator", "doc_hash", path)
	assert.Error(t, err)

	_, err = runConvert(t, "-q", "--chunk=false", "-e", "markdown", "--id-generator", "sequence", path)
	assert.Error(t, err)

	_, err = runConvert(t, "-q", "--chunk=false", "-e", "markdown", "--id-generator", "doc_hash",
		filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}

func TestProgressLine(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressLine(&buf, 2)

	p.Start(1, "Parsing nodes")
	p.Advance()
	p.Done()
	assert.NotContains(t, buf.String(), "✓")

	p.Start(1, "Parsing nodes")
	p.Advance()
	p.Done()
	p.Done()

	out := buf.String()
	assert.Contains(t, out, "Parsing nodes")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "2/2")
	assert.Equal(t, 1, strings.Count(out, "✓"))
}

func TestProgressLine_Fail(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressLine(&buf, 0)

	p.Start(3, "Converting")
	p.Fail(errors.New("boom"))
	p.Done()

	out := buf.String()
	assert.Contains(t, out, "0/3")
	assert.Contains(t, out, "boom")
	assert.NotContains(t, out, "✓")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "app.log")

	logger := setupLogger(logrus.New(), config.LogConfig{
		Level:     "warn",
		File:      logFile,
		MaxSizeMB: 1,
	}, &buf)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "visible")

	logger = setupLogger(logrus.New(), config.LogConfig{Level: "nonsense"}, &buf)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestSetupStorageAndCache(t *testing.T) {
	st, err := setupStorage(config.StorageConfig{Type: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.NotNil(t, st)

	_, err = setupStorage(config.StorageConfig{Type: "s3"})
	assert.Error(t, err)

	c, err := setupCache(config.CacheConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = setupTaskQueue(config.QueueConfig{Type: "kafka"}, logrus.New())
	assert.Error(t, err)
}
