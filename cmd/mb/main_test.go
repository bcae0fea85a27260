package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func runMB(args ...string) (stdout, stderr string, exitCode int) {
	var out, err bytes.Buffer
	c := &Config{
		Args:       append([]string{"mb"}, args...),
		Stdout:     &out,
		Stderr:     &err,
		WorkingDir: ".",
	}
	exitCode = c.Run()
	return out.String(), err.String(), exitCode
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	stdout, _, code := runMB("version")
	assert.Equal(t, 0, code)
	assert.Equal(t, appVersion+"\n", stdout)
}

func TestUnknownCommandExitsNonZero(t *testing.T) {
	_, stderr, code := runMB("frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no such command")
}

func TestNoArgsPrintsUsageAndExitsNonZero(t *testing.T) {
	_, stderr, code := runMB()
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: mb <command>")
}

func TestIndexRejectsHTTPURL(t *testing.T) {
	_, stderr, code := runMB("index", "-index", "https://example.com/index.git", "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ssh://")
}
