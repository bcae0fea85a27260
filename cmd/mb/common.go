package main

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const defaultIndexBranch = "main"

// mbDir returns the project-local state directory: .mb/deps holds installed
// packages, .mb/cache holds the inventory cache and Git mirrors,
// .mb/config.toml holds the project-local host configuration hostconfig.Load
// reads.
func mbDir(workingDir string) string {
	return filepath.Join(workingDir, ".mb")
}

// validateIndexURL rejects plain HTTP(S) index URLs before any network or
// filesystem operation runs. The index document is cloned into a local
// cache and later pushed back with the operator's own ambient Git
// credentials; an http(s):// remote would silently accept unauthenticated
// writes that ssh:// and git@host: remotes cannot.
func validateIndexURL(url string) error {
	if url == "" {
		return errors.New("no index configured: pass -index or set index_url in .mb/config.toml")
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return errors.Errorf("index URL %q must be an ssh:// or git@host: remote, not http(s)://", url)
	}
	return nil
}
