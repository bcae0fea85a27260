package gitrepo

import (
	"bufio"
	"bytes"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// Auth exposes the ambient credential resolution used internally by Open,
// for collaborators (the installer) that drive go-git directly against a
// working tree rather than through a Repo handle.
func Auth(remoteURL string) transport.AuthMethod {
	return resolveAuth(remoteURL)
}

// resolveAuth composes the ambient Git credential configuration (system,
// user and project git config) for remoteURL. SSH remotes defer to the
// local SSH agent, matching how a bare `git clone` of an ssh:// URL behaves
// with no credentials of our own configured; HTTPS remotes shell out to
// `git credential fill`, the same mechanism `git` itself uses to compose
// credential helpers. Neither path reads metabuild's own configuration.
func resolveAuth(remoteURL string) transport.AuthMethod {
	if isSSHURL(remoteURL) {
		auth, err := ssh.NewSSHAgentAuth("git")
		if err != nil {
			return nil
		}
		return auth
	}

	user, pass, ok := credentialFill(remoteURL)
	if !ok {
		return nil
	}
	return &githttp.BasicAuth{Username: user, Password: pass}
}

func isSSHURL(remoteURL string) bool {
	return strings.HasPrefix(remoteURL, "ssh://") || strings.Contains(remoteURL, "@") && strings.Contains(remoteURL, ":") && !strings.Contains(remoteURL, "://")
}

// credentialFill invokes `git credential fill`, the stable entry point into
// whatever credential helpers the ambient git configuration has installed.
func credentialFill(remoteURL string) (username, password string, ok bool) {
	cmd := exec.Command("git", "credential", "fill")
	cmd.Stdin = strings.NewReader("url=" + remoteURL + "\n\n")

	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", "", false
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "username="):
			username = strings.TrimPrefix(line, "username=")
		case strings.HasPrefix(line, "password="):
			password = strings.TrimPrefix(line, "password=")
		}
	}
	return username, password, username != "" || password != ""
}
