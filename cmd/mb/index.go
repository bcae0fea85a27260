package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jasal82/metabuild/internal/hostconfig"
	idxpkg "github.com/jasal82/metabuild/internal/index"
)

const indexShortHelp = `Manage index entries`
const indexLongHelp = `
Manage the package index: mb index <add-git|add-artifactory|remove|list|revert|push> [args...]

  add-git <name> <git-url>
  add-artifactory <name> <server> <repo> <path>
  remove <name>
  list
  revert
  push
`

type indexCommand struct {
	indexURL string
}

func (cmd *indexCommand) Name() string      { return "index" }
func (cmd *indexCommand) Args() string      { return "<subcommand> [args...]" }
func (cmd *indexCommand) ShortHelp() string { return indexShortHelp }
func (cmd *indexCommand) LongHelp() string  { return indexLongHelp }
func (cmd *indexCommand) Hidden() bool      { return false }

func (cmd *indexCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.indexURL, "index", "", "index URL (overrides the configured default)")
}

func (cmd *indexCommand) Run(ctx *runCtx, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: mb index <add-git|add-artifactory|remove|list|revert|push> [args...]")
	}

	indexURL := cmd.indexURL
	if indexURL == "" {
		cfg, err := hostconfig.Load(userHomeDir(), ctx.WorkingDir)
		if err != nil {
			return err
		}
		indexURL = cfg.IndexURL
	}
	if err := validateIndexURL(indexURL); err != nil {
		return err
	}

	background := context.Background()
	cachePath := filepath.Join(mbDir(ctx.WorkingDir), "index-cache")
	idx, err := idxpkg.Open(background, indexURL, defaultIndexBranch, cachePath)
	if err != nil {
		return err
	}
	defer idx.Close()

	sub, rest := args[0], args[1:]
	switch sub {
	case "add-git":
		if len(rest) != 2 {
			return errors.New("usage: mb index add-git <name> <git-url>")
		}
		if err := idx.Add(rest[0], idxpkg.Source{Kind: idxpkg.SourceGit, URL: rest[1]}); err != nil {
			return err
		}
	case "add-artifactory":
		if len(rest) != 4 {
			return errors.New("usage: mb index add-artifactory <name> <server> <repo> <path>")
		}
		src := idxpkg.Source{Kind: idxpkg.SourceArtifactory, Server: rest[1], Repo: rest[2], Path: rest[3]}
		if err := idx.Add(rest[0], src); err != nil {
			return err
		}
	case "remove":
		if len(rest) != 1 {
			return errors.New("usage: mb index remove <name>")
		}
		if err := idx.Remove(rest[0]); err != nil {
			return err
		}
	case "list":
		for _, name := range idx.List() {
			ctx.Out.Println(name)
		}
		return nil
	case "revert":
		return idx.Revert()
	case "push":
		return idx.Push()
	default:
		return errors.Errorf("mb index: unknown subcommand %q", sub)
	}

	// add-git/add-artifactory/remove commit locally but never push on their
	// own (spec design note: index mutations are pushed only on an explicit
	// `push`, so a caller that forgets leaves local/remote diverged and
	// `revert` is the escape hatch).
	return nil
}
