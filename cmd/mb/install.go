package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/jasal82/metabuild/internal/hostconfig"
	"github.com/jasal82/metabuild/internal/index"
	"github.com/jasal82/metabuild/internal/installer"
	"github.com/jasal82/metabuild/internal/inventory"
	"github.com/jasal82/metabuild/internal/logging"
	"github.com/jasal82/metabuild/internal/manifest"
	"github.com/jasal82/metabuild/internal/solver"
)

const installShortHelp = `Resolve and install the project's dependencies`
const installLongHelp = `
Parse manifest.toml, resolve a consistent set of dependency versions
against the configured index, and install them under .mb/deps.
`

type installCommand struct {
	file string
}

func (cmd *installCommand) Name() string      { return "install" }
func (cmd *installCommand) Args() string      { return "" }
func (cmd *installCommand) ShortHelp() string { return installShortHelp }
func (cmd *installCommand) LongHelp() string  { return installLongHelp }
func (cmd *installCommand) Hidden() bool      { return false }

func (cmd *installCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.file, "file", "manifest.toml", "path to the project manifest")
}

func (cmd *installCommand) Run(ctx *runCtx, args []string) error {
	log := logging.For("install")

	manifestPath := cmd.file
	if !filepath.IsAbs(manifestPath) {
		manifestPath = filepath.Join(ctx.WorkingDir, manifestPath)
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return errors.Wrap(err, "reading manifest")
	}
	m, err := manifest.ParseBytes(data)
	if err != nil {
		return err
	}

	roots, err := m.Requirements()
	if err != nil {
		return err
	}

	cfg, err := hostconfig.Load(userHomeDir(), ctx.WorkingDir)
	if err != nil {
		return err
	}
	indexURL := cfg.IndexURL
	if override, ok := m.IndexOverride(); ok {
		indexURL = override
	}
	if err := validateIndexURL(indexURL); err != nil {
		return err
	}

	stateDir := mbDir(ctx.WorkingDir)
	indexCachePath := filepath.Join(stateDir, "index-cache")

	background := context.Background()
	idx, err := index.Open(background, indexURL, defaultIndexBranch, indexCachePath)
	if err != nil {
		return err
	}
	defer idx.Close()

	log.Info("refreshing inventory")
	cacheDir := filepath.Join(stateDir, "cache")
	cache, err := inventory.Refresh(background, idx, cfg.ArtifactoryTokens, cacheDir)
	if err != nil {
		return err
	}

	solverRoots := make([]solver.Root, 0, len(roots))
	for name, req := range roots {
		solverRoots = append(solverRoots, solver.Root{Name: name, Req: req})
	}

	log.Info("solving dependency graph")
	result := solver.Solve(solverRoots, cache)
	if result.Kind != solver.Resolved {
		return errors.New(result.Explanation)
	}

	for name, v := range result.Versions {
		log.Infof("resolved %s@%s", name, v)
	}

	depsDir := filepath.Join(stateDir, "deps")
	gitCacheRoot := filepath.Join(stateDir, "cache", "git")

	log.Info("installing dependencies")
	if err := installer.Install(background, depsDir, idx, result.Versions, gitCacheRoot, cfg.ArtifactoryTokens); err != nil {
		return err
	}

	ctx.Out.Printf("installed %d package(s) into %s\n", len(result.Versions), depsDir)
	return nil
}
