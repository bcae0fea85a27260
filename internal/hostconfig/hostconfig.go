// Package hostconfig loads operator-level settings: the default package
// index and the bearer tokens used against private Artifactory servers.
// Layering follows the project's own precedent for host configuration
// (original_source/src/commands/config.rs's Figment stack, reworked onto
// spf13/viper): built-in defaults, then a user-wide file, then a
// project-local file, then environment variables, each layer overriding
// the ones before it.
package hostconfig

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "METABUILD"
	userConfigName = "config"
	fileType       = "toml"
)

// Config is the resolved host configuration.
type Config struct {
	// IndexURL is the default package index, used when a command is not
	// given an explicit -index flag.
	IndexURL string

	// ArtifactoryTokens maps a server URL prefix to the bearer token
	// presented to it (internal/retriever selects by longest match).
	ArtifactoryTokens map[string]string
}

// Load resolves configuration for a project rooted at projectDir. userHome
// is the operator's home directory (os.UserHomeDir in production, a fixture
// directory in tests).
func Load(userHome, projectDir string) (Config, error) {
	v := viper.New()
	v.SetConfigType(fileType)

	v.SetDefault("index_url", "")
	v.SetDefault("artifactory_tokens", map[string]interface{}{})

	if userHome != "" {
		userPath := filepath.Join(userHome, ".mb", userConfigName+"."+fileType)
		if err := mergeIfExists(v, userPath); err != nil {
			return Config{}, err
		}
	}

	if projectDir != "" {
		projectPath := filepath.Join(projectDir, ".mb", userConfigName+"."+fileType)
		if err := mergeIfExists(v, projectPath); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := v.BindEnv("index_url"); err != nil {
		return Config{}, errors.Wrap(err, "binding METABUILD_INDEX_URL")
	}

	tokens := map[string]string{}
	for prefix, raw := range v.GetStringMapString("artifactory_tokens") {
		tokens[prefix] = raw
	}

	return Config{
		IndexURL:          v.GetString("index_url"),
		ArtifactoryTokens: tokens,
	}, nil
}

func mergeIfExists(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	if err := v.MergeConfig(f); err != nil {
		return errors.Wrapf(err, "parsing %s", path)
	}
	return nil
}
