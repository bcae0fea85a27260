package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/jasal82/metabuild/internal/manifest"
	"github.com/jasal82/metabuild/internal/mberr"
)

type aqlResult struct {
	Results []struct {
		Path string `json:"path"`
	} `json:"results"`
}

func (r *Retriever) fetchVersionsArtifactory(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(
		`items.find({"repo":"%s","path":{"$match":"%s/*"},"name":"manifest.toml"})`,
		r.repo, r.path,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.server+"/api/search/aql", strings.NewReader(query))
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "building AQL request")
	}
	req.Header.Set("Content-Type", "text/plain")
	r.authorize(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, mberr.Wrap(err, mberr.Upstream, "issuing AQL query to "+r.server)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if err := r.checkStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var parsed aqlResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, mberr.Wrap(err, mberr.Upstream, "parsing AQL response from "+r.server)
	}

	versions := make([]string, 0, len(parsed.Results))
	for _, row := range parsed.Results {
		versions = append(versions, path.Base(row.Path))
	}
	return versions, nil
}

func (r *Retriever) fetchManifestArtifactory(ctx context.Context, version string) (manifest.Manifest, error) {
	data, err := r.getArtifact(ctx, version, manifestFile)
	if err != nil {
		return manifest.Manifest{}, err
	}
	m, err := manifest.ParseBytes(data)
	if err != nil {
		return manifest.Manifest{}, mberr.Wrap(err, mberr.Corrupt, "parsing "+manifestFile+" for "+version)
	}
	return m, nil
}

// FetchPackage fetches package.tar.gz for version; used by the installer,
// not by the solver-facing oracle.
func (r *Retriever) FetchPackage(ctx context.Context, version string) ([]byte, error) {
	return r.getArtifact(ctx, version, "package.tar.gz")
}

func (r *Retriever) getArtifact(ctx context.Context, version, file string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/%s/%s", r.server, r.repo, r.path, version, file)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "building request for "+url)
	}
	r.authorize(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, mberr.Wrap(err, mberr.Upstream, "fetching "+url)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, r.checkStatus(resp.StatusCode, body)
	}
	return body, nil
}

func (r *Retriever) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
}

func (r *Retriever) checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusForbidden {
		return mberr.Newf(mberr.Upstream, "403 from %s: configure an artifactory_token for this server", r.server)
	}
	return mberr.Newf(mberr.Upstream, "%s returned %d: %s", r.server, status, bytes.TrimSpace(body))
}
