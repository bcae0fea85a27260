package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jasal82/metabuild/internal/mberr"
)

// extractTarGz unpacks a gzip-compressed tar stream under target, the way
// the teacher's registry extraction unpacks a fetched module archive.
// Entries that would escape target (an absolute path, or one containing a
// ".." segment after cleaning) are rejected rather than silently skipped.
func extractTarGz(data []byte, target string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return mberr.Wrap(err, mberr.Corrupt, "opening package.tar.gz")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return mberr.Wrap(err, mberr.Corrupt, "reading package.tar.gz")
		}

		cleaned := filepath.Clean(hdr.Name)
		if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
			return mberr.Newf(mberr.Corrupt, "package.tar.gz entry %q escapes install directory", hdr.Name)
		}
		dest := filepath.Join(target, cleaned)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return mberr.Wrap(err, mberr.IO, "creating "+dest)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return mberr.Wrap(err, mberr.IO, "creating "+filepath.Dir(dest))
			}
			f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return mberr.Wrap(err, mberr.IO, "creating "+dest)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return mberr.Wrap(err, mberr.IO, "writing "+dest)
			}
			if err := f.Close(); err != nil {
				return mberr.Wrap(err, mberr.IO, "closing "+dest)
			}
		default:
			// symlinks and other special types have no place in a package
			// archive; skip rather than fail the whole install.
		}
	}
}
