package services

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Conceptual-Machines/magnet-api/internal/logger"
)

const weightsDownloadTimeout = 30 * time.Minute

// WeightProvisioner ensures the model weights exist locally before any
// prediction is served. A missing cache triggers a single download-and-extract
// attempt; failure is fatal to startup.
type WeightProvisioner struct {
	cacheDir string
	url      string
	client   *http.Client
}

func NewWeightProvisioner(cacheDir, url string) *WeightProvisioner {
	return &WeightProvisioner{
		cacheDir: cacheDir,
		url:      url,
		client:   &http.Client{Timeout: weightsDownloadTimeout},
	}
}

// Ensure downloads and extracts the weight archive when the cache directory
// is absent. An existing directory is trusted as-is.
func (p *WeightProvisioner) Ensure(ctx context.Context) error {
	if _, err := os.Stat(p.cacheDir); err == nil {
		logger.Info("Weights cache present", logger.Fields{"dir": p.cacheDir})
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat weights cache: %w", err)
	}

	start := time.Now()
	logger.Info("Downloading weights", logger.Fields{"url": p.url, "dir": p.cacheDir})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("weights download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weights download failed: status %s", resp.Status)
	}

	// Extract into a sibling temp dir first so an interrupted extraction
	// never leaves a half-populated cache behind.
	parent := filepath.Dir(p.cacheDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create cache parent: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".weights-*")
	if err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractTar(resp.Body, staging); err != nil {
		return fmt.Errorf("weights extraction failed: %w", err)
	}

	if err := os.Rename(staging, p.cacheDir); err != nil {
		return fmt.Errorf("failed to move weights into place: %w", err)
	}

	logger.Info("Weights ready", logger.Fields{
		"dir":         p.cacheDir,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// extractTar unpacks a (possibly gzip-compressed) tar stream into dest.
func extractTar(r io.Reader, dest string) error {
	br := newPeekReader(r)
	if br.isGzip() {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("bad gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	} else {
		r = br
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("bad tar stream: %w", err)
		}

		target, err := sanitizePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("failed to write %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", target, err)
			}
		default:
			// Symlinks and special files don't occur in weight archives.
		}
	}
}

// sanitizePath rejects entries that would escape the destination directory.
func sanitizePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

// peekReader sniffs the first two bytes to detect gzip framing.
type peekReader struct {
	r      io.Reader
	header [2]byte
	n      int
	off    int
}

func newPeekReader(r io.Reader) *peekReader {
	p := &peekReader{r: r}
	p.n, _ = io.ReadFull(r, p.header[:])
	return p
}

func (p *peekReader) isGzip() bool {
	return p.n == 2 && p.header[0] == 0x1f && p.header[1] == 0x8b
}

func (p *peekReader) Read(b []byte) (int, error) {
	if p.off < p.n {
		copied := copy(b, p.header[p.off:p.n])
		p.off += copied
		return copied, nil
	}
	return p.r.Read(b)
}
