package dictionary

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/h2non/filetype"
)

// GitHubPrefix marks a source as "github:owner/repo": the newest release asset
// ending in ArchiveExt is downloaded.
const GitHubPrefix = "github:"

// ArchiveExt is the file extension of spelling archives.
const ArchiveExt = ".zhfst"

// GitHubAPI is the release API base. Tests point it at a local server.
var GitHubAPI = "https://api.github.com"

var httpClient = &http.Client{Timeout: 60 * time.Second}

// EnsureArchive makes sure an archive exists at path. If it is missing, it is
// downloaded from source, which is either a URL or a GitHubPrefix reference.
// Gzipped tarballs are unpacked; the first archive member is kept.
func EnsureArchive(ctx context.Context, path, source string, logger *slog.Logger) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if source == "" {
		return fmt.Errorf("archive %s not found and no download source given", path)
	}

	logger.Info("archive not found, downloading", "path", path, "source", source)
	url := source
	if repo, ok := strings.CutPrefix(source, GitHubPrefix); ok {
		var err error
		url, err = latestReleaseAssetURL(ctx, repo)
		if err != nil {
			return fmt.Errorf("find latest archive release: %w", err)
		}
	}
	logger.Info("downloading", "url", url)
	return downloadAndExtract(ctx, url, path)
}

func latestReleaseAssetURL(ctx context.Context, repo string) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(GitHubAPI, "/"), repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", err
	}
	// Add User-Agent as required by GitHub API
	req.Header.Set("User-Agent", "spellbridge-cli")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("github api returned status: %s", resp.Status)
	}

	var release struct {
		Assets []struct {
			Name               string `json:"name"`
			BrowserDownloadURL string `json:"browser_download_url"`
		} `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	for _, asset := range release.Assets {
		if strings.HasSuffix(asset.Name, ArchiveExt) || strings.HasSuffix(asset.Name, ArchiveExt+".tgz") ||
			strings.HasSuffix(asset.Name, ".tar.gz") {
			return asset.BrowserDownloadURL, nil
		}
	}
	return "", fmt.Errorf("no archive asset in latest release of %s", repo)
}

func downloadAndExtract(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: %s", resp.Status)
	}

	// Stage next to the destination so the final rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extract(resp.Body, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

// extract copies a raw archive through, or unpacks the first archive member
// of a gzipped tarball. Anything else is rejected.
func extract(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	head, _ := br.Peek(262)
	kind, _ := filetype.Match(head)
	switch kind.Extension {
	case "zip":
		_, err := io.Copy(w, br)
		return err
	case "gz":
	default:
		return fmt.Errorf("downloaded file is neither an archive nor a gzipped tarball (detected %q)", kind.Extension)
	}

	gzReader, err := gzip.NewReader(br)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return fmt.Errorf("no %s file found in downloaded tarball", ArchiveExt)
		}
		if err != nil {
			return fmt.Errorf("read tar archive: %w", err)
		}
		if header.Typeflag == tar.TypeReg && strings.HasSuffix(header.Name, ArchiveExt) {
			if _, err := io.Copy(w, tarReader); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
			return nil
		}
	}
}
