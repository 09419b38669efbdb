package fetch

import (
	"context"
	"crypto/sha1" //nolint:gosec // SHA-1 is the upstream content address
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/steviee/bread-launcher/internal/apperr"
	"github.com/steviee/bread-launcher/internal/state"
)

// Fetch makes destDir/filename hold the content at rawURL.
//
// An existing file is accepted without a request when expectedSHA1 is empty
// or matches it. Otherwise the body is downloaded into memory, verified and
// written through a temp sibling and rename. Failures are retried up to
// maxAttempts times with a linear backoff.
func (c *Client) Fetch(ctx context.Context, destDir, filename, rawURL, expectedSHA1 string, maxAttempts int) error {
	target := filepath.Join(destDir, filename)

	ok, err := present(target, expectedSHA1)
	if err != nil {
		return err
	}
	if ok {
		slog.Debug("already present", "path", target)
		return nil
	}

	return c.retry(ctx, rawURL, maxAttempts, func() error {
		return c.fetchOnce(ctx, target, rawURL, expectedSHA1)
	})
}

func (c *Client) fetchOnce(ctx context.Context, target, rawURL, expectedSHA1 string) error {
	body, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}

	if expectedSHA1 != "" {
		actual := SumBytes(body)
		if !strings.EqualFold(actual, expectedSHA1) {
			slog.Warn("sha1 mismatch", "url", rawURL, "expected", expectedSHA1, "actual", actual)
			return &apperr.HashMismatchError{URL: rawURL, Expected: strings.ToLower(expectedSHA1), Actual: actual}
		}
	}

	if err := state.AtomicWrite(target, body, 0644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}

	slog.Debug("downloaded", "url", rawURL, "path", target, "bytes", len(body))
	return nil
}

// present reports whether path exists and, when expectedSHA1 is set, hashes to it.
func present(path, expectedSHA1 string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, apperr.Errorf(apperr.Config, "fetch", "%s is a directory", path)
	}

	if expectedSHA1 == "" {
		return true, nil
	}

	return VerifyFile(path, expectedSHA1)
}

// VerifyFile reports whether the file at path hashes to expectedSHA1 (case-insensitive hex).
func VerifyFile(path, expectedSHA1 string) (bool, error) {
	actual, err := SumFile(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(actual, expectedSHA1), nil
}

// SumFile returns the lowercase hex SHA-1 of the file at path.
func SumFile(path string) (string, error) {
	//nolint:gosec // G304: path is built from the data root
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumBytes returns the lowercase hex SHA-1 of b.
func SumBytes(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
