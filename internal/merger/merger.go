// Package merger wraps the external HLS segment merger binary, shelling
// out to ffmpeg's concat demuxer with a PATH availability probe exposed
// as Available() below. No other package calls Merge: DownloadPool
// fetches an HLS playlist resource's URL and saves the response body
// like any other resource, without pulling or merging its segments.
package merger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/scrapevault/scrapevault/internal/models"
)

const mergeTimeout = 300 * time.Second

// Merger shells out to a concat-capable binary (ffmpeg by default).
type Merger struct {
	binary string
}

// New builds a Merger that invokes binary (commonly "ffmpeg", found on
// PATH) for every Merge call.
func New(binary string) *Merger {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Merger{binary: binary}
}

// Available reports whether the configured binary responds to
// "-version", mirroring ffmpeg_checker.check_ffmpeg.
func (m *Merger) Available() (bool, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.binary, "-version")
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return false, fmt.Sprintf("%s not found in PATH", m.binary)
		}
		return false, err.Error()
	}
	lines := strings.SplitN(string(out), "\n", 2)
	return true, lines[0]
}

// Merge concatenates segmentPaths (already downloaded, in order) into
// outputPath using the concat demuxer. segmentPaths and outputPath's
// directory must exist.
func (m *Merger) Merge(ctx context.Context, segmentPaths []string, outputPath string) error {
	if len(segmentPaths) == 0 {
		return models.NewError(models.KindInvalidInput, "merger.Merge", outputPath, fmt.Errorf("no segments to merge"))
	}

	listFile := filepath.Join(filepath.Dir(segmentPaths[0]), "filelist.txt")
	if err := writeFileList(listFile, segmentPaths); err != nil {
		return models.NewError(models.KindStorage, "merger.Merge", listFile, err)
	}
	defer os.Remove(listFile)

	mctx, cancel := context.WithTimeout(ctx, mergeTimeout)
	defer cancel()

	cmd := exec.CommandContext(mctx, m.binary,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-y",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return models.NewError(models.KindStorage, "merger.Merge", outputPath, fmt.Errorf("%w: %s", err, stderr.String()))
	}

	if _, err := os.Stat(outputPath); err != nil {
		return models.NewError(models.KindStorage, "merger.Merge", outputPath, fmt.Errorf("merger reported success but output is missing"))
	}
	return nil
}

// writeFileList writes the UTF-8 concat-demuxer file list, one
// forward-slashed segment path per line.
func writeFileList(path string, segmentPaths []string) error {
	var b strings.Builder
	for _, seg := range segmentPaths {
		b.WriteString(fmt.Sprintf("file '%s'\n", filepath.ToSlash(seg)))
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
