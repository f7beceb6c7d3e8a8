package download

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/scrapevault/scrapevault/internal/models"
)

// downloadItem runs the full per-item download: filename derivation,
// cache-skip, fetch-with-retry, chunked write, atomic rename, and
// catalog bookkeeping. Each call runs independently on whichever
// worker pulled r off the channel.
func (p *Pool) downloadItem(ctx context.Context, r *models.Resource) error {
	filename := deriveFilename(r)
	finalPath := targetPath(p.cfg.OutputDir, filename)

	_, statErr := os.Stat(finalPath)
	existed := statErr == nil

	// Inline content path (step 3): the resource carries its payload
	// directly, nothing to fetch.
	if r.Content != "" {
		if err := os.WriteFile(finalPath, []byte(r.Content), 0o644); err != nil {
			return p.fail(r, filename, models.NewError(models.KindStorage, "download.downloadItem", finalPath, err))
		}
		return p.succeed(r, filename, finalPath, int64(len(r.Content)), "")
	}

	// Cache-skip path (step 4): only applies when a same-named file is
	// already on disk; if its size doesn't match what the server has,
	// fall through to a disambiguated filename instead of overwriting it.
	if existed {
		if skipped, newPath, newFilename, err := p.trySkipCached(ctx, r, finalPath, filename); err != nil {
			return p.fail(r, filename, err)
		} else if skipped {
			return p.succeedSkipped(r, newFilename, newPath)
		} else if newPath != finalPath {
			finalPath = newPath
			filename = newFilename
		}
	}

	// Data-URI path (step 5).
	if strings.HasPrefix(r.URL, "data:") {
		payload, err := decodeDataURI(r.URL)
		if err != nil {
			return p.fail(r, filename, models.NewError(models.KindInvalidInput, "download.downloadItem", r.URL, err))
		}
		if err := writeAtomic(finalPath, payload, p.cfg.ChunkBytes); err != nil {
			return p.fail(r, filename, models.NewError(models.KindStorage, "download.downloadItem", finalPath, err))
		}
		return p.succeed(r, filename, finalPath, int64(len(payload)), "")
	}

	if !isAbsoluteURL(r.URL) {
		return p.fail(r, filename, models.NewError(models.KindInvalidInput, "download.downloadItem", r.URL, fmt.Errorf("unrecognized resource URL")))
	}

	return p.downloadRemote(ctx, r, filename, finalPath)
}

// trySkipCached issues the cache-skip HEAD check against the existing
// file at finalPath. If sizes match within cacheSkewBytes it reports
// skipped=true. Otherwise it returns a disambiguated filename/path the
// download should use instead, leaving the existing file untouched.
func (p *Pool) trySkipCached(ctx context.Context, r *models.Resource, finalPath, filename string) (skipped bool, path, name string, err error) {
	info, statErr := os.Stat(finalPath)
	if statErr != nil {
		return false, finalPath, filename, nil
	}

	if isAbsoluteURL(r.URL) {
		resp, headErr := p.fetcher.Head(ctx, r.URL, r.Headers)
		if headErr == nil {
			if cl := resp.ContentLength(); cl >= 0 && absDiff(cl, info.Size()) <= p.cfg.CacheSkewBytes {
				return true, finalPath, filename, nil
			}
		}
	}

	newName := nextAvailableName(p.cfg.OutputDir, filename)
	return false, targetPath(p.cfg.OutputDir, newName), newName, nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}

func (p *Pool) downloadRemote(ctx context.Context, r *models.Resource, filename, finalPath string) error {
	tmp := tempPath(finalPath)

	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if p.stopFlag.Load() {
			return models.NewError(models.KindCancelled, "download.downloadRemote", r.URL, fmt.Errorf("cancelled"))
		}
		if attempt > 0 {
			delay := p.cfg.RetryBaseDelay * time.Duration(attempt) // retry N (1-based) waits N*base
			select {
			case <-ctx.Done():
				os.Remove(tmp)
				return models.NewError(models.KindCancelled, "download.downloadRemote", r.URL, ctx.Err())
			case <-time.After(delay):
			}
		}

		os.Remove(tmp)

		resp, err := p.fetcher.Get(ctx, r.URL, r.Headers, true, r.Referer)
		if err != nil {
			lastErr = err
			if models.IsKind(err, models.KindHTTP) || models.IsKind(err, models.KindInvalidInput) {
				break
			}
			continue
		}

		if ok, dsErr := p.hasDiskSpace(resp.ContentLength()); !ok {
			os.Remove(tmp)
			return p.fail(r, filename, dsErr)
		}

		if err := writeChunked(tmp, resp.Body, p.cfg.ChunkBytes); err != nil {
			lastErr = err
			continue
		}

		os.Remove(finalPath)
		if err := os.Rename(tmp, finalPath); err != nil {
			lastErr = err
			continue
		}

		return p.succeed(r, filename, finalPath, int64(len(resp.Body)), "")
	}

	os.Remove(tmp)
	return p.fail(r, filename, models.NewError(models.KindNetwork, "download.downloadRemote", r.URL, lastErr))
}

// hasDiskSpace is the pre-flight check run before writing body to disk.
func (p *Pool) hasDiskSpace(declaredLength int64) (bool, error) {
	usage, err := disk.Usage(p.cfg.OutputDir)
	if err != nil {
		// Disk usage is unreadable; don't block the download on a
		// platform quirk, only on a confirmed shortfall.
		return true, nil
	}

	need := p.cfg.MinFreeBytes
	if declaredLength > need {
		need = declaredLength
	}
	need += p.cfg.ReserveBytes

	if int64(usage.Free) < need {
		return false, models.NewError(models.KindDiskSpace, "download.hasDiskSpace", p.cfg.OutputDir,
			fmt.Errorf("need %d bytes free, have %d", need, usage.Free))
	}
	return true, nil
}

// writeChunked streams body to path in chunkSize-byte pieces so a
// single large in-memory buffer is never copied in one shot.
func writeChunked(path string, body []byte, chunkSize int) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for off := 0; off < len(body); off += chunkSize {
		end := off + chunkSize
		if end > len(body) {
			end = len(body)
		}
		if _, err := f.Write(body[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(finalPath string, payload []byte, chunkSize int) error {
	tmp := tempPath(finalPath)
	if err := writeChunked(tmp, payload, chunkSize); err != nil {
		os.Remove(tmp)
		return err
	}
	os.Remove(finalPath)
	return os.Rename(tmp, finalPath)
}

func decodeDataURI(raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "data" {
		return nil, fmt.Errorf("not a data URI")
	}
	comma := strings.IndexByte(u.Opaque, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI")
	}
	meta, payload := u.Opaque[:comma], u.Opaque[comma+1:]
	if strings.Contains(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	decoded, err := url.QueryUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(decoded), nil
}

func (p *Pool) succeed(r *models.Resource, filename, localPath string, size int64, errMsg string) error {
	r.Status = models.ResourceStatusCompleted
	r.LocalPath = localPath
	r.Size = size
	r.Error = errMsg
	p.recordResult(r, filename, localPath, size, models.ResourceStatusCompleted, errMsg)
	return nil
}

func (p *Pool) succeedSkipped(r *models.Resource, filename, localPath string) error {
	const msg = "Skipped (cached)"
	r.Status = models.ResourceStatusCompleted
	r.LocalPath = localPath
	r.Error = msg
	p.recordResult(r, filename, localPath, r.Size, models.ResourceStatusCompleted, msg)
	return nil
}

func (p *Pool) fail(r *models.Resource, filename string, cause error) error {
	r.Status = models.ResourceStatusFailed
	r.Error = cause.Error()
	p.recordResult(r, filename, "", 0, models.ResourceStatusFailed, cause.Error())
	return cause
}

func (p *Pool) recordResult(r *models.Resource, filename, localPath string, size int64, status models.ResourceStatus, errMsg string) {
	if p.catalog == nil {
		return
	}
	record := models.ResourceRecord{
		TaskID:    p.taskID,
		URL:       r.URL,
		Type:      r.Type,
		Filename:  filename,
		LocalPath: localPath,
		FileSize:  size,
		Status:    status,
		Error:     errMsg,
	}
	id, err := p.catalog.AddResource(p.taskID, record)
	if err != nil {
		return
	}
	if id < 0 {
		// Row already exists for (task_id, url); update it in place
		// instead of inserting a duplicate.
		p.catalog.UpdateResourceStatus(p.taskID, r.URL, status, localPath, size, errMsg)
	}
}
