package sources

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

var filesystemKeywords = []string{"file", "files", "folder", "directory", "local", "disk", "document"}

// FilesystemAgent walks the configured roots, indexes matching files
// and answers searches from the indexed chunks.
type FilesystemAgent struct {
	config      config.FilesystemConfig
	maxFileSize int64
	logger      *log.Logger
	ingestor
	refresh refreshState
}

func NewFilesystemAgent(cfg config.FilesystemConfig, maxFileSize int64, in ingestor, refreshInterval time.Duration) *FilesystemAgent {
	return &FilesystemAgent{
		config:      cfg,
		maxFileSize: maxFileSize,
		logger:      log.New(log.Writer(), "[FS] ", log.LstdFlags),
		ingestor:    in,
		refresh:     refreshState{interval: refreshInterval},
	}
}

func (a *FilesystemAgent) Type() core.SourceType { return core.SourceFilesystem }

func (a *FilesystemAgent) IsRelevant(ctx context.Context, query string) (bool, error) {
	return keywordRelevance(query, filesystemKeywords), nil
}

// RefreshContent walks every configured root, filtering by extension
// and exclude globs, and ingests file contents. Unreadable entries are
// logged and skipped.
func (a *FilesystemAgent) RefreshContent(ctx context.Context) error {
	var firstErr error
	for _, root := range a.config.Roots {
		count := 0
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				a.logger.Printf("walk error at %s: %v", path, err)
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)
			if a.excluded(rel) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !a.wantedExtension(path) {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil || (a.maxFileSize > 0 && info.Size() > a.maxFileSize) {
				return nil
			}
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				a.logger.Printf("read failed for %s: %v", path, readErr)
				return nil
			}
			a.ingest(string(data), path, string(core.SourceFilesystem), map[string]interface{}{
				"path":      path,
				"extension": filepath.Ext(path),
				"size":      info.Size(),
				"modified":  info.ModTime().Format(time.RFC3339),
			})
			count++
			return nil
		})
		if err != nil {
			a.logger.Printf("walk failed for root %s: %v", root, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("filesystem refresh %s: %w", root, err)
			}
			continue
		}
		a.logger.Printf("indexed %d file(s) under %s", count, root)
	}
	return firstErr
}

func (a *FilesystemAgent) excluded(relPath string) bool {
	for _, pattern := range a.config.ExcludeGlob {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

func (a *FilesystemAgent) wantedExtension(path string) bool {
	if len(a.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range a.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

func (a *FilesystemAgent) Search(ctx context.Context, query string, maxResults int) (core.AgentResponse, error) {
	if a.refresh.due() {
		if err := a.RefreshContent(ctx); err != nil {
			a.logger.Printf("lazy refresh failed, serving stale index: %v", err)
		}
	}
	records := a.searchIndexed(query, string(core.SourceFilesystem), maxResults)
	return core.AgentResponse{
		SourceType: core.SourceFilesystem,
		Success:    true,
		Data:       records,
		Metadata:   map[string]interface{}{"roots": a.config.Roots},
	}, nil
}

func (a *FilesystemAgent) HealthCheck(ctx context.Context) (bool, error) {
	if len(a.config.Roots) == 0 {
		return false, nil
	}
	for _, root := range a.config.Roots {
		if _, err := os.Stat(root); err != nil {
			return false, fmt.Errorf("root %s not accessible: %w", root, err)
		}
	}
	return true, nil
}
