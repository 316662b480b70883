package extraction

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

// Member is a single usable file inside an archive.
type Member struct {
	Path string
	Data []byte
}

// ExpandStats summarizes one archive walk.
type ExpandStats struct {
	Processed int
	Skipped   int
}

// Expander walks zip archives and yields members worth extracting.
// Directories, OS metadata files, empty entries and entries above the
// size ceiling are skipped, never failed.
type Expander struct {
	maxEntrySize int64
}

func NewExpander(maxEntrySize int64) *Expander {
	return &Expander{maxEntrySize: maxEntrySize}
}

// Walk calls fn for every eligible member. An error from fn aborts the
// walk; skip decisions only count toward the returned stats.
func (x *Expander) Walk(data []byte, fn func(Member) error) (ExpandStats, error) {
	var stats ExpandStats

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return stats, fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if IsSystemFile(f.Name) {
			stats.Skipped++
			continue
		}

		rc, err := f.Open()
		if err != nil {
			logger.Warn("skipping unreadable archive entry", "entry", f.Name, "error", err)
			stats.Skipped++
			continue
		}
		content, err := io.ReadAll(io.LimitReader(rc, x.maxEntrySize+1))
		rc.Close()
		if err != nil {
			logger.Warn("skipping archive entry after read error", "entry", f.Name, "error", err)
			stats.Skipped++
			continue
		}
		if int64(len(content)) > x.maxEntrySize {
			logger.Warn("skipping oversized archive entry", "entry", f.Name, "limit_bytes", x.maxEntrySize)
			stats.Skipped++
			continue
		}
		if len(content) == 0 {
			stats.Skipped++
			continue
		}

		if err := fn(Member{Path: f.Name, Data: content}); err != nil {
			return stats, err
		}
		stats.Processed++
	}

	return stats, nil
}

// IsSystemFile reports whether an archive entry is OS metadata rather
// than user content: macOS resource forks, __MACOSX folders, Windows
// thumbnails and hidden dotfiles.
func IsSystemFile(name string) bool {
	clean := strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	if strings.HasPrefix(clean, "__macosx/") || strings.Contains(clean, "/__macosx/") {
		return true
	}
	base := path.Base(clean)
	switch base {
	case "thumbs.db", "desktop.ini":
		return true
	}
	if strings.HasPrefix(base, "._") {
		return true
	}
	if strings.HasPrefix(base, ".") {
		return true
	}
	return false
}
