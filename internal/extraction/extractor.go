package extraction

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrNoExtractor means no registered extractor supports the detected media type.
	ErrNoExtractor = errors.New("no extractor for media type")
	// ErrEmptyContent means extraction ran but produced no usable text.
	ErrEmptyContent = errors.New("extracted content is empty")
)

// Extractor turns one file format into plain text.
type Extractor interface {
	// Supports reports whether this extractor handles the given media type
	// (parameters already stripped, e.g. "application/pdf").
	Supports(mediaType string) bool
	// Extract produces plain text from the raw file bytes.
	Extract(ctx context.Context, data []byte, mediaType string) (string, error)
	// Priority orders extractors; lower values are consulted first.
	Priority() int
}

// Registry holds extractors sorted by ascending priority. Selection walks
// the list in order and picks the first extractor whose Supports returns
// true, so a low-priority specialist wins over a generic handler.
type Registry struct {
	extractors []Extractor
}

func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{}
	for _, e := range extractors {
		r.Add(e)
	}
	return r
}

func (r *Registry) Add(e Extractor) {
	r.extractors = append(r.extractors, e)
	sort.SliceStable(r.extractors, func(i, j int) bool {
		return r.extractors[i].Priority() < r.extractors[j].Priority()
	})
}

// ForMediaType returns the highest-precedence extractor for mediaType,
// or ErrNoExtractor if none supports it.
func (r *Registry) ForMediaType(mediaType string) (Extractor, error) {
	return r.selectExcluding(mediaType, nil)
}

func (r *Registry) selectExcluding(mediaType string, exclude Extractor) (Extractor, error) {
	for _, e := range r.extractors {
		if e == exclude {
			continue
		}
		if e.Supports(mediaType) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoExtractor, mediaType)
}

// DetectMediaType sniffs the media type from content, ignoring the client
// supplied Content-Type. Parameters such as charset are stripped.
func DetectMediaType(data []byte) string {
	mtype := mimetype.Detect(data)
	media := mtype.String()
	if i := strings.IndexByte(media, ';'); i >= 0 {
		media = media[:i]
	}
	return strings.TrimSpace(media)
}
