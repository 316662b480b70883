package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LLMontreal/llmontreal-backend/internal/correlation"
	"github.com/LLMontreal/llmontreal-backend/internal/extraction"
	"github.com/LLMontreal/llmontreal-backend/internal/logger"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/models"
)

var (
	// ErrFileTooLarge means the upload exceeds the configured ceiling.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")

	// ErrUnsupportedFileType means the declared media type is not allow-listed.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrEmptyArchive means an uploaded archive holds no usable members.
	ErrEmptyArchive = errors.New("archive contains no processable files")

	// ErrInvalidStateTransition means the requested operation does not
	// apply to the document's current state, e.g. regenerating a summary
	// before extraction ever succeeded.
	ErrInvalidStateTransition = errors.New("operation not valid for document state")

	// ErrSummaryUnavailable means the document has no summary to return.
	ErrSummaryUnavailable = errors.New("summary not available")
)

// SummaryDispatcher submits summarization jobs and returns awaitable handles.
type SummaryDispatcher interface {
	DispatchSummary(ctx context.Context, documentID string) (*correlation.Pending, error)
}

// Service drives the document lifecycle: validate, persist, extract,
// summarize, and answer reads. Uploads block until the summary result
// lands or the wait ceiling passes; archive members are processed on the
// extraction pool instead.
type Service struct {
	docs     store.DocumentStore
	pipeline *extraction.Pipeline
	expander *extraction.Expander
	pool     *extraction.Pool
	dispatch SummaryDispatcher

	maxFileSize  int64
	allowedTypes map[string]bool
	summaryWait  time.Duration
}

func NewService(
	docs store.DocumentStore,
	pipeline *extraction.Pipeline,
	expander *extraction.Expander,
	pool *extraction.Pool,
	dispatch SummaryDispatcher,
	maxFileSize int64,
	allowedTypes []string,
	summaryWait time.Duration,
) *Service {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		t = strings.TrimSpace(strings.ToLower(t))
		if t != "" {
			allowed[t] = true
		}
	}
	return &Service{
		docs:         docs,
		pipeline:     pipeline,
		expander:     expander,
		pool:         pool,
		dispatch:     dispatch,
		maxFileSize:  maxFileSize,
		allowedTypes: allowed,
		summaryWait:  summaryWait,
	}
}

// Upload processes a single-file upload end to end. It extracts text
// synchronously, dispatches the summary job, and blocks until the
// summary result arrives or the wait ceiling passes. The returned
// document reflects the final persisted state.
func (s *Service) Upload(ctx context.Context, fileName, declaredType string, data []byte) (*models.Document, error) {
	if err := s.validate(declaredType, int64(len(data))); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:        uuid.NewString(),
		FileName:  fileName,
		FileType:  declaredType,
		FileData:  data,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}

	if err := s.docs.SetStatus(ctx, doc.ID, models.StatusProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	outcome := s.pipeline.Extract(ctx, data)
	if !outcome.OK() {
		logger.Warn("extraction failed", "document_id", doc.ID, "file_name", fileName, "error", outcome.Err)
		if err := s.docs.Fail(ctx, doc.ID, outcome.Err.Error()); err != nil {
			return nil, fmt.Errorf("record extraction failure: %w", err)
		}
		return s.docs.FindByID(ctx, doc.ID)
	}

	if err := s.docs.SetExtractedText(ctx, doc.ID, outcome.Text); err != nil {
		return nil, fmt.Errorf("persist extracted text: %w", err)
	}

	return s.summarizeAndWait(ctx, doc.ID)
}

// IngestResult describes what an archive upload produced.
type IngestResult struct {
	ArchiveName string   `json:"archive_name"`
	Accepted    int      `json:"accepted"`
	Skipped     int      `json:"skipped"`
	DocumentIDs []string `json:"document_ids"`
}

// IngestArchive fans an archive out into one document per usable member.
// Members are persisted synchronously so their ids can be returned, then
// extraction and summarization run on the pool in the background.
func (s *Service) IngestArchive(ctx context.Context, fileName string, data []byte) (*IngestResult, error) {
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	result := &IngestResult{ArchiveName: fileName}

	stats, err := s.expander.Walk(data, func(m extraction.Member) error {
		doc := &models.Document{
			ID:        uuid.NewString(),
			FileName:  m.Path,
			FileType:  extraction.DetectMediaType(m.Data),
			FileData:  m.Data,
			Status:    models.StatusPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		if err := s.docs.Insert(ctx, doc); err != nil {
			return fmt.Errorf("persist archive member %q: %w", m.Path, err)
		}
		result.DocumentIDs = append(result.DocumentIDs, doc.ID)

		id, memberData := doc.ID, m.Data
		if err := s.pool.Submit(func() {
			s.processMember(id, memberData)
		}); err != nil {
			// Queue full: the document stays pending, surfaced as failed.
			failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if ferr := s.docs.Fail(failCtx, id, err.Error()); ferr != nil {
				logger.Error("failed to record queue rejection", "document_id", id, "error", ferr)
			}
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Accepted = stats.Processed
	result.Skipped = stats.Skipped
	if result.Accepted == 0 {
		return nil, ErrEmptyArchive
	}

	logger.Info("archive accepted",
		"archive", fileName, "documents", result.Accepted, "skipped", result.Skipped)
	return result, nil
}

// processMember runs on the extraction pool: extract, persist, summarize.
// The pool task finishes as soon as the summary job is dispatched; a
// separate goroutine waits out the result so pool workers stay available.
func (s *Service) processMember(documentID string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)

	if err := s.docs.SetStatus(ctx, documentID, models.StatusProcessing); err != nil {
		logger.Error("failed to mark archive member processing", "document_id", documentID, "error", err)
		cancel()
		return
	}

	outcome := s.pipeline.Extract(ctx, data)
	if !outcome.OK() {
		if err := s.docs.Fail(ctx, documentID, outcome.Err.Error()); err != nil {
			logger.Error("failed to record member extraction failure", "document_id", documentID, "error", err)
		}
		cancel()
		return
	}

	if err := s.docs.SetExtractedText(ctx, documentID, outcome.Text); err != nil {
		logger.Error("failed to persist member text", "document_id", documentID, "error", err)
		cancel()
		return
	}

	pending, err := s.dispatch.DispatchSummary(ctx, documentID)
	if err != nil {
		if ferr := s.docs.Fail(ctx, documentID, err.Error()); ferr != nil {
			logger.Error("failed to record dispatch failure", "document_id", documentID, "error", ferr)
		}
		cancel()
		return
	}

	go func() {
		defer cancel()
		s.awaitSummary(ctx, documentID, pending)
	}()
}

// RegenerateSummary re-runs summarization for a document whose text was
// already extracted. Concurrent regenerations are serialized through the
// version guard: the loser gets ErrVersionConflict.
func (s *Service) RegenerateSummary(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.HasExtractedText() {
		return nil, fmt.Errorf("%w: document %s has no extracted text", ErrInvalidStateTransition, id)
	}

	if err := s.docs.BeginRegeneration(ctx, id, doc.Version); err != nil {
		return nil, err
	}

	return s.summarizeAndWait(ctx, id)
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.docs.FindByID(ctx, id)
}

// GetExtractedText returns the extracted text, or ErrInvalidStateTransition
// when extraction has not produced any.
func (s *Service) GetExtractedText(ctx context.Context, id string) (string, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if !doc.HasExtractedText() {
		return "", fmt.Errorf("%w: no extracted text for document %s", ErrInvalidStateTransition, id)
	}
	return doc.ExtractedText, nil
}

// GetSummary returns the summary of a completed document.
func (s *Service) GetSummary(ctx context.Context, id string) (string, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.Status != models.StatusCompleted || doc.Summary == "" {
		return "", fmt.Errorf("%w: document %s is %s", ErrSummaryUnavailable, id, doc.Status)
	}
	return doc.Summary, nil
}

// List returns a page of documents, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, page, size int64) ([]models.Document, int64, error) {
	return s.docs.List(ctx, status, page, size)
}

// summarizeAndWait dispatches the summary job and blocks until the
// result envelope arrives. The worker persists the document state before
// publishing, so on success a fresh read returns the summary.
func (s *Service) summarizeAndWait(ctx context.Context, documentID string) (*models.Document, error) {
	pending, err := s.dispatch.DispatchSummary(ctx, documentID)
	if err != nil {
		if ferr := s.docs.Fail(ctx, documentID, err.Error()); ferr != nil {
			logger.Error("failed to record dispatch failure", "document_id", documentID, "error", ferr)
		}
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.summaryWait)
	defer cancel()

	if _, err := pending.Wait(waitCtx); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, correlation.ErrTimeout):
			if ferr := s.docs.Fail(context.WithoutCancel(ctx), documentID, "summary generation timed out"); ferr != nil {
				logger.Error("failed to record summary timeout", "document_id", documentID, "error", ferr)
			}
			return nil, fmt.Errorf("document %s: %w", documentID, correlation.ErrTimeout)
		default:
			// Remote failure: the worker already persisted the failed state.
			return nil, err
		}
	}

	return s.docs.FindByID(ctx, documentID)
}

// awaitSummary is the background variant for archive members.
func (s *Service) awaitSummary(ctx context.Context, documentID string, pending *correlation.Pending) {
	waitCtx, cancel := context.WithTimeout(ctx, s.summaryWait)
	defer cancel()

	if _, err := pending.Wait(waitCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, correlation.ErrTimeout) {
			failCtx, cancelFail := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelFail()
			if ferr := s.docs.Fail(failCtx, documentID, "summary generation timed out"); ferr != nil {
				logger.Error("failed to record summary timeout", "document_id", documentID, "error", ferr)
			}
		}
		logger.Warn("archive member summary failed", "document_id", documentID, "error", err)
		return
	}
	logger.Info("archive member summarized", "document_id", documentID)
}

func (s *Service) validate(declaredType string, size int64) error {
	if size > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, s.maxFileSize)
	}
	mediaType := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if !s.allowedTypes[mediaType] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFileType, declaredType)
	}
	return nil
}
