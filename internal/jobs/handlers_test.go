package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LLMontreal/llmontreal-backend/internal/broker"
	"github.com/LLMontreal/llmontreal-backend/internal/store"
	"github.com/LLMontreal/llmontreal-backend/models"
)

type memDocs struct {
	mu   sync.Mutex
	docs map[string]*models.Document
}

func newMemDocs() *memDocs {
	return &memDocs{docs: make(map[string]*models.Document)}
}

func (s *memDocs) Insert(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *memDocs) FindByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (s *memDocs) List(_ context.Context, _ string, _, _ int64) ([]models.Document, int64, error) {
	return nil, 0, nil
}

func (s *memDocs) SetStatus(_ context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].Status = status
	return nil
}

func (s *memDocs) SetExtractedText(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].ExtractedText = text
	return nil
}

func (s *memDocs) CompleteWithSummary(_ context.Context, id, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Summary = summary
	doc.Status = models.StatusCompleted
	return nil
}

func (s *memDocs) Fail(_ context.Context, id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	doc.Status = models.StatusFailed
	doc.ErrorMessage = msg
	return nil
}

func (s *memDocs) BeginRegeneration(_ context.Context, _ string, _ int64) error {
	return nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*models.ChatSession)}
}

func (s *memSessions) Insert(_ context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *memSessions) FindByID(_ context.Context, id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *session
	cp.Messages = append([]models.ChatMessage(nil), session.Messages...)
	return &cp, nil
}

func (s *memSessions) FindByDocumentID(_ context.Context, documentID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		if session.DocumentID == documentID {
			cp := *session
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *memSessions) AppendMessage(_ context.Context, sessionID string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	session.Messages = append(session.Messages, msg)
	return nil
}

type noopAPILog struct{}

func (noopAPILog) Record(context.Context, *models.APICallLog) error { return nil }
func (noopAPILog) RecordJobResult(context.Context, string, int64, int, string) error {
	return nil
}

type stubGenerator struct {
	answer string
	err    error

	mu      sync.Mutex
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, _ string, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

// capturingPublisher records each envelope together with a snapshot of
// storage taken at publish time, so tests can assert the outcome was
// persisted before the envelope went out.
type capturingPublisher struct {
	docs     *memDocs
	sessions *memSessions

	chat      []broker.ChatResponse
	chatState []models.ChatSession
	summary   []broker.SummaryResponse
	docState  []models.Document
}

func (p *capturingPublisher) PublishChatResponse(ctx context.Context, resp broker.ChatResponse) error {
	p.chat = append(p.chat, resp)
	if resp.Result != nil {
		if session, err := p.sessions.FindByID(ctx, resp.Result.ChatSessionID); err == nil {
			p.chatState = append(p.chatState, *session)
		}
	}
	return nil
}

func (p *capturingPublisher) PublishSummaryResponse(ctx context.Context, resp broker.SummaryResponse) error {
	p.summary = append(p.summary, resp)
	if doc, err := p.docs.FindByID(ctx, resp.DocumentID); err == nil {
		p.docState = append(p.docState, *doc)
	}
	return nil
}

func newTestHandlers(t *testing.T, gen *stubGenerator) (*Handlers, *memDocs, *memSessions, *capturingPublisher) {
	t.Helper()
	docs := newMemDocs()
	sessions := newMemSessions()
	pub := &capturingPublisher{docs: docs, sessions: sessions}
	return NewHandlers(docs, sessions, noopAPILog{}, gen, pub, "llama3.1"), docs, sessions, pub
}

func TestHandleSummaryTaskPersistsBeforePublish(t *testing.T) {
	gen := &stubGenerator{answer: "a concise summary"}
	h, docs, _, pub := newTestHandlers(t, gen)

	if err := docs.Insert(context.Background(), &models.Document{
		ID:            "d1",
		FileName:      "notes.txt",
		Status:        models.StatusProcessing,
		ExtractedText: "meeting notes",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	task, err := broker.NewSummaryTask(broker.SummaryRequest{CorrelationID: "c1", DocumentID: "d1"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := h.HandleSummaryTask(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(pub.summary) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pub.summary))
	}
	env := pub.summary[0]
	if env.Error || env.Summary != "a concise summary" || env.CorrelationID != "c1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	// The snapshot taken at publish time must already show the completed
	// document: a caller that sees the envelope reads consistent storage.
	if len(pub.docState) != 1 {
		t.Fatalf("no storage snapshot at publish time")
	}
	snap := pub.docState[0]
	if snap.Status != models.StatusCompleted || snap.Summary != "a concise summary" {
		t.Fatalf("envelope published before persistence: status %s summary %q", snap.Status, snap.Summary)
	}
}

func TestHandleSummaryTaskFailurePersistsBeforeErrorEnvelope(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model exploded")}
	h, docs, _, pub := newTestHandlers(t, gen)

	if err := docs.Insert(context.Background(), &models.Document{
		ID:            "d1",
		FileName:      "notes.txt",
		Status:        models.StatusProcessing,
		ExtractedText: "meeting notes",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	task, err := broker.NewSummaryTask(broker.SummaryRequest{CorrelationID: "c1", DocumentID: "d1"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := h.HandleSummaryTask(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(pub.summary) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pub.summary))
	}
	env := pub.summary[0]
	if !env.Error || !strings.Contains(env.ErrorMessage, "model exploded") {
		t.Fatalf("error envelope missing failure: %+v", env)
	}

	snap := pub.docState[0]
	if snap.Status != models.StatusFailed || snap.ErrorMessage == "" {
		t.Fatalf("failure published before persistence: status %s error %q", snap.Status, snap.ErrorMessage)
	}
	if snap.ExtractedText != "meeting notes" {
		t.Fatalf("extraction output lost on job failure")
	}
}

func TestHandleChatTaskPersistsReplyBeforePublish(t *testing.T) {
	gen := &stubGenerator{answer: "revenue grew ten percent"}
	h, docs, sessions, pub := newTestHandlers(t, gen)

	if err := docs.Insert(context.Background(), &models.Document{
		ID:            "d1",
		FileName:      "report.pdf",
		Status:        models.StatusCompleted,
		ExtractedText: "revenue grew 10%",
	}); err != nil {
		t.Fatalf("insert doc: %v", err)
	}
	if err := sessions.Insert(context.Background(), &models.ChatSession{
		ID:         "s1",
		DocumentID: "d1",
		Model:      "llama3.1",
		Messages: []models.ChatMessage{
			{Author: models.AuthorUser, Text: "what grew?", CreatedAt: time.Now().UTC()},
		},
	}); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	task, err := broker.NewChatTask(broker.ChatRequest{
		CorrelationID: "c1",
		ChatSessionID: "s1",
		Prompt:        "what grew?",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := h.HandleChatTask(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(pub.chat) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pub.chat))
	}
	env := pub.chat[0]
	if env.Error || env.Result == nil || env.Result.Response != "revenue grew ten percent" {
		t.Fatalf("unexpected envelope: %+v", env)
	}

	// The model reply was appended to the session before the envelope
	// was published.
	if len(pub.chatState) != 1 {
		t.Fatalf("no session snapshot at publish time")
	}
	msgs := pub.chatState[0].Messages
	if len(msgs) != 2 || msgs[1].Author != models.AuthorModel || msgs[1].Text != "revenue grew ten percent" {
		t.Fatalf("reply published before persistence: %+v", msgs)
	}
}

func TestHandleChatTaskFailurePublishesErrorEnvelope(t *testing.T) {
	gen := &stubGenerator{err: errors.New("model exploded")}
	h, docs, sessions, pub := newTestHandlers(t, gen)

	if err := docs.Insert(context.Background(), &models.Document{
		ID:            "d1",
		Status:        models.StatusCompleted,
		ExtractedText: "text",
	}); err != nil {
		t.Fatalf("insert doc: %v", err)
	}
	if err := sessions.Insert(context.Background(), &models.ChatSession{
		ID:         "s1",
		DocumentID: "d1",
		Model:      "llama3.1",
		Messages: []models.ChatMessage{
			{Author: models.AuthorUser, Text: "hello?"},
		},
	}); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	task, err := broker.NewChatTask(broker.ChatRequest{CorrelationID: "c1", ChatSessionID: "s1", Prompt: "hello?"})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := h.HandleChatTask(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(pub.chat) != 1 {
		t.Fatalf("published %d envelopes, want 1", len(pub.chat))
	}
	env := pub.chat[0]
	if !env.Error || !strings.Contains(env.ErrorMessage, "model exploded") {
		t.Fatalf("error envelope missing failure: %+v", env)
	}

	// No model reply is persisted for a failed generation.
	session, err := sessions.FindByID(context.Background(), "s1")
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if len(session.Messages) != 1 {
		t.Fatalf("failed job appended a reply: %+v", session.Messages)
	}
}
