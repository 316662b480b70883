package jobs

import (
	"strings"
	"testing"

	"github.com/LLMontreal/llmontreal-backend/models"
)

func TestSummaryPromptTruncatesLongDocuments(t *testing.T) {
	text := strings.Repeat("a", maxContextChars+500)
	prompt := summaryPrompt(text)
	if len(prompt) > maxContextChars+300 {
		t.Fatalf("prompt grew past the context cap: %d chars", len(prompt))
	}
	if !strings.Contains(prompt, "Summarize") {
		t.Fatalf("prompt lost its instruction")
	}
}

func TestChatPromptGroundsOnDocumentAndHistory(t *testing.T) {
	doc := &models.Document{FileName: "report.pdf", ExtractedText: "revenue grew 10%"}
	history := []models.ChatMessage{
		{Author: models.AuthorUser, Text: "hi"},
		{Author: models.AuthorModel, Text: "hello"},
	}

	prompt := chatPrompt(doc, history, "what grew?")
	for _, want := range []string{"report.pdf", "revenue grew 10%", "user: hi", "model: hello", "Question: what grew?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestChatPromptDoesNotRepeatCurrentQuestion(t *testing.T) {
	doc := &models.Document{FileName: "x.txt", ExtractedText: "text"}
	history := []models.ChatMessage{
		{Author: models.AuthorUser, Text: "earlier question"},
		{Author: models.AuthorModel, Text: "earlier answer"},
		{Author: models.AuthorUser, Text: "what grew?"},
	}

	prompt := chatPrompt(doc, history, "what grew?")
	if got := strings.Count(prompt, "what grew?"); got != 1 {
		t.Fatalf("current question appears %d times, want 1:\n%s", got, prompt)
	}
	if !strings.Contains(prompt, "earlier question") || !strings.Contains(prompt, "earlier answer") {
		t.Fatalf("prior turns dropped from history:\n%s", prompt)
	}
}

func TestChatPromptCapsHistory(t *testing.T) {
	doc := &models.Document{FileName: "x.txt", ExtractedText: "text"}
	var history []models.ChatMessage
	for i := 0; i < maxHistoryMessages+10; i++ {
		history = append(history, models.ChatMessage{Author: models.AuthorUser, Text: "old message"})
	}
	history = append(history, models.ChatMessage{Author: models.AuthorUser, Text: "newest message"})

	prompt := chatPrompt(doc, history, "q")
	if !strings.Contains(prompt, "newest message") {
		t.Fatalf("latest history entry dropped")
	}
	if got := strings.Count(prompt, "old message"); got >= maxHistoryMessages {
		t.Fatalf("history not capped: %d old entries", got)
	}
}
