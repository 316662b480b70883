package jobs

import (
	"strings"

	"github.com/LLMontreal/llmontreal-backend/models"
)

// maxContextChars caps how much document text is inlined into a prompt.
// Past this the tail is dropped; the beginning of a document carries the
// most summarizable signal.
const maxContextChars = 32000

// maxHistoryMessages caps how much conversation history travels with a
// chat prompt.
const maxHistoryMessages = 20

func summaryPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Summarize the following document in a concise paragraph. ")
	b.WriteString("Capture the main topics and key facts; do not add information that is not in the document.\n\n")
	b.WriteString("Document:\n")
	b.WriteString(truncate(text, maxContextChars))
	return b.String()
}

func chatPrompt(doc *models.Document, history []models.ChatMessage, question string) string {
	var b strings.Builder
	b.WriteString("You are answering questions about a document. ")
	b.WriteString("Answer using only the document content below. ")
	b.WriteString("If the answer is not in the document, say so.\n\n")
	b.WriteString("Document (" + doc.FileName + "):\n")
	b.WriteString(truncate(doc.ExtractedText, maxContextChars))
	b.WriteString("\n\n")

	// The question was already appended to the session before dispatch;
	// keep it out of the history block so it appears once, as the question.
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Author == models.AuthorUser && last.Text == question {
			history = history[:n-1]
		}
	}

	if len(history) > 0 {
		start := 0
		if len(history) > maxHistoryMessages {
			start = len(history) - maxHistoryMessages
		}
		b.WriteString("Conversation so far:\n")
		for _, msg := range history[start:] {
			b.WriteString(msg.Author)
			b.WriteString(": ")
			b.WriteString(msg.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
