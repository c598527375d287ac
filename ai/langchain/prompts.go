package langchain

import (
	"fmt"
	"strings"

	"github.com/poiesic/ragbook/core"
	"github.com/tmc/langchaingo/llms"
)

const answerPromptTemplate = `You are a helpful assistant that answers questions based on the provided context.
If the context doesn't contain relevant information, say so politely and answer from general knowledge where you can.
Be concise and accurate. You can also help schedule interview bookings.

Context:
%s`

const extractionSystemMessage = "You are a JSON extraction bot. You ONLY output valid JSON. Never add explanations or extra text."

const extractionPromptTemplate = `Extract interview booking information from the text below.
Return ONLY a JSON object with these exact fields:
{
  "name": "person's full name or null",
  "email": "email address or null",
  "date": "date in YYYY-MM-DD format or null",
  "time": "time in HH:MM 24-hour format or null",
  "additional_notes": "any other relevant details or null"
}

Conversion examples:
- "2:00 PM" -> "14:00"
- "9:00 AM" -> "09:00"
- "December 15, 2025" -> "2025-12-15"

Use null for every field that is not present. If the text contains no booking information at all, return {}.

Text to analyze:
%s

Return ONLY the JSON object, no other text:`

// buildAnswerSystemPrompt embeds the retrieved context in the system prompt.
func buildAnswerSystemPrompt(contextText string) string {
	return fmt.Sprintf(answerPromptTemplate, contextText)
}

// buildExtractionPrompt embeds the text to analyze in the extraction prompt.
func buildExtractionPrompt(text string) string {
	return fmt.Sprintf(extractionPromptTemplate, strings.TrimSpace(text))
}

// messageType maps a conversation role onto a langchaingo message type.
func messageType(role core.Role) llms.ChatMessageType {
	switch role {
	case core.RoleAssistant:
		return llms.ChatMessageTypeAI
	case core.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}

// recentTurns returns the last n turns of history, oldest first.
func recentTurns(history []core.Turn, n int) []core.Turn {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}
