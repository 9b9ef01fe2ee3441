package service

import (
	"fmt"
	"strings"

	"ragqa/internal/domain"
)

const promptTemplate = `You are an AI assistant.
Answer the question ONLY using the context below.
If the answer is not present, say:
"%s"

Context:
%s

Question:
%s

Answer:`

// BuildPrompt renders the grounding prompt. Context passages are joined
// by a blank line in retrieval order.
func BuildPrompt(question string, passages []string) string {
	return fmt.Sprintf(promptTemplate, domain.FallbackAnswer, strings.Join(passages, "\n\n"), question)
}
