package ai

import (
	"fmt"
	"strings"
)

func summarizePrompt(content string) string {
	return `You are a concise summarizer. Create a clear, actionable summary that captures key concepts and insights. Focus on what's most important for learning and retention. Keep the summary to 2-3 paragraphs maximum.

Summarize the following content:

` + content
}

func generateQuestionsPrompt(content string, count int) string {
	return fmt.Sprintf(`You are an expert educator creating study questions. Generate questions that test understanding, not just recall. Include a mix of conceptual and practical questions.

Based on the following content, generate %d study questions with detailed answers.

Return ONLY a JSON array in this exact format (no other text):
[{"question": "...", "answer": "..."}]

Content:
%s`, count, content)
}

func suggestTagsPrompt(content string, existingTags []string) string {
	var existing string
	if len(existingTags) > 0 {
		existing = "Existing tags in the system: " + strings.Join(existingTags, ", ") + "\nPrefer existing tags when appropriate.\n"
	}
	return `You are a content categorization expert. Suggest relevant, concise tags that help organize and find content later. Tags should be lowercase, single words or short hyphenated phrases (max 2 words).

` + existing + `
Suggest 3-5 tags for this content:

` + content + `

Return ONLY a JSON array of strings (no other text): ["tag1", "tag2", ...]`
}

func findRelatedPrompt(content string) string {
	return `You are analyzing content for semantic similarity. Identify the main concepts and themes that would connect this to other content.

Extract 5-7 key concepts from this content that could be used to find related materials:

` + content + `

Return ONLY a JSON array of strings (no other text): ["concept1", "concept2", ...]`
}
