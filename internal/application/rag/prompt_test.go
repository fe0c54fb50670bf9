package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"veille-rag-api/internal/domain/entity"
)

func TestBuildRagPrompt(t *testing.T) {
	prompt := BuildRagPrompt(
		"Quelles sont les nouvelles exigences ?",
		[]string{"Premier passage.", "Second passage."},
		[]entity.Source{
			{Title: "Circulaire 2026-01", URL: "https://example.org/circulaire"},
			{URL: "https://example.org/autre"},
		},
	)

	assert.Contains(t, prompt, "Quelles sont les nouvelles exigences ?")
	assert.Contains(t, prompt, "[Document 1: Circulaire 2026-01]")
	assert.Contains(t, prompt, "URL: https://example.org/circulaire")
	// 无标题来源回退为编号占位
	assert.Contains(t, prompt, "[Document 2: Document 2]")
	assert.Contains(t, prompt, "Premier passage.")
	assert.Contains(t, prompt, "Second passage.")
	assert.Contains(t, prompt, "CONTEXTE DOCUMENTAIRE (2 documents")
	assert.Contains(t, prompt, "INSTRUCTIONS")
}

func TestBuildRagPromptMoreChunksThanSources(t *testing.T) {
	prompt := BuildRagPrompt("question", []string{"a", "b"}, []entity.Source{
		{Title: "Unique", URL: "https://example.org/u"},
	})

	assert.Contains(t, prompt, "[Document 1: Unique]")
	assert.Contains(t, prompt, "[Document 2: Document 2]")
}

func TestBuildChatPrompt(t *testing.T) {
	prompt := BuildChatPrompt("Quel est le taux ?", []string{
		"[Document: Rapport BCE]\nLe taux directeur est fixé à 2%.",
	})

	assert.Contains(t, prompt, "Quel est le taux ?")
	assert.Contains(t, prompt, "Rapport BCE")
	assert.Contains(t, prompt, "EXCLUSIVEMENT")
}

func TestSystemPromptMentionsRules(t *testing.T) {
	assert.Contains(t, SystemPromptRAG, "CIH Bank")
	assert.Contains(t, SystemPromptRAG, "[Source: titre du document]")
	assert.Contains(t, SystemPromptRAG, "FRANÇAIS")
}
