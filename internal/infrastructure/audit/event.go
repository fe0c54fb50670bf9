// Package audit 提供问答审计事件的异步落流
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Event 一次问答交互的审计记录。
// AnswerPreview 只保留回答前缀，完整回答不入审计流。
type Event struct {
	ID                 string    `json:"id"`
	Question           string    `json:"question"`
	AnswerPreview      string    `json:"answer_preview"`
	ContextChunksCount int       `json:"context_chunks_count"`
	LLMProvider        string    `json:"llm_provider"`
	Outcome            string    `json:"outcome"`
	RequestID          string    `json:"request_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

const answerPreviewLimit = 100

// NewEvent 构建审计事件，回答按 rune 截断为预览
func NewEvent(question, answer, provider, outcome, requestID string, contextChunks int) Event {
	preview := answer
	if r := []rune(answer); len(r) > answerPreviewLimit {
		preview = string(r[:answerPreviewLimit])
	}
	return Event{
		ID:                 uuid.NewString(),
		Question:           question,
		AnswerPreview:      preview,
		ContextChunksCount: contextChunks,
		LLMProvider:        provider,
		Outcome:            outcome,
		RequestID:          requestID,
		CreatedAt:          time.Now(),
	}
}
