// Package rag 实现文档入库与检索增强问答管线
package rag

import (
	"regexp"
	"strings"

	"veille-rag-api/internal/domain/entity"
)

// Chunker 按句子边界切分文档。
// 长度以 rune 计数，法语含变音字符时字节长度不可靠。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建切分器
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// sentenceBoundary 句末标点 + 空白，用于近似句子切分
var sentenceBoundary = regexp.MustCompile(`[.!?…]+[\s\n]+`)

// ChunkText 将文本切分为不超过 chunkSize 的片段。
// 句子尽量不被截断，超长单句按 rune 硬截断。
// 短于 chunkSize 的文本返回单个片段。
func (c *Chunker) ChunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len([]rune(text)) < c.chunkSize {
		return []string{text}
	}

	sentences := splitSentences(text)

	var chunks []string
	var current string

	for _, sent := range sentences {
		// 拼接时的空格也计入长度，保证片段不超过 chunkSize
		joined := runeLen(current) + runeLen(sent)
		if current != "" {
			joined++
		}
		if joined <= c.chunkSize {
			if current == "" {
				current = sent
			} else {
				current += " " + sent
			}
			continue
		}

		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}

		if runeLen(sent) > c.chunkSize {
			// 超长单句硬截断
			chunks = append(chunks, string([]rune(sent)[:c.chunkSize]))
			current = ""
		} else {
			current = sent
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

// ChunkDocument 切分文档并为每个片段附上文档元数据。
// 片段文本冗余写入元数据，检索展示时无需回表。
func (c *Chunker) ChunkDocument(doc *entity.Document) []entity.Chunk {
	pieces := c.ChunkText(doc.Text)
	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]entity.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, entity.Chunk{
			Text: piece,
			Metadata: entity.ChunkMetadata{
				DocumentID:  doc.ID,
				SourceID:    doc.SourceID,
				Title:       doc.Title,
				URL:         doc.URL,
				Lang:        doc.Lang,
				Topics:      doc.Topics,
				Summary:     doc.Summary,
				PublishedAt: doc.PublishedAt,
				ChunkIndex:  i,
				Text:        piece,
			},
		})
	}
	return chunks
}

// splitSentences 按句末标点近似切句，保留标点
func splitSentences(text string) []string {
	var sentences []string
	rest := text
	for {
		loc := sentenceBoundary.FindStringIndex(rest)
		if loc == nil {
			break
		}
		sent := strings.TrimSpace(rest[:loc[1]])
		if sent != "" {
			sentences = append(sentences, sent)
		}
		rest = rest[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func runeLen(s string) int {
	return len([]rune(s))
}
