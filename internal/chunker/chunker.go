package chunker

/*
Responsibilities
- Pack heading-anchored content blocks into token-bounded chunks
- Never split an atomic block (code, table, list) unless it alone exceeds
  the maximum window, in which case fall back to sentence splitting
- Guarantee at least one, possibly empty, chunk per page

Token estimation is a rough approximation (word_count * 1.33, the inverse of
an assumed 0.75 words-per-token ratio) - good enough to bound chunk size
without depending on a real tokenizer.
*/

import (
	"math"
	"net/url"
	"strings"

	"github.com/rohmanhakim/docs-crawler/internal/extractor"
)

type Chunker interface {
	Chunk(pageURL url.URL, blocks []extractor.ContentBlock, param ChunkParam) []Chunk
}

var _ Chunker = TokenChunker{}

type TokenChunker struct{}

func NewTokenChunker() TokenChunker {
	return TokenChunker{}
}

func estimateTokens(text string) int {
	wordCount := len(strings.Fields(text))
	return int(math.Ceil(float64(wordCount) * 1.33))
}

// Chunk packs blocks into chunks of roughly param.MinTokens-param.MaxTokens
// estimated tokens, anchoring each chunk to the heading active when its
// first block was accumulated. Oversized single blocks are split into
// sentences so no chunk ever exceeds MaxTokens by more than one sentence.
func (TokenChunker) Chunk(pageURL url.URL, blocks []extractor.ContentBlock, param ChunkParam) []Chunk {
	pageURLStr := pageURL.String()

	var chunks []Chunk
	var currentText strings.Builder
	var currentHeading string
	currentTokens := 0

	flush := func() {
		text := strings.TrimSpace(currentText.String())
		if text == "" {
			return
		}
		chunks = append(chunks, NewChunk("", pageURLStr, currentHeading, text, len(chunks)))
		currentText.Reset()
		currentTokens = 0
	}

	for _, block := range blocks {
		blockTokens := estimateTokens(block.Text)

		if blockTokens > param.MaxTokens {
			flush()
			for _, sentenceChunk := range splitOversizedBlock(block.Text, param.MaxTokens) {
				chunks = append(chunks, NewChunk("", pageURLStr, block.Heading, sentenceChunk, len(chunks)))
			}
			currentHeading = block.Heading
			continue
		}

		if currentTokens+blockTokens > param.MaxTokens && currentTokens > 0 {
			flush()
		}

		if currentText.Len() == 0 {
			currentHeading = block.Heading
		}
		if currentText.Len() > 0 {
			currentText.WriteString(" ")
		}
		currentText.WriteString(block.Text)
		currentTokens += blockTokens

		if currentTokens >= param.MinTokens {
			flush()
		}
	}
	flush()

	if len(chunks) == 0 {
		return []Chunk{NewChunk("", pageURLStr, "", "", 0)}
	}
	return chunks
}

// splitOversizedBlock breaks a single over-budget block into sentence-packed
// chunks, each kept under maxTokens where the source material allows it.
func splitOversizedBlock(text string, maxTokens int) []string {
	sentences := splitIntoSentences(text)

	var chunks []string
	var current strings.Builder
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := estimateTokens(sentence)
		if currentTokens+sentenceTokens > maxTokens && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentTokens = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentTokens += sentenceTokens
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		chunks = append(chunks, trimmed)
	}
	return chunks
}

// splitIntoSentences splits on '.', '!', and '?' terminators, keeping the
// terminator attached to its sentence.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
				sentences = append(sentences, trimmed)
			}
			current.Reset()
		}
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		sentences = append(sentences, trimmed)
	}
	return sentences
}
