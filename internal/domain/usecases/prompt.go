package usecases

import (
	"fmt"
	"strings"

	"forumrag/internal/domain/entities"
)

// DefaultInstructions is the fixed preamble for grounded answering.
const DefaultInstructions = `You are a helpful assistant that answers questions based on the provided context from a forum discussion.

Your task is to:
1. Answer the user's question using ONLY the information provided in the context
2. If the context doesn't contain enough information, say so clearly
3. Cite specific sources when referencing information
4. Be concise but comprehensive

Context will be provided as numbered chunks from forum posts.`

// DefaultPromptBudget bounds the flattened prompt size in characters.
const DefaultPromptBudget = 6000

const emptyContextNotice = "No relevant context found."

// PromptBuilder deterministically assembles grounding context,
// instructions and the user question under a character budget.
type PromptBuilder struct {
	instructions string
	maxChars     int
}

// NewPromptBuilder creates a PromptBuilder. Empty instructions or a
// non-positive budget fall back to the defaults.
func NewPromptBuilder(instructions string, maxChars int) *PromptBuilder {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	if maxChars <= 0 {
		maxChars = DefaultPromptBudget
	}
	return &PromptBuilder{
		instructions: instructions,
		maxChars:     maxChars,
	}
}

// Build assembles the prompt from the ranked chunks. When the flattened
// prompt would exceed the budget, whole chunks are dropped from the
// low-similarity end until it fits; the instructions and the verbatim
// question are never dropped. The second return value lists the chunks
// that made it into the prompt, so citations can track prompt content
// exactly.
func (b *PromptBuilder) Build(question string, chunks []entities.RetrievedChunk) (entities.Prompt, []entities.RetrievedChunk) {
	// Chunks arrive sorted by descending similarity, so keeping a
	// prefix keeps the best-grounded ones.
	for keep := len(chunks); keep > 0; keep-- {
		flattened, blocks := b.render(question, chunks[:keep])
		if len(flattened) <= b.maxChars {
			return entities.NewPrompt(b.instructions, blocks, question, flattened), chunks[:keep]
		}
	}

	flattened, blocks := b.render(question, nil)
	return entities.NewPrompt(b.instructions, blocks, question, flattened), nil
}

// render produces the flattened prompt for the given chunk prefix.
func (b *PromptBuilder) render(question string, chunks []entities.RetrievedChunk) (string, []entities.ContextBlock) {
	blocks := make([]entities.ContextBlock, 0, len(chunks))
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		entry := fmt.Sprintf("[%d] %s", i+1, text)
		if c.Meta.Title != "" {
			entry += fmt.Sprintf("\n   (Source: %s)", c.Meta.Title)
		}
		parts = append(parts, entry)
		blocks = append(blocks, entities.ContextBlock{ChunkID: c.ChunkID, Text: text})
	}

	context := emptyContextNotice
	if len(parts) > 0 {
		context = strings.Join(parts, "\n\n")
	}

	var sb strings.Builder
	sb.WriteString(b.instructions)
	sb.WriteString("\n\nContext from forum discussion:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nUser Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nPlease provide a helpful answer based on the context above. If the context doesn't contain enough information to answer the question, please say so.")
	return sb.String(), blocks
}
