package ask

import (
	"fmt"
	"strings"

	"lyrahub/internal/domain"
)

const decomposeInstructions = `Split the user's question into two or three short web search queries about
the underlying technical concepts. Prefer English technical terms. Output one
query per line and nothing else.`

const quickInstructions = `You are an expert in AI and autonomous driving. Answer the question in two or
three short paragraphs of plain prose, in the language the question is written
in. Be direct and accurate. Cite a numbered reference as [n] only when it
supports a statement.`

const researchInstructions = `You are a senior expert in AI and autonomous driving. Using the numbered
references, write a structured answer in the language the question is written
in, with these sections:

1. Core concept: two or three sentences on the essence of the idea.
2. Key characteristics: technical principle, advantages, applications and
   current state, each grounded in the references.
3. References: the list of references you used.

Cite references inline as [n]. Prefer recent news and arXiv papers. When the
references are insufficient, say so and mark what comes from your own
knowledge.`

func answerPrompt(question string, refs []domain.ContentItem) string {
	var b strings.Builder

	b.WriteString("Question:\n")
	b.WriteString(question)
	b.WriteString("\n\nReferences:\n")

	if len(refs) == 0 {
		b.WriteString("(none found)\n")
	}

	for i, r := range refs {
		fmt.Fprintf(&b, "%d. [%s](%s)", i+1, r.Title, r.URL)

		if r.Source != "" {
			fmt.Fprintf(&b, " - %s", r.Source)
		}

		if r.PublishedAt != nil {
			fmt.Fprintf(&b, " (%s)", r.PublishedAt.Format("2006-01-02"))
		}

		b.WriteByte('\n')

		if r.Summary != "" {
			b.WriteString("   ")
			b.WriteString(truncateRunes(r.Summary, 400))
			b.WriteByte('\n')
		}
	}

	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n]) + "..."
}
