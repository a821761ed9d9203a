package summarizer

import (
	"context"

	"lyrahub/internal/domain"
)

// Input describes the payload for a summary request.
type Input struct {
	Title string
	// Text contains the original plain text to summarise.
	Text string
	// SourceURL is optional metadata that helps the model reference the origin.
	SourceURL string
	// Language is the language the summary must be written in.
	Language domain.Language
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}

// Completer answers a free-form prompt under the given instructions.
type Completer interface {
	Complete(ctx context.Context, instructions string, prompt string) (string, error)
}
