package summarizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"lyrahub/internal/domain"
)

func TestSummaryPrompt(t *testing.T) {
	prompt, err := summaryPrompt(Input{
		Title:     " BEV perception ",
		Text:      " New dataset released. ",
		SourceURL: "https://example.com/a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "Title:\nBEV perception\nSource:\nhttps://example.com/a\nContent:\nNew dataset released."
	if prompt != want {
		t.Fatalf("unexpected prompt:\n%s", prompt)
	}

	if _, err = summaryPrompt(Input{SourceURL: "https://example.com"}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestSystemPromptFollowsLanguage(t *testing.T) {
	if !strings.Contains(systemPrompt(domain.LanguageZH), "中文") {
		t.Fatalf("expected chinese instructions for zh")
	}

	if !strings.Contains(systemPrompt(domain.LanguageEN), "English") {
		t.Fatalf("expected english instructions for en")
	}
}

func TestNewOpenAISummarizerRequiresKey(t *testing.T) {
	if _, err := NewOpenAISummarizer(" "); err == nil {
		t.Fatalf("expected error for empty key")
	}

	s, err := NewOpenAISummarizer("key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err = s.Complete(context.Background(), "instructions", "  "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
