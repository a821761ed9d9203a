package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lyrahub/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 1024
	limitMaxOutputTokens int64 = 4096

	answerMaxOutputTokens int64 = 2048

	zhSystemPrompt = `用中文为普通技术读者写一段要点摘要。

要求：
- 不超过120字。
- 只保留核心结论和关键背景（时间、数字、机构、产品）。
- 语气中立，不要营销用语。
- 不要列表、表情、话题标签或链接。
- 只输出摘要本身。`

	enSystemPrompt = `Write a concise yet informative English summary for a daily newsletter.

Rules:
- 80-150 words.
- Keep core findings and critical context (dates, numbers, names, products).
- Neutral journalistic tone, no marketing hype.
- No lists, emojis, hashtags or links.
- Output only the summary.`
)

var ErrEmptyInput = errors.New("input is empty")

// OpenAISummarizer calls OpenAI's Responses API to produce summaries and
// answers.
type OpenAISummarizer struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(apiKey string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API key is empty")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
		model:  openai.ChatModelGPT5Mini2025_08_07,
	}, nil
}

// Summarize produces a single summary in input.Language suitable for a digest.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	prompt, err := summaryPrompt(input)
	if err != nil {
		return "", err
	}

	return s.generate(ctx, systemPrompt(input.Language), prompt, baseMaxOutputTokens)
}

func (s *OpenAISummarizer) Complete(
	ctx context.Context,
	instructions string,
	prompt string,
) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyInput
	}

	return s.generate(ctx, instructions, prompt, answerMaxOutputTokens)
}

func (s *OpenAISummarizer) generate(
	ctx context.Context,
	instructions string,
	prompt string,
	maxOutputTokens int64,
) (string, error) {
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           s.model,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(instructions),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(prompt),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}

			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		text := strings.TrimSpace(resp.OutputText())
		if text == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}

		return text, nil
	}
}

func systemPrompt(lang domain.Language) string {
	if lang == domain.LanguageZH {
		return zhSystemPrompt
	}

	return enSystemPrompt
}

func summaryPrompt(input Input) (string, error) {
	title := strings.TrimSpace(input.Title)
	text := strings.TrimSpace(input.Text)

	if title == "" && text == "" {
		return "", ErrEmptyInput
	}

	var b strings.Builder

	if title != "" {
		b.WriteString("Title:\n")
		b.WriteString(title)
		b.WriteString("\n")
	}

	if sourceURL := strings.TrimSpace(input.SourceURL); sourceURL != "" {
		b.WriteString("Source:\n")
		b.WriteString(sourceURL)
		b.WriteString("\n")
	}

	if text != "" {
		b.WriteString("Content:\n")
		b.WriteString(text)
	}

	return strings.TrimSpace(b.String()), nil
}
