// Package visionocr transcribes scanned documents with an OpenAI vision model.
package visionocr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Abraxas-365/applyflow/internal/pdf"
	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared/constant"
)

const (
	DefaultModel    = "gpt-4o"
	defaultMaxPages = 10
)

var ErrRegistry = errx.NewRegistry("VISIONOCR")

var (
	CodeRejected    = ErrRegistry.Register("REJECTED", errx.TypeValidation, http.StatusUnprocessableEntity, "Document cannot be transcribed")
	CodeUnavailable = ErrRegistry.Register("UNAVAILABLE", errx.TypeUnavailable, http.StatusServiceUnavailable, "Vision model temporarily unavailable")
	CodeFailed      = ErrRegistry.Register("FAILED", errx.TypeExternal, http.StatusBadGateway, "Transcription failed")
)

const transcriptionPrompt = `Transcribe ALL text visible in this document page exactly as written.

IMPORTANT:
- Keep the original language, do not translate
- Preserve line breaks and reading order
- Do not summarize, comment or add any text of your own
- If the page has no text, return an empty response`

// Recognizer sends rendered pages to the chat completions endpoint.
type Recognizer struct {
	client      *openai.Client
	model       string
	maxPages    int
	requestOpts []option.RequestOption
}

type Option func(*Recognizer)

func WithModel(model string) Option {
	return func(r *Recognizer) { r.model = model }
}

// WithMaxPages caps how many PDF pages are transcribed.
func WithMaxPages(n int) Option {
	return func(r *Recognizer) { r.maxPages = n }
}

// WithRequestOptions passes extra options to the underlying OpenAI client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(r *Recognizer) { r.requestOpts = append(r.requestOpts, opts...) }
}

func NewRecognizer(apiKey string, opts ...Option) *Recognizer {
	r := &Recognizer{
		model:    DefaultModel,
		maxPages: defaultMaxPages,
	}
	for _, o := range opts {
		o(r)
	}
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, r.requestOpts...)...)
	r.client = &client
	return r
}

// Analyze transcribes a PDF or image. Multi-page documents are joined with
// page markers.
func (r *Recognizer) Analyze(ctx context.Context, data []byte, contentType string) (string, error) {
	pages, err := r.pages(data, contentType)
	if err != nil {
		return "", err
	}

	if len(pages) == 1 {
		return r.transcribe(ctx, pages[0])
	}

	var b strings.Builder
	for i, page := range pages {
		text, err := r.transcribe(ctx, page)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n%s\n", i+1, text)
	}
	return strings.TrimSpace(b.String()), nil
}

// Ping checks that the API accepts the key and serves the configured model.
func (r *Recognizer) Ping(ctx context.Context) error {
	if _, err := r.client.Models.Get(ctx, r.model); err != nil {
		return classify(ctx, err)
	}
	return nil
}

func (r *Recognizer) pages(data []byte, contentType string) ([][]byte, error) {
	if pdf.IsPDF(data) || strings.Contains(contentType, "pdf") {
		pages, err := pdf.RenderPages(data, r.maxPages)
		if err != nil {
			return nil, ErrRegistry.NewWithCause(CodeRejected, err)
		}
		if len(pages) == 0 {
			return nil, ErrRegistry.New(CodeRejected).WithDetail("reason", "document has no pages")
		}
		return pages, nil
	}

	img, err := pdf.NormalizeImage(data)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeRejected, err).WithDetail("content_type", contentType)
	}
	return [][]byte{img}, nil
}

func (r *Recognizer) transcribe(ctx context.Context, jpegData []byte) (string, error) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are an OCR engine. Output only the transcribed text."),
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						{
							OfText: &openai.ChatCompletionContentPartTextParam{
								Type: constant.Text("text"),
								Text: transcriptionPrompt,
							},
						},
						{
							OfImageURL: &openai.ChatCompletionContentPartImageParam{
								Type: constant.ImageURL("image_url"),
								ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
									URL:    dataURL,
									Detail: "high",
								},
							},
						},
					},
				},
			},
		},
	}

	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       openai.ChatModel(r.model),
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(4000),
	})
	if err != nil {
		return "", classify(ctx, err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrRegistry.New(CodeFailed).WithDetail("reason", "no choices returned")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return ErrRegistry.NewWithCause(CodeUnavailable, err)
	}
	switch {
	case apiErr.StatusCode == http.StatusBadRequest:
		return ErrRegistry.NewWithCause(CodeRejected, err).WithDetail("status", apiErr.StatusCode)
	case apiErr.StatusCode == http.StatusTooManyRequests, apiErr.StatusCode >= 500:
		return ErrRegistry.NewWithCause(CodeUnavailable, err).WithDetail("status", apiErr.StatusCode)
	default:
		return ErrRegistry.NewWithCause(CodeFailed, err).WithDetail("status", apiErr.StatusCode)
	}
}
