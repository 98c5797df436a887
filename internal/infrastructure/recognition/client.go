// Package recognition adapts an OpenAI-compatible vision endpoint into the
// narrow recognizer interface the grading core consumes. One image in, one
// structured result or one typed error out; retry, pacing and throttling
// decisions belong to the callers.
package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/quizpix/quizpix/internal/core/domain"
)

// DefaultCallTimeout bounds a single recognition call. The upstream service
// occasionally hangs instead of erroring; without this bound a stuck call
// would stall its whole chunk.
const DefaultCallTimeout = 90 * time.Second

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

func New(baseURL, apiKey, model string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

// AnalyzeSheet reads one scanned answer sheet: student identity fields, the
// printed quiz-variant code and the per-question marks.
func (c *Client) AnalyzeSheet(ctx context.Context, page domain.PageImage) (domain.RecognizedSheet, error) {
	raw, err := c.completeJSON(ctx, "analyze sheet", page, sheetInstruction)
	if err != nil {
		return domain.RecognizedSheet{}, err
	}

	var sheet domain.RecognizedSheet
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &sheet); err != nil {
		return domain.RecognizedSheet{}, domain.WrapError(domain.ErrRecognition, "analyze sheet", fmt.Errorf("parse response: %w", err))
	}
	fillSheetDefaults(&sheet)
	return sheet, nil
}

// ExtractAnswerKey reads a printed answer-key page into a key set. Variant
// codes are emitted in ascending order so repeated extractions of the same
// page produce identical text.
func (c *Client) ExtractAnswerKey(ctx context.Context, page domain.PageImage) (domain.AnswerKeySet, error) {
	raw, err := c.completeJSON(ctx, "extract answer key", page, keyInstruction)
	if err != nil {
		return domain.AnswerKeySet{}, err
	}

	var parsed map[string]map[string]string
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.AnswerKeySet{}, domain.WrapError(domain.ErrRecognition, "extract answer key", fmt.Errorf("parse response: %w", err))
	}

	codes := make([]string, 0, len(parsed))
	for code := range parsed {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	set := domain.NewAnswerKeySet()
	for _, code := range codes {
		key := make(domain.KeyMap, len(parsed[code]))
		for q, answer := range parsed[code] {
			n, err := strconv.Atoi(q)
			answer = strings.ToUpper(strings.TrimSpace(answer))
			if err != nil || n <= 0 || answer == "" {
				continue
			}
			key[n] = answer
		}
		set.Set(code, key)
	}
	return set, nil
}

func (c *Client) completeJSON(ctx context.Context, operation string, page domain.PageImage, instruction string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL:    jpegDataURL(page.Data),
						Detail: openai.ImageURLDetailAuto,
					},
				},
				{Type: openai.ChatMessagePartTypeText, Text: instruction},
			},
		}},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", translateUpstreamError(operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.WrapError(domain.ErrRecognition, operation, errors.New("response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func jpegDataURL(data []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
}

func fillSheetDefaults(sheet *domain.RecognizedSheet) {
	if sheet.Student.Name == "" {
		sheet.Student.Name = "N/A"
	}
	if sheet.Student.StudentID == "" {
		sheet.Student.StudentID = "N/A"
	}
	if sheet.Student.Class == "" {
		sheet.Student.Class = "N/A"
	}
	if sheet.QuizCode == "" {
		sheet.QuizCode = "N/A"
	}
	if sheet.Answers == nil {
		sheet.Answers = []domain.MarkedAnswer{}
	}
}
