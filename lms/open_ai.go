package lms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/reusee/dscope"
	"github.com/reusee/optix/cmds"
	"github.com/reusee/optix/debugs"
	"github.com/reusee/optix/logs"
	"github.com/reusee/optix/nets"
	"github.com/reusee/optix/resolvers"
)

var (
	debugOpenAI = cmds.Switch("-debug-openai", "log OpenAI-compatible requests and responses")
	tapOpenAI   = cmds.Switch("-tap-openai", "open a starlark REPL over each OpenAI-compatible exchange")
)

// OpenAI talks to any chat completions endpoint: the local ollama server and OpenAI-compatible cloud providers.
type OpenAI struct {
	params  resolvers.RuntimeParams
	baseURL string
	client  nets.HTTPClient

	Count  dscope.Inject[BPETokenCounter]
	Logger dscope.Inject[logs.Logger]
	Tap    dscope.Inject[debugs.Tap]
}

var _ LM = new(OpenAI)

func (o *OpenAI) Params() resolvers.RuntimeParams {
	return o.params
}

func (o *OpenAI) CountTokens(text string) (int, error) {
	return o.Count()(text)
}

func (o *OpenAI) Generate(ctx context.Context, r Request) (ret Response, err error) {
	req := ChatCompletionRequest{
		Model:       WireModel(o.params),
		Messages:    toOpenAIMessages(r),
		Stream:      true,
		Temperature: o.params.Temperature,
		MaxTokens:   o.params.MaxTokens,
	}
	if r.Temperature != nil {
		req.Temperature = *r.Temperature
	}
	if r.MaxTokens > 0 {
		req.MaxTokens = r.MaxTokens
	}
	if !o.params.IsLocal() {
		req.StreamOptions = &StreamOptions{
			IncludeUsage: true,
		}
	}
	if r.JSON {
		req.ResponseFormat = &ResponseFormat{
			Type: "json_object",
		}
	}

	if *debugOpenAI {
		jsonText, err := json.Marshal(req.Messages)
		if err != nil {
			return ret, err
		}
		o.Logger().InfoContext(ctx, "open ai messages to send",
			"messages", jsonText,
		)
	}

	if *tapOpenAI {
		o.Tap()(ctx, "before chat completion", map[string]any{
			"request": req,
			"params":  o.params,
		})
	}

	o.Logger().DebugContext(ctx, "generating",
		"model", req.Model,
		"provider", o.params.Provider,
	)

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return ret, wrap(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return ret, wrap(err)
	}
	if o.params.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.params.APIKey)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return ret, OpenAIError{
			Err:   err,
			Model: req.Model,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ret, statusError(resp, req.Model)
	}

	var text strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "data: [DONE]") {
			break
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := line[6:]

		var streamResp ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			return ret, fmt.Errorf("error unmarshalling stream response: %w", err)
		}

		if streamResp.Usage != nil {
			ret.Usage = *streamResp.Usage
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		text.WriteString(streamResp.Choices[0].Delta.Content)

		if reason := streamResp.Choices[0].FinishReason; reason != "" {
			ret.FinishReason = reason
			if reason == "error" {
				return ret, errors.Join(errors.New(reason), ErrRetryable)
			}
		}

	}
	if err := scanner.Err(); err != nil {
		return ret, fmt.Errorf("error reading stream: %w", err)
	}

	ret.Text = text.String()
	if *debugOpenAI {
		o.Logger().InfoContext(ctx, "open ai response",
			"text", ret.Text,
			"finish", ret.FinishReason,
		)
	}

	return ret, nil
}

func statusError(resp *http.Response, model string) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil {
		err := fmt.Errorf("bad status: %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Join(err, ErrRetryable)
		}
		return OpenAIError{
			Err:   err,
			Model: model,
		}
	}

	errResp.Error.HTTPStatusCode = resp.StatusCode
	if resp.StatusCode == http.StatusTooManyRequests {
		return errors.Join(errResp.Error, ErrRetryable)
	}
	return OpenAIError{
		Err:   errResp.Error,
		Model: model,
	}
}

func toOpenAIMessages(r Request) (messages []ChatCompletionMessage) {
	if r.System != "" {
		messages = append(messages, ChatCompletionMessage{
			Role:    string(RoleSystem),
			Content: r.System,
		})
	}
	for _, msg := range r.Messages {
		if msg.Content == "" {
			continue
		}
		// merge consecutive messages of the same role
		if n := len(messages); n > 0 && messages[n-1].Role == string(msg.Role) {
			messages[n-1].Content += "\n\n" + msg.Content
			continue
		}
		messages = append(messages, ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return
}

type NewOpenAI func(params resolvers.RuntimeParams, baseURL string) *OpenAI

func (Module) NewOpenAI(
	inject dscope.InjectStruct,
	client nets.HTTPClient,
) NewOpenAI {
	return func(params resolvers.RuntimeParams, baseURL string) *OpenAI {
		ret := &OpenAI{
			params:  params,
			baseURL: strings.TrimSuffix(baseURL, "/"),
			client:  client,
		}
		inject(&ret)
		return ret
	}
}

type ChatCompletionRequest struct {
	Model          string                  `json:"model"`
	Messages       []ChatCompletionMessage `json:"messages"`
	Stream         bool                    `json:"stream"`
	MaxTokens      int                     `json:"max_tokens,omitempty"`
	Temperature    float64                 `json:"temperature"`
	ResponseFormat *ResponseFormat         `json:"response_format,omitempty"`
	StreamOptions  *StreamOptions          `json:"stream_options,omitempty"`
}

type ResponseFormat struct {
	Type string `json:"type"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionStreamResponse struct {
	Choices []ChatCompletionStreamChoice `json:"choices"`
	Usage   *Usage                       `json:"usage,omitempty"`
}

type ChatCompletionStreamChoice struct {
	Delta        ChatCompletionStreamChoiceDelta `json:"delta"`
	FinishReason string                          `json:"finish_reason"`
}

type ChatCompletionStreamChoiceDelta struct {
	Content string `json:"content,omitempty"`
	Role    string `json:"role,omitempty"`
}

type ErrorResponse struct {
	Error *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code           any     `json:"code,omitempty"`
	Message        string  `json:"message,omitempty"`
	Param          *string `json:"param,omitempty"`
	Type           string  `json:"type,omitempty"`
	HTTPStatusCode int     `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

type OpenAIError struct {
	Err   error
	Model string
}

var _ error = OpenAIError{}

func (o OpenAIError) Error() string {
	return fmt.Sprintf("%s: %s", o.Model, o.Err.Error())
}

func (o OpenAIError) Unwrap() error {
	return o.Err
}
