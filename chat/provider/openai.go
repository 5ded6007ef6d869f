package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/xiehqing/streamcore/pkg/logs"
)

const openaiDoneMarker = "[DONE]"

type openaiRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Stream      bool    `json:"stream"`
}

type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// openaiStream adapts the chat-completions wire format: each data frame is
// a JSON chunk with choices[0].delta.content, terminated by a literal
// "[DONE]" sentinel.
type openaiStream struct {
	body    io.ReadCloser
	decoder *sseDecoder
	done    bool
}

func openOpenAIStream(ctx context.Context, client *http.Client, ep Endpoint, req Request) (Stream, error) {
	payload := openaiRequest{
		Model:       req.Model,
		Messages:    req.Turns,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WithMessage(err, "marshal openai request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithMessage(err, "build openai request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+ep.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.WithMessage(err, "open openai stream")
	}
	if err := checkStatus(resp); err != nil {
		_ = resp.Body.Close()
		return nil, errors.WithMessage(err, "open openai stream")
	}
	return &openaiStream{body: resp.Body, decoder: newSseDecoder(resp.Body)}, nil
}

func (s *openaiStream) Recv() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}
	for {
		frame, err := s.decoder.Next()
		if err == io.EOF {
			// Upstream closed without [DONE]; treat as normal completion.
			s.done = true
			return Event{Kind: EventDone}, nil
		}
		if err != nil {
			s.done = true
			return Event{Kind: EventError, Err: errors.WithMessage(err, "read openai stream")}, nil
		}
		if frame.data == openaiDoneMarker {
			s.done = true
			return Event{Kind: EventDone}, nil
		}
		var chunk openaiChunk
		if err := json.Unmarshal([]byte(frame.data), &chunk); err != nil {
			// Malformed chunks are dropped, the stream itself stays alive.
			logs.Warnf("skip malformed openai chunk: %v", err)
			continue
		}
		if chunk.Error != nil {
			s.done = true
			return Event{Kind: EventError, Err: errors.Errorf("openai upstream error: %s", chunk.Error.Message)}, nil
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return Event{Kind: EventDelta, Text: content}, nil
		}
		if chunk.Choices[0].FinishReason != nil {
			continue
		}
	}
}

func (s *openaiStream) Close() error {
	s.done = true
	return s.body.Close()
}
