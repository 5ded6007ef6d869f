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

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model       string  `json:"model"`
	Messages    []Turn  `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty"`
	Stream      bool    `json:"stream"`
}

type anthropicChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// anthropicStream adapts the messages wire format: typed events where
// content_block_delta frames carry delta.text and message_stop terminates.
type anthropicStream struct {
	body    io.ReadCloser
	decoder *sseDecoder
	done    bool
}

func openAnthropicStream(ctx context.Context, client *http.Client, ep Endpoint, req Request) (Stream, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	payload := anthropicRequest{
		Model:       req.Model,
		Messages:    req.Turns,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WithMessage(err, "marshal anthropic request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, errors.WithMessage(err, "build anthropic request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", ep.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.WithMessage(err, "open anthropic stream")
	}
	if err := checkStatus(resp); err != nil {
		_ = resp.Body.Close()
		return nil, errors.WithMessage(err, "open anthropic stream")
	}
	return &anthropicStream{body: resp.Body, decoder: newSseDecoder(resp.Body)}, nil
}

func (s *anthropicStream) Recv() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}
	for {
		frame, err := s.decoder.Next()
		if err == io.EOF {
			s.done = true
			return Event{Kind: EventDone}, nil
		}
		if err != nil {
			s.done = true
			return Event{Kind: EventError, Err: errors.WithMessage(err, "read anthropic stream")}, nil
		}
		var chunk anthropicChunk
		if err := json.Unmarshal([]byte(frame.data), &chunk); err != nil {
			logs.Warnf("skip malformed anthropic chunk: %v", err)
			continue
		}
		eventType := chunk.Type
		if eventType == "" {
			eventType = frame.event
		}
		switch eventType {
		case "content_block_delta":
			if chunk.Delta.Text != "" {
				return Event{Kind: EventDelta, Text: chunk.Delta.Text}, nil
			}
		case "message_stop":
			s.done = true
			return Event{Kind: EventDone}, nil
		case "error":
			s.done = true
			return Event{Kind: EventError, Err: errors.Errorf("anthropic upstream error: %s", chunk.Error.Message)}, nil
		case "ping", "message_start", "content_block_start", "content_block_stop", "message_delta":
			// Bookkeeping events carry no renderable content.
		default:
			logs.Debugf("skip unrecognized anthropic event %q", eventType)
		}
	}
}

func (s *anthropicStream) Close() error {
	s.done = true
	return s.body.Close()
}
