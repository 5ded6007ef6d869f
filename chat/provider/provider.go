package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Provider 上游厂商
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderAnthropic:
		return ProviderAnthropic, nil
	default:
		return "", errors.Errorf("unknown provider %q", s)
	}
}

// Turn is one prior exchange replayed to the upstream model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a normalized streaming request, independent of the wire format
// the chosen provider speaks.
type Request struct {
	Model       string
	Turns       []Turn
	MaxTokens   int
	Temperature float64
}

type EventKind int

const (
	// EventDelta carries one incremental content fragment.
	EventDelta EventKind = iota
	// EventDone marks normal upstream completion.
	EventDone
	// EventError carries an upstream-reported failure.
	EventError
)

// Event is the normalized unit every adapter emits. After a Done or Error
// event the stream only returns io.EOF.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// Stream pulls normalized events one at a time. Recv blocks until the next
// event is available, so the reader's pace is the only thing driving the
// upstream read: slow consumers slow the whole pipe instead of buffering.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Factory opens streams. The http-backed implementation is the production
// path; tests swap in scripted streams.
type Factory interface {
	Open(ctx context.Context, p Provider, req Request) (Stream, error)
}

type Endpoint struct {
	BaseURL string `yaml:"base-url" json:"baseUrl" mapstructure:"base-url"`
	APIKey  string `yaml:"api-key" json:"apiKey" mapstructure:"api-key"`
}

// Config 上游配置
type Config struct {
	OpenAI         Endpoint `yaml:"openai" json:"openai" mapstructure:"openai"`
	Anthropic      Endpoint `yaml:"anthropic" json:"anthropic" mapstructure:"anthropic"`
	TimeoutSeconds int      `yaml:"timeout-seconds" json:"timeoutSeconds" mapstructure:"timeout-seconds"`
}

func (c *Config) Prepare() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Anthropic.BaseURL == "" {
		c.Anthropic.BaseURL = "https://api.anthropic.com/v1"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 300
	}
}

type httpFactory struct {
	cfg    Config
	client *http.Client
}

// NewHTTPFactory builds the production factory. The client carries no
// overall timeout: streams are long-lived and bounded by ctx instead.
func NewHTTPFactory(cfg Config) Factory {
	cfg.Prepare()
	return &httpFactory{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
			},
		},
	}
}

func (f *httpFactory) Open(ctx context.Context, p Provider, req Request) (Stream, error) {
	switch p {
	case ProviderOpenAI:
		return openOpenAIStream(ctx, f.client, f.cfg.OpenAI, req)
	case ProviderAnthropic:
		return openAnthropicStream(ctx, f.client, f.cfg.Anthropic, req)
	default:
		return nil, errors.Errorf("unknown provider %q", p)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return fmt.Errorf("upstream returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
}
