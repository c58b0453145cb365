/*
Package openai implements the evaluation-engine collaborator on top of
the OpenAI chat completions API. The prompt is rendered from the datum
content and the variation parameters, the reply is the result payload and
the reported cost is the total token usage of the call. HTTP 429 answers
surface as throughput-limit failures so the retry layer absorbs them.
*/
package openai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"text/template"

	openai "github.com/sashabaranov/go-openai"

	"github.com/evalgrid/evalgrid"
	"github.com/evalgrid/evalgrid/errors"
)

const (
	defaultModel          = openai.GPT4oMini
	defaultPromptTemplate = "{{.Datum.Content}}"

	// systemPromptParam is the variation parameter carrying the system
	// message of the judge, when present.
	systemPromptParam = "system_prompt"
	// temperatureParam is the variation parameter carrying the sampling
	// temperature, when present.
	temperatureParam = "temperature"
)

// Config is the configuration of the OpenAI engine.
type Config struct {
	// APIKey authenticates against the API. Ignored when Client is set.
	APIKey string
	// Model is the judge model. Defaults to gpt-4o-mini.
	Model string
	// PromptTemplate renders the user prompt from the datum and the
	// variation ({{.Datum}} and {{.Variation}} are available). Defaults to
	// the raw datum content.
	PromptTemplate string
	// Client overrides the API client, used mostly on tests.
	Client *openai.Client
}

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = defaultModel
	}

	if c.PromptTemplate == "" {
		c.PromptTemplate = defaultPromptTemplate
	}

	if c.Client == nil {
		c.Client = openai.NewClient(c.APIKey)
	}
}

// Engine evaluates (datum, variation) pairs against an OpenAI model.
type Engine struct {
	client *openai.Client
	model  string
	tmpl   *template.Template
}

// promptData is the context rendered into the prompt template.
type promptData struct {
	Datum     evalgrid.Datum
	Variation evalgrid.Variation
}

// New returns a new OpenAI evaluation engine.
func New(cfg Config) (*Engine, error) {
	cfg.defaults()

	tmpl, err := template.New("prompt").Parse(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}

	return &Engine{
		client: cfg.Client,
		model:  cfg.Model,
		tmpl:   tmpl,
	}, nil
}

// Evaluate satisfies evalgrid.Engine interface.
func (e *Engine) Evaluate(ctx context.Context, d evalgrid.Datum, v evalgrid.Variation) (evalgrid.Result, error) {
	var prompt strings.Builder
	if err := e.tmpl.Execute(&prompt, promptData{Datum: d, Variation: v}); err != nil {
		return evalgrid.Result{}, fmt.Errorf("render prompt: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
	}

	if sys := v.Params[systemPromptParam]; sys != "" {
		req.Messages = append([]openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sys},
		}, req.Messages...)
	}

	if temp := v.Params[temperatureParam]; temp != "" {
		ft, err := strconv.ParseFloat(temp, 32)
		if err != nil {
			return evalgrid.Result{}, fmt.Errorf("variation %q: invalid temperature %q: %w", v.ID, temp, err)
		}
		req.Temperature = float32(ft)
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return evalgrid.Result{}, classify(err)
	}

	if len(resp.Choices) == 0 {
		return evalgrid.Result{}, fmt.Errorf("empty completion for datum %q", d.ID)
	}

	return evalgrid.Result{
		Payload: resp.Choices[0].Message.Content,
		Cost:    float64(resp.Usage.TotalTokens),
	}, nil
}

// classify maps upstream quota errors to the transient throughput-limit
// kind; everything else stays a task-fatal evaluation failure.
func classify(err error) error {
	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return errors.ThroughputLimited(err)
	}

	return err
}
