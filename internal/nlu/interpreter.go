package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carlaherrera/apina-front/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var nluTracer = otel.Tracer("apina-front.nlu")

// IntentOption describes one label the classifier may return.
type IntentOption struct {
	Label       string
	Description string
}

// Options configures an Interpreter.
type Options struct {
	Model string
	// Intents is the closed label set offered to the classifier.
	Intents []IntentOption
	// FallbackIntent is returned when the model answers outside the label set.
	FallbackIntent string
	Location       *time.Location
	Now            func() time.Time
	Logger         *logging.Logger
}

// Interpreter turns free text into intents, dates, list choices and replies.
type Interpreter struct {
	client   LLMClient
	model    string
	intents  []IntentOption
	labels   map[string]bool
	fallback string
	loc      *time.Location
	now      func() time.Time
	logger   *logging.Logger
}

// NewInterpreter builds an interpreter over an LLM client.
func NewInterpreter(client LLMClient, opts Options) *Interpreter {
	if client == nil {
		panic("nlu: llm client cannot be nil")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	labels := make(map[string]bool, len(opts.Intents))
	for _, it := range opts.Intents {
		labels[it.Label] = true
	}
	return &Interpreter{
		client:   client,
		model:    opts.Model,
		intents:  opts.Intents,
		labels:   labels,
		fallback: opts.FallbackIntent,
		loc:      opts.Location,
		now:      opts.Now,
		logger:   opts.Logger,
	}
}

// ClassifyIntent picks one intent label for the message. Unparseable or unknown
// answers yield the fallback intent; transport errors are returned.
func (i *Interpreter) ClassifyIntent(ctx context.Context, message, digest string) (string, error) {
	ctx, span := nluTracer.Start(ctx, "nlu.classify_intent")
	defer span.End()

	var catalog strings.Builder
	for _, it := range i.intents {
		fmt.Fprintf(&catalog, "- %s: %s\n", it.Label, it.Description)
	}
	system := fmt.Sprintf(classifySystemPrompt, catalog.String(), digest)

	resp, err := i.client.Complete(ctx, LLMRequest{
		Model:       i.model,
		System:      []string{system},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: message}},
		MaxTokens:   60,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("nlu: classify intent: %w", err)
	}

	intent := i.parseIntent(resp.Text)
	span.SetAttributes(attribute.String("nlu.intent", intent))
	return intent, nil
}

func (i *Interpreter) parseIntent(text string) string {
	var out struct {
		Intent string `json:"intent"`
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &out); err == nil {
			label := strings.TrimSpace(out.Intent)
			if i.labels[label] {
				return label
			}
		}
	}
	// Models sometimes answer with the bare label.
	bare := strings.Trim(strings.TrimSpace(text), `"'.`)
	if i.labels[bare] {
		return bare
	}
	i.logger.Warn("intent classifier answered outside label set", "answer", truncate(text, 120))
	return i.fallback
}

// InterpretNaturalDate asks the model to resolve relative dates in instruction.
// The raw answer is returned for the caller to parse.
func (i *Interpreter) InterpretNaturalDate(ctx context.Context, instruction, digest string) (string, error) {
	ctx, span := nluTracer.Start(ctx, "nlu.interpret_date")
	defer span.End()

	today := i.now().In(i.loc)
	system := fmt.Sprintf(dateSystemPrompt,
		weekdayPT[today.Weekday()], today.Format("02/01/2006"), today.Format("2006-01-02"), digest)
	resp, err := i.client.Complete(ctx, LLMRequest{
		Model:       i.model,
		System:      []string{system},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: instruction}},
		MaxTokens:   30,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("nlu: interpret date: %w", err)
	}
	return strings.Trim(strings.TrimSpace(resp.Text), `"'`), nil
}

var firstNumber = regexp.MustCompile(`\d+`)

// InterpretOrdinalChoice maps "a segunda", "the last one" and similar onto a
// 1-based position in options. Zero means no choice was recognised.
func (i *Interpreter) InterpretOrdinalChoice(ctx context.Context, message string, options []string, digest string) (int, error) {
	if len(options) == 0 {
		return 0, nil
	}
	ctx, span := nluTracer.Start(ctx, "nlu.interpret_choice")
	defer span.End()

	var list strings.Builder
	for n, opt := range options {
		fmt.Fprintf(&list, "%d. %s\n", n+1, opt)
	}
	resp, err := i.client.Complete(ctx, LLMRequest{
		Model:       i.model,
		System:      []string{fmt.Sprintf(choiceSystemPrompt, list.String(), digest)},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: message}},
		MaxTokens:   10,
		Temperature: 0,
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("nlu: interpret choice: %w", err)
	}
	m := firstNumber.FindString(resp.Text)
	if m == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > len(options) {
		return 0, nil
	}
	return n, nil
}

// ErrEmptyReply is returned when the model produced no text.
var ErrEmptyReply = errors.New("nlu: empty reply")

// RenderIntentMessage writes a short WhatsApp reply for intent, grounded on digest.
func (i *Interpreter) RenderIntentMessage(ctx context.Context, intent, digest, instruction string) (string, error) {
	ctx, span := nluTracer.Start(ctx, "nlu.render_message")
	defer span.End()
	span.SetAttributes(attribute.String("nlu.intent", intent))

	user := "Intenção detectada: " + intent + "."
	if strings.TrimSpace(instruction) != "" {
		user += "\nInstrução: " + instruction
	}
	resp, err := i.client.Complete(ctx, LLMRequest{
		Model:       i.model,
		System:      []string{renderSystemPrompt, "Contexto da conversa:\n" + digest},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: user}},
		MaxTokens:   300,
		Temperature: 0.4,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("nlu: render message: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

var weekdayPT = [...]string{
	"domingo", "segunda-feira", "terça-feira", "quarta-feira",
	"quinta-feira", "sexta-feira", "sábado",
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
