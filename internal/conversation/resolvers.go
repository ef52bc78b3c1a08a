package conversation

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

// Resolution is the outcome of filling one slot: either a value or a prompt for the user.
type Resolution[T any] struct {
	Value  T
	OK     bool
	Prompt string
}

func resolved[T any](v T) Resolution[T] {
	return Resolution[T]{Value: v, OK: true}
}

func missing[T any](prompt string) Resolution[T] {
	return Resolution[T]{Prompt: prompt}
}

// resolveCustomer never fetches; identification only happens in the tax-id handler.
func resolveCustomer(s *Session) Resolution[string] {
	if s.CustomerID != "" {
		return resolved(s.CustomerID)
	}
	s.Step = StepCollectTaxID
	return missing[string](msgAskTaxID)
}

// resolveSelectedOrder makes sure an order is under negotiation, loading and
// auto-selecting where it can.
func (e *Engine) resolveSelectedOrder(ctx context.Context, s *Session, text, digest string) Resolution[*scheduling.Order] {
	if s.SelectedOrder != nil {
		return resolved(s.SelectedOrder)
	}
	if len(s.OpenOrders) == 0 {
		if !s.Identified() {
			return missing[*scheduling.Order](msgNeedTaxIDForOrders)
		}
		if err := e.loadOrders(ctx, s); err != nil {
			return missing[*scheduling.Order](msgOrdersLookupFailed)
		}
		if len(s.OpenOrders) == 0 {
			return missing[*scheduling.Order](msgNoOrdersForTaxID)
		}
	}
	if len(s.OpenOrders) == 1 {
		s.SelectOrder(s.OpenOrders[0])
		return resolved(s.SelectedOrder)
	}
	if o := e.parseOrderChoice(ctx, text, s.OpenOrders, digest); o != nil {
		s.SelectOrder(*o)
		return resolved(s.SelectedOrder)
	}
	s.Step = StepChooseOrder
	prompt := "Encontrei as seguintes ordens de serviço para você:\n" + numberedOrders(s.OpenOrders) +
		"\nPor favor, informe o número da OS ou a posição na lista (1, 2, etc) para a qual deseja verificar as datas disponíveis."
	return missing[*scheduling.Order](prompt)
}

// parseOrderChoice matches a 4 to 6 digit order id first, then asks the
// language model for a 1-based position. It returns nil when neither works.
func (e *Engine) parseOrderChoice(ctx context.Context, text string, orders []scheduling.Order, digest string) *scheduling.Order {
	if len(orders) == 0 {
		return nil
	}
	if id := orderNumberIn(text); id != "" {
		if o := findOrder(orders, id); o != nil {
			return o
		}
	}
	options := make([]string, 0, len(orders))
	for _, o := range orders {
		options = append(options, fmt.Sprintf("OS %s - %s", o.ID, o.Summary()))
	}
	pos, err := e.language.InterpretOrdinalChoice(ctx, text, options, digest)
	if err != nil {
		e.logger.Warn("order choice interpretation failed", "error", err)
		return nil
	}
	if pos < 1 || pos > len(orders) {
		return nil
	}
	o := orders[pos-1]
	return &o
}

func findOrder(orders []scheduling.Order, id string) *scheduling.Order {
	for i := range orders {
		if orders[i].ID == id {
			o := orders[i]
			return &o
		}
	}
	return nil
}

// dateAndPeriod is an interpreted request; either part may be empty.
type dateAndPeriod struct {
	Date   string
	Period scheduling.Period
}

var (
	isoDatePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	rawPeriodPattern = regexp.MustCompile(`^\s*([MTmt])\b`)
)

// interpretDateAndPeriod asks the language model for "YYYY-MM-DD,M|T". A
// missing period falls back to the keyword table and then to the afternoon
// when a date was found.
func (e *Engine) interpretDateAndPeriod(ctx context.Context, t *turn, extra string) dateAndPeriod {
	instruction := strings.TrimSpace(extra + ` Identifique a data e o período (manhã ou tarde) na frase do usuário: "` + t.message +
		`". Responda APENAS com a data no formato YYYY-MM-DD e o período como "M" para manhã ou "T" para tarde, separados por vírgula. Exemplo: "2024-07-25,M". Se não identificar um período específico, use "T" como padrão para o período APENAS SE UMA DATA FOR IDENTIFICADA.`)
	raw, err := e.language.InterpretNaturalDate(ctx, instruction, t.digest)
	if err != nil {
		e.logger.Warn("date interpretation failed", "error", err)
		return dateAndPeriod{}
	}
	return parseDateAndPeriod(raw, t.message)
}

func parseDateAndPeriod(raw, message string) dateAndPeriod {
	var out dateAndPeriod
	head, tail, _ := strings.Cut(raw, ",")
	if d := isoDatePattern.FindString(head); d != "" {
		if _, err := scheduling.ParseDate(d); err == nil {
			out.Date = d
		}
	}
	if m := rawPeriodPattern.FindStringSubmatch(tail); m != nil {
		out.Period = scheduling.ParsePeriod(m[1])
	}
	if out.Period.Valid() {
		return out
	}
	out.Period = InterpretPeriod(message)
	if out.Date != "" && !out.Period.Valid() {
		out.Period = scheduling.Afternoon
	}
	return out
}

// interpretDate extracts only a calendar day from the language model's answer.
func (e *Engine) interpretDate(ctx context.Context, t *turn) string {
	raw, err := e.language.InterpretNaturalDate(ctx, `Frase do usuário: "`+t.message+`"`, t.digest)
	if err != nil {
		e.logger.Warn("date interpretation failed", "error", err)
		return ""
	}
	d := isoDatePattern.FindString(raw)
	if _, err := scheduling.ParseDate(d); err != nil {
		return ""
	}
	return d
}
