package conversation

import (
	"fmt"
	"strings"
)

// BuildDigest renders the session as Portuguese grounding lines for the language model.
func BuildDigest(s *Session, message, observation string) string {
	var l []string
	if s.CustomerName != "" {
		l = append(l, fmt.Sprintf("O usuário se chama %s.", s.CustomerName))
	}
	if s.TaxID != "" {
		l = append(l, fmt.Sprintf("O CPF informado é %s.", s.TaxID))
	}
	if len(s.OpenOrders) > 0 {
		items := make([]string, 0, len(s.OpenOrders))
		for _, o := range s.OpenOrders {
			items = append(items, fmt.Sprintf("• %s - %s", o.ID, o.Summary()))
		}
		l = append(l, fmt.Sprintf("OS abertas: %s.", strings.Join(items, " / ")))
	}
	if o := s.SelectedOrder; o != nil && o.ID != "" {
		line := "OS escolhida → ID " + o.ID
		if o.Subject != "" {
			line += " | título: " + o.Subject
		}
		if o.Description != "" {
			line += " | desc.: " + o.Description
		}
		if o.Status != "" {
			line += " | status: " + string(o.Status)
		}
		l = append(l, line)
	}
	if s.SuggestedDate != "" {
		l = append(l, fmt.Sprintf("Data sugerida para agendamento: %s.", s.SuggestedDate))
	}
	if s.SuggestedPeriod.Valid() {
		l = append(l, fmt.Sprintf("Período sugerido para agendamento: %s.", s.SuggestedPeriod.Label()))
	}
	if s.PreviousStep != "" {
		l = append(l, fmt.Sprintf("A etapa anterior foi %q.", string(s.PreviousStep)))
	}
	if s.LastAssistantMessage != "" {
		l = append(l, fmt.Sprintf("Mensagem anterior: \"%s\".", s.LastAssistantMessage))
	}
	if s.LastUserMessage != "" {
		l = append(l, fmt.Sprintf("Última mensagem do cliente: \"%s\".", s.LastUserMessage))
	}
	if message != "" {
		l = append(l, fmt.Sprintf("Nova mensagem do cliente: \"%s\".", message))
	}
	if observation != "" {
		l = append(l, fmt.Sprintf("Observação adicional: %s.", observation))
	}
	return strings.Join(l, "\n")
}
