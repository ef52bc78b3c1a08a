package conversation

import (
	"fmt"
	"strings"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

// User-facing texts shared by several handlers.
const (
	msgAskTaxID           = "Por favor, me informe seu CPF para que eu possa identificar suas ordens de serviço."
	msgNeedTaxIDForOrders = "Precisamos do seu CPF para identificar suas ordens de serviço."
	msgNoOrdersForTaxID   = "Não encontrei nenhuma ordem de serviço para o seu CPF. Por favor, verifique se o CPF está correto ou entre em contato com o suporte."
	msgOrdersLookupFailed = "Ocorreu um erro ao buscar suas ordens de serviço. Por favor, tente novamente mais tarde."
	msgAvailabilityFailed = "Desculpe, ocorreu um erro ao verificar a disponibilidade. Por favor, tente novamente mais tarde."
	msgNoSlots            = "Não há horários disponíveis para agendamento no momento."
	msgNoSlotsForSector   = "Nenhum horário disponível para agendamento com os técnicos deste setor."
	msgBookingGlitch      = "Ops! Tive um probleminha técnico ao agendar sua visita. Estou anotando isso e vou resolver. Por favor, tente novamente daqui a pouco ou entre em contato com nosso suporte."
	msgBookingRetry       = "Ops! Tive um probleminha ao agendar sua visita. Por favor, tente novamente daqui a pouco ou entre em contato com nosso suporte."
	msgOfferClosing       = "Está bom para você ou prefere outra opção? Se preferir, posso verificar outras datas disponíveis."

	msgFallbackNoOrders   = "Não encontrei Ordens de Serviço para você no momento. Gostaria de tentar outra opção?"
	msgFallbackPickOrder  = "Tenho algumas Ordens de Serviço aqui. Para qual delas você gostaria de atendimento? Por favor, me informe o número da OS."
	msgFallbackIdentified = "Como posso te ajudar hoje?"
	msgFallbackAnonymous  = `Desculpe, não consegui entender. Pode tentar novamente? Se precisar de ajuda, digite "opções".`
)

// slotPhrase renders "segunda-feira, dia 22/07/2024, no período da manhã".
func slotPhrase(s scheduling.Slot) string {
	return fmt.Sprintf("%s, dia %s, no período da %s", scheduling.WeekdayName(s.Date), scheduling.FormatDate(s.Date), s.Period.Label())
}

// slotShort renders "segunda-feira, 22/07/2024 pela manhã".
func slotShort(s scheduling.Slot) string {
	return fmt.Sprintf("%s, %s pela %s", scheduling.WeekdayName(s.Date), scheduling.FormatDate(s.Date), s.Period.Label())
}

func slotBullets(slots []scheduling.Slot) string {
	lines := make([]string, 0, len(slots))
	for _, s := range slots {
		lines = append(lines, "• "+slotShort(s))
	}
	return strings.Join(lines, "\n")
}

func orderBullet(o scheduling.Order) string {
	return fmt.Sprintf("• %s - %s", o.ID, o.Summary())
}

func orderBullets(orders []scheduling.Order) string {
	lines := make([]string, 0, len(orders))
	for _, o := range orders {
		lines = append(lines, orderBullet(o))
	}
	return strings.Join(lines, "\n")
}

// numberedOrders lists orders for positional choice.
func numberedOrders(orders []scheduling.Order) string {
	var b strings.Builder
	for i, o := range orders {
		opened := "Data não disponível"
		if d := o.OpenedDate(); d != "" {
			opened = scheduling.FormatDate(d)
		}
		fmt.Fprintf(&b, "%d. OS #%s - %s (aberta em %s)\n", i+1, o.ID, o.Summary(), opened)
	}
	return b.String()
}

// scheduledPhrase describes an existing booking: "para sexta-feira, dia 26/07/2024, no período da tarde".
func scheduledPhrase(o scheduling.Order) string {
	date := o.ScheduledDate()
	if date == "" {
		return "para data não definida"
	}
	period := o.ScheduledPeriod
	if !period.Valid() {
		period = scheduling.Afternoon
	}
	return "para " + slotPhrase(scheduling.Slot{Date: date, Period: period})
}

// alreadyScheduled opens the reply for an order that has a visit booked.
func alreadyScheduled(o scheduling.Order) string {
	return fmt.Sprintf("Você selecionou a OS %s (%s) que já está agendada %s.", o.ID, o.Label(), scheduledPhrase(o))
}

// suggestionOffer is the standard proposal text with optional alternatives.
func suggestionOffer(o scheduling.Order, primary scheduling.Slot, alternatives []scheduling.Slot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ótimo! Tenho uma sugestão para sua visita de %s! Que tal %s?", o.Label(), slotPhrase(primary))
	if len(alternatives) > 0 {
		b.WriteString("\n\nSe preferir, também tenho:\n")
		b.WriteString(slotBullets(alternatives))
	}
	b.WriteString("\n\n")
	b.WriteString(msgOfferClosing)
	return b.String()
}

// quickOffer is the short proposal used right after an order is picked by number.
func quickOffer(verb string, o scheduling.Order, primary scheduling.Slot) string {
	return fmt.Sprintf("Ótimo! Vamos %s a %s. Que tal %s, dia %s, no período da %s? Está bom para você ou prefere outra data?",
		verb, o.Label(), capitalize(scheduling.WeekdayName(primary.Date)), scheduling.FormatDate(primary.Date), primary.Period.Label())
}

// availableQuestion echoes a validated slot back as a yes/no question.
func availableQuestion(o scheduling.Order, s scheduling.Slot, sep, question string) string {
	return fmt.Sprintf("%s está disponível para agendamento da OS %s (%s).%s%s", slotShort(s), o.ID, o.Label(), sep, question)
}

func weekendText(date, weekday string) string {
	return fmt.Sprintf("Desculpe, não realizamos agendamentos para finais de semana. A data %s é um %s. Por favor, escolha uma data de segunda a sexta-feira.",
		scheduling.FormatDate(date), weekday)
}

// outOfRangeText names whichever window bounds are known.
func outOfRangeText(date string, w scheduling.Window) string {
	msg := fmt.Sprintf("Desculpe, não posso agendar para %s.", scheduling.FormatDate(date))
	switch {
	case w.Min != "" && w.Max != "":
		msg += fmt.Sprintf(" O período disponível para agendamento é entre %s e %s.", scheduling.FormatDate(w.Min), scheduling.FormatDate(w.Max))
	case w.Min != "":
		msg += fmt.Sprintf(" A data mais próxima disponível para agendamento é %s.", scheduling.FormatDate(w.Min))
	case w.Max != "":
		msg += fmt.Sprintf(" A última data disponível para agendamento é %s.", scheduling.FormatDate(w.Max))
	default:
		msg += " Não há datas disponíveis para agendamento no momento."
	}
	return msg + " Gostaria de escolher outra data?"
}

func fallbackOffer(s scheduling.Slot) string {
	return fmt.Sprintf("\n\nSe preferir, tenho disponível %s. Posso agendar?", slotPhrase(s))
}

// fallbackReply is used when a handler produced no text.
func fallbackReply(s *Session) string {
	switch {
	case s.Identified() && len(s.OpenOrders) == 0:
		return msgFallbackNoOrders
	case s.Identified() && s.SelectedOrder == nil:
		return msgFallbackPickOrder
	case s.Identified():
		return msgFallbackIdentified
	default:
		return msgFallbackAnonymous
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
