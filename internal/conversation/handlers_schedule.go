package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

var (
	rescheduleWords = []string{"reagend", "remarc", "mudar", "alterar", "trocar", "outra data"}
	sensitiveWords  = []string{
		"luto", "funeral", "enterro", "falecimento", "doente",
		"doenca", "hospital", "emergencia", "urgencia medica",
		"mal estar", "imprevisto grave", "problema pessoal", "falecido", "velorio",
	}
)

const empathyPrefix = "Sinto muito por essa situação delicada. Vamos encontrar um novo horário para você sem problemas. "

func (e *Engine) handleAvailableDates(ctx context.Context, t *turn) (string, error) {
	s := t.session
	o := t.order()
	if o.IsScheduled() {
		return alreadyScheduled(o) + "\n\nO que você gostaria de fazer?", nil
	}
	p, ok, err := e.propose(ctx, o)
	if err != nil {
		return msgAvailabilityFailed, nil
	}
	if !ok {
		return msgNoSlots, nil
	}
	s.Suggest(p.Primary)
	s.Step = StepSchedule
	return suggestionOffer(o, p.Primary, p.Alternatives), nil
}

func (e *Engine) handleExtractDate(ctx context.Context, t *turn) (string, error) {
	s := t.session
	dp := e.interpretDateAndPeriod(ctx, t, "Tentando extrair data e período da mensagem do usuário.")
	if dp.Date == "" {
		if dp.Period.Valid() {
			s.CandidatePeriod = dp.Period
			s.Step = StepCollectDate
			return fmt.Sprintf("Entendi que você prefere o período da %s. Para qual data seria?", dp.Period.Label()), nil
		}
		const retry = `Não consegui entender a data. Por favor, informe novamente, por exemplo: "amanhã de manhã" ou "dia 25 à tarde".`
		s.Step = StepCollectDate
		return e.render(ctx, t, IntentExtractDate, retry, retry), nil
	}
	s.CandidateDate = dp.Date
	s.CandidatePeriod = dp.Period
	if !dp.Period.Valid() {
		s.Step = StepCollectPeriod
		return askPeriod(dp.Date), nil
	}
	return e.validateCandidate(ctx, t, func(o scheduling.Order, slot scheduling.Slot) string {
		return availableQuestion(o, slot, " ", "Confirma o agendamento para essa data?")
	}), nil
}

func (e *Engine) handleExtractPeriod(ctx context.Context, t *turn) (string, error) {
	s := t.session
	period := InterpretPeriod(t.message)
	if !period.Valid() {
		dp := e.interpretDateAndPeriod(ctx, t, "")
		if dp.Date == "" {
			const retry = "Não consegui identificar o período. Por favor, diga se prefere manhã ou tarde."
			return e.render(ctx, t, IntentExtractPeriod, retry, retry), nil
		}
		s.CandidateDate = dp.Date
		period = dp.Period
		if !period.Valid() {
			s.Step = StepCollectPeriod
			return askPeriod(dp.Date), nil
		}
	}
	s.CandidatePeriod = period
	if s.CandidateDate == "" {
		s.Step = StepCollectDate
		return fmt.Sprintf("Entendi que você prefere o período da %s. Para qual data seria o agendamento?", period.Label()), nil
	}
	return e.validateCandidate(ctx, t, func(o scheduling.Order, slot scheduling.Slot) string {
		return availableQuestion(o, slot, " ", "Confirma o agendamento?")
	}), nil
}

func (e *Engine) handleChangePeriod(ctx context.Context, t *turn) (string, error) {
	s := t.session
	period := InterpretPeriod(t.message)
	if !period.Valid() {
		return "Não consegui identificar o período que você deseja. Por favor, especifique se prefere pela manhã ou pela tarde.", nil
	}
	s.CandidatePeriod = period
	if s.CandidateDate == "" && s.SuggestedDate != "" {
		s.CandidateDate = s.SuggestedDate
	}
	if s.CandidateDate == "" {
		s.Step = StepCollectDate
		return "Precisamos de uma data para o agendamento. Pode me informar qual data você prefere?", nil
	}
	prefix := ""
	if containsAny(fold(t.message), sensitiveWords...) {
		prefix = empathyPrefix
	}
	return e.validateCandidate(ctx, t, func(_ scheduling.Order, slot scheduling.Slot) string {
		return fmt.Sprintf("%sÓtimo! Confirmando a alteração para %s. Posso confirmar o agendamento?", prefix, slotPhrase(slot))
	}), nil
}

func (e *Engine) handleSchedule(ctx context.Context, t *turn) (string, error) {
	s := t.session
	folded := fold(t.message)
	reschedule := containsAny(folded, rescheduleWords...)
	prefix := ""
	if reschedule && containsAny(folded, sensitiveWords...) {
		prefix = empathyPrefix
	}
	if reschedule && len(s.OpenOrders) == 0 {
		if err := e.loadOrders(ctx, s); err != nil {
			e.logger.Warn("reschedule without refreshed orders", "customer_id", s.CustomerID, "error", err)
		}
	}

	o := t.order()
	if s.CandidateDate != "" && s.CandidatePeriod.Valid() {
		return prefix + e.validateCandidate(ctx, t, func(o scheduling.Order, slot scheduling.Slot) string {
			return fmt.Sprintf("Confirma agendar a OS %s para %s no período da %s?", o.ID, scheduling.FormatDate(slot.Date), slot.Period.Label())
		}), nil
	}

	p, ok, err := e.propose(ctx, o)
	if err != nil {
		return msgAvailabilityFailed, nil
	}
	if !ok {
		return msgNoSlots, nil
	}
	s.Suggest(p.Primary)
	s.Step = StepSchedule
	return prefix + suggestionOffer(o, p.Primary, p.Alternatives), nil
}

func (e *Engine) handleReschedule(ctx context.Context, t *turn) (string, error) {
	s := t.session
	s.ClearSlots()
	s.AwaitingConfirmation = false
	s.Step = StepCollectDate
	ask := fmt.Sprintf("Entendido. Para qual nova data e período (manhã ou tarde) você gostaria de reagendar a OS %s?", t.order().ID)
	return e.render(ctx, t, IntentExtractDate, ask, ask), nil
}

func (e *Engine) handleCheckDateAvailability(ctx context.Context, t *turn) (string, error) {
	s := t.session
	date := e.interpretDate(ctx, t)
	if date == "" {
		return "Desculpe, não consegui entender a data solicitada. Pode me dizer novamente de outra forma, por exemplo: 'dia 25/12' ou 'próxima segunda-feira'?", nil
	}
	period := InterpretPeriod(t.message)
	o := t.order()

	dc, err := e.negotiator.CheckDate(ctx, o, date, period)
	if err != nil {
		e.logger.Warn("date check failed", "order_id", o.ID, "date", date, "error", err)
		return "Desculpe, não foi possível verificar a disponibilidade para esta data. Vamos tentar outra abordagem?", nil
	}

	switch dc.Outcome {
	case scheduling.DateMiss:
		lines := make([]string, 0, len(dc.Dates))
		for _, d := range dc.Dates {
			lines = append(lines, fmt.Sprintf("%s, %s", scheduling.WeekdayName(d), scheduling.FormatDate(d)))
		}
		head := fmt.Sprintf("Desculpe, o dia %s não está disponível para agendamento.", scheduling.FormatDate(date))
		if d, err := scheduling.ParseDate(date); err == nil && scheduling.IsWeekend(d) {
			head = fmt.Sprintf("Desculpe, não realizamos agendamentos para finais de semana. O dia %s é um %s.", scheduling.FormatDate(date), dc.Weekday)
		}
		return fmt.Sprintf("%s Posso oferecer as seguintes datas:\n\n• %s\n\nQual dessas opções seria melhor para você?",
			head, strings.Join(lines, "\n• ")), nil
	case scheduling.DateOtherPeriod:
		slot := scheduling.Slot{Date: date, Period: dc.Periods[0]}
		e.holdForConfirmation(s, slot)
		return fmt.Sprintf("Encontrei disponibilidade para o dia %s, mas apenas no período da %s. Esse horário seria bom para você?",
			scheduling.FormatDate(date), slot.Period.Label()), nil
	case scheduling.DateHit:
		slot := scheduling.Slot{Date: date, Period: period}
		e.holdForConfirmation(s, slot)
		return fmt.Sprintf("Ótimo! Temos disponibilidade para %s. Posso confirmar esse agendamento para você?", slotPhrase(slot)), nil
	default:
		labels := make([]string, 0, len(dc.Periods))
		for _, p := range dc.Periods {
			labels = append(labels, p.Label())
		}
		s.CandidateDate = date
		s.CandidatePeriod = ""
		s.Step = StepCollectPeriod
		return fmt.Sprintf("Encontrei disponibilidade para %s, dia %s, nos seguintes períodos: %s. Qual período você prefere?",
			scheduling.WeekdayName(date), scheduling.FormatDate(date), strings.Join(labels, " e ")), nil
	}
}

func (e *Engine) handleMoreDetails(_ context.Context, t *turn) (string, error) {
	o := t.order()
	var b strings.Builder
	fmt.Fprintf(&b, "Opa! Prontinho! Aqui estão os detalhes da sua OS %s:\n", o.ID)
	fmt.Fprintf(&b, "• Assunto: %s\n", o.Summary())
	fmt.Fprintf(&b, "• Status: %s\n", o.Status.Label())
	if d := o.ScheduledDate(); d != "" {
		if tm, err := scheduling.ParseDate(d); err == nil {
			period := o.ScheduledPeriod
			if !period.Valid() {
				period = scheduling.Afternoon
			}
			fmt.Fprintf(&b, "• Data agendada: dia %02d do mês de %s no período da %s\n", tm.Day(), scheduling.MonthName(tm.Month()), period.Label())
		}
	}
	if o.Address != "" {
		fmt.Fprintf(&b, "• Endereço: %s\n", o.Address)
	}
	b.WriteString("Se precisar de mais alguma coisa, é só me chamar! 😊")
	t.session.ResetNegotiation()
	return b.String(), nil
}

func (e *Engine) handleConfirmOrderChoice(ctx context.Context, t *turn) (string, error) {
	s := t.session
	o := t.order()
	s.Step = StepCollectDate
	p, ok, err := e.propose(ctx, o)
	if err != nil || !ok {
		return fmt.Sprintf("Perfeito! Vamos agendar a visita para a OS %s. Por favor, informe a data e o período (manhã ou tarde) que você prefere, e faremos o possível para atender sua solicitação!", o.ID), nil
	}
	s.Suggest(p.Primary)
	return fmt.Sprintf("Perfeito! Vamos agendar a visita para a OS %s (%s).\nSe preferir, tenho uma sugestão: %s.\nSe quiser outra data ou período, é só me informar! Qual data e período você prefere?",
		o.ID, o.Label(), slotPhrase(p.Primary)), nil
}

func askPeriod(date string) string {
	return fmt.Sprintf("Ok, anotei a data %s. Você prefere o período da manhã ou da tarde?", scheduling.FormatDate(date))
}
