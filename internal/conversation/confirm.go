package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

// validateCandidate checks the session's candidate slot with the negotiator.
// On success accept renders the yes/no question and the slot is held for
// confirmation; rejections clear or keep slots as the outcome requires.
func (e *Engine) validateCandidate(ctx context.Context, t *turn, accept func(scheduling.Order, scheduling.Slot) string) string {
	s := t.session
	o := t.order()
	slot := scheduling.Slot{Date: s.CandidateDate, Period: s.CandidatePeriod}

	v, err := e.negotiator.Validate(ctx, o, slot.Date, slot.Period)
	if err != nil {
		e.logger.Error("availability check failed", "order_id", o.ID, "date", slot.Date, "error", err)
		return msgAvailabilityFailed
	}

	var reply string
	switch v.Outcome {
	case scheduling.OutcomeOK:
		e.holdForConfirmation(s, slot)
		return accept(o, slot)
	case scheduling.OutcomeWeekend:
		s.ClearSlots()
		s.Step = StepCollectDate
		reply = weekendText(slot.Date, v.Weekday)
	case scheduling.OutcomeOutOfRange:
		s.ClearSlots()
		s.Step = StepCollectDate
		reply = outOfRangeText(slot.Date, v.Window)
	default:
		head := fmt.Sprintf("Desculpe, não encontrei disponibilidade para %s no período da %s.", scheduling.FormatDate(slot.Date), slot.Period.Label())
		if v.OtherPeriod.Valid() {
			s.AwaitingConfirmation = false
			s.Suggest(scheduling.Slot{Date: slot.Date, Period: v.OtherPeriod})
			return head + fmt.Sprintf(" Mas temos disponibilidade no período da %s neste dia. Gostaria de agendar?", v.OtherPeriod.Label())
		}
		reply = head + " Gostaria de tentar outra data ou período?"
	}

	s.AwaitingConfirmation = false
	if v.Fallback != nil {
		s.Suggest(*v.Fallback)
		reply += fallbackOffer(*v.Fallback)
	}
	return reply
}

// holdForConfirmation marks slot as the one the next "yes" commits.
func (e *Engine) holdForConfirmation(s *Session, slot scheduling.Slot) {
	s.CandidateDate = slot.Date
	s.CandidatePeriod = slot.Period
	s.Suggest(slot)
	s.AwaitingConfirmation = true
	s.Step = StepConfirm
}

// handleConfirm is two-phase: the first call with both slots filled only
// echoes the slot back, a second call for the same slot books it.
func (e *Engine) handleConfirm(ctx context.Context, t *turn) (string, error) {
	s := t.session
	dp := e.interpretDateAndPeriod(ctx, t, "Tente identificar data e/ou período para o agendamento na mensagem de confirmação.")
	date, period := dp.Date, dp.Period
	// The model often echoes the suggested day from context with its afternoon default.
	if date != "" && date == s.SuggestedDate && s.SuggestedPeriod.Valid() && !InterpretPeriod(t.message).Valid() {
		period = s.SuggestedPeriod
	}

	if (date == "" || !period.Valid()) && s.LastQuestion == QuestionSuggestion && s.SuggestedDate != "" && s.SuggestedPeriod.Valid() {
		if date == "" {
			date = s.SuggestedDate
		}
		if !period.Valid() {
			period = s.SuggestedPeriod
		}
	}
	if date == "" {
		date = s.CandidateDate
	}
	if !period.Valid() {
		period = s.CandidatePeriod
	}
	s.CandidateDate, s.CandidatePeriod = date, period

	switch {
	case date == "" && !period.Valid():
		s.Step = StepCollectDate
		return "Preciso que você me informe a data e o período para agendarmos.", nil
	case date == "":
		s.Step = StepCollectDate
		return "Qual data você prefere para o agendamento?", nil
	case !period.Valid():
		s.Step = StepCollectPeriod
		return fmt.Sprintf("Para o dia %s, você prefere manhã ou tarde?", scheduling.FormatDate(date)), nil
	}

	slot := scheduling.Slot{Date: date, Period: period}
	held := scheduling.Slot{Date: s.SuggestedDate, Period: s.SuggestedPeriod}
	if !s.AwaitingConfirmation || slot != held {
		return e.validateCandidate(ctx, t, func(o scheduling.Order, slot scheduling.Slot) string {
			return availableQuestion(o, slot, "\n\n", "Confirma o agendamento para essa data?")
		}), nil
	}
	return e.commit(ctx, t, slot), nil
}

// commit books slot in the CRM and resets the negotiation on success.
func (e *Engine) commit(ctx context.Context, t *turn, slot scheduling.Slot) string {
	s := t.session
	o := t.order()
	res, err := e.crm.ScheduleOrder(ctx, o, slot)
	if err != nil {
		e.logger.Error("booking failed", "order_id", o.ID, "slot", slot.Timestamp(), "error", err)
		e.observer.ObserveBooking(BookingFailed)
		s.AwaitingConfirmation = false
		return msgBookingRetry
	}
	if res.Failed() {
		e.logger.Warn("booking rejected", "order_id", o.ID, "slot", slot.Timestamp(), "message", res.Message)
		e.observer.ObserveBooking(BookingRejected)
		s.AwaitingConfirmation = false
		if strings.Contains(res.Message, "Data de fim deve ser maior") {
			return msgBookingGlitch
		}
		return fmt.Sprintf("Desculpe, não consegui agendar sua visita neste momento. Erro: %s. Por favor, tente novamente mais tarde.", res.Message)
	}
	if strings.Contains(res.Message, "Falha") {
		e.logger.Warn("booking reported failure", "order_id", o.ID, "message", res.Message)
		e.observer.ObserveBooking(BookingRejected)
		s.AwaitingConfirmation = false
		return msgBookingRetry
	}

	e.observer.ObserveBooking(BookingSucceeded)
	e.logger.Info("order scheduled", "order_id", o.ID, "slot", slot.Timestamp())
	reply := fmt.Sprintf("Prontinho! Sua visita para %s está agendada! Ficou para %s, dia %s no período da %s. Estou finalizando nosso atendimento. Caso precise de mim, estou por aqui.",
		o.Label(), scheduling.WeekdayName(slot.Date), scheduling.FormatDate(slot.Date), slot.Period.Label())
	s.ResetNegotiation()
	if s.CustomerID != "" {
		e.refreshOrdersAsync(s.Sender, s.CustomerID)
	}
	return reply
}
