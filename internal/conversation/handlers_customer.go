package conversation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/carlaherrera/apina-front/internal/ixc"
	"github.com/carlaherrera/apina-front/internal/scheduling"
)

func (e *Engine) handleIdentifyTaxID(ctx context.Context, t *turn) (string, error) {
	s := t.session
	taxID := ExtractTaxID(t.message)
	if taxID == "" {
		s.Step = StepCollectTaxID
		if LooksLikeOrderNumber(t.message) {
			return "Parece que você digitou um número que pode ser uma OS. Para confirmar, por favor me informe seu CPF primeiro (11 dígitos, ex: 12345678900 ou 123.456.789-00), e depois poderei verificar suas ordens de serviço.", nil
		}
		return "Parece que o formato do CPF não está correto. Por favor, digite novamente com 11 dígitos (ex: 12345678900 ou 123.456.789-00).", nil
	}

	s.TaxID = taxID
	customer, err := e.crm.FindCustomerByTaxID(ctx, taxID)
	if err != nil {
		s.CustomerID, s.CustomerName = "", ""
		s.Step = StepCollectTaxID
		if errors.Is(err, ixc.ErrCustomerNotFound) {
			return "CPF não encontrado. Pode reenviar?", nil
		}
		e.logger.Error("customer lookup failed", "status", ixc.StatusCode(err), "error", err)
		switch ixc.StatusCode(err) {
		case http.StatusUnauthorized:
			return "Desculpe, estamos enfrentando problemas de autenticação com nosso sistema. Por favor, tente novamente mais tarde ou entre em contato com nosso suporte técnico.", nil
		case http.StatusNotFound:
			return "Não encontramos nenhum cliente cadastrado com este CPF. Por favor, verifique se o número está correto ou entre em contato com nosso suporte para mais informações.", nil
		default:
			return "Desculpe, ocorreu um problema ao buscar seus dados. Por favor, tente novamente mais tarde ou entre em contato com nosso suporte técnico.", nil
		}
	}

	s.ResetNegotiation()
	s.TaxID = taxID
	s.CustomerID = customer.ID
	s.CustomerName = customer.Name

	parts := []string{fmt.Sprintf("✅ Cadastro localizado, %s.", customer.Name)}
	if err := e.loadOrders(ctx, s); err != nil {
		return strings.Join(append(parts, msgOrdersLookupFailed), "\n\n"), nil
	}

	open := filterOrders(s.OpenOrders, scheduling.StatusOpen)
	booked := filterOrders(s.OpenOrders, scheduling.StatusScheduled)
	switch {
	case len(open) == 1:
		s.SelectOrder(open[0])
		s.Step = StepSchedule
		parts = append(parts, fmt.Sprintf("Encontrei 1 OS aberta:\n%s\n\nJá selecionei essa OS para você. Para quando gostaria de agendar a visita? (ex: segunda-feira a tarde, dia 25 pela manhã)", orderBullet(open[0])))
	case len(open) > 1:
		s.Step = StepChooseOrder
		parts = append(parts, fmt.Sprintf("Encontrei %d OS aberta(s):\n%s\nSe quiser, posso te ajudar a agendar uma visita. Informe o número da OS para agendar.", len(open), orderBullets(open)))
	}
	if len(booked) > 0 {
		parts = append(parts, fmt.Sprintf("Você já possui %d OS agendada(s):\n%s\nDeseja ver detalhes do dia da visita? Responda com o número da OS para mais informações.", len(booked), orderBullets(booked)))
	}
	if len(open) == 0 && len(booked) == 0 {
		parts = append(parts, "Não há OS abertas ou agendadas no momento.")
	}
	return strings.Join(parts, "\n\n"), nil
}

func (e *Engine) handleGreeting(ctx context.Context, t *turn) (string, error) {
	if !t.session.Identified() {
		t.session.Step = StepCollectTaxID
		return e.render(ctx, t, IntentIdentifyTaxID,
			"Se apresente caso ainda não tenha feito, e peça o CPF para iniciar.",
			"Olá! Sou o assistente de agendamento de visitas técnicas. Para começarmos, por favor me informe seu CPF."), nil
	}
	return e.render(ctx, t, IntentGreeting, "Saudação ao usuário já identificado.", ""), nil
}

// handleFinished also serves unknown intents.
func (e *Engine) handleFinished(ctx context.Context, t *turn) (string, error) {
	reply := e.render(ctx, t, IntentFinished, "Encerrar atendimento.",
		"Obrigado pelo contato! Se precisar de algo, é só me chamar.")
	t.session.ResetNegotiation()
	return reply, nil
}

func (e *Engine) handleCancel(_ context.Context, t *turn) (string, error) {
	s := t.session
	s.SelectedOrder = nil
	s.ClearSlots()
	s.SuggestedDate, s.SuggestedPeriod = "", ""
	s.LastQuestion = QuestionNone
	s.AwaitingConfirmation = false
	s.Step = StepStart
	return "Tudo bem, cancelei o processo para você. Se precisar retomar ou tiver outra dúvida, é só me chamar! 😊", nil
}

func (e *Engine) handleChangeOrder(ctx context.Context, t *turn) (string, error) {
	s := t.session
	s.ClearSlots()
	s.AwaitingConfirmation = false
	if len(s.OpenOrders) == 0 {
		if err := e.loadOrders(ctx, s); err != nil {
			return msgOrdersLookupFailed, nil
		}
	}

	if id := orderNumberIn(t.message); id != "" {
		if o := findOrder(s.OpenOrders, id); o != nil {
			s.SelectOrder(*o)
			return e.offerFor(ctx, s, "reagendar")
		}
	}

	s.SelectedOrder = nil
	s.Step = StepChooseOrder
	var b strings.Builder
	b.WriteString("Sem problemas! Vamos reagendar uma ordem de serviço. ")
	if len(s.OpenOrders) == 0 {
		b.WriteString("No momento, não encontrei nenhuma OS disponível para reagendamento. Por favor, entre em contato com nosso suporte.")
		return b.String(), nil
	}
	if open := filterOrders(s.OpenOrders, scheduling.StatusOpen); len(open) > 0 {
		b.WriteString("\n\nOS abertas para agendar:\n")
		b.WriteString(orderBullets(open))
	}
	if booked := filterOrders(s.OpenOrders, scheduling.StatusScheduled); len(booked) > 0 {
		b.WriteString("\n\nOS já agendadas que podem ser reagendadas:")
		for _, o := range booked {
			when := "data não informada"
			if d := o.ScheduledDate(); d != "" {
				when = scheduling.FormatDate(d)
			}
			period := o.ScheduledPeriod
			if !period.Valid() {
				period = scheduling.Afternoon
			}
			fmt.Fprintf(&b, "\n%s (agendada para %s - %s)", orderBullet(o), when, period.Label())
		}
	}
	b.WriteString("\n\nPor favor, me informe o número da OS que deseja reagendar.")
	return b.String(), nil
}

// offerFor proposes the first free slot for the selected order in the short form.
func (e *Engine) offerFor(ctx context.Context, s *Session, verb string) (string, error) {
	o := *s.SelectedOrder
	p, ok, err := e.propose(ctx, o)
	if err != nil {
		return msgAvailabilityFailed, nil
	}
	if !ok {
		return msgNoSlotsForSector, nil
	}
	s.Suggest(p.Primary)
	s.Step = StepSchedule
	return quickOffer(verb, o, p.Primary), nil
}

func (e *Engine) handleListOptions(_ context.Context, t *turn) (string, error) {
	s := t.session
	s.SelectedOrder = nil
	orders := "Nenhuma OS disponível."
	if len(s.OpenOrders) > 0 {
		orders = orderBullets(s.OpenOrders)
	}
	pending := ""
	if s.SuggestedDate != "" && s.SuggestedPeriod.Valid() {
		pending = "\n\nSugestão pendente: " + slotShort(scheduling.Slot{Date: s.SuggestedDate, Period: s.SuggestedPeriod}) + "."
	}
	return "Aqui estão as opções disponíveis:\n\nOrdens de Serviço (OS):\n" + orders + pending +
		"\n\nSe quiser escolher uma OS, basta me dizer o número. Para agendar, é só informar a data e o período (manhã ou tarde) que preferir!", nil
}

func (e *Engine) handleCheckOrders(ctx context.Context, t *turn) (string, error) {
	s := t.session
	if err := e.loadOrders(ctx, s); err != nil {
		return msgOrdersLookupFailed, nil
	}
	var open []scheduling.Order
	for _, o := range s.OpenOrders {
		if o.Status == scheduling.StatusOpen || o.Status == scheduling.StatusInProgress {
			open = append(open, o)
		}
	}
	booked := filterOrders(s.OpenOrders, scheduling.StatusScheduled)

	var parts []string
	if len(open) > 0 {
		plural := len(open) > 1
		parts = append(parts, fmt.Sprintf("OS aberta%s encontrada%s (%d):\n%s\n\nGostaria de agendar %s?",
			pluralS(plural), pluralS(plural), len(open), orderBullets(open), pick(plural, "alguma delas", "ela")))
	}
	if len(booked) > 0 {
		plural := len(booked) > 1
		parts = append(parts, fmt.Sprintf("OS agendada%s encontrada%s (%d):\n%s\n\nGostaria de ver mais detalhes ou reagendar %s?",
			pluralS(plural), pluralS(plural), len(booked), orderBullets(booked), pick(plural, "alguma delas", "ela")))
	}
	if len(parts) == 0 {
		return "Não há OS abertas ou agendadas no momento.", nil
	}
	s.Step = StepChooseOrder
	return strings.Join(parts, "\n\n"), nil
}

func (e *Engine) handleChooseOrder(ctx context.Context, t *turn) (string, error) {
	s := t.session
	if len(s.OpenOrders) == 0 {
		if err := e.loadOrders(ctx, s); err != nil {
			return msgOrdersLookupFailed, nil
		}
	}
	if len(s.OpenOrders) == 0 {
		return "Não há ordens de serviço disponíveis para agendamento.", nil
	}
	o := e.parseOrderChoice(ctx, t.message, s.OpenOrders, t.digest)
	if o == nil {
		s.Step = StepChooseOrder
		return "Não consegui identificar qual OS você deseja. Por favor, informe o número da OS que deseja agendar.", nil
	}
	s.SelectOrder(*o)
	s.ClearSlots()
	s.AwaitingConfirmation = false

	if o.IsScheduled() {
		return alreadyScheduled(*o) + "\n\nO que você gostaria de fazer?\n" +
			"1. Ver mais detalhes desta OS\n" +
			"2. Reagendar esta visita\n" +
			"3. Voltar para a lista de OS", nil
	}

	p, ok, err := e.propose(ctx, *o)
	if err != nil {
		return msgAvailabilityFailed, nil
	}
	if !ok {
		return msgNoSlotsForSector, nil
	}
	s.Suggest(p.Primary)
	s.Step = StepSchedule
	return suggestionOffer(*o, p.Primary, p.ByDay), nil
}

func (e *Engine) handleSmalltalk(ctx context.Context, t *turn) (string, error) {
	s := t.session
	if s.PreviousStep == StepChooseOrder && len(s.OpenOrders) > 0 {
		if id := orderNumberIn(t.message); id != "" {
			if o := findOrder(s.OpenOrders, id); o != nil {
				s.SelectOrder(*o)
				return e.offerFor(ctx, s, "agendar")
			}
		}
	}
	switch s.PreviousStep {
	case StepChooseOrder, StepSchedule, StepCollectDate, StepCollectPeriod, StepConfirm:
		return e.render(ctx, t, IntentSmalltalk, "Solicite que o cliente conclua a etapa anterior.", ""), nil
	}
	return e.render(ctx, t, IntentSmalltalk, "", ""), nil
}

func filterOrders(orders []scheduling.Order, status scheduling.OrderStatus) []scheduling.Order {
	var out []scheduling.Order
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

func pluralS(plural bool) string {
	return pick(plural, "s", "")
}

func pick(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
