package conversation

import "github.com/carlaherrera/apina-front/internal/nlu"

// Intent labels the classifier may return.
const (
	IntentIdentifyTaxID         = "identify_tax_id"
	IntentCancel                = "cancel"
	IntentChangeOrder           = "change_order"
	IntentListOptions           = "list_options"
	IntentCheckOrders           = "check_orders"
	IntentChooseOrder           = "choose_order"
	IntentAvailableDates        = "available_dates"
	IntentExtractDate           = "extract_date"
	IntentExtractPeriod         = "extract_period"
	IntentChangePeriod          = "change_period"
	IntentSchedule              = "schedule"
	IntentReschedule            = "reschedule"
	IntentCheckDateAvailability = "check_date_availability"
	IntentConfirm               = "confirm"
	IntentMoreDetails           = "more_details"
	IntentConfirmOrderChoice    = "confirm_order_choice"
	IntentGreeting              = "greeting"
	IntentSmalltalk             = "smalltalk"
	IntentFinished              = "finished"
)

// FallbackIntent is used when the classifier answers outside the catalog. It
// closes the conversation like any unrouted intent.
const FallbackIntent = IntentFinished

// IntentCatalog describes every label to the classifier.
func IntentCatalog() []nlu.IntentOption {
	return []nlu.IntentOption{
		{Label: IntentGreeting, Description: "O cliente está cumprimentando ou iniciando a conversa."},
		{Label: IntentIdentifyTaxID, Description: "O cliente informou um CPF (11 dígitos, com ou sem pontuação)."},
		{Label: IntentCheckOrders, Description: "O cliente quer saber quais ordens de serviço (OS) possui."},
		{Label: IntentChooseOrder, Description: "O cliente escolheu uma OS da lista, pelo número ou pela posição."},
		{Label: IntentConfirmOrderChoice, Description: "O cliente confirmou a OS escolhida e quer seguir com o agendamento."},
		{Label: IntentChangeOrder, Description: "O cliente quer trocar de OS ou reagendar outra OS."},
		{Label: IntentListOptions, Description: "O cliente pediu para ver as opções disponíveis."},
		{Label: IntentAvailableDates, Description: "O cliente quer saber quais datas estão disponíveis."},
		{Label: IntentExtractDate, Description: "O cliente informou uma data para a visita."},
		{Label: IntentExtractPeriod, Description: "O cliente informou um período (manhã ou tarde) ou horário."},
		{Label: IntentChangePeriod, Description: "O cliente quer trocar o período mantendo a data."},
		{Label: IntentSchedule, Description: "O cliente quer agendar uma visita."},
		{Label: IntentReschedule, Description: "O cliente quer agendar em outra data diferente da sugerida."},
		{Label: IntentCheckDateAvailability, Description: "O cliente perguntou se uma data específica está disponível."},
		{Label: IntentConfirm, Description: "O cliente confirmou o agendamento proposto (sim, pode ser, ok)."},
		{Label: IntentMoreDetails, Description: "O cliente quer mais detalhes sobre a OS."},
		{Label: IntentCancel, Description: "O cliente recusou ou quer cancelar o processo."},
		{Label: IntentFinished, Description: "O cliente encerrou a conversa ou agradeceu."},
		{Label: IntentSmalltalk, Description: "Qualquer outra mensagem fora do fluxo de agendamento."},
	}
}
