package conversation

import (
	"strings"
	"testing"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

func TestBuildDigestEmptySession(t *testing.T) {
	if got := BuildDigest(NewSession(testSender), "", ""); got != "" {
		t.Fatalf("expected empty digest, got %q", got)
	}
}

func TestBuildDigestOrdersLines(t *testing.T) {
	o := openOrder("4821")
	s := NewSession(testSender)
	s.CustomerName = "Maria Souza"
	s.TaxID = "12345678900"
	s.OpenOrders = []scheduling.Order{o, openOrder("5932")}
	s.SelectOrder(o)
	s.Suggest(scheduling.Slot{Date: "2024-07-23", Period: scheduling.Morning})
	s.PreviousStep = StepChooseOrder
	s.LastAssistantMessage = "Qual OS?"
	s.LastUserMessage = "a primeira"

	got := strings.Split(BuildDigest(s, "pode ser", "cliente com pressa"), "\n")
	want := []string{
		"O usuário se chama Maria Souza.",
		"O CPF informado é 12345678900.",
		"OS abertas: • 4821 - Sem conexão / • 5932 - Sem conexão.",
		"OS escolhida → ID 4821 | título: Sem conexão | status: A",
		"Data sugerida para agendamento: 2024-07-23.",
		"Período sugerido para agendamento: manhã.",
		`A etapa anterior foi "choose_order".`,
		`Mensagem anterior: "Qual OS?".`,
		`Última mensagem do cliente: "a primeira".`,
		`Nova mensagem do cliente: "pode ser".`,
		"Observação adicional: cliente com pressa.",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
