package conversation

import (
	"testing"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

func TestInterpretPeriod(t *testing.T) {
	cases := []struct {
		in   string
		want scheduling.Period
	}{
		{"de manhã", scheduling.Morning},
		{"PELA MANHÃ", scheduling.Morning},
		{"antes do almoço", scheduling.Morning},
		{"às 9h", scheduling.Morning},
		{"à tarde", scheduling.Afternoon},
		{"depois do almoço", scheduling.Afternoon},
		{"14h", scheduling.Afternoon},
		{"amanhã à tarde", scheduling.Afternoon},
		{"amanhã", ""},
		{"vamos mudar para a tarde", scheduling.Afternoon},
		{"pode ser à tarde também", scheduling.Afternoon},
		{"quero o agendamento à tarde", scheduling.Afternoon},
		{"às 11h", scheduling.Morning},
		{"lá pelas 10 am", scheduling.Morning},
		{"3 p.m", scheduling.Afternoon},
		{"11:00 fica bom", scheduling.Morning},
		{"combinamos", ""},
		{"sim", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := InterpretPeriod(tc.in); got != tc.want {
			t.Errorf("InterpretPeriod(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFoldStripsDiacritics(t *testing.T) {
	if got := fold("Manhã À Tarde, Emergência"); got != "manha a tarde, emergencia" {
		t.Fatalf("fold = %q", got)
	}
}

func TestCapitalize(t *testing.T) {
	cases := map[string]string{
		"terça-feira": "Terça-feira",
		"sábado":      "Sábado",
		"":            "",
	}
	for in, want := range cases {
		if got := capitalize(in); got != want {
			t.Errorf("capitalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDateAndPeriod(t *testing.T) {
	cases := []struct {
		raw, message string
		want         dateAndPeriod
	}{
		{"2024-07-24,M", "dia 24", dateAndPeriod{"2024-07-24", scheduling.Morning}},
		{"2024-07-24, T", "dia 24", dateAndPeriod{"2024-07-24", scheduling.Afternoon}},
		{"2024-07-24", "dia 24 de manhã", dateAndPeriod{"2024-07-24", scheduling.Morning}},
		{"2024-07-24", "dia 24", dateAndPeriod{"2024-07-24", scheduling.Afternoon}},
		{"2024-02-31,M", "dia 31", dateAndPeriod{"", scheduling.Morning}},
		{"", "de tarde", dateAndPeriod{"", scheduling.Afternoon}},
		{"não sei", "qualquer dia", dateAndPeriod{}},
	}
	for _, tc := range cases {
		if got := parseDateAndPeriod(tc.raw, tc.message); got != tc.want {
			t.Errorf("parseDateAndPeriod(%q, %q) = %+v, want %+v", tc.raw, tc.message, got, tc.want)
		}
	}
}
