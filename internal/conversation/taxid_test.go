package conversation

import "testing"

func TestExtractTaxID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"meu cpf é 123.456.789-00", "12345678900"},
		{"12345678900", "12345678900"},
		{"cpf: 123456789-00 obrigado", "12345678900"},
		{"111.111.111-11", ""},
		{"tentei 111.111.111-11, o certo é 529.982.247-25", "52998224725"},
		{"000.000.000-00 e 000.000.000-00", ""},
		{"1234567890", ""},
		{"a OS é 4821", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ExtractTaxID(tc.in); got != tc.want {
			t.Errorf("ExtractTaxID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLooksLikeOrderNumber(t *testing.T) {
	if !LooksLikeOrderNumber("4821") {
		t.Fatalf("expected a 4 digit number to look like an order")
	}
	if LooksLikeOrderNumber("123.456.789-00") {
		t.Fatalf("a full CPF should not look like an order number")
	}
	if LooksLikeOrderNumber("bom dia") {
		t.Fatalf("text without digits is not an order number")
	}
}

func TestOrderNumberIn(t *testing.T) {
	if got := orderNumberIn("quero a OS 4821 por favor"); got != "4821" {
		t.Fatalf("orderNumberIn = %q, want 4821", got)
	}
	if got := orderNumberIn("a 2"); got != "" {
		t.Fatalf("single digit should not match, got %q", got)
	}
	if got := orderNumberIn("12345678900"); got != "" {
		t.Fatalf("CPF digits should not match an order id, got %q", got)
	}
}
