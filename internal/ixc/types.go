package ixc

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Customer is an IXC client record reduced to what the assistant needs.
type Customer struct {
	ID   string
	Name string
}

// UpdateResult is the CRM's verdict on a write. Type is "success" or "error".
type UpdateResult struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Failed reports whether the CRM rejected the write.
func (r UpdateResult) Failed() bool {
	return strings.EqualFold(r.Type, "error")
}

type listRequest struct {
	QType     string `json:"qtype"`
	Query     string `json:"query"`
	Oper      string `json:"oper"`
	Page      string `json:"page"`
	RP        string `json:"rp"`
	SortName  string `json:"sortname,omitempty"`
	SortOrder string `json:"sortorder,omitempty"`
	// GridParam holds extra filters as a JSON-encoded list of gridParam.
	GridParam string `json:"grid_param,omitempty"`
}

type gridParam struct {
	Table string `json:"TB"`
	Op    string `json:"OP"`
	Value string `json:"P"`
}

type listResponse[T any] struct {
	Type      string `json:"type,omitempty"`
	Message   string `json:"message,omitempty"`
	Registros []T    `json:"registros"`
}

type customerRecord struct {
	ID       string `json:"id"`
	Razao    string `json:"razao"`
	Fantasia string `json:"fantasia,omitempty"`
	CnpjCpf  string `json:"cnpj_cpf"`
}

type orderRecord struct {
	ID                  string  `json:"id"`
	IDCliente           string  `json:"id_cliente"`
	IDAssunto           string  `json:"id_assunto,omitempty"`
	Titulo              string  `json:"titulo,omitempty"`
	Mensagem            string  `json:"mensagem,omitempty"`
	Status              string  `json:"status"`
	DataAgendaFinal     string  `json:"data_agenda_final,omitempty"`
	MelhorHorarioAgenda string  `json:"melhor_horario_agenda,omitempty"`
	DataAbertura        string  `json:"data_abertura,omitempty"`
	Endereco            string  `json:"endereco,omitempty"`
	Setor               string  `json:"setor,omitempty"`
	SLAHoras            flexInt `json:"sla_horas,omitempty"`
}

// flexInt decodes numbers IXC sends either as JSON numbers or as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(n)
	return nil
}

func (f flexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.Itoa(int(f)))
}
