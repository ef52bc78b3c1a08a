package ixc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "7:secret", 0, nil)
}

func TestFindCustomerByTaxID(t *testing.T) {
	var got listRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webservice/v1/cliente" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("ixcsoft") != "listar" {
			t.Fatalf("expected listar header")
		}
		want := "Basic " + base64.StdEncoding.EncodeToString([]byte("7:secret"))
		if r.Header.Get("Authorization") != want {
			t.Fatalf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":     "1",
			"registros": []map[string]any{{"id": "42", "razao": "Maria Souza", "cnpj_cpf": "529.982.247-25"}},
		})
	})

	cust, err := c.FindCustomerByTaxID(context.Background(), "52998224725")
	if err != nil {
		t.Fatalf("FindCustomerByTaxID: %v", err)
	}
	if cust.ID != "42" || cust.Name != "Maria Souza" {
		t.Fatalf("unexpected customer %+v", cust)
	}
	if got.QType != "cliente.cnpj_cpf" || got.Query != "529.982.247-25" {
		t.Fatalf("unexpected query %+v", got)
	}
}

func TestFindCustomerNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 0, "registros": []any{}})
	})
	_, err := c.FindCustomerByTaxID(context.Background(), "52998224725")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestStatusErrorCarriesCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	_, err := c.FindCustomerByTaxID(context.Background(), "52998224725")
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestListOrdersByCustomerFiltersStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"registros": []map[string]any{
				{"id": "1001", "id_cliente": "42", "titulo": "Sem internet", "status": "A", "sla_horas": "48", "data_abertura": "2024-07-22 08:00:00"},
				{"id": "1002", "id_cliente": "42", "mensagem": "Troca de roteador", "status": "AG", "data_agenda_final": "2024-07-24 14:00:00"},
				{"id": "1003", "id_cliente": "42", "status": "F"},
			},
		})
	})

	orders, err := c.ListOrdersByCustomer(context.Background(), "42")
	if err != nil {
		t.Fatalf("ListOrdersByCustomer: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected finished order dropped, got %+v", orders)
	}
	if orders[0].SLAHours != 48 || orders[0].Subject != "Sem internet" {
		t.Fatalf("unexpected first order %+v", orders[0])
	}
	if orders[1].ScheduledPeriod != scheduling.Afternoon {
		t.Fatalf("expected period derived from agenda hour, got %q", orders[1].ScheduledPeriod)
	}
}

func TestScheduledSlotsFiltersRangeAndSector(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"registros": []map[string]any{
				{"id": "1", "status": "AG", "setor": "3", "data_agenda_final": "2024-07-23 09:00:00", "melhor_horario_agenda": "M"},
				{"id": "2", "status": "AG", "setor": "4", "data_agenda_final": "2024-07-23 14:00:00", "melhor_horario_agenda": "T"},
				{"id": "3", "status": "AG", "setor": "3", "data_agenda_final": "2024-08-23 14:00:00", "melhor_horario_agenda": "T"},
				{"id": "4", "status": "AG", "setor": "3", "data_agenda_final": "0000-00-00 00:00:00"},
			},
		})
	})

	slots, err := c.ScheduledSlots(context.Background(), "3", "2024-07-23", "2024-07-25")
	if err != nil {
		t.Fatalf("ScheduledSlots: %v", err)
	}
	if len(slots) != 1 || slots[0] != (scheduling.Slot{Date: "2024-07-23", Period: scheduling.Morning}) {
		t.Fatalf("unexpected slots %+v", slots)
	}
}

func TestScheduledSlotsPagesFromRangeStart(t *testing.T) {
	var reqs []listRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req listRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reqs = append(reqs, req)

		var records []map[string]any
		switch req.Page {
		case "1":
			for i := 0; i < agendaPageSize; i++ {
				records = append(records, map[string]any{
					"id": strconv.Itoa(i), "status": "AG", "setor": "3",
					"data_agenda_final": "2024-07-23 09:00:00", "melhor_horario_agenda": "M",
				})
			}
		case "2":
			records = []map[string]any{
				{"id": "900", "status": "AG", "setor": "3", "data_agenda_final": "2024-07-24 14:00:00", "melhor_horario_agenda": "T"},
				{"id": "901", "status": "AG", "setor": "3", "data_agenda_final": "2024-07-30 14:00:00", "melhor_horario_agenda": "T"},
			}
		default:
			t.Fatalf("paging should stop once past the range, got page %s", req.Page)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"registros": records})
	})

	slots, err := c.ScheduledSlots(context.Background(), "3", "2024-07-23", "2024-07-25")
	if err != nil {
		t.Fatalf("ScheduledSlots: %v", err)
	}
	if len(slots) != agendaPageSize+1 {
		t.Fatalf("expected %d slots, got %d", agendaPageSize+1, len(slots))
	}
	if last := slots[len(slots)-1]; last != (scheduling.Slot{Date: "2024-07-24", Period: scheduling.Afternoon}) {
		t.Fatalf("unexpected last slot %+v", last)
	}
	if len(reqs) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(reqs))
	}
	first := reqs[0]
	if first.QType != "su_oss_chamado.data_agenda_final" || first.Oper != ">=" || first.Query != "2024-07-23 00:00:00" {
		t.Fatalf("expected a server-side date filter, got %+v", first)
	}
	var grid []gridParam
	if err := json.Unmarshal([]byte(first.GridParam), &grid); err != nil {
		t.Fatalf("grid_param: %v", err)
	}
	if len(grid) != 1 || grid[0].Value != "AG" {
		t.Fatalf("expected a status filter, got %+v", grid)
	}
}

func TestScheduleOrderSendsAgenda(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/webservice/v1/su_oss_chamado/1001" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("ixcsoft") != "" {
			t.Fatalf("update must not carry listar header")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{"type": "error", "message": "Data de fim deve ser maior que a data de início"})
	})

	order := scheduling.Order{ID: "1001", CustomerID: "42", Subject: "Sem internet", Status: scheduling.StatusOpen}
	res, err := c.ScheduleOrder(context.Background(), order, scheduling.Slot{Date: "2024-07-24", Period: scheduling.Morning})
	if err != nil {
		t.Fatalf("ScheduleOrder: %v", err)
	}
	if !res.Failed() {
		t.Fatalf("expected failed result, got %+v", res)
	}
	if body["data_agenda_final"] != "2024-07-24 09:00:00" || body["melhor_horario_agenda"] != "M" {
		t.Fatalf("unexpected payload %+v", body)
	}
	if body["titulo"] != "Sem internet" || body["id_cliente"] != "42" {
		t.Fatalf("order fields missing from payload %+v", body)
	}
}

func TestMissingCredentials(t *testing.T) {
	c := NewClient("", "", 0, nil)
	if _, err := c.ListOrdersByCustomer(context.Background(), "1"); err == nil {
		t.Fatal("expected error without base url")
	}
}

func TestFormatCPF(t *testing.T) {
	if got := FormatCPF("52998224725"); got != "529.982.247-25" {
		t.Fatalf("FormatCPF = %q", got)
	}
	if got := FormatCPF("123"); got != "123" {
		t.Fatalf("short input should pass through, got %q", got)
	}
}
