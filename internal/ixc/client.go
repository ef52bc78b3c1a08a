package ixc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carlaherrera/apina-front/internal/scheduling"
	"github.com/carlaherrera/apina-front/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTimeout = 20 * time.Second
	maxOrdersPage  = "200"
	agendaPageSize = 500
	maxAgendaPages = 20
)

var (
	// ErrCustomerNotFound is returned when no client matches the tax id.
	ErrCustomerNotFound = errors.New("ixc: customer not found")

	ixcTracer = otel.Tracer("apina-front.ixc")
	nonDigits = regexp.MustCompile(`\D`)
)

// StatusError carries a non-2xx CRM response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ixc: status %d: %s", e.Code, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Client talks to the IXC Soft webservice API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates an IXC client. token is the "id:hash" user token.
func NewClient(baseURL, token string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FormatCPF renders 11 digits as 000.000.000-00, the way IXC stores it.
func FormatCPF(taxID string) string {
	d := nonDigits.ReplaceAllString(taxID, "")
	if len(d) != 11 {
		return taxID
	}
	return d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}

// FindCustomerByTaxID looks a client up by CPF.
func (c *Client) FindCustomerByTaxID(ctx context.Context, taxID string) (Customer, error) {
	ctx, span := ixcTracer.Start(ctx, "ixc.find_customer")
	defer span.End()

	var out listResponse[customerRecord]
	req := listRequest{QType: "cliente.cnpj_cpf", Query: FormatCPF(taxID), Oper: "=", Page: "1", RP: "1"}
	if err := c.do(ctx, http.MethodPost, "/webservice/v1/cliente", true, req, &out); err != nil {
		span.RecordError(err)
		return Customer{}, err
	}
	if len(out.Registros) == 0 {
		return Customer{}, ErrCustomerNotFound
	}
	rec := out.Registros[0]
	name := strings.TrimSpace(rec.Razao)
	if name == "" {
		name = strings.TrimSpace(rec.Fantasia)
	}
	span.SetAttributes(attribute.String("ixc.customer_id", rec.ID))
	return Customer{ID: rec.ID, Name: name}, nil
}

// ListOrdersByCustomer returns the customer's orders that are open, scheduled or in progress.
func (c *Client) ListOrdersByCustomer(ctx context.Context, customerID string) ([]scheduling.Order, error) {
	ctx, span := ixcTracer.Start(ctx, "ixc.list_orders")
	defer span.End()
	span.SetAttributes(attribute.String("ixc.customer_id", customerID))

	var out listResponse[orderRecord]
	req := listRequest{
		QType: "su_oss_chamado.id_cliente", Query: customerID, Oper: "=",
		Page: "1", RP: maxOrdersPage, SortName: "su_oss_chamado.id", SortOrder: "desc",
	}
	if err := c.do(ctx, http.MethodPost, "/webservice/v1/su_oss_chamado", true, req, &out); err != nil {
		span.RecordError(err)
		return nil, err
	}
	orders := make([]scheduling.Order, 0, len(out.Registros))
	for _, rec := range out.Registros {
		o := rec.toOrder()
		if !o.Status.Active() {
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// ScheduledSlots lists booked visits for a sector between from and to (YYYY-MM-DD, inclusive).
// An empty sector counts every sector.
func (c *Client) ScheduledSlots(ctx context.Context, sectorID, from, to string) ([]scheduling.Slot, error) {
	ctx, span := ixcTracer.Start(ctx, "ixc.scheduled_slots")
	defer span.End()

	grid, err := json.Marshal([]gridParam{{Table: "su_oss_chamado.status", Op: "=", Value: string(scheduling.StatusScheduled)}})
	if err != nil {
		return nil, fmt.Errorf("ixc: encode grid filter: %w", err)
	}
	var slots []scheduling.Slot
	for page := 1; page <= maxAgendaPages; page++ {
		var out listResponse[orderRecord]
		req := listRequest{
			QType: "su_oss_chamado.data_agenda_final", Query: from + " 00:00:00", Oper: ">=",
			Page: strconv.Itoa(page), RP: strconv.Itoa(agendaPageSize),
			SortName: "su_oss_chamado.data_agenda_final", SortOrder: "asc",
			GridParam: string(grid),
		}
		if err := c.do(ctx, http.MethodPost, "/webservice/v1/su_oss_chamado", true, req, &out); err != nil {
			span.RecordError(err)
			return nil, err
		}
		pastRange := false
		for _, rec := range out.Registros {
			o := rec.toOrder()
			date := o.ScheduledDate()
			if date > to {
				pastRange = true
				continue
			}
			if o.Status != scheduling.StatusScheduled || date == "" || date < from {
				continue
			}
			if sectorID != "" && rec.Setor != "" && rec.Setor != sectorID {
				continue
			}
			slots = append(slots, scheduling.Slot{Date: date, Period: o.ScheduledPeriod})
		}
		if pastRange || len(out.Registros) < agendaPageSize {
			span.SetAttributes(attribute.Int("ixc.booked_slots", len(slots)), attribute.Int("ixc.pages", page))
			return slots, nil
		}
	}
	c.logger.Warn("agenda listing truncated", "from", from, "to", to, "pages", maxAgendaPages)
	span.SetAttributes(attribute.Int("ixc.booked_slots", len(slots)))
	return slots, nil
}

// ScheduleOrder books the order for slot. A 2xx response whose body says
// type=error is returned as a result, not an error.
func (c *Client) ScheduleOrder(ctx context.Context, order scheduling.Order, slot scheduling.Slot) (UpdateResult, error) {
	ctx, span := ixcTracer.Start(ctx, "ixc.schedule_order")
	defer span.End()
	span.SetAttributes(attribute.String("ixc.order_id", order.ID))

	rec := fromOrder(order)
	rec.Status = string(scheduling.StatusScheduled)
	rec.DataAgendaFinal = slot.Timestamp()
	rec.MelhorHorarioAgenda = string(slot.Period)

	var out UpdateResult
	if err := c.do(ctx, http.MethodPut, "/webservice/v1/su_oss_chamado/"+order.ID, false, rec, &out); err != nil {
		span.RecordError(err)
		return UpdateResult{}, err
	}
	c.logger.Info("ixc order update",
		"order_id", order.ID,
		"agenda", rec.DataAgendaFinal,
		"result_type", out.Type,
	)
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, list bool, payload, out any) error {
	if strings.TrimSpace(c.baseURL) == "" {
		return fmt.Errorf("ixc: missing base url")
	}
	if strings.TrimSpace(c.token) == "" {
		return fmt.Errorf("ixc: missing token")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ixc: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ixc: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.token)))
	if list {
		req.Header.Set("ixcsoft", "listar")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ixc: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ixc: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return &StatusError{Code: resp.StatusCode, Body: msg}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("ixc: unmarshal response: %w", err)
	}
	return nil
}

func (r orderRecord) toOrder() scheduling.Order {
	period := scheduling.ParsePeriod(r.MelhorHorarioAgenda)
	if !period.Valid() && len(r.DataAgendaFinal) >= 13 && !strings.HasPrefix(r.DataAgendaFinal, "0000") {
		if r.DataAgendaFinal[11:13] < "12" {
			period = scheduling.Morning
		} else {
			period = scheduling.Afternoon
		}
	}
	return scheduling.Order{
		ID:              r.ID,
		CustomerID:      r.IDCliente,
		Subject:         r.Titulo,
		Description:     r.Mensagem,
		Status:          scheduling.OrderStatus(r.Status),
		ScheduledAt:     r.DataAgendaFinal,
		ScheduledPeriod: period,
		SLAHours:        int(r.SLAHoras),
		OpenedAt:        r.DataAbertura,
		Address:         r.Endereco,
		SectorID:        r.Setor,
	}
}

func fromOrder(o scheduling.Order) orderRecord {
	return orderRecord{
		ID:                  o.ID,
		IDCliente:           o.CustomerID,
		Titulo:              o.Subject,
		Mensagem:            o.Description,
		Status:              string(o.Status),
		DataAgendaFinal:     o.ScheduledAt,
		MelhorHorarioAgenda: string(o.ScheduledPeriod),
		DataAbertura:        o.OpenedAt,
		Endereco:            o.Address,
		Setor:               o.SectorID,
		SLAHoras:            flexInt(o.SLAHours),
	}
}
