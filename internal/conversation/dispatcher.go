package conversation

import (
	"context"

	"github.com/carlaherrera/apina-front/internal/scheduling"
)

// turn carries one inbound message through its handler.
type turn struct {
	session *Session
	message string
	intent  string
	// digest is the context rendered before any handler ran.
	digest string
}

// order is the order under negotiation; only valid behind requireOrder.
func (t *turn) order() scheduling.Order {
	return *t.session.SelectedOrder
}

type handlerFunc func(ctx context.Context, t *turn) (string, error)

// requireCustomer short-circuits with the CPF prompt until the customer is known.
func (e *Engine) requireCustomer(next handlerFunc) handlerFunc {
	return func(ctx context.Context, t *turn) (string, error) {
		if r := resolveCustomer(t.session); !r.OK {
			return r.Prompt, nil
		}
		return next(ctx, t)
	}
}

// requireOrder short-circuits until an order is selected.
func (e *Engine) requireOrder(next handlerFunc) handlerFunc {
	return func(ctx context.Context, t *turn) (string, error) {
		if r := e.resolveSelectedOrder(ctx, t.session, t.message, t.digest); !r.OK {
			return r.Prompt, nil
		}
		return next(ctx, t)
	}
}

func (e *Engine) buildRoutes() map[string]handlerFunc {
	customer := e.requireCustomer
	order := func(h handlerFunc) handlerFunc { return e.requireCustomer(e.requireOrder(h)) }

	return map[string]handlerFunc{
		IntentIdentifyTaxID:         e.handleIdentifyTaxID,
		IntentGreeting:              e.handleGreeting,
		IntentFinished:              e.handleFinished,
		IntentCancel:                customer(e.handleCancel),
		IntentChangeOrder:           customer(e.handleChangeOrder),
		IntentListOptions:           customer(e.handleListOptions),
		IntentCheckOrders:           customer(e.handleCheckOrders),
		IntentChooseOrder:           customer(e.handleChooseOrder),
		IntentSmalltalk:             customer(e.handleSmalltalk),
		IntentAvailableDates:        order(e.handleAvailableDates),
		IntentExtractDate:           order(e.handleExtractDate),
		IntentExtractPeriod:         order(e.handleExtractPeriod),
		IntentChangePeriod:          order(e.handleChangePeriod),
		IntentSchedule:              order(e.handleSchedule),
		IntentReschedule:            order(e.handleReschedule),
		IntentCheckDateAvailability: order(e.handleCheckDateAvailability),
		IntentConfirm:               order(e.handleConfirm),
		IntentMoreDetails:           order(e.handleMoreDetails),
		IntentConfirmOrderChoice:    order(e.handleConfirmOrderChoice),
	}
}
