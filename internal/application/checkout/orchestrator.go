package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/erp/salesdesk/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Metrics receives checkout measurements
type Metrics interface {
	ObserveStage(stage, result string, d time.Duration)
	RecordOutcome(state, stage string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, string, time.Duration) {}
func (nopMetrics) RecordOutcome(string, string) {}

// Request is the input of a checkout run
type Request struct {
	ClientID      catalog.ClientID
	Cart          *sales.Cart
	Discount      sales.DiscountPercent
	PaymentMethod sales.PaymentMethod
	Notes         string
}

func (r Request) validate() error {
	if r.ClientID == 0 {
		return sales.ErrNoClientSelected
	}
	if r.Cart == nil || r.Cart.IsEmpty() {
		return sales.ErrEmptyCart
	}
	if !r.PaymentMethod.IsValid() {
		return sales.ErrInvalidPaymentMethod
	}
	return nil
}

// Orchestrator drives create order → finalize payment → retrieve receipt.
// One run at a time; State can be read concurrently while a run is in flight.
type Orchestrator struct {
	orders  OrderService
	archive ReceiptArchive
	logger  *zap.Logger
	metrics Metrics
	now     func() time.Time

	mu       sync.Mutex
	state    State
	inFlight bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithReceiptArchive stores a copy of every retrieved receipt
func WithReceiptArchive(a ReceiptArchive) Option {
	return func(o *Orchestrator) {
		o.archive = a
	}
}

// WithClock overrides time.Now for stage timing
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an idle orchestrator
func NewOrchestrator(orders OrderService, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		orders:  orders,
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
		now:     time.Now,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current progress
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Reset returns a finished orchestrator to IDLE
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.inFlight {
		o.state = StateIdle
	}
}

// Checkout validates the request and runs every remote stage.
// Validation errors are returned as error and leave the orchestrator IDLE.
// Remote failures are reported in the Outcome, never as error.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (Outcome, error) {
	if err := o.begin(); err != nil {
		return Outcome{}, err
	}
	defer o.end()

	o.setState(StateValidating)
	if err := req.validate(); err != nil {
		o.setState(StateIdle)
		return Outcome{}, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "run")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrClientID, int64(req.ClientID),
		telemetry.SpanAttrLineCount, req.Cart.Len(),
		telemetry.SpanAttrPaymentMethod, req.PaymentMethod.String(),
	)

	quote := sales.QuoteCart(req.Cart, req.Discount)
	orderReq := sales.NewOrderRequest(req.ClientID, req.Cart, req.PaymentMethod, req.Discount, req.Notes)

	var created *sales.Order
	err := o.runStage(ctx, StageOrderCreation, func(ctx context.Context) error {
		order, err := o.orders.Create(ctx, orderReq)
		if err != nil {
			return err
		}
		if order == nil || order.ID == 0 {
			return NewUnavailable(errors.New("order service returned no order id"))
		}
		created = order
		return nil
	})
	if err != nil {
		outcome := o.fail(StageOrderCreation, err, nil, req.PaymentMethod, quote)
		telemetry.RecordError(span, err)
		return outcome, nil
	}

	o.logger.Info("Order created",
		zap.Int64("order_id", int64(created.ID)),
		zap.String("order_number", created.Number),
		zap.String("total", quote.Total.Rounded().StringFixed(2)),
	)

	outcome := o.continueFrom(ctx, StagePaymentFinalization, *created, req.PaymentMethod, quote)
	if outcome.Failure != nil {
		telemetry.RecordError(span, outcome.Failure)
	} else {
		telemetry.SetOK(span)
	}
	return outcome, nil
}

// Resume continues a failed checkout from the stage it stopped at, using the
// order that was already created. An ORDER_CREATION failure cannot be resumed.
func (o *Orchestrator) Resume(ctx context.Context, failure *Failure) (Outcome, error) {
	if failure == nil || !failure.Resumable() {
		return Outcome{}, ErrNotResumable
	}
	if err := o.begin(); err != nil {
		return Outcome{}, err
	}
	defer o.end()

	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "resume")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, int64(failure.Order.ID),
		telemetry.SpanAttrStage, failure.Stage.String(),
	)

	o.logger.Info("Resuming checkout",
		zap.Int64("order_id", int64(failure.Order.ID)),
		zap.String("stage", failure.Stage.String()),
	)

	outcome := o.continueFrom(ctx, failure.Stage, *failure.Order, failure.PaymentMethod, failure.Quote)
	if outcome.Failure != nil {
		telemetry.RecordError(span, outcome.Failure)
	} else {
		telemetry.SetOK(span)
	}
	return outcome, nil
}

// Cancel asks the order service to cancel a draft order
func (o *Orchestrator) Cancel(ctx context.Context, id sales.OrderID) (*sales.Order, error) {
	if err := o.begin(); err != nil {
		return nil, err
	}
	defer o.end()

	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "cancel_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, int64(id)),
	)
	defer span.End()

	order, err := o.orders.Cancel(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, asRemoteError(err)
	}
	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
	o.logger.Info("Draft order cancelled", zap.Int64("order_id", int64(id)))
	return order, nil
}

// continueFrom runs the stages after order creation starting at stage
func (o *Orchestrator) continueFrom(ctx context.Context, stage Stage, order sales.Order, method sales.PaymentMethod, quote sales.Quote) Outcome {
	if stage == StagePaymentFinalization {
		err := o.runStage(ctx, StagePaymentFinalization, func(ctx context.Context) error {
			finalized, err := o.orders.Finalize(ctx, order.ID, method)
			if err != nil {
				return err
			}
			if finalized != nil {
				if finalized.Status != sales.OrderStatusFinalized {
					if order.Status.CanTransitionTo(finalized.Status) {
						order.Status = finalized.Status
					}
					return NewRejected(fmt.Sprintf("order %s is %s after finalization", order.DisplayNumber(), finalized.Status))
				}
				order = mergeOrder(order, *finalized)
			} else {
				order.Status = sales.OrderStatusFinalized
			}
			return nil
		})
		if err != nil {
			return o.fail(StagePaymentFinalization, err, &order, method, quote)
		}
	}

	var receipt []byte
	err := o.runStage(ctx, StageReceiptRetrieval, func(ctx context.Context) error {
		data, err := o.orders.FetchReceipt(ctx, order.ID)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return NewUnavailable(errors.New("empty receipt document"))
		}
		receipt = data
		return nil
	})
	if err != nil {
		return o.fail(StageReceiptRetrieval, err, &order, method, quote)
	}

	o.setState(StateCompleted)
	o.metrics.RecordOutcome(StateCompleted.String(), "")
	o.logger.Info("Checkout completed",
		zap.Int64("order_id", int64(order.ID)),
		zap.String("order_number", order.Number),
		zap.Int("receipt_bytes", len(receipt)),
	)

	o.archiveReceipt(ctx, order, receipt)

	return Outcome{
		State:   StateCompleted,
		Order:   &order,
		Receipt: receipt,
		Quote:   quote,
	}
}

func (o *Orchestrator) runStage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	o.setState(stage.state())

	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", stage.spanName())
	defer span.End()

	start := o.now()
	err := fn(ctx)
	elapsed := o.now().Sub(start)

	result := "ok"
	if err != nil {
		result = string(asRemoteError(err).Kind)
		telemetry.RecordError(span, err)
	}
	o.metrics.ObserveStage(stage.String(), result, elapsed)
	return err
}

func (o *Orchestrator) fail(stage Stage, err error, order *sales.Order, method sales.PaymentMethod, quote sales.Quote) Outcome {
	remoteErr := asRemoteError(err)
	failure := &Failure{
		Stage:         stage,
		Kind:          remoteErr.Kind,
		Reason:        remoteErr.Reason,
		Err:           remoteErr,
		Order:         order,
		PaymentMethod: method,
		Quote:         quote,
	}

	o.setState(StateFailed)
	o.metrics.RecordOutcome(StateFailed.String(), stage.String())

	fields := []zap.Field{
		zap.String("stage", stage.String()),
		zap.String("kind", string(remoteErr.Kind)),
		zap.String("reason", remoteErr.Reason),
		zap.Error(err),
	}
	if order != nil {
		fields = append(fields, zap.Int64("order_id", int64(order.ID)))
	}
	if failure.SaleCommitted() {
		o.logger.Error("Payment confirmed but receipt unavailable", fields...)
	} else {
		o.logger.Warn("Checkout failed", fields...)
	}

	return Outcome{
		State:   StateFailed,
		Order:   order,
		Quote:   quote,
		Failure: failure,
	}
}

func (o *Orchestrator) archiveReceipt(ctx context.Context, order sales.Order, receipt []byte) {
	if o.archive == nil {
		return
	}
	key, err := o.archive.Store(ctx, order, receipt)
	if err != nil {
		o.logger.Warn("Failed to archive receipt",
			zap.Int64("order_id", int64(order.ID)),
			zap.Error(err),
		)
		return
	}
	telemetry.AddEvent(telemetry.SpanFromContext(ctx), "receipt_archived",
		telemetry.SpanAttrOrderID, int64(order.ID),
		"key", key,
	)
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrCheckoutInProgress
	}
	o.inFlight = true
	return nil
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight = false
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
}

// mergeOrder keeps locally known fields the response left empty
func mergeOrder(current, update sales.Order) sales.Order {
	if update.ID == 0 {
		update.ID = current.ID
	}
	if update.Number == "" {
		update.Number = current.Number
	}
	if update.Total.IsZero() && !current.Total.IsZero() {
		update.Total = current.Total
	}
	return update
}
