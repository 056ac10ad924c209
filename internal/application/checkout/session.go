package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/erp/salesdesk/internal/domain/catalog"
	"github.com/erp/salesdesk/internal/domain/sales"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Receipt is the printable document of a completed sale
type Receipt struct {
	Order    sales.Order
	FileName string
	Data     []byte
}

// ReloadResult reports what a catalog reload changed in the session
type ReloadResult struct {
	Adjustments   []sales.LineAdjustment
	ClientCleared bool
	LoadedAt      time.Time
}

// View is a read model of a session
type View struct {
	ID              uuid.UUID
	State           State
	Client          *catalog.Client
	Lines           []sales.CartLine
	Discount        sales.DiscountPercent
	PaymentMethod   sales.PaymentMethod
	Notes           string
	Quote           sales.Quote
	CatalogLoadedAt time.Time
	PendingFailure  *Failure
	LastOrder       *sales.Order
	HasReceipt      bool
	CreatedAt       time.Time
	LastActivity    time.Time
}

// Session owns one cart and everything needed to check it out.
// All methods are safe for concurrent use; the lock is not held during
// remote calls so progress stays observable.
type Session struct {
	id           uuid.UUID
	catalogSvc   CatalogService
	orchestrator *Orchestrator
	logger       *zap.Logger
	now          func() time.Time

	mu            sync.Mutex
	snapshot      *catalog.Snapshot
	cart          *sales.Cart
	clientID      catalog.ClientID
	discount      sales.DiscountPercent
	paymentMethod sales.PaymentMethod
	notes         string
	checkingOut   bool
	pending       *Failure
	lastOutcome   *Outcome
	lastReceipt   *Receipt
	createdAt     time.Time
	lastActivity  time.Time
}

func newSession(id uuid.UUID, snapshot *catalog.Snapshot, catalogSvc CatalogService, orchestrator *Orchestrator, logger *zap.Logger, now func() time.Time) *Session {
	created := now()
	return &Session{
		id:            id,
		catalogSvc:    catalogSvc,
		orchestrator:  orchestrator,
		logger:        logger.With(zap.String("session_id", id.String())),
		now:           now,
		snapshot:      snapshot,
		cart:          sales.NewCart(snapshot),
		discount:      sales.NoDiscount,
		paymentMethod: sales.DefaultPaymentMethod,
		createdAt:     created,
		lastActivity:  created,
	}
}

// ID returns the session id
func (s *Session) ID() uuid.UUID {
	return s.id
}

// State returns the orchestrator's progress
func (s *Session) State() State {
	return s.orchestrator.State()
}

// Snapshot returns the catalog the session works against
func (s *Session) Snapshot() *catalog.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// LastActivity returns the time of the last operation
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Busy returns true while a remote checkout call is running
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkingOut
}

// SelectClient attaches a client from the snapshot
func (s *Session) SelectClient(id catalog.ClientID) error {
	return s.edit(func() error {
		if _, ok := s.snapshot.Client(id); !ok {
			return sales.ErrClientNotFound
		}
		s.clientID = id
		return nil
	})
}

// AddLine adds units of a product to the cart
func (s *Session) AddLine(productID catalog.ProductID, quantity int) error {
	return s.edit(func() error {
		return s.cart.AddLine(productID, quantity)
	})
}

// SetLineQuantity overwrites a line's quantity; zero or less removes it
func (s *Session) SetLineQuantity(productID catalog.ProductID, quantity int) error {
	return s.edit(func() error {
		return s.cart.SetLineQuantity(productID, quantity)
	})
}

// RemoveLine removes a product from the cart
func (s *Session) RemoveLine(productID catalog.ProductID) error {
	return s.edit(func() error {
		s.cart.RemoveLine(productID)
		return nil
	})
}

// Terms are the order-level fields an operator sets before checkout.
// A nil field is left unchanged.
type Terms struct {
	Discount      *sales.DiscountPercent
	PaymentMethod *sales.PaymentMethod
	Notes         *string
}

// SetTerms applies every non-nil field of t in one edit. Nothing changes
// when any field is invalid.
func (s *Session) SetTerms(t Terms) error {
	if t.PaymentMethod != nil && !t.PaymentMethod.IsValid() {
		return sales.ErrInvalidPaymentMethod
	}
	return s.edit(func() error {
		if t.Discount != nil {
			s.discount = *t.Discount
		}
		if t.PaymentMethod != nil {
			s.paymentMethod = *t.PaymentMethod
		}
		if t.Notes != nil {
			s.notes = *t.Notes
		}
		return nil
	})
}

// SetDiscount sets the order-level discount
func (s *Session) SetDiscount(d sales.DiscountPercent) error {
	return s.SetTerms(Terms{Discount: &d})
}

// SetPaymentMethod sets how the client pays
func (s *Session) SetPaymentMethod(m sales.PaymentMethod) error {
	return s.SetTerms(Terms{PaymentMethod: &m})
}

// SetNotes sets the free-text order notes
func (s *Session) SetNotes(notes string) error {
	return s.SetTerms(Terms{Notes: &notes})
}

// Reset clears the cart, the order terms and any failed checkout.
// A draft order left by a failed finalization is abandoned to the
// order service's own cleanup.
func (s *Session) Reset() error {
	return s.edit(func() error {
		if s.pending != nil && s.pending.Order != nil {
			s.logger.Warn("Reset abandons order of failed checkout",
				zap.Int64("order_id", int64(s.pending.Order.ID)),
				zap.String("stage", s.pending.Stage.String()),
			)
		}
		s.resetTerms()
		s.pending = nil
		s.lastOutcome = nil
		s.orchestrator.Reset()
		return nil
	})
}

// ReloadCatalog fetches a fresh snapshot and moves the cart onto it
func (s *Session) ReloadCatalog(ctx context.Context) (ReloadResult, error) {
	s.mu.Lock()
	if s.checkingOut {
		s.mu.Unlock()
		return ReloadResult{}, ErrCheckoutInProgress
	}
	s.mu.Unlock()

	snapshot, err := LoadSnapshot(ctx, s.catalogSvc, s.now())
	if err != nil {
		return ReloadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkingOut {
		return ReloadResult{}, ErrCheckoutInProgress
	}
	result := s.rebind(snapshot)
	s.touch()
	return result, nil
}

// Checkout submits the cart. The remote stages run on a copy of the cart,
// and on success the cart and terms are cleared.
func (s *Session) Checkout(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.checkingOut {
		s.mu.Unlock()
		return Outcome{}, ErrCheckoutInProgress
	}
	if s.pending != nil && s.pending.Resumable() {
		s.mu.Unlock()
		return Outcome{}, ErrPendingOrder
	}
	req := Request{
		ClientID:      s.clientID,
		Cart:          s.cart.Clone(),
		Discount:      s.discount,
		PaymentMethod: s.paymentMethod,
		Notes:         s.notes,
	}
	s.checkingOut = true
	s.touch()
	s.mu.Unlock()

	outcome, err := s.orchestrator.Checkout(ctx, req)
	s.finish(ctx, outcome, err)
	return outcome, err
}

// Resume continues the pending failed checkout with its created order
func (s *Session) Resume(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	if s.checkingOut {
		s.mu.Unlock()
		return Outcome{}, ErrCheckoutInProgress
	}
	failure := s.pending
	if failure == nil || !failure.Resumable() {
		s.mu.Unlock()
		return Outcome{}, ErrNotResumable
	}
	s.checkingOut = true
	s.touch()
	s.mu.Unlock()

	outcome, err := s.orchestrator.Resume(ctx, failure)
	s.finish(ctx, outcome, err)
	return outcome, err
}

// CancelPendingOrder cancels the draft order left by a failed payment
// finalization. The cart is kept so the sale can be retried.
func (s *Session) CancelPendingOrder(ctx context.Context) (*sales.Order, error) {
	s.mu.Lock()
	if s.checkingOut {
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	failure := s.pending
	if failure == nil || failure.Stage != StagePaymentFinalization || failure.Order == nil ||
		!failure.Order.Status.CanTransitionTo(sales.OrderStatusCancelled) {
		s.mu.Unlock()
		return nil, ErrNothingToCancel
	}
	s.checkingOut = true
	s.touch()
	s.mu.Unlock()

	order, err := s.orchestrator.Cancel(ctx, failure.Order.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkingOut = false
	if err != nil {
		s.logger.Warn("Failed to cancel pending order",
			zap.Int64("order_id", int64(failure.Order.ID)),
			zap.Error(err),
		)
		return nil, err
	}
	s.pending = nil
	s.lastOutcome = nil
	return order, nil
}

// Receipt returns the receipt of the last completed sale
func (s *Session) Receipt() (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastReceipt == nil {
		return Receipt{}, ErrNoReceipt
	}
	return *s.lastReceipt, nil
}

// LastOutcome returns the outcome of the last checkout run
func (s *Session) LastOutcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastOutcome == nil {
		return Outcome{}, false
	}
	return *s.lastOutcome, true
}

// View returns a read model of the session
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:              s.id,
		State:           s.orchestrator.State(),
		Lines:           s.cart.Lines(),
		Discount:        s.discount,
		PaymentMethod:   s.paymentMethod,
		Notes:           s.notes,
		Quote:           sales.QuoteCart(s.cart, s.discount).Rounded(),
		CatalogLoadedAt: s.snapshot.LoadedAt(),
		PendingFailure:  s.pending,
		HasReceipt:      s.lastReceipt != nil,
		CreatedAt:       s.createdAt,
		LastActivity:    s.lastActivity,
	}
	if client, ok := s.snapshot.Client(s.clientID); ok {
		v.Client = &client
	}
	if s.lastOutcome != nil {
		v.LastOrder = s.lastOutcome.Order
	}
	return v
}

func (s *Session) finish(ctx context.Context, outcome Outcome, err error) {
	s.mu.Lock()
	s.checkingOut = false
	s.touch()
	if err != nil {
		s.mu.Unlock()
		return
	}

	s.lastOutcome = &outcome
	if !outcome.Completed() {
		s.pending = outcome.Failure
		s.mu.Unlock()
		return
	}

	s.pending = nil
	s.lastReceipt = &Receipt{
		Order:    *outcome.Order,
		FileName: outcome.Order.ReceiptFileName(),
		Data:     outcome.Receipt,
	}
	s.resetTerms()
	s.mu.Unlock()

	// Stock changed upstream; refresh so the next sale sees it.
	if _, err := s.ReloadCatalog(ctx); err != nil {
		s.logger.Warn("Failed to refresh catalog after sale", zap.Error(err))
	}
}

// edit runs fn under the session lock unless a checkout is in flight
func (s *Session) edit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkingOut {
		return ErrCheckoutInProgress
	}
	if err := fn(); err != nil {
		return err
	}
	s.touch()
	return nil
}

func (s *Session) rebind(snapshot *catalog.Snapshot) ReloadResult {
	result := ReloadResult{
		Adjustments: s.cart.Rebind(snapshot),
		LoadedAt:    snapshot.LoadedAt(),
	}
	s.snapshot = snapshot
	if s.clientID != 0 {
		if _, ok := snapshot.Client(s.clientID); !ok {
			s.clientID = 0
			result.ClientCleared = true
		}
	}
	if len(result.Adjustments) > 0 || result.ClientCleared {
		s.logger.Info("Catalog reload adjusted the session",
			zap.Int("line_adjustments", len(result.Adjustments)),
			zap.Bool("client_cleared", result.ClientCleared),
		)
	}
	return result
}

func (s *Session) resetTerms() {
	s.cart.Clear()
	s.clientID = 0
	s.discount = sales.NoDiscount
	s.paymentMethod = sales.DefaultPaymentMethod
	s.notes = ""
}

func (s *Session) touch() {
	s.lastActivity = s.now()
}
