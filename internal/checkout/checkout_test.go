package checkout

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberthread/storefront/internal/events"
	"github.com/emberthread/storefront/internal/intake"
	"github.com/emberthread/storefront/internal/processor"
	"github.com/emberthread/storefront/pkg/models"
)

// fakeStore mirrors the guarded-update semantics of the real store: paid is
// terminal with respect to failure, confirmations insert at most once per
// order.
type fakeStore struct {
	mu            sync.Mutex
	orders        map[string]*models.Order
	payments      map[string]*models.Payment // keyed by order id
	confirmations map[string]*models.OrderConfirmation
	bySubmission  map[string]string

	createErr error
	createN   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:        map[string]*models.Order{},
		payments:      map[string]*models.Payment{},
		confirmations: map[string]*models.OrderConfirmation{},
		bySubmission:  map[string]string{},
	}
}

func (s *fakeStore) CreateOrderWithPayment(ctx context.Context, order *models.Order, payment *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createN++
	if s.createErr != nil {
		return s.createErr
	}
	o := *order
	p := *payment
	s.orders[o.ID] = &o
	s.payments[o.ID] = &p
	if o.SubmissionID != "" {
		s.bySubmission[o.SubmissionID] = o.ID
	}
	return nil
}

func (s *fakeStore) FindOrderBySubmission(ctx context.Context, submissionID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySubmission[submissionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	o := *s.orders[id]
	return &o, nil
}

func (s *fakeStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[orderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) AttachProcessorID(ctx context.Context, orderID, processorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return sql.ErrNoRows
	}
	o.ProcessorPaymentID = processorID
	if p, ok := s.payments[orderID]; ok {
		p.ProcessorPaymentID = processorID
	}
	return nil
}

func (s *fakeStore) MarkPaid(ctx context.Context, orderID, processorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if o.Status == models.OrderStatusPaid || o.Status == models.OrderStatusCompleted {
		return false, nil
	}
	o.Status = models.OrderStatusPaid
	if processorID != "" {
		o.ProcessorPaymentID = processorID
	}
	if p, ok := s.payments[orderID]; ok {
		p.Status = models.PaymentStatusCompleted
		if processorID != "" {
			p.ProcessorPaymentID = processorID
		}
	}
	return true, nil
}

func (s *fakeStore) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = models.OrderStatusPaymentFailed
	if p, ok := s.payments[orderID]; ok {
		p.Status = models.PaymentStatusFailed
	}
	return true, nil
}

func (s *fakeStore) GetConfirmationByOrderID(ctx context.Context, orderID string) (*models.OrderConfirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conf, ok := s.confirmations[orderID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *conf
	return &cp, nil
}

func (s *fakeStore) CreateConfirmation(ctx context.Context, conf *models.OrderConfirmation) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.confirmations[conf.OrderID]; exists {
		return false, nil
	}
	cp := *conf
	s.confirmations[conf.OrderID] = &cp
	return true, nil
}

type fakeProcessor struct {
	mu         sync.Mutex
	createErr  error
	verifyErr  error
	paid       bool
	paidOnly   map[string]bool // when set, only these sessions verify as paid
	amounts    map[string]int64
	createN    int
	verifyN    int
	lastVerify string
}

func (p *fakeProcessor) CreateCheckout(ctx context.Context, req processor.CheckoutRequest) (*processor.CheckoutSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createN++
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.amounts == nil {
		p.amounts = map[string]int64{}
	}
	checkoutID := "chk_" + req.OrderID
	p.amounts[checkoutID] = req.Amount
	return &processor.CheckoutSession{
		CheckoutID:  checkoutID,
		RedirectURL: "https://pay.example/checkout/" + checkoutID,
	}, nil
}

func (p *fakeProcessor) VerifyPayment(ctx context.Context, checkoutID string) (*processor.VerifyResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.verifyN++
	p.lastVerify = checkoutID
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	paid := p.paid
	if p.paidOnly != nil {
		paid = p.paidOnly[checkoutID]
	}
	status := "failed"
	if paid {
		status = "paid"
	}
	return &processor.VerifyResult{
		CheckoutID: checkoutID,
		Status:     status,
		Amount:     p.amounts[checkoutID],
		Currency:   Currency,
		Paid:       paid,
	}, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	created []events.OrderCreatedEvent
	paid    []events.OrderPaidEvent
}

func (f *fakePublisher) PublishOrderCreated(event events.OrderCreatedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, event)
	return nil
}

func (f *fakePublisher) PublishOrderPaid(event events.OrderPaidEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid = append(f.paid, event)
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func validForm() intake.Form {
	return intake.Form{
		Name:     "Thandi M",
		Email:    "thandi@example.com",
		Item:     "Pink Ruffle Hat",
		Quantity: "1",
		Size:     "M",
		Color:    "pink",
	}
}

func newTestFlow() (*Initiator, *ConfirmationHandler, *fakeStore, *fakeProcessor, *fakePublisher) {
	store := newFakeStore()
	proc := &fakeProcessor{paid: true}
	pub := &fakePublisher{}
	logger := testLogger()
	notifier := NewNotifier(store, pub, logger)
	initiator := NewInitiator(store, proc, pub, logger)
	confirmations := NewConfirmationHandler(store, proc, notifier, logger)
	return initiator, confirmations, store, proc, pub
}

func TestStartCreatesPendingOrderAndSession(t *testing.T) {
	initiator, _, store, proc, pub := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)
	require.NotNil(t, outcome.Order)
	require.NotNil(t, outcome.Payment)

	assert.Equal(t, models.OrderStatusPending, outcome.Order.Status)
	assert.Equal(t, int64(28000), outcome.Order.TotalAmount)
	assert.Equal(t, Currency, outcome.Order.Currency)
	assert.Equal(t, models.PaymentStatusPending, outcome.Payment.Status)
	assert.Equal(t, outcome.Order.TotalAmount, outcome.Payment.Amount)
	assert.NotEmpty(t, outcome.RedirectURL)
	assert.Equal(t, "chk_"+outcome.Order.ID, outcome.Order.ProcessorPaymentID)

	stored, err := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)

	assert.Equal(t, 1, proc.createN)
	assert.Len(t, pub.created, 1)
	assert.Equal(t, outcome.Order.ID, pub.created[0].OrderID)
}

func TestStartRejectsInvalidForm(t *testing.T) {
	initiator, _, store, proc, _ := newTestFlow()

	form := validForm()
	form.Email = "not-an-email"
	form.Quantity = "zero"

	_, err := initiator.Start(context.Background(), Request{Form: form})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "email")
	assert.Contains(t, vErr.Fields, "quantity")

	assert.Equal(t, 0, store.createN, "nothing should be persisted for an invalid form")
	assert.Equal(t, 0, proc.createN)
}

func TestStartRejectsUnknownPaymentMethod(t *testing.T) {
	initiator, _, _, _, _ := newTestFlow()

	_, err := initiator.Start(context.Background(), Request{
		Form:          validForm(),
		PaymentMethod: models.PaymentMethod("bitcoin"),
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "payment_method")
}

func TestStartBlocksUnpriceableItem(t *testing.T) {
	initiator, _, store, proc, _ := newTestFlow()

	form := validForm()
	form.Item = "hand-knitted submarine"

	_, err := initiator.Start(context.Background(), Request{Form: form})
	require.ErrorIs(t, err, ErrPriceUnresolved)

	assert.Equal(t, 0, store.createN)
	assert.Equal(t, 0, proc.createN)
}

func TestStartKeepsOrderWhenProcessorDown(t *testing.T) {
	initiator, _, store, proc, _ := newTestFlow()
	proc.createErr = errors.New("connection refused")

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.ErrorIs(t, err, ErrProcessorUnavailable)
	require.NotNil(t, outcome, "outcome must carry the saved order so the client can retry")
	require.NotNil(t, outcome.Order)

	stored, getErr := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPending, stored.Status, "order stays pending for retry")
	assert.Empty(t, outcome.RedirectURL)
}

func TestStartDoesNotCallProcessorWhenPersistenceFails(t *testing.T) {
	initiator, _, store, proc, _ := newTestFlow()
	store.createErr = errors.New("database gone")

	_, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProcessorUnavailable)
	assert.Equal(t, 0, proc.createN, "no payment session for an unrecorded order")
}

func TestStartResumesSameSubmission(t *testing.T) {
	initiator, _, store, _, _ := newTestFlow()

	req := Request{Form: validForm(), SubmissionID: "sub-42"}

	first, err := initiator.Start(context.Background(), req)
	require.NoError(t, err)

	second, err := initiator.Start(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID, "retried submission resumes the same order")
	assert.Equal(t, 1, store.createN, "only one order row created")
	assert.NotEmpty(t, second.RedirectURL, "pending card order gets a fresh session on resume")
}

func TestStartEFTSkipsProcessor(t *testing.T) {
	initiator, _, _, proc, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{
		Form:          validForm(),
		PaymentMethod: models.PaymentMethodEFT,
		EFTReference:  "THANDI-001",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, proc.createN)
	assert.Empty(t, outcome.RedirectURL)
	assert.Equal(t, models.OrderStatusPending, outcome.Order.Status)
	assert.Equal(t, "THANDI-001", outcome.Payment.Reference)
}

func TestCallbackSuccessVerifiesBeforePaid(t *testing.T) {
	initiator, confirmations, store, proc, pub := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)
	orderID := outcome.Order.ID

	err = confirmations.HandleCallback(context.Background(), orderID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, proc.verifyN, "server-side verification must run")
	assert.Equal(t, outcome.Order.ProcessorPaymentID, proc.lastVerify)

	stored, err := store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)

	payment, err := store.GetPaymentByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)

	conf := store.confirmations[orderID]
	require.NotNil(t, conf, "confirmation record must exist")
	assert.Len(t, pub.paid, 1)
	assert.Equal(t, conf.ConfirmationNumber, pub.paid[0].ConfirmationNumber)
}

func TestCallbackSuccessWithoutVerificationStaysUnpaid(t *testing.T) {
	initiator, confirmations, store, proc, _ := newTestFlow()
	proc.paid = false

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	err = confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	})
	require.ErrorIs(t, err, ErrNotVerified)

	stored, getErr := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPaymentFailed, stored.Status)
	assert.Empty(t, store.confirmations)
}

func TestCallbackSuccessWithoutTransactionIDRejected(t *testing.T) {
	initiator, confirmations, _, proc, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	err = confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success: true,
	})
	require.ErrorIs(t, err, ErrNotVerified)
	assert.Equal(t, 0, proc.verifyN)
}

func TestCallbackRejectsTransactionFromAnotherOrder(t *testing.T) {
	initiator, confirmations, store, proc, _ := newTestFlow()

	cheapForm := validForm()
	cheapForm.Item = "dish cloth set"
	cheap, err := initiator.Start(context.Background(), Request{Form: cheapForm})
	require.NoError(t, err)

	dearForm := validForm()
	dearForm.Item = "granny square blanket"
	dear, err := initiator.Start(context.Background(), Request{Form: dearForm})
	require.NoError(t, err)
	require.Greater(t, dear.Order.TotalAmount, cheap.Order.TotalAmount)

	// Only the cheap order's session was actually paid.
	proc.mu.Lock()
	proc.paidOnly = map[string]bool{cheap.Order.ProcessorPaymentID: true}
	proc.mu.Unlock()

	// Replaying the paid session's transaction id against the expensive
	// order must not confirm it.
	err = confirmations.HandleCallback(context.Background(), dear.Order.ID, models.PaymentResult{
		Success:       true,
		TransactionID: cheap.Order.ProcessorPaymentID,
	})
	require.ErrorIs(t, err, ErrNotVerified)

	stored, getErr := store.GetOrder(context.Background(), dear.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.Empty(t, store.confirmations)
}

func TestCallbackRejectsAmountMismatch(t *testing.T) {
	initiator, confirmations, store, proc, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	// Processor verifies the session as paid but for a different amount.
	proc.mu.Lock()
	proc.amounts[outcome.Order.ProcessorPaymentID] = 100
	proc.mu.Unlock()

	err = confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	})
	require.ErrorIs(t, err, ErrNotVerified)

	stored, getErr := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPending, stored.Status, "amount mismatch is no proof of failure either")
	assert.Empty(t, store.confirmations)
}

func TestCallbackFailureMarksFailed(t *testing.T) {
	initiator, confirmations, store, _, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	err = confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success: false,
		Reason:  "card declined",
	})
	require.NoError(t, err)

	stored, getErr := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPaymentFailed, stored.Status)
}

func TestFailureAfterPaidDoesNotOverwrite(t *testing.T) {
	initiator, confirmations, store, _, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)
	orderID := outcome.Order.ID

	require.NoError(t, confirmations.HandleCallback(context.Background(), orderID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	}))

	// A stale failure arriving after the success must not demote the order.
	require.NoError(t, confirmations.HandleWebhook(context.Background(), WebhookEvent{
		Type:    EventPaymentFailed,
		OrderID: orderID,
		Reason:  "timeout",
	}))

	stored, getErr := store.GetOrder(context.Background(), orderID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

func TestDuplicateConfirmationTriggersSingleConfirmation(t *testing.T) {
	initiator, confirmations, store, _, pub := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)
	orderID := outcome.Order.ID
	checkoutID := outcome.Order.ProcessorPaymentID

	// Widget callback and webhook both report success for the same payment.
	require.NoError(t, confirmations.HandleCallback(context.Background(), orderID, models.PaymentResult{
		Success:       true,
		TransactionID: checkoutID,
	}))
	require.NoError(t, confirmations.HandleWebhook(context.Background(), WebhookEvent{
		Type:      EventPaymentSucceeded,
		OrderID:   orderID,
		PaymentID: checkoutID,
	}))

	assert.Len(t, store.confirmations, 1, "exactly one confirmation per order")
	assert.Len(t, pub.paid, 1, "exactly one paid event per order")

	stored, getErr := store.GetOrder(context.Background(), orderID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

func TestConcurrentConfirmationsSinglePaidTransition(t *testing.T) {
	initiator, confirmations, store, _, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)
	orderID := outcome.Order.ID
	checkoutID := outcome.Order.ProcessorPaymentID

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = confirmations.HandleWebhook(context.Background(), WebhookEvent{
				Type:      EventPaymentSucceeded,
				OrderID:   orderID,
				PaymentID: checkoutID,
			})
		}()
	}
	wg.Wait()

	assert.Len(t, store.confirmations, 1)
	stored, getErr := store.GetOrder(context.Background(), orderID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)
}

func TestWebhookUnknownTypeIgnored(t *testing.T) {
	initiator, confirmations, store, _, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	err = confirmations.HandleWebhook(context.Background(), WebhookEvent{
		Type:    "refund_created",
		OrderID: outcome.Order.ID,
	})
	require.NoError(t, err)

	stored, getErr := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestCallbackVerificationOutageLeavesOrderPending(t *testing.T) {
	initiator, confirmations, store, proc, _ := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	proc.verifyErr = errors.New("gateway timeout")
	err = confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	})
	require.ErrorIs(t, err, ErrProcessorUnavailable)

	stored, getErr := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.OrderStatusPending, stored.Status, "no state change when verification can't run")
}

func TestNotifierConfirmationDetails(t *testing.T) {
	initiator, confirmations, store, _, pub := newTestFlow()

	before := time.Now()
	outcome, err := initiator.Start(context.Background(), Request{Form: validForm()})
	require.NoError(t, err)

	require.NoError(t, confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	}))

	conf := store.confirmations[outcome.Order.ID]
	require.NotNil(t, conf)
	assert.Regexp(t, `^CONF-[0-9A-F]{12}$`, conf.ConfirmationNumber)
	assert.Equal(t, ConfirmationStatusConfirmed, conf.Status)

	wantDelivery := before.Add(DeliveryEstimateOffset)
	assert.WithinDuration(t, wantDelivery, conf.EstimatedDelivery, time.Minute)

	require.Len(t, pub.paid, 1)
	event := pub.paid[0]
	assert.Equal(t, "thandi@example.com", event.CustomerEmail)
	assert.Equal(t, int64(28000), event.Amount)
	assert.Equal(t, Currency, event.Currency)
}

func TestNewConfirmationNumberUnique(t *testing.T) {
	seen := map[string]bool{}
	for n := 0; n < 100; n++ {
		num := NewConfirmationNumber()
		assert.False(t, seen[num], "confirmation numbers must not repeat")
		seen[num] = true
	}
}

// Full happy path: a submitted form becomes a pending order at the quoted
// price, the payment is verified server-side, and exactly one confirmation
// with a delivery estimate comes out the other end.
func TestCheckoutEndToEnd(t *testing.T) {
	initiator, confirmations, store, proc, pub := newTestFlow()

	outcome, err := initiator.Start(context.Background(), Request{Form: intake.Form{
		Name:     "Lerato K",
		Email:    "lerato@example.com",
		Phone:    "+27 82 555 0199",
		Item:     "Pink Ruffle Hat",
		Quantity: "2",
		Size:     "XL",
		Color:    "dusty pink",
	}})
	require.NoError(t, err)

	// 2 x (28000 + 3500 XL surcharge)
	assert.Equal(t, int64(63000), outcome.Order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, outcome.Order.Status)

	require.NoError(t, confirmations.HandleCallback(context.Background(), outcome.Order.ID, models.PaymentResult{
		Success:       true,
		TransactionID: outcome.Order.ProcessorPaymentID,
	}))

	assert.Equal(t, 1, proc.verifyN)

	stored, err := store.GetOrder(context.Background(), outcome.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, stored.Status)

	require.Len(t, pub.paid, 1)
	assert.Equal(t, "Lerato K", pub.paid[0].CustomerName)
	assert.Equal(t, 2, pub.paid[0].Quantity)
}
