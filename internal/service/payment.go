package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adilcse/okneppo-sub001/internal/model"
	"github.com/adilcse/okneppo-sub001/internal/repository"
	"github.com/adilcse/okneppo-sub001/pkg/logger"
)

// Notifier sends a best-effort provider message after reconciliation
type Notifier interface {
	SendWelcome(ctx context.Context, phone, name, body string) (string, error)
}

// lookupOutcome tags the three states a gateway event can find the ledger in
type lookupOutcome int

const (
	// noRecord: this system never created the order; ignore the event
	noRecord lookupOutcome = iota
	// pendingMatch: a row matched by order ID with the same or an unset
	// payment ID; merge the event into it
	pendingMatch
	// resolvedMatch: the order exists but every row already carries a
	// different payment ID; this event is a fresh payment attempt
	resolvedMatch
)

// ReconcileInput is one payment-gateway event to merge into the ledger
type ReconcileInput struct {
	PaymentID string
	OrderID   string
	Status    string
	Entity    model.RazorpayPaymentEntity
}

// PaymentReconciler merges gateway payment events into the local payment
// ledger and completes the referenced registration when a payment captures
type PaymentReconciler struct {
	payments      *repository.PaymentRepository
	registrations *repository.RegistrationRepository
	notifier      Notifier
	locks         *keyLock
	notifyTimeout time.Duration
	logger        *logger.Logger
}

// NewPaymentReconciler creates a new payment reconciler
func NewPaymentReconciler(payments *repository.PaymentRepository, registrations *repository.RegistrationRepository, notifier Notifier, log *logger.Logger) *PaymentReconciler {
	return &PaymentReconciler{
		payments:      payments,
		registrations: registrations,
		notifier:      notifier,
		locks:         newKeyLock(),
		notifyTimeout: 30 * time.Second,
		logger:        log,
	}
}

// Reconcile merges one gateway event into the ledger. Unmatched events are
// logged and ignored so the provider is not driven into a retry storm;
// persistence failures are returned so the webhook answers 5xx and the
// provider redelivers.
func (s *PaymentReconciler) Reconcile(ctx context.Context, in ReconcileInput) error {
	log := s.logger.WithOrderID(in.OrderID)

	// Serialize per order: concurrent duplicate deliveries must not both
	// pass the lookup and insert two rows.
	unlock := s.locks.Lock("order:" + in.OrderID)
	defer unlock()

	outcome, record, err := s.lookup(ctx, in.OrderID, in.PaymentID)
	if err != nil {
		return fmt.Errorf("payment lookup failed: %w", err)
	}

	switch outcome {
	case noRecord:
		log.Info("Ignoring gateway event for unknown order", "payment_id", in.PaymentID, "status", in.Status)
		return nil

	case pendingMatch:
		merged := mergeEntity(record, in)
		if err := s.payments.UpdateProviderData(ctx, record.ID, merged); err != nil {
			return fmt.Errorf("payment update failed: %w", err)
		}
		record = merged
		log.Info("Payment reconciled", "payment_id", in.PaymentID, "status", in.Status)

	case resolvedMatch:
		// Carry order-level fields over from the earlier attempt and
		// insert a new row for this payment ID.
		fresh := &model.Payment{
			RegistrationID: record.RegistrationID,
			OrderID:        record.OrderID,
			Amount:         record.Amount,
			Currency:       record.Currency,
		}
		fresh = mergeEntity(fresh, in)
		if err := s.payments.Insert(ctx, fresh); err != nil {
			return fmt.Errorf("payment insert failed: %w", err)
		}
		log.Info("New payment attempt recorded",
			"payment_id", in.PaymentID,
			"status", in.Status,
			"previous_payment_id", record.PaymentID,
		)
		record = fresh
	}

	if record.Status == model.PaymentStatusCaptured {
		if err := s.completeRegistration(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

func (s *PaymentReconciler) lookup(ctx context.Context, orderID, paymentID string) (lookupOutcome, *model.Payment, error) {
	record, err := s.payments.FindForReconcile(ctx, orderID, paymentID)
	if err != nil {
		return noRecord, nil, err
	}
	if record != nil {
		return pendingMatch, record, nil
	}

	record, err = s.payments.FindAnyByOrderID(ctx, orderID)
	if err != nil {
		return noRecord, nil, err
	}
	if record != nil {
		return resolvedMatch, record, nil
	}

	return noRecord, nil, nil
}

// completeRegistration flips the registration to completed and fires the
// welcome notification. The notification is fire-and-forget: its failure is
// logged and never rolls back or delays reconciliation.
func (s *PaymentReconciler) completeRegistration(ctx context.Context, record *model.Payment) error {
	completed, err := s.registrations.MarkCompleted(ctx, record.RegistrationID)
	if err != nil {
		return fmt.Errorf("registration completion failed: %w", err)
	}
	if !completed {
		// A replayed delivery for an already-completed registration must not
		// send the welcome message again.
		return nil
	}

	reg, err := s.registrations.GetByID(ctx, record.RegistrationID)
	if err != nil {
		return fmt.Errorf("registration lookup failed: %w", err)
	}
	if reg == nil {
		s.logger.WithOrderID(record.OrderID).Warn("Captured payment references missing registration",
			"registration_id", record.RegistrationID,
		)
		return nil
	}

	s.logger.WithOrderID(record.OrderID).Info("Registration completed",
		"registration_id", reg.ID,
		"payment_id", record.PaymentID,
	)

	if s.notifier == nil || reg.Phone == "" {
		return nil
	}

	go func() {
		// Detached from the request context: the webhook acknowledgment
		// must not wait on the provider send.
		nctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		body := fmt.Sprintf("Hi %s, your payment is confirmed and your registration for %s is complete. Welcome!", reg.Name, reg.Course)
		if _, err := s.notifier.SendWelcome(nctx, reg.Phone, reg.Name, body); err != nil {
			s.logger.WithOrderID(record.OrderID).Error("Welcome notification failed", "error", err)
		}
	}()

	return nil
}

// mergeEntity overlays gateway entity fields onto a ledger row snapshot
func mergeEntity(base *model.Payment, in ReconcileInput) *model.Payment {
	merged := *base
	merged.PaymentID = in.PaymentID
	merged.Status = in.Status
	if in.Entity.Amount > 0 {
		merged.Amount = in.Entity.Amount
	}
	if in.Entity.Currency != "" {
		merged.Currency = in.Entity.Currency
	}
	if in.Entity.Method != "" {
		merged.Method = in.Entity.Method
	}
	if in.Entity.Fee > 0 {
		merged.Fee = in.Entity.Fee
	}
	if in.Entity.Tax > 0 {
		merged.Tax = in.Entity.Tax
	}
	merged.Captured = in.Entity.Captured || in.Status == model.PaymentStatusCaptured
	merged.ErrorCode = in.Entity.ErrorCode
	merged.ErrorDescription = in.Entity.ErrorDescription
	return &merged
}
