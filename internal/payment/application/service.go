package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devansh-sx/optishop/internal/payment/domain"
	"github.com/devansh-sx/optishop/pkg/tracing"
)

// Service drives a payment through pending → confirmed → credited (or
// failed/expired) off provider notifications. It is the sole writer of
// payment status and balance deltas; everything it writes goes through the
// repository's compare-and-swap primitives, so arbitrary reordering and
// duplication of notifications for the same reference is safe.
type Service struct {
	log      *slog.Logger
	payments PaymentRepository
	accounts AccountProvisioner
	rates    domain.RateTable
}

func NewService(log *slog.Logger, payments PaymentRepository, accounts AccountProvisioner, rates domain.RateTable) *Service {
	return &Service{log: log, payments: payments, accounts: accounts, rates: rates}
}

// Initiate records a payment attempt before the user is sent off to pay.
// The credit delta is fixed here, at today's rate, for the life of the row.
// externalRef may be empty for providers that only issue their reference
// inside the first webhook; such payments are created on first sight instead.
func (s *Service) Initiate(ctx context.Context, accountID string, amount int64, currency domain.Currency, provider domain.Provider, externalRef string) (string, error) {
	delta, err := s.rates.Normalize(amount, currency)
	if err != nil {
		return "", err
	}
	if err := s.accounts.Ensure(ctx, accountID); err != nil {
		return "", err
	}

	p := domain.NewPayment(uuid.NewString(), provider, externalRef, accountID, amount, currency, delta)
	created, err := s.payments.Create(ctx, p)
	if err != nil {
		return "", err
	}
	if !created {
		return "", fmt.Errorf("external reference %q already in use", externalRef)
	}
	s.log.Info("payment initiated",
		"payment_id", p.ID, "account_id", accountID, "provider", provider, "credit_delta", delta)
	return p.ID, nil
}

// HandleNotification applies one authenticated provider notification.
// A nil return means the transition durably applied or durably no-op'd and
// the provider may be acked; a non-nil return means the provider must retry.
func (s *Service) HandleNotification(ctx context.Context, n domain.Notification) error {
	p, err := s.payments.GetByReference(ctx, n.ExternalReference)
	if errors.Is(err, domain.ErrNotFound) {
		p, err = s.createOnFirstSight(ctx, n)
	}
	if err != nil {
		return err
	}

	switch n.Status {
	case domain.NotifyConfirming:
		return s.confirm(ctx, p)
	case domain.NotifyPaid:
		return s.credit(ctx, p)
	case domain.NotifyFailed:
		return s.close(ctx, p, domain.StatusFailed)
	case domain.NotifyExpired:
		return s.close(ctx, p, domain.StatusExpired)
	}
	return fmt.Errorf("unhandled provider status %q", n.Status)
}

// createOnFirstSight handles references whose first notification precedes any
// initiate call (Razorpay QR top-ups work this way). The account must come
// with the notification; a reference that matches nothing and names nobody is
// rejected, which is also what keeps forged crypto references out.
func (s *Service) createOnFirstSight(ctx context.Context, n domain.Notification) (domain.Payment, error) {
	if n.AccountID == "" {
		return domain.Payment{}, domain.ErrUnknownReference
	}
	delta, err := s.rates.Normalize(n.Amount, n.Currency)
	if err != nil {
		return domain.Payment{}, err
	}
	if err := s.accounts.Ensure(ctx, n.AccountID); err != nil {
		return domain.Payment{}, err
	}

	p := domain.NewPayment(uuid.NewString(), n.Provider, n.ExternalReference, n.AccountID, n.Amount, n.Currency, delta)
	created, err := s.payments.Create(ctx, p)
	if err != nil {
		return domain.Payment{}, err
	}
	if !created {
		// Lost the race against a concurrent delivery of the same reference.
		return s.payments.GetByReference(ctx, n.ExternalReference)
	}
	s.log.Info("payment created on first notification",
		"payment_id", p.ID, "reference", p.ExternalReference, "provider", p.Provider)
	return p, nil
}

func (s *Service) confirm(ctx context.Context, p domain.Payment) error {
	if p.Status.Terminal() || p.Status == domain.StatusConfirmed {
		// Repeated confirming deliveries and late confirmations are no-ops.
		s.log.Debug("confirm skipped", "reference", p.ExternalReference, "status", p.Status)
		return nil
	}
	applied, err := s.payments.Confirm(ctx, p.ExternalReference)
	if err != nil {
		return err
	}
	if !applied {
		return s.resolveConflict(ctx, p.ExternalReference, domain.StatusConfirmed)
	}
	s.log.Info("payment confirmed", "reference", p.ExternalReference)
	return nil
}

func (s *Service) credit(ctx context.Context, p domain.Payment) error {
	if p.Status == domain.StatusCredited {
		s.log.Info("duplicate credit notification ignored", "reference", p.ExternalReference)
		return nil
	}
	if p.Status.Terminal() {
		s.log.Warn("credit notification for closed payment discarded",
			"reference", p.ExternalReference, "status", p.Status)
		return nil
	}
	applied, err := s.payments.Credit(ctx, p.ExternalReference, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	if !applied {
		return s.resolveConflict(ctx, p.ExternalReference, domain.StatusCredited)
	}
	s.log.Info("payment credited",
		"reference", p.ExternalReference, "account_id", p.AccountID, "credit_delta", p.CreditDelta)
	return nil
}

func (s *Service) close(ctx context.Context, p domain.Payment, to domain.Status) error {
	if p.Status.Terminal() {
		if p.Status != to {
			s.log.Warn("late provider status discarded",
				"reference", p.ExternalReference, "status", p.Status, "notified", to)
		}
		return nil
	}
	if !domain.TransitionAllowed(p.Status, to) {
		// A confirmed payment cannot fail out from under us; the provider's
		// final word for it is either paid or nothing.
		s.log.Warn("disallowed transition discarded",
			"reference", p.ExternalReference, "from", p.Status, "to", to)
		return nil
	}
	applied, err := s.payments.Close(ctx, p.ExternalReference, to, tracing.Traceparent(ctx))
	if err != nil {
		return err
	}
	if !applied {
		return s.resolveConflict(ctx, p.ExternalReference, to)
	}
	s.log.Info("payment closed", "reference", p.ExternalReference, "status", to)
	return nil
}

// resolveConflict re-reads after a precondition failure. Another writer won
// the race; whatever state the row is in now is terminal or compatible, so
// the outcome is a benign no-op rather than an error.
func (s *Service) resolveConflict(ctx context.Context, externalRef string, wanted domain.Status) error {
	p, err := s.payments.GetByReference(ctx, externalRef)
	if err != nil {
		return err
	}
	if p.Status == wanted {
		s.log.Debug("transition already applied by concurrent writer",
			"reference", externalRef, "status", wanted)
		return nil
	}
	s.log.Warn("conflicting transition discarded",
		"reference", externalRef, "status", p.Status, "wanted", wanted)
	return nil
}

// ExpireStale sweeps pending payments the provider never resolved. Only
// pending rows match the precondition, so a concurrently arriving credit
// always beats the sweep or loses to it cleanly.
func (s *Service) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.payments.ExpireStale(ctx, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired stale payments", "count", n)
	}
	return n, nil
}
