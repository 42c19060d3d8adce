package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/payment"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// Webhook outcomes.
const (
	MsgUpdated          = "Order and Booking updated"
	MsgAlreadyProcessed = "Already processed"
	MsgOrderNotFound    = "Order not found"
	MsgAmbiguous        = "Ambiguous transfer reference"
	MsgUnderpaid        = "Transfer amount is less than order amount"
	MsgOrderExpired     = "Order expired"
	MsgIgnoredOutgoing  = "Ignored outgoing transfer"
)

// ConfirmPayment matches an incoming transfer to an unpaid order by its
// exact transfer content, marks the order paid and confirms the linked
// reservation.  Redelivered notifications are no-ops.
func (s *BookingService) ConfirmPayment(ctx context.Context, p payment.WebhookPayload) (*WebhookResult, error) {
	if strings.TrimSpace(p.Content) == "" {
		return nil, ErrInvalidWebhook
	}
	txRef := p.TransactionRef()
	log := s.log.WithFields(logrus.Fields{"transaction_id": txRef, "amount": int64(p.TransferAmount)})

	if p.Outgoing() {
		log.Debug("webhook: outgoing transfer ignored")
		return &WebhookResult{Success: false, Message: MsgIgnoredOutgoing}, nil
	}

	if txRef != "" {
		prev, err := s.orders.FindByTransactionRef(ctx, txRef)
		if err == nil {
			log.WithField("order_id", prev.ID).Info("webhook: duplicate delivery")
			return &WebhookResult{Success: true, Message: MsgAlreadyProcessed}, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup transaction: %w", err)
		}
	}

	order, result, err := s.matchOrder(ctx, log, p)
	if err != nil || result != nil {
		return result, err
	}
	log = log.WithField("order_id", order.ID)

	if p.TransferAmount > 0 && int64(p.TransferAmount) < order.Amount {
		log.WithField("order_amount", order.Amount).Warn("webhook: transfer below order amount, order left unpaid")
		return &WebhookResult{Success: false, Message: MsgUnderpaid}, nil
	}

	now := s.now()
	var outcome string
	var res *model.Reservation
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.orders.MarkPaid(ctx, order.ID, txRef, now)
		if errors.Is(err, repository.ErrConflict) {
			outcome = MsgAlreadyProcessed
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if !ok {
			cur, err := s.orders.GetByID(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("reload order: %w", err)
			}
			if cur.PaymentStatus == model.PaymentPaid {
				outcome = MsgAlreadyProcessed
			} else {
				outcome = MsgOrderExpired
			}
			return nil
		}

		r, err := s.reservations.FindByOrderID(ctx, order.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find reservation: %w", err)
		}
		moved, err := s.reservations.TransitionStatus(ctx, r.ID,
			[]model.ReservationStatus{model.ReservationPending}, model.ReservationConfirmed)
		if err != nil {
			return fmt.Errorf("confirm reservation: %w", err)
		}
		if !moved {
			log.WithFields(logrus.Fields{"reservation_id": r.ID, "status": r.Status}).
				Warn("webhook: order paid but reservation was not pending")
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case MsgAlreadyProcessed:
		return &WebhookResult{Success: true, Message: MsgAlreadyProcessed}, nil
	case MsgOrderExpired:
		log.Warn("webhook: payment arrived for an expired order, reconcile manually")
		return &WebhookResult{Success: false, Message: MsgOrderExpired}, nil
	}

	ev := queue.BookingConfirmedEvent{
		OrderID:        order.ID,
		RoomID:         order.RoomID,
		RoomTitle:      order.BookingRoom,
		CustomerName:   order.CustomerName,
		CustomerPhone:  order.CustomerPhone,
		CustomerEmail:  order.CustomerEmail,
		CheckIn:        order.CheckIn,
		CheckOut:       order.CheckOut,
		Duration:       order.BookingDuration,
		Amount:         order.Amount,
		TransactionRef: txRef,
		ConfirmedAt:    now.Format(time.RFC3339),
	}
	if res != nil {
		ev.ReservationID = res.ID
		log = log.WithField("reservation_id", res.ID)
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		log.WithError(err).Warn("publish booking.confirmed failed")
	}
	log.Info("payment matched")
	return &WebhookResult{Success: true, Message: MsgUpdated}, nil
}

// matchOrder resolves the single unpaid order the transfer refers to.  A
// non-nil result means the webhook ends there.
func (s *BookingService) matchOrder(ctx context.Context, log *logrus.Entry, p payment.WebhookPayload) (*model.Order, *WebhookResult, error) {
	refs := payment.ExtractReferences(p.SearchText())
	matches := make(map[string]model.Order)
	for _, ref := range refs {
		found, err := s.orders.FindUnpaidByTransferContent(ctx, ref)
		if err != nil {
			return nil, nil, fmt.Errorf("match transfer: %w", err)
		}
		for _, o := range found {
			matches[o.ID] = o
		}
	}
	switch len(matches) {
	case 0:
		if p.TransactionRef() == "" {
			// Without a provider id a redelivery can only be recognised
			// by its reference on an order that is already paid.
			done, err := s.paidReference(ctx, refs)
			if err != nil {
				return nil, nil, err
			}
			if done != nil {
				log.WithField("order_id", done.ID).Info("webhook: redelivery without transaction id")
				return nil, &WebhookResult{Success: true, Message: MsgAlreadyProcessed}, nil
			}
		}
		log.WithFields(logrus.Fields{"content": p.Content, "candidates": refs}).Warn("webhook: no unpaid order matches transfer")
		return nil, &WebhookResult{Success: false, Message: MsgOrderNotFound}, nil
	case 1:
		for _, o := range matches {
			o := o
			return &o, nil, nil
		}
	}
	ids := make([]string, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	log.WithFields(logrus.Fields{"content": p.Content, "orders": ids}).Warn("webhook: transfer matches several orders")
	return nil, &WebhookResult{Success: false, Message: MsgAmbiguous}, nil
}

// paidReference returns a paid order carrying one of refs, or nil.
func (s *BookingService) paidReference(ctx context.Context, refs []string) (*model.Order, error) {
	for _, ref := range refs {
		found, err := s.orders.FindPaidByTransferContent(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("match paid transfer: %w", err)
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, nil
}
