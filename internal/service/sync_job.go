package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"audio-embed-service/internal/model"
)

// SyncJobExecutor runs the work a webhook queued.
type SyncJobExecutor struct {
	billingService BillingService
}

func NewSyncJobExecutor(billingService BillingService) *SyncJobExecutor {
	return &SyncJobExecutor{billingService: billingService}
}

func (e *SyncJobExecutor) HandleJob(ctx context.Context, job *model.SyncJob) error {
	switch job.Kind {
	case model.SyncJobReconcile:
		return e.billingService.Reconcile(ctx, job.CustomerID)

	case model.SyncJobRecordOrder:
		var p model.OrderPayload
		if err := json.Unmarshal([]byte(job.Payload), &p); err != nil {
			return fmt.Errorf("decode order payload: %w", err)
		}
		_, err := e.billingService.RecordOrder(ctx, &model.Order{
			CheckoutSessionID: p.CheckoutSessionID,
			PaymentIntentID:   p.PaymentIntentID,
			CustomerID:        p.CustomerID,
			AmountSubtotal:    p.AmountSubtotal,
			AmountTotal:       p.AmountTotal,
			Currency:          p.Currency,
			PaymentStatus:     p.PaymentStatus,
			Status:            model.OrderStatusComplete,
		})
		return err

	case model.SyncJobPauseThenReconcile:
		// reconcile even when the pause fails so the record stays current
		pauseErr := e.billingService.PauseCollection(ctx, job.Payload)
		return errors.Join(pauseErr, e.billingService.Reconcile(ctx, job.CustomerID))
	}

	return fmt.Errorf("unknown sync job kind %q", job.Kind)
}
