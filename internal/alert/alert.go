// Package alert runs the periodic background scans that surface low-stock
// and near-expiry conditions without anyone opening the dashboard.
package alert

import (
	"context"
	"fmt"
	"log"
	"time"

	"apotekku/backend/internal/domain"
)

// Scanner is the slice of the service layer the job needs. Defined here so
// tests can drive the job without a full service.
type Scanner interface {
	ReorderSuggestions(ctx context.Context, limit int) (domain.ReorderAdviceResponse, error)
	ExpiryWarnings(ctx context.Context, withinDays int) (domain.ExpiryWarningResponse, error)
}

// Notifier receives the outcome of a scan. The default implementation just
// logs; a future one could push to WhatsApp or email.
type Notifier interface {
	NotifyLowStock(advice []domain.ReorderAdvice)
	NotifyExpiring(warnings []domain.ExpiryWarning)
}

type LogNotifier struct{}

func (LogNotifier) NotifyLowStock(advice []domain.ReorderAdvice) {
	for _, item := range advice {
		log.Printf("[alert] low stock: %s (%s) stock=%d reorder_level=%d suggested=%d",
			item.SKU, item.Name, item.CurrentStock, item.ReorderLevel, item.SuggestedQty)
	}
}

func (LogNotifier) NotifyExpiring(warnings []domain.ExpiryWarning) {
	for _, warning := range warnings {
		log.Printf("[alert] expiring: %s batch %s expires %s (%d days, qty %d)",
			warning.SKU, warning.BatchCode, warning.ExpiryDate, warning.DaysLeft, warning.Qty)
	}
}

type Job struct {
	scanner    Scanner
	notifier   Notifier
	interval   time.Duration
	expiryDays int
}

func NewJob(scanner Scanner, notifier Notifier, interval time.Duration, expiryDays int) *Job {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if expiryDays < 1 {
		expiryDays = 30
	}
	return &Job{
		scanner:    scanner,
		notifier:   notifier,
		interval:   interval,
		expiryDays: expiryDays,
	}
}

// Run blocks until ctx is cancelled. One scan fires immediately so a fresh
// deployment reports problems without waiting a full interval.
func (j *Job) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	if err := j.ScanOnce(ctx); err != nil {
		log.Printf("[alert] WARN: initial scan failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.ScanOnce(ctx); err != nil {
				log.Printf("[alert] WARN: scan failed: %v", err)
			}
		}
	}
}

// ScanOnce runs the low-stock and expiry checks a single time.
func (j *Job) ScanOnce(ctx context.Context) error {
	reorderResp, err := j.scanner.ReorderSuggestions(ctx, 0)
	if err != nil {
		return fmt.Errorf("reorder scan: %w", err)
	}
	if len(reorderResp.Suggestions) > 0 {
		j.notifier.NotifyLowStock(reorderResp.Suggestions)
	}

	expiryResp, err := j.scanner.ExpiryWarnings(ctx, j.expiryDays)
	if err != nil {
		return fmt.Errorf("expiry scan: %w", err)
	}
	if len(expiryResp.Warnings) > 0 {
		j.notifier.NotifyExpiring(expiryResp.Warnings)
	}
	return nil
}
