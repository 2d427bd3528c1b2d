package reorder

import (
	"testing"
	"time"

	"apotekku/backend/internal/domain"
)

func testNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func saleEveryDay(sku string, perDay int, days int, now time.Time) []SaleLine {
	lines := make([]SaleLine, 0, days)
	for i := 0; i < days; i++ {
		lines = append(lines, SaleLine{SKU: sku, Qty: perDay, SoldAt: now.AddDate(0, 0, -i)})
	}
	return lines
}

func TestAdviseWorkedExample(t *testing.T) {
	now := testNow()
	placed := now.AddDate(0, 0, -20)
	arrived := placed.AddDate(0, 0, 5)

	snap := Snapshot{
		Products: []domain.Product{
			{SKU: "PARA-500", Name: "Paracetamol 500mg", Category: "Analgesic", Active: true},
		},
		Batches: []domain.ProductBatch{
			{ID: "b1", SKU: "PARA-500", QtyAvailable: 5, Active: true},
			{ID: "b2", SKU: "PARA-500", QtyAvailable: 3, Active: true},
		},
		Orders: []domain.PurchaseOrder{
			{ID: "po1", CreatedAt: placed, ReceivedAt: &arrived, Items: []domain.PurchaseOrderItem{{SKU: "PARA-500", Qty: 50}}},
		},
		Sales: saleEveryDay("PARA-500", 2, 30, now),
		Now:   now,
	}

	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 1 {
		t.Fatalf("expected one advice, got %d", len(advices))
	}
	a := advices[0]
	if a.CurrentStock != 8 {
		t.Fatalf("current stock = %d, want 8", a.CurrentStock)
	}
	if a.AvgDailyUsage != 2 {
		t.Fatalf("avg daily usage = %v, want 2", a.AvgDailyUsage)
	}
	if a.LeadTimeDays != 5 {
		t.Fatalf("lead time = %v, want 5", a.LeadTimeDays)
	}
	if a.ReorderLevel != 12 {
		t.Fatalf("reorder level = %d, want 12", a.ReorderLevel)
	}
	if a.SafetyStock != 2 {
		t.Fatalf("safety stock = %d, want 2", a.SafetyStock)
	}
	if a.SuggestedQty != 6 {
		t.Fatalf("suggested qty = %d, want 6", a.SuggestedQty)
	}
	if a.Status != domain.StockStatusLow {
		t.Fatalf("status = %q, want %q", a.Status, domain.StockStatusLow)
	}
}

func TestAdviseLeadTimeFallback(t *testing.T) {
	now := testNow()
	snap := Snapshot{
		Products: []domain.Product{{SKU: "AMOX-250", Name: "Amoxicillin 250mg", Active: true}},
		Batches:  []domain.ProductBatch{{ID: "b1", SKU: "AMOX-250", QtyAvailable: 1, Active: true}},
		Sales:    saleEveryDay("AMOX-250", 1, 30, now),
		Now:      now,
	}

	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 1 {
		t.Fatalf("expected one advice, got %d", len(advices))
	}
	if advices[0].LeadTimeDays != DefaultLeadTimeDays {
		t.Fatalf("lead time = %v, want fallback %v", advices[0].LeadTimeDays, DefaultLeadTimeDays)
	}
}

func TestAdviseIgnoresOrdersWithoutArrival(t *testing.T) {
	now := testNow()
	placed := now.AddDate(0, 0, -10)
	before := placed.AddDate(0, 0, -1)
	snap := Snapshot{
		Products: []domain.Product{{SKU: "IBU-400", Name: "Ibuprofen 400mg", Active: true}},
		Orders: []domain.PurchaseOrder{
			{ID: "open", CreatedAt: placed, Items: []domain.PurchaseOrderItem{{SKU: "IBU-400", Qty: 10}}},
			{ID: "bad", CreatedAt: placed, ReceivedAt: &before, Items: []domain.PurchaseOrderItem{{SKU: "IBU-400", Qty: 10}}},
		},
		Sales: saleEveryDay("IBU-400", 1, 10, now),
		Now:   now,
	}

	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 1 {
		t.Fatalf("expected one advice, got %d", len(advices))
	}
	if advices[0].LeadTimeDays != DefaultLeadTimeDays {
		t.Fatalf("lead time = %v, want fallback %v", advices[0].LeadTimeDays, DefaultLeadTimeDays)
	}
}

func TestAdviseZeroBatchesFlaggedLow(t *testing.T) {
	now := testNow()
	snap := Snapshot{
		Products: []domain.Product{{SKU: "OME-20", Name: "Omeprazole 20mg", Active: true}},
		Sales:    saleEveryDay("OME-20", 3, 30, now),
		Now:      now,
	}

	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 1 {
		t.Fatalf("expected one advice, got %d", len(advices))
	}
	if advices[0].CurrentStock != 0 {
		t.Fatalf("current stock = %d, want 0", advices[0].CurrentStock)
	}
	if advices[0].Status != domain.StockStatusLow {
		t.Fatalf("status = %q, want low", advices[0].Status)
	}
	if advices[0].SuggestedQty < 0 {
		t.Fatalf("suggested qty must never be negative, got %d", advices[0].SuggestedQty)
	}
}

func TestAdviseNoSalesMeansZeroUsage(t *testing.T) {
	now := testNow()
	old := now.AddDate(0, 0, -31)
	snap := Snapshot{
		Products: []domain.Product{{SKU: "CET-10", Name: "Cetirizine 10mg", Active: true}},
		Batches:  []domain.ProductBatch{{ID: "b1", SKU: "CET-10", QtyAvailable: 4, Active: true}},
		Sales:    []SaleLine{{SKU: "CET-10", Qty: 100, SoldAt: old}},
		Now:      now,
	}

	// Usage 0 means reorder level 0 and stock 4 > 0, so nothing is flagged.
	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 0 {
		t.Fatalf("expected no advice, got %d", len(advices))
	}
}

func TestAdviseCoercesNegativeQuantities(t *testing.T) {
	now := testNow()
	snap := Snapshot{
		Products: []domain.Product{{SKU: "VIT-C", Name: "Vitamin C", Active: true}},
		Batches: []domain.ProductBatch{
			{ID: "b1", SKU: "VIT-C", QtyAvailable: -5, Active: true},
			{ID: "b2", SKU: "VIT-C", QtyAvailable: 2, Active: true},
		},
		Sales: []SaleLine{
			{SKU: "VIT-C", Qty: -10, SoldAt: now},
			{SKU: "VIT-C", Qty: 30, SoldAt: now.AddDate(0, 0, -1)},
		},
		Now: now,
	}

	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 1 {
		t.Fatalf("expected one advice, got %d", len(advices))
	}
	a := advices[0]
	if a.CurrentStock != 2 {
		t.Fatalf("current stock = %d, want 2 (negative batch coerced to 0)", a.CurrentStock)
	}
	if a.AvgDailyUsage != 1 {
		t.Fatalf("avg daily usage = %v, want 1 (negative qty coerced to 0)", a.AvgDailyUsage)
	}
}

func TestAdviseSkipsInactiveProducts(t *testing.T) {
	now := testNow()
	snap := Snapshot{
		Products: []domain.Product{{SKU: "DISC-1", Name: "Discontinued", Active: false}},
		Sales:    saleEveryDay("DISC-1", 5, 30, now),
		Now:      now,
	}

	if advices := New(Config{}).Advise(snap, 0); len(advices) != 0 {
		t.Fatalf("inactive product must not be advised, got %d entries", len(advices))
	}
}

func TestAdviseLimitTruncates(t *testing.T) {
	now := testNow()
	snap := Snapshot{
		Products: []domain.Product{
			{SKU: "A", Name: "Alpha", Active: true},
			{SKU: "B", Name: "Beta", Active: true},
			{SKU: "C", Name: "Gamma", Active: true},
		},
		Sales: append(append(
			saleEveryDay("A", 1, 30, now),
			saleEveryDay("B", 2, 30, now)...),
			saleEveryDay("C", 3, 30, now)...),
		Now: now,
	}

	advices := New(Config{}).Advise(snap, 2)
	if len(advices) != 2 {
		t.Fatalf("expected 2 advices after truncation, got %d", len(advices))
	}
	// Highest suggested quantity first.
	if advices[0].SKU != "C" || advices[1].SKU != "B" {
		t.Fatalf("unexpected order: %s, %s", advices[0].SKU, advices[1].SKU)
	}
}

func TestAdviseProductSafetyFactorOverride(t *testing.T) {
	now := testNow()
	placed := now.AddDate(0, 0, -20)
	arrived := placed.AddDate(0, 0, 5)
	factor := 0.5
	snap := Snapshot{
		Products: []domain.Product{{SKU: "INS-1", Name: "Insulin", SafetyFactor: &factor, Active: true}},
		Batches:  []domain.ProductBatch{{ID: "b1", SKU: "INS-1", QtyAvailable: 8, Active: true}},
		Orders: []domain.PurchaseOrder{
			{ID: "po1", CreatedAt: placed, ReceivedAt: &arrived, Items: []domain.PurchaseOrderItem{{SKU: "INS-1", Qty: 50}}},
		},
		Sales: saleEveryDay("INS-1", 2, 30, now),
		Now:   now,
	}

	advices := New(Config{}).Advise(snap, 0)
	if len(advices) != 1 {
		t.Fatalf("expected one advice, got %d", len(advices))
	}
	// usage 2, lead 5, safety 0.5*2*5 = 5, level 15, suggested 15-8+5 = 12.
	if advices[0].SafetyStock != 5 {
		t.Fatalf("safety stock = %d, want 5", advices[0].SafetyStock)
	}
	if advices[0].ReorderLevel != 15 {
		t.Fatalf("reorder level = %d, want 15", advices[0].ReorderLevel)
	}
	if advices[0].SuggestedQty != 12 {
		t.Fatalf("suggested qty = %d, want 12", advices[0].SuggestedQty)
	}
}
