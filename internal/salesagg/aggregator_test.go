package salesagg

import (
	"reflect"
	"testing"
	"time"

	"apotekku/backend/internal/domain"
)

func utcAggregator() *Aggregator {
	return New(time.UTC)
}

func paidTx(id string, at time.Time, totalCents int64, items ...domain.TransactionLine) domain.Transaction {
	return domain.Transaction{
		ID:         id,
		Status:     domain.TxStatusPaid,
		TotalCents: totalCents,
		OrderedAt:  at,
		Items:      items,
	}
}

func testProducts() map[string]domain.Product {
	return map[string]domain.Product{
		"PARA-500": {SKU: "PARA-500", Name: "Paracetamol 500mg", Category: "Analgesic"},
		"AMOX-250": {SKU: "AMOX-250", Name: "Amoxicillin 250mg", Category: "Antibiotic"},
		"VIT-C":    {SKU: "VIT-C", Name: "Vitamin C"},
	}
}

func TestMonthlyTotalsWorkedExample(t *testing.T) {
	g := utcAggregator()
	txs := []domain.Transaction{
		paidTx("t1", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), 10000),
		paidTx("t2", time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC), 5000),
		paidTx("t3", time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC), 3000),
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	buckets := g.PeriodTotals(PeriodMonth, from, to, txs, nil)
	if len(buckets) != 12 {
		t.Fatalf("expected 12 monthly buckets, got %d", len(buckets))
	}
	jan := buckets[0]
	if jan.Period != "Jan" || jan.Transactions != 2 || jan.SalesTotal != 150.00 {
		t.Fatalf("jan bucket = %+v, want Jan with 2 tx and 150.00", jan)
	}
	feb := buckets[1]
	if feb.Period != "Feb" || feb.Transactions != 1 || feb.SalesTotal != 30.00 {
		t.Fatalf("feb bucket = %+v, want Feb with 1 tx and 30.00", feb)
	}
	for _, b := range buckets[2:] {
		if b.Transactions != 0 || b.SalesTotal != 0 {
			t.Fatalf("bucket %s should be empty, got %+v", b.Period, b)
		}
	}
}

func TestMonthlyUnitsSumMatchesGrandTotal(t *testing.T) {
	g := utcAggregator()
	txs := []domain.Transaction{
		paidTx("t1", time.Date(2024, 3, 3, 8, 0, 0, 0, time.UTC), 2000,
			domain.TransactionLine{SKU: "PARA-500", Qty: 3, SubtotalCents: 1500},
			domain.TransactionLine{SKU: "VIT-C", Qty: 1, SubtotalCents: 500}),
		paidTx("t2", time.Date(2024, 7, 21, 8, 0, 0, 0, time.UTC), 4000,
			domain.TransactionLine{SKU: "AMOX-250", Qty: 8, SubtotalCents: 4000}),
		paidTx("t3", time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC), 1000,
			domain.TransactionLine{SKU: "VIT-C", Qty: 2, SubtotalCents: 1000}),
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	buckets := g.PeriodTotals(PeriodMonth, from, to, txs, testProducts())
	sum := 0
	for _, b := range buckets {
		sum += b.UnitsSold
	}
	if sum != 14 {
		t.Fatalf("sum of monthly units = %d, want 14", sum)
	}
}

func TestDailyTotalsDefaultWindow(t *testing.T) {
	g := utcAggregator()
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

	from, to := g.ResolveReportRange(PeriodDay, nil, nil, now)
	buckets := g.PeriodTotals(PeriodDay, from, to, nil, nil)
	if len(buckets) != DefaultDayWindow {
		t.Fatalf("expected %d day buckets, got %d", DefaultDayWindow, len(buckets))
	}
	if buckets[0].Period != "2025-04-17" {
		t.Fatalf("first day = %s, want 2025-04-17", buckets[0].Period)
	}
	if buckets[len(buckets)-1].Period != "2025-06-15" {
		t.Fatalf("last day = %s, want 2025-06-15", buckets[len(buckets)-1].Period)
	}
}

func TestWeekOfMonthSpans(t *testing.T) {
	g := utcAggregator()
	// June 2025: the 1st is a Sunday, so week 1 starts Monday May 26.
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	txs := []domain.Transaction{
		paidTx("t1", time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), 1000),  // week 1 (May 26 - Jun 1)
		paidTx("t2", time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), 2000),  // week 2 (Jun 2 - Jun 8)
		paidTx("t3", time.Date(2025, 6, 30, 10, 0, 0, 0, time.UTC), 4000), // week 6 (Jun 30 - ...), partial
	}

	buckets := g.PeriodTotals(PeriodWeek, from, to, txs, nil)
	if len(buckets) != 6 {
		t.Fatalf("expected 6 week buckets, got %d", len(buckets))
	}
	if buckets[0].Period != "Week 1" || buckets[0].Transactions != 1 {
		t.Fatalf("week 1 = %+v", buckets[0])
	}
	if buckets[1].Period != "Week 2" || buckets[1].Transactions != 1 {
		t.Fatalf("week 2 = %+v", buckets[1])
	}
	if buckets[5].Period != "Week 6" || buckets[5].Transactions != 1 {
		t.Fatalf("week 6 = %+v", buckets[5])
	}
}

func TestWeekOfMonthDropsEmptyPartialSpan(t *testing.T) {
	g := utcAggregator()
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	// No transaction on June 30, so the trailing partial span disappears.
	txs := []domain.Transaction{
		paidTx("t1", time.Date(2025, 6, 4, 10, 0, 0, 0, time.UTC), 1000),
	}
	buckets := g.PeriodTotals(PeriodWeek, from, to, txs, nil)
	if len(buckets) != 5 {
		t.Fatalf("expected 5 week buckets without the empty partial span, got %d", len(buckets))
	}
	for _, b := range buckets {
		if b.Period == "Week 6" {
			t.Fatalf("empty partial span must be dropped, got %+v", b)
		}
	}
}

func TestISOWeekLabelsAcrossYearBoundary(t *testing.T) {
	g := utcAggregator()
	// Dec 29 2025 is a Monday; by the Thursday rule that week is 2026-W01.
	from := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 11, 23, 59, 59, 0, time.UTC)

	txs := []domain.Transaction{
		paidTx("t1", time.Date(2025, 12, 30, 10, 0, 0, 0, time.UTC), 1000),
	}
	buckets := g.PeriodTotals(PeriodWeek, from, to, txs, nil)

	var found bool
	for _, b := range buckets {
		if b.Transactions == 1 {
			if b.Period != "2026-W01" {
				t.Fatalf("week label = %s, want 2026-W01", b.Period)
			}
			found = true
		}
	}
	if !found {
		t.Fatalf("transaction not assigned to any week bucket")
	}
}

func TestYearlyTotalsDefaultWindow(t *testing.T) {
	g := utcAggregator()
	now := time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)

	from, to := g.ResolveReportRange(PeriodYear, nil, nil, now)
	buckets := g.PeriodTotals(PeriodYear, from, to, nil, nil)
	if len(buckets) != DefaultYearWindow {
		t.Fatalf("expected %d year buckets, got %d", DefaultYearWindow, len(buckets))
	}
	if buckets[0].Period != "2021" || buckets[4].Period != "2025" {
		t.Fatalf("year range = %s..%s, want 2021..2025", buckets[0].Period, buckets[4].Period)
	}
}

func TestBestSellerTieBreaksAlphabetically(t *testing.T) {
	g := utcAggregator()
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		paidTx("t1", at, 3000,
			domain.TransactionLine{SKU: "PARA-500", Qty: 2, SubtotalCents: 1000},
			domain.TransactionLine{SKU: "AMOX-250", Qty: 2, SubtotalCents: 2000}),
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	buckets := g.PeriodTotals(PeriodMonth, from, to, txs, testProducts())
	may := buckets[4]
	if may.BestSeller != "Amoxicillin 250mg" {
		t.Fatalf("best seller = %q, want alphabetical winner Amoxicillin 250mg", may.BestSeller)
	}
}

func TestVoidedAndMalformedRowsSkipped(t *testing.T) {
	g := utcAggregator()
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	voided := paidTx("v1", at, 9000)
	voided.Status = domain.TxStatusVoided
	txs := []domain.Transaction{
		voided,
		paidTx("zero-time", time.Time{}, 5000),
		paidTx("neg", at, -700, domain.TransactionLine{SKU: "VIT-C", Qty: -3, SubtotalCents: -700}),
		paidTx("ok", at, 1200, domain.TransactionLine{SKU: "VIT-C", Qty: 2, SubtotalCents: 1200}),
	}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)

	buckets := g.PeriodTotals(PeriodMonth, from, to, txs, testProducts())
	if len(buckets) != 1 {
		t.Fatalf("expected single May bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.Transactions != 2 {
		t.Fatalf("transactions = %d, want 2 (voided and zero-time rows skipped)", b.Transactions)
	}
	if b.SalesTotal != 12.00 {
		t.Fatalf("sales total = %v, want 12.00 (negative amount coerced to 0)", b.SalesTotal)
	}
	if b.UnitsSold != 2 {
		t.Fatalf("units sold = %d, want 2", b.UnitsSold)
	}
}

func TestTopItemsRankingAndPercentages(t *testing.T) {
	g := utcAggregator()
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		paidTx("t1", at, 30000, domain.TransactionLine{SKU: "PARA-500", Qty: 10, SubtotalCents: 30000}),
		paidTx("t2", at.Add(time.Hour), 10000, domain.TransactionLine{SKU: "AMOX-250", Qty: 5, SubtotalCents: 10000}),
		paidTx("t3", at.Add(2*time.Hour), 4000, domain.TransactionLine{SKU: "VIT-C", Qty: 4, SubtotalCents: 4000}),
	}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)

	items := g.TopItems(RankByProduct, 5, from, to, txs, testProducts())
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Key != "Paracetamol 500mg" || items[1].Key != "Amoxicillin 250mg" || items[2].Key != "Vitamin C" {
		t.Fatalf("unexpected ranking: %s, %s, %s", items[0].Key, items[1].Key, items[2].Key)
	}
	// Revenues 300 / 100 / 40 against the in-range total of 440.
	wantPct := []float64{68.18, 22.73, 9.09}
	var sum float64
	for i, item := range items {
		if item.PercentageOfSales != wantPct[i] {
			t.Fatalf("item %d percentage = %v, want %v", i, item.PercentageOfSales, wantPct[i])
		}
		sum += item.PercentageOfSales
	}
	if sum > 100.01 {
		t.Fatalf("percentages sum to %v, must not exceed 100", sum)
	}
	if items[0].AvgUnitPrice != 30.00 {
		t.Fatalf("avg unit price = %v, want 30.00", items[0].AvgUnitPrice)
	}
	if items[0].Transactions != 1 {
		t.Fatalf("distinct transactions = %d, want 1", items[0].Transactions)
	}
}

func TestTopItemsCategoryModeUsesUncategorized(t *testing.T) {
	g := utcAggregator()
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		paidTx("t1", at, 1000, domain.TransactionLine{SKU: "VIT-C", Qty: 1, SubtotalCents: 1000}),
		paidTx("t2", at, 2000, domain.TransactionLine{SKU: "PARA-500", Qty: 1, SubtotalCents: 2000}),
	}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)

	items := g.TopItems(RankByCategory, 5, from, to, txs, testProducts())
	keys := []string{items[0].Key, items[1].Key}
	if !reflect.DeepEqual(keys, []string{"Analgesic", domain.UncategorizedLabel}) {
		t.Fatalf("category keys = %v", keys)
	}
}

func TestTopItemsLimitClamp(t *testing.T) {
	cases := map[int]int{-3: 5, 0: 5, 3: 5, 5: 5, 7: 5, 8: 10, 10: 10, 99: 10}
	for in, want := range cases {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestTopItemsTruncatesToLimit(t *testing.T) {
	g := utcAggregator()
	at := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	var txs []domain.Transaction
	for i := 0; i < 8; i++ {
		sku := string(rune('A' + i))
		txs = append(txs, paidTx("t"+sku, at, int64(1000*(i+1)),
			domain.TransactionLine{SKU: sku, Qty: 1, SubtotalCents: int64(1000 * (i + 1))}))
	}
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)

	items := g.TopItems(RankByProduct, 3, from, to, txs, nil)
	if len(items) != 5 {
		t.Fatalf("expected clamped limit of 5 entries, got %d", len(items))
	}
	for i := 1; i < len(items); i++ {
		if items[i].Revenue > items[i-1].Revenue {
			t.Fatalf("items not sorted by revenue descending at %d", i)
		}
	}
}

func TestPeriodTotalsDeterministic(t *testing.T) {
	g := utcAggregator()
	txs := []domain.Transaction{
		paidTx("t1", time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC), 1500,
			domain.TransactionLine{SKU: "PARA-500", Qty: 1, SubtotalCents: 1500}),
		paidTx("t2", time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC), 2500,
			domain.TransactionLine{SKU: "VIT-C", Qty: 2, SubtotalCents: 2500}),
	}
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	first := g.PeriodTotals(PeriodMonth, from, to, txs, testProducts())
	second := g.PeriodTotals(PeriodMonth, from, to, txs, testProducts())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-aggregation of an unchanged snapshot differs")
	}
}
