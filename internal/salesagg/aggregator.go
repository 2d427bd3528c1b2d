package salesagg

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"apotekku/backend/internal/domain"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodRange = "range"

	RankByProduct  = "product"
	RankByCategory = "category"

	// DefaultDayWindow is the trailing number of days covered by a daily
	// report when no explicit range is given.
	DefaultDayWindow = 60
	// DefaultYearWindow is the trailing number of years covered by a yearly
	// report when no explicit range is given.
	DefaultYearWindow = 5
)

// Aggregator buckets sales transactions into calendar periods and ranks
// products or categories by revenue. It holds no state between calls; every
// method is a pure function over the rows it is handed.
type Aggregator struct {
	loc *time.Location
}

func New(loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{loc: loc}
}

// NormalizePeriod clamps an arbitrary period selector to a supported one.
func NormalizePeriod(period string) string {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	case PeriodYear:
		return PeriodYear
	default:
		return PeriodDay
	}
}

// NormalizeRankType clamps a top-N grouping selector to product or category.
func NormalizeRankType(rankType string) string {
	if strings.EqualFold(strings.TrimSpace(rankType), RankByCategory) {
		return RankByCategory
	}
	return RankByProduct
}

// ClampLimit snaps a requested top-N limit to the nearest accepted value,
// which is either 5 or 10.
func ClampLimit(limit int) int {
	if limit >= 8 {
		return 10
	}
	return 5
}

// ResolveReportRange turns a period selector plus optional explicit bounds
// into a concrete inclusive range. Defaults: day = trailing 60 days, week =
// the current month, month = the current year, year = a trailing 5-year
// window.
func (g *Aggregator) ResolveReportRange(period string, from *time.Time, to *time.Time, now time.Time) (time.Time, time.Time) {
	now = now.In(g.loc)
	if from != nil && to != nil {
		return from.In(g.loc), to.In(g.loc)
	}
	if from != nil {
		return from.In(g.loc), now
	}

	end := now
	if to != nil {
		end = to.In(g.loc)
	}

	var start time.Time
	switch period {
	case PeriodWeek:
		start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, g.loc)
		end = start.AddDate(0, 1, 0).Add(-time.Second)
	case PeriodMonth:
		start = time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, g.loc)
		end = time.Date(end.Year(), time.December, 31, 23, 59, 59, 0, g.loc)
	case PeriodYear:
		start = time.Date(end.Year()-(DefaultYearWindow-1), time.January, 1, 0, 0, 0, 0, g.loc)
		end = time.Date(end.Year(), time.December, 31, 23, 59, 59, 0, g.loc)
	default:
		start = g.startOfDay(end).AddDate(0, 0, -(DefaultDayWindow - 1))
	}
	return start, end
}

// ResolveTopRange turns a top-N period selector into a concrete range. The
// selector defaults to the current month; "range" uses the explicit bounds.
func (g *Aggregator) ResolveTopRange(periodType string, from *time.Time, to *time.Time, now time.Time) (time.Time, time.Time) {
	now = now.In(g.loc)
	switch strings.ToLower(strings.TrimSpace(periodType)) {
	case PeriodDay:
		return g.startOfDay(now), now
	case PeriodWeek:
		return g.mondayOnOrBefore(g.startOfDay(now)), now
	case PeriodYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, g.loc), now
	case PeriodRange:
		if from != nil && to != nil {
			return from.In(g.loc), to.In(g.loc)
		}
		if from != nil {
			return from.In(g.loc), now
		}
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, g.loc), now
}

type bucketSpan struct {
	label   string
	start   time.Time // inclusive
	end     time.Time // exclusive
	partial bool
}

type bucketAccum struct {
	transactions int
	totalCents   int64
	units        int
	qtyByName    map[string]int
}

// PeriodTotals produces one aggregate record per period instance between from
// and to (inclusive). Transactions outside the range, voided transactions,
// and rows without a usable timestamp are skipped; negative quantities and
// amounts are coerced to zero.
func (g *Aggregator) PeriodTotals(period string, from time.Time, to time.Time, txs []domain.Transaction, products map[string]domain.Product) []domain.SalesBucket {
	from = from.In(g.loc)
	to = to.In(g.loc)
	if to.Before(from) {
		from, to = to, from
	}

	spans := g.spansFor(period, from, to)
	accums := make([]bucketAccum, len(spans))

	for _, tx := range txs {
		if tx.OrderedAt.IsZero() || tx.Status == domain.TxStatusVoided {
			continue
		}
		at := tx.OrderedAt.In(g.loc)
		if at.Before(from) || at.After(to) {
			continue
		}
		idx := -1
		for i, span := range spans {
			if !at.Before(span.start) && at.Before(span.end) {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		acc := &accums[idx]
		acc.transactions++
		acc.totalCents += nonNegativeCents(tx.TotalCents)
		for _, line := range tx.Items {
			qty := line.Qty
			if qty < 0 {
				qty = 0
			}
			acc.units += qty
			if acc.qtyByName == nil {
				acc.qtyByName = make(map[string]int)
			}
			acc.qtyByName[productLabel(line.SKU, products)] += qty
		}
	}

	buckets := make([]domain.SalesBucket, 0, len(spans))
	for i, span := range spans {
		acc := accums[i]
		if span.partial && acc.transactions == 0 {
			continue
		}
		buckets = append(buckets, domain.SalesBucket{
			Period:       span.label,
			Start:        span.start.Format("2006-01-02"),
			End:          span.end.AddDate(0, 0, -1).Format("2006-01-02"),
			Transactions: acc.transactions,
			SalesTotal:   centsToAmount(acc.totalCents),
			UnitsSold:    acc.units,
			BestSeller:   bestSeller(acc.qtyByName),
		})
	}
	return buckets
}

func (g *Aggregator) spansFor(period string, from time.Time, to time.Time) []bucketSpan {
	switch period {
	case PeriodWeek:
		if sameMonth(from, to) {
			return g.weekOfMonthSpans(from)
		}
		return g.isoWeekSpans(from, to)
	case PeriodMonth:
		return g.monthSpans(from, to)
	case PeriodYear:
		return g.yearSpans(from, to)
	default:
		return g.daySpans(from, to)
	}
}

func (g *Aggregator) daySpans(from time.Time, to time.Time) []bucketSpan {
	spans := make([]bucketSpan, 0, DefaultDayWindow)
	for d := g.startOfDay(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		spans = append(spans, bucketSpan{
			label: d.Format("2006-01-02"),
			start: d,
			end:   d.AddDate(0, 0, 1),
		})
	}
	return spans
}

// weekOfMonthSpans partitions a single month into Monday-aligned 7-day spans
// starting from the first Monday on or before the 1st. The final span runs
// past the end of the month and is marked partial; PeriodTotals drops it
// unless it actually holds transactions.
func (g *Aggregator) weekOfMonthSpans(from time.Time) []bucketSpan {
	monthStart := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, g.loc)
	monthEnd := monthStart.AddDate(0, 1, 0) // exclusive

	spans := make([]bucketSpan, 0, 6)
	weekNo := 0
	for ws := g.mondayOnOrBefore(monthStart); ws.Before(monthEnd); ws = ws.AddDate(0, 0, 7) {
		weekNo++
		we := ws.AddDate(0, 0, 7)
		spans = append(spans, bucketSpan{
			label:   fmt.Sprintf("Week %d", weekNo),
			start:   ws,
			end:     we,
			partial: we.After(monthEnd),
		})
	}
	return spans
}

// isoWeekSpans covers a multi-month range with ISO weeks: Monday-start, with
// the week's Thursday deciding which year the week belongs to (time.Time's
// ISOWeek already implements that rule).
func (g *Aggregator) isoWeekSpans(from time.Time, to time.Time) []bucketSpan {
	spans := make([]bucketSpan, 0, 54)
	for ws := g.mondayOnOrBefore(g.startOfDay(from)); !ws.After(to); ws = ws.AddDate(0, 0, 7) {
		isoYear, isoWeek := ws.AddDate(0, 0, 3).ISOWeek()
		spans = append(spans, bucketSpan{
			label: fmt.Sprintf("%d-W%02d", isoYear, isoWeek),
			start: ws,
			end:   ws.AddDate(0, 0, 7),
		})
	}
	return spans
}

func (g *Aggregator) monthSpans(from time.Time, to time.Time) []bucketSpan {
	multiYear := from.Year() != to.Year()
	spans := make([]bucketSpan, 0, 12)
	for ms := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, g.loc); !ms.After(to); ms = ms.AddDate(0, 1, 0) {
		label := ms.Format("Jan")
		if multiYear {
			label = ms.Format("Jan 2006")
		}
		spans = append(spans, bucketSpan{
			label: label,
			start: ms,
			end:   ms.AddDate(0, 1, 0),
		})
	}
	return spans
}

func (g *Aggregator) yearSpans(from time.Time, to time.Time) []bucketSpan {
	spans := make([]bucketSpan, 0, DefaultYearWindow)
	for y := from.Year(); y <= to.Year(); y++ {
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, g.loc)
		spans = append(spans, bucketSpan{
			label: start.Format("2006"),
			start: start,
			end:   start.AddDate(1, 0, 0),
		})
	}
	return spans
}

type rankAccum struct {
	qty          int
	revenueCents int64
	txIDs        map[string]struct{}
}

// TopItems ranks products or categories by summed line revenue over the given
// inclusive range. PercentageOfSales is measured against the full in-range
// revenue, not just the returned entries.
func (g *Aggregator) TopItems(rankType string, limit int, from time.Time, to time.Time, txs []domain.Transaction, products map[string]domain.Product) []domain.TopItem {
	rankType = NormalizeRankType(rankType)
	limit = ClampLimit(limit)
	from = from.In(g.loc)
	to = to.In(g.loc)
	if to.Before(from) {
		from, to = to, from
	}

	accums := make(map[string]*rankAccum)
	var totalCents int64

	for _, tx := range txs {
		if tx.OrderedAt.IsZero() || tx.Status == domain.TxStatusVoided {
			continue
		}
		at := tx.OrderedAt.In(g.loc)
		if at.Before(from) || at.After(to) {
			continue
		}
		for _, line := range tx.Items {
			key := productLabel(line.SKU, products)
			if rankType == RankByCategory {
				key = categoryLabel(line.SKU, products)
			}

			acc := accums[key]
			if acc == nil {
				acc = &rankAccum{txIDs: make(map[string]struct{})}
				accums[key] = acc
			}
			qty := line.Qty
			if qty < 0 {
				qty = 0
			}
			revenue := nonNegativeCents(line.SubtotalCents)
			acc.qty += qty
			acc.revenueCents += revenue
			acc.txIDs[tx.ID] = struct{}{}
			totalCents += revenue
		}
	}

	items := make([]domain.TopItem, 0, len(accums))
	for key, acc := range accums {
		avgUnit := 0.0
		if acc.qty > 0 {
			avgUnit = round2(float64(acc.revenueCents) / 100 / float64(acc.qty))
		}
		pct := 0.0
		if totalCents > 0 {
			pct = round2(float64(acc.revenueCents) / float64(totalCents) * 100)
		}
		items = append(items, domain.TopItem{
			Key:               key,
			QuantitySold:      acc.qty,
			Revenue:           centsToAmount(acc.revenueCents),
			AvgUnitPrice:      avgUnit,
			Transactions:      len(acc.txIDs),
			PercentageOfSales: pct,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Revenue != items[j].Revenue {
			return items[i].Revenue > items[j].Revenue
		}
		return items[i].Key < items[j].Key
	})

	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (g *Aggregator) startOfDay(t time.Time) time.Time {
	t = t.In(g.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc)
}

func (g *Aggregator) mondayOnOrBefore(t time.Time) time.Time {
	t = g.startOfDay(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func sameMonth(a time.Time, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// bestSeller picks the product with the highest summed quantity; ties break
// alphabetically by name so repeated runs agree.
func bestSeller(qtyByName map[string]int) string {
	best := ""
	bestQty := 0
	for name, qty := range qtyByName {
		if qty > bestQty || (qty == bestQty && qty > 0 && (best == "" || name < best)) {
			best = name
			bestQty = qty
		}
	}
	return best
}

func productLabel(sku string, products map[string]domain.Product) string {
	if p, ok := products[sku]; ok && p.Name != "" {
		return p.Name
	}
	return sku
}

func categoryLabel(sku string, products map[string]domain.Product) string {
	if p, ok := products[sku]; ok && p.Category != "" {
		return p.Category
	}
	return domain.UncategorizedLabel
}

func nonNegativeCents(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func centsToAmount(cents int64) float64 {
	return round2(float64(cents) / 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
