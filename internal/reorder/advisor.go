package reorder

import (
	"math"
	"sort"
	"time"

	"apotekku/backend/internal/domain"
)

const (
	DefaultWindowDays   = 30
	DefaultLeadTimeDays = 7.0
	DefaultSafetyFactor = 0.2
	hoursPerDay         = 24.0
)

type Config struct {
	// WindowDays is the trailing sales window used for average daily usage.
	WindowDays int
	// DefaultLeadTimeDays applies when a product has no fulfilled purchase
	// order with a positive placed-to-arrival difference.
	DefaultLeadTimeDays float64
	// SafetyFactor scales usage*leadTime into the safety-stock buffer.
	// Products may override it individually.
	SafetyFactor float64
}

type Advisor struct {
	cfg Config
}

func New(cfg Config) *Advisor {
	if cfg.WindowDays < 1 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.DefaultLeadTimeDays <= 0 {
		cfg.DefaultLeadTimeDays = DefaultLeadTimeDays
	}
	if cfg.SafetyFactor <= 0 {
		cfg.SafetyFactor = DefaultSafetyFactor
	}
	return &Advisor{cfg: cfg}
}

func (a *Advisor) WindowDays() int {
	return a.cfg.WindowDays
}

// SaleLine is one sold transaction item joined to its transaction timestamp.
type SaleLine struct {
	SKU    string
	Qty    int
	SoldAt time.Time
}

// Snapshot is the read-only working set one advisory run operates on. The
// advisor never touches the store itself.
type Snapshot struct {
	Products []domain.Product
	Batches  []domain.ProductBatch
	Orders   []domain.PurchaseOrder
	Sales    []SaleLine
	Now      time.Time
}

// Advise returns every active product whose current stock sits at or below
// its reorder level, most urgent first. A limit below 1 means no truncation.
func (a *Advisor) Advise(snap Snapshot, limit int) []domain.ReorderAdvice {
	now := snap.Now
	if now.IsZero() {
		now = time.Now()
	}

	stockBySKU := a.stockTotals(snap.Batches)
	usageBySKU := a.usageRates(snap.Sales, now)
	leadBySKU := a.leadTimes(snap.Orders)

	advices := make([]domain.ReorderAdvice, 0, len(snap.Products))
	for _, p := range snap.Products {
		if !p.Active {
			continue
		}

		stock := stockBySKU[p.SKU]
		usage := usageBySKU[p.SKU]
		lead, ok := leadBySKU[p.SKU]
		if !ok {
			lead = a.cfg.DefaultLeadTimeDays
		}

		factor := a.cfg.SafetyFactor
		if p.SafetyFactor != nil && *p.SafetyFactor > 0 {
			factor = *p.SafetyFactor
		}

		safety := factor * usage * lead
		level := usage*lead + safety
		suggested := math.Max(level-float64(stock)+safety, 0)

		status := domain.StockStatusOK
		if float64(stock) <= level {
			status = domain.StockStatusLow
		}
		if status != domain.StockStatusLow {
			continue
		}

		advices = append(advices, domain.ReorderAdvice{
			SKU:           p.SKU,
			Name:          p.Name,
			Category:      p.Category,
			CurrentStock:  stock,
			AvgDailyUsage: round2(usage),
			LeadTimeDays:  round2(lead),
			SafetyStock:   int(math.Round(safety)),
			ReorderLevel:  int(math.Round(level)),
			SuggestedQty:  int(math.Round(suggested)),
			Status:        status,
		})
	}

	sort.Slice(advices, func(i, j int) bool {
		if advices[i].SuggestedQty != advices[j].SuggestedQty {
			return advices[i].SuggestedQty > advices[j].SuggestedQty
		}
		return advices[i].Name < advices[j].Name
	})

	if limit > 0 && len(advices) > limit {
		advices = advices[:limit]
	}
	return advices
}

func (a *Advisor) stockTotals(batches []domain.ProductBatch) map[string]int {
	totals := make(map[string]int, len(batches))
	for _, b := range batches {
		if !b.Active {
			continue
		}
		qty := b.QtyAvailable
		if qty < 0 {
			qty = 0
		}
		totals[b.SKU] += qty
	}
	return totals
}

func (a *Advisor) usageRates(sales []SaleLine, now time.Time) map[string]float64 {
	windowStart := now.AddDate(0, 0, -a.cfg.WindowDays)
	sold := make(map[string]int, len(sales))
	for _, line := range sales {
		if line.SoldAt.IsZero() || line.SoldAt.Before(windowStart) || line.SoldAt.After(now) {
			continue
		}
		qty := line.Qty
		if qty < 0 {
			qty = 0
		}
		sold[line.SKU] += qty
	}

	divisor := float64(a.cfg.WindowDays)
	if divisor < 1 {
		divisor = 1
	}
	rates := make(map[string]float64, len(sold))
	for sku, qty := range sold {
		rates[sku] = float64(qty) / divisor
	}
	return rates
}

// leadTimes averages placed-to-arrival spans per SKU. Orders without an
// arrival timestamp, or whose arrival does not fall after placement, carry no
// signal and are skipped.
func (a *Advisor) leadTimes(orders []domain.PurchaseOrder) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, po := range orders {
		if po.ReceivedAt == nil || !po.ReceivedAt.After(po.CreatedAt) {
			continue
		}
		days := po.ReceivedAt.Sub(po.CreatedAt).Hours() / hoursPerDay
		for _, item := range po.Items {
			sums[item.SKU] += days
			counts[item.SKU]++
		}
	}

	means := make(map[string]float64, len(sums))
	for sku, sum := range sums {
		means[sku] = sum / float64(counts[sku])
	}
	return means
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
