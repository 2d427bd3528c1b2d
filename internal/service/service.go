package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"apotekku/backend/internal/cache"
	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/reorder"
	"apotekku/backend/internal/salesagg"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	advisor    *reorder.Advisor
	aggregator *salesagg.Aggregator
	reports    cache.ReportCache
	reportTTL  time.Duration
}

func New(repo store.Repository, advisor *reorder.Advisor, aggregator *salesagg.Aggregator, reports cache.ReportCache, reportTTL time.Duration) *Service {
	if advisor == nil {
		advisor = reorder.New(reorder.Config{})
	}
	if aggregator == nil {
		aggregator = salesagg.New(time.Local)
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if reportTTL <= 0 {
		reportTTL = 30 * time.Second
	}
	return &Service{
		repo:       repo,
		advisor:    advisor,
		aggregator: aggregator,
		reports:    reports,
		reportTTL:  reportTTL,
	}
}

func (s *Service) requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) requireStockAccess(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RolePharmacist {
		return ErrForbidden
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		log.Printf("[service] WARN: audit log write failed for %s %s: %v", action, entityID, err)
	}
}

// ----- products -----

func (s *Service) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (*domain.Product, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	name := strings.TrimSpace(req.Name)
	if sku == "" || name == "" || req.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}
	if req.SafetyFactor != nil && (*req.SafetyFactor <= 0 || *req.SafetyFactor > 1) {
		return nil, store.ErrInvalidInput
	}

	product := domain.Product{
		SKU:          sku,
		Name:         name,
		Category:     strings.TrimSpace(req.Category),
		Brand:        strings.TrimSpace(req.Brand),
		PriceCents:   req.PriceCents,
		SafetyFactor: req.SafetyFactor,
		Active:       true,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "product.create", "product", created.SKU, created.Name)
	return created, nil
}

func (s *Service) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProductBySKU(ctx, sku)
}

func (s *Service) UpdateProduct(ctx context.Context, sku string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}

	sku = strings.ToUpper(strings.TrimSpace(sku))
	existing, err := s.repo.GetProductBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	product := *existing
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Brand != nil {
		product.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.SafetyFactor != nil {
		if *req.SafetyFactor <= 0 || *req.SafetyFactor > 1 {
			return nil, store.ErrInvalidInput
		}
		product.SafetyFactor = req.SafetyFactor
	}
	if req.Active != nil {
		product.Active = *req.Active
	}

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "product.update", "product", sku, "")
	return updated, nil
}

// ----- batches / inventory -----

func (s *Service) ReceiveBatch(ctx context.Context, req domain.BatchReceiveRequest) (*domain.ProductBatch, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" || req.Qty < 1 {
		return nil, store.ErrInvalidInput
	}

	var expiry *time.Time
	if strings.TrimSpace(req.ExpiryDate) != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpiryDate)
		if err != nil {
			return nil, store.ErrInvalidInput
		}
		expiry = &parsed
	}

	batch := domain.ProductBatch{
		SKU:          sku,
		BatchCode:    strings.TrimSpace(req.BatchCode),
		ExpiryDate:   expiry,
		QtyReceived:  req.Qty,
		QtyAvailable: req.Qty,
		CostCents:    req.CostCents,
		SourceType:   "manual",
		ReceivedAt:   time.Now().UTC(),
		Active:       true,
	}
	created, err := s.repo.CreateBatch(ctx, batch)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "batch.receive", "batch", created.ID, fmt.Sprintf("%s qty=%d", sku, req.Qty))
	return created, nil
}

// AdjustBatch corrects one batch's available quantity after a recount or a
// damage write-off. A reason is required so the audit trail stays useful.
func (s *Service) AdjustBatch(ctx context.Context, batchID string, req domain.BatchAdjustRequest) (*domain.ProductBatch, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}

	batchID = strings.TrimSpace(batchID)
	reason := strings.TrimSpace(req.Reason)
	if batchID == "" || req.Delta == 0 || reason == "" {
		return nil, store.ErrInvalidInput
	}

	adjusted, err := s.repo.AdjustBatchQty(ctx, batchID, req.Delta)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "batch.adjust", "batch", batchID, fmt.Sprintf("%s delta=%d reason=%s", adjusted.SKU, req.Delta, reason))
	return adjusted, nil
}

func (s *Service) ListBatches(ctx context.Context, sku string, includeInactive bool) ([]domain.ProductBatch, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, store.ErrInvalidInput
	}
	batches, err := s.repo.ListBatchesBySKU(ctx, sku, includeInactive)
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// ExpiryWarnings reports active batches with remaining stock whose expiry
// date falls within the given number of days, soonest first.
func (s *Service) ExpiryWarnings(ctx context.Context, withinDays int) (domain.ExpiryWarningResponse, error) {
	if withinDays < 1 {
		withinDays = 30
	}

	batches, err := s.repo.ListActiveBatches(ctx)
	if err != nil {
		return domain.ExpiryWarningResponse{}, fmt.Errorf("list batches: %w", err)
	}
	products, err := s.productMap(ctx)
	if err != nil {
		return domain.ExpiryWarningResponse{}, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, withinDays)
	warnings := make([]domain.ExpiryWarning, 0, 16)
	for _, b := range batches {
		if b.ExpiryDate == nil || b.QtyAvailable < 1 {
			continue
		}
		if b.ExpiryDate.After(cutoff) {
			continue
		}
		daysLeft := int(math.Ceil(b.ExpiryDate.Sub(now).Hours() / 24))
		warnings = append(warnings, domain.ExpiryWarning{
			SKU:        b.SKU,
			Name:       productName(b.SKU, products),
			BatchID:    b.ID,
			BatchCode:  b.BatchCode,
			ExpiryDate: b.ExpiryDate.Format("2006-01-02"),
			DaysLeft:   daysLeft,
			Qty:        b.QtyAvailable,
		})
	}
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].DaysLeft != warnings[j].DaysLeft {
			return warnings[i].DaysLeft < warnings[j].DaysLeft
		}
		return warnings[i].BatchID < warnings[j].BatchID
	})

	return domain.ExpiryWarningResponse{
		WithinDays:  withinDays,
		GeneratedAt: now.Format(time.RFC3339),
		Warnings:    warnings,
	}, nil
}

// ----- suppliers -----

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (*domain.Supplier, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}
	supplier := domain.Supplier{
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	}
	created, err := s.repo.CreateSupplier(ctx, supplier)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "supplier.create", "supplier", created.ID, created.Name)
	return created, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	suppliers, err := s.repo.ListSuppliers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return suppliers, nil
}

// ----- purchase orders -----

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (*domain.PurchaseOrder, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.SupplierID) == "" || len(req.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	items := make([]domain.PurchaseOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		sku := strings.ToUpper(strings.TrimSpace(item.SKU))
		if sku == "" || item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		items = append(items, domain.PurchaseOrderItem{SKU: sku, Qty: item.Qty, CostCents: item.CostCents})
	}

	po := domain.PurchaseOrder{
		SupplierID: strings.TrimSpace(req.SupplierID),
		CreatedAt:  time.Now().UTC(),
		Items:      items,
	}
	created, err := s.repo.CreatePurchaseOrder(ctx, po)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "po.create", "purchase_order", created.ID, fmt.Sprintf("%d items", len(items)))
	return created, nil
}

func (s *Service) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetPurchaseOrderByID(ctx, id)
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	orders, err := s.repo.ListPurchaseOrders(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	return orders, nil
}

func (s *Service) ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string) (*domain.PurchaseOrder, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	if strings.TrimSpace(receivedBy) == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			receivedBy = actor.Username
		}
	}

	received, err := s.repo.ReceivePurchaseOrder(ctx, id, receivedBy, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "po.receive", "purchase_order", id, "")
	return received, nil
}

func (s *Service) CancelPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	cancelled, err := s.repo.CancelPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "po.cancel", "purchase_order", id, "")
	return cancelled, nil
}

// ----- transactions -----

func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	items := normalizeCart(req.CartItems)
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if req.VATRatePercent < 0 || req.VATRatePercent > 100 {
		return nil, store.ErrInvalidInput
	}

	skus := make([]string, 0, len(items))
	for _, item := range items {
		skus = append(skus, item.SKU)
	}
	products, err := s.repo.GetProductsBySKUs(ctx, skus)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	lines := make([]domain.TransactionLine, 0, len(items))
	var subtotal int64
	itemCount := 0
	for _, item := range items {
		product, ok := products[item.SKU]
		if !ok || !product.Active {
			return nil, store.ErrInvalidInput
		}
		lineSubtotal := product.PriceCents * int64(item.Qty)
		lines = append(lines, domain.TransactionLine{
			SKU:            item.SKU,
			Qty:            item.Qty,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  lineSubtotal,
		})
		subtotal += lineSubtotal
		itemCount += item.Qty
	}

	vat := int64(math.Round(float64(subtotal) * req.VATRatePercent / 100))
	now := time.Now().UTC()

	if err := s.repo.ConsumeStock(ctx, items, now); err != nil {
		return nil, err
	}

	tx := domain.Transaction{
		ID:              xid.New("tx"),
		CashierUsername: actor.Username,
		PaymentMethod:   defaultString(strings.ToLower(strings.TrimSpace(req.PaymentMethod)), "cash"),
		SubtotalCents:   subtotal,
		VATCents:        vat,
		TotalCents:      subtotal + vat,
		Status:          domain.TxStatusPaid,
		OrderedAt:       now,
		Items:           lines,
	}
	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "checkout", "transaction", created.ID, fmt.Sprintf("total_cents=%d", created.TotalCents))
	return &domain.CheckoutResponse{
		TransactionID: created.ID,
		Status:        created.Status,
		PaymentMethod: created.PaymentMethod,
		SubtotalCents: created.SubtotalCents,
		VATCents:      created.VATCents,
		TotalCents:    created.TotalCents,
		ItemCount:     itemCount,
		CreatedAt:     created.OrderedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.FindTransactionByID(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -1)
	}
	txs, err := s.repo.ListTransactions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *Service) VoidTransaction(ctx context.Context, id string, reason string) (*domain.VoidTransactionResponse, error) {
	if err := s.requireStockAccess(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" || strings.TrimSpace(reason) == "" {
		return nil, store.ErrInvalidInput
	}

	now := time.Now().UTC()
	voided, err := s.repo.VoidTransaction(ctx, id, strings.TrimSpace(reason), now)
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "transaction.void", "transaction", id, reason)
	return &domain.VoidTransactionResponse{
		TransactionID: voided.ID,
		Status:        voided.Status,
		VoidedAt:      now.Format(time.RFC3339),
	}, nil
}

// ----- reports -----

// ReorderSuggestions pulls a snapshot of products, batches, fulfilled
// purchase orders and windowed sales, and runs the reorder advisor over it.
// Any failed bulk read aborts the whole computation.
func (s *Service) ReorderSuggestions(ctx context.Context, limit int) (domain.ReorderAdviceResponse, error) {
	now := time.Now().UTC()

	products, err := s.repo.ListProducts(ctx, true)
	if err != nil {
		return domain.ReorderAdviceResponse{}, fmt.Errorf("list products: %w", err)
	}
	batches, err := s.repo.ListActiveBatches(ctx)
	if err != nil {
		return domain.ReorderAdviceResponse{}, fmt.Errorf("list batches: %w", err)
	}
	orders, err := s.repo.ListFulfilledPurchaseOrders(ctx)
	if err != nil {
		return domain.ReorderAdviceResponse{}, fmt.Errorf("list purchase orders: %w", err)
	}
	windowStart := now.AddDate(0, 0, -s.advisor.WindowDays())
	txs, err := s.repo.ListTransactions(ctx, windowStart, now)
	if err != nil {
		return domain.ReorderAdviceResponse{}, fmt.Errorf("list transactions: %w", err)
	}

	sales := make([]reorder.SaleLine, 0, len(txs)*2)
	for _, tx := range txs {
		if tx.Status == domain.TxStatusVoided {
			continue
		}
		for _, line := range tx.Items {
			sales = append(sales, reorder.SaleLine{SKU: line.SKU, Qty: line.Qty, SoldAt: tx.OrderedAt})
		}
	}

	if limit < 0 {
		limit = 0
	}
	suggestions := s.advisor.Advise(reorder.Snapshot{
		Products: products,
		Batches:  batches,
		Orders:   orders,
		Sales:    sales,
		Now:      now,
	}, limit)

	return domain.ReorderAdviceResponse{
		WindowDays:  s.advisor.WindowDays(),
		GeneratedAt: now.Format(time.RFC3339),
		Suggestions: suggestions,
	}, nil
}

// SalesByPeriod returns one bucket per period instance in the requested
// range. Results are cached briefly keyed by the resolved parameters.
func (s *Service) SalesByPeriod(ctx context.Context, period string, from *time.Time, to *time.Time) (domain.SalesReportResponse, error) {
	period = salesagg.NormalizePeriod(period)
	now := time.Now()
	rangeFrom, rangeTo := s.aggregator.ResolveReportRange(period, from, to, now)

	cacheKey := reportCacheKey("sales", period, rangeFrom, rangeTo)
	var cached domain.SalesReportResponse
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	txs, err := s.repo.ListTransactions(ctx, rangeFrom, rangeTo)
	if err != nil {
		return domain.SalesReportResponse{}, fmt.Errorf("list transactions: %w", err)
	}
	products, err := s.productMap(ctx)
	if err != nil {
		return domain.SalesReportResponse{}, err
	}

	resp := domain.SalesReportResponse{
		PeriodType:  period,
		From:        rangeFrom.Format("2006-01-02"),
		To:          rangeTo.Format("2006-01-02"),
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Buckets:     s.aggregator.PeriodTotals(period, rangeFrom, rangeTo, txs, products),
	}
	s.cacheSet(ctx, cacheKey, resp)
	return resp, nil
}

// TopItems ranks products or categories by revenue over a range derived from
// the period selector. The limit is clamped to 5 or 10.
func (s *Service) TopItems(ctx context.Context, rankType string, limit int, periodType string, from *time.Time, to *time.Time) (domain.TopItemsResponse, error) {
	rankType = salesagg.NormalizeRankType(rankType)
	limit = salesagg.ClampLimit(limit)
	now := time.Now()
	rangeFrom, rangeTo := s.aggregator.ResolveTopRange(periodType, from, to, now)

	cacheKey := reportCacheKey("top", fmt.Sprintf("%s|%d", rankType, limit), rangeFrom, rangeTo)
	var cached domain.TopItemsResponse
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	txs, err := s.repo.ListTransactions(ctx, rangeFrom, rangeTo)
	if err != nil {
		return domain.TopItemsResponse{}, fmt.Errorf("list transactions: %w", err)
	}
	products, err := s.productMap(ctx)
	if err != nil {
		return domain.TopItemsResponse{}, err
	}

	resp := domain.TopItemsResponse{
		Type:        rankType,
		Limit:       limit,
		From:        rangeFrom.Format("2006-01-02"),
		To:          rangeTo.Format("2006-01-02"),
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Items:       s.aggregator.TopItems(rankType, limit, rangeFrom, rangeTo, txs, products),
	}
	s.cacheSet(ctx, cacheKey, resp)
	return resp, nil
}

func (s *Service) DashboardStats(ctx context.Context, expiryDays int) (domain.DashboardStats, error) {
	now := time.Now().UTC()

	products, err := s.repo.ListProducts(ctx, true)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("list products: %w", err)
	}
	reorderResp, err := s.ReorderSuggestions(ctx, 0)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	expiryResp, err := s.ExpiryWarnings(ctx, expiryDays)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	txs, err := s.repo.ListTransactions(ctx, dayStart, now)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("list transactions: %w", err)
	}
	var todayCents int64
	todayCount := 0
	for _, tx := range txs {
		if tx.Status == domain.TxStatusVoided {
			continue
		}
		todayCount++
		if tx.TotalCents > 0 {
			todayCents += tx.TotalCents
		}
	}

	return domain.DashboardStats{
		ActiveProducts:    len(products),
		LowStockCount:     len(reorderResp.Suggestions),
		ExpiringSoonCount: len(expiryResp.Warnings),
		TodayTransactions: todayCount,
		TodaySales:        float64(todayCents) / 100,
		GeneratedAt:       now.Format(time.RFC3339),
	}, nil
}

// ----- audit -----

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if err := s.requireAdmin(ctx); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -7)
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

// ----- helpers -----

func (s *Service) productMap(ctx context.Context) (map[string]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make(map[string]domain.Product, len(products))
	for _, p := range products {
		out[p.SKU] = p
	}
	return out, nil
}

func (s *Service) cacheGet(ctx context.Context, key string, out any) bool {
	payload, ok, err := s.reports.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: report cache read failed: %v", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("[service] WARN: report cache payload corrupt, ignoring: %v", err)
		return false
	}
	return true
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.reports.Set(ctx, key, payload, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed: %v", err)
	}
}

func reportCacheKey(kind string, params string, from time.Time, to time.Time) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s|%s|%d|%d", kind, params, from.Unix(), to.Unix())
	return "report:" + kind + ":" + hex.EncodeToString(h.Sum(nil))
}

func normalizeCart(items []domain.CartItem) []domain.CartItem {
	merged := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		sku := strings.ToUpper(strings.TrimSpace(item.SKU))
		if sku == "" || item.Qty < 1 {
			continue
		}
		if _, seen := merged[sku]; !seen {
			order = append(order, sku)
		}
		merged[sku] += item.Qty
	}
	out := make([]domain.CartItem, 0, len(order))
	for _, sku := range order {
		out = append(out, domain.CartItem{SKU: sku, Qty: merged[sku]})
	}
	return out
}

func productName(sku string, products map[string]domain.Product) string {
	if p, ok := products[sku]; ok && p.Name != "" {
		return p.Name
	}
	return sku
}

func defaultString(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
