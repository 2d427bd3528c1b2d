package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type Store struct {
	mu               sync.RWMutex
	products         map[string]domain.Product
	batchesBySKU     map[string][]domain.ProductBatch
	suppliersByID    map[string]domain.Supplier
	purchaseOrders   map[string]domain.PurchaseOrder
	transactionsByID map[string]*domain.Transaction
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_PHARMACIST_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	pharmacistPwd := envOr("SEED_PHARMACIST_PASSWORD", "apoteker123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_PHARMACIST_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_PHARMACIST_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"apoteker", pharmacistPwd, domain.RolePharmacist},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		products:         make(map[string]domain.Product),
		batchesBySKU:     make(map[string][]domain.ProductBatch),
		suppliersByID:    make(map[string]domain.Supplier),
		purchaseOrders:   make(map[string]domain.PurchaseOrder),
		transactionsByID: make(map[string]*domain.Transaction),
		usersByUsername:  seedUsers(),
	}
}

func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{SKU: "PARA-500", Name: "Paracetamol 500mg", Category: "Analgesic", Brand: "Generik", PriceCents: 1500, Active: true},
		{SKU: "AMOX-500", Name: "Amoxicillin 500mg", Category: "Antibiotic", Brand: "Generik", PriceCents: 2800, Active: true},
		{SKU: "IBU-400", Name: "Ibuprofen 400mg", Category: "Analgesic", Brand: "Generik", PriceCents: 2100, Active: true},
		{SKU: "CET-10", Name: "Cetirizine 10mg", Category: "Antihistamine", Brand: "Generik", PriceCents: 1800, Active: true},
		{SKU: "OME-20", Name: "Omeprazole 20mg", Category: "Antacid", Brand: "Generik", PriceCents: 3200, Active: true},
		{SKU: "VIT-C-500", Name: "Vitamin C 500mg", Category: "Supplement", Brand: "Hevit", PriceCents: 1200, Active: true},
		{SKU: "ORS-200", Name: "Oralit 200ml", Category: "Rehydration", Brand: "Pharos", PriceCents: 900, Active: true},
		{SKU: "BET-CRM", Name: "Betamethasone Cream", Category: "Dermatology", Brand: "Kimia", PriceCents: 5400, Active: true},
	}
	for _, p := range products {
		s.products[p.SKU] = p
	}

	expNear := now.AddDate(0, 0, 25)
	expFar := now.AddDate(1, 0, 0)
	batches := []domain.ProductBatch{
		{ID: xid.New("batch"), SKU: "PARA-500", BatchCode: "PR2506A", ExpiryDate: &expFar, QtyReceived: 200, QtyAvailable: 140, CostCents: 900, SourceType: "seed", ReceivedAt: now.AddDate(0, -1, 0), Active: true},
		{ID: xid.New("batch"), SKU: "PARA-500", BatchCode: "PR2503B", ExpiryDate: &expNear, QtyReceived: 100, QtyAvailable: 30, CostCents: 850, SourceType: "seed", ReceivedAt: now.AddDate(0, -3, 0), Active: true},
		{ID: xid.New("batch"), SKU: "AMOX-500", BatchCode: "AM2504A", ExpiryDate: &expFar, QtyReceived: 150, QtyAvailable: 60, CostCents: 1700, SourceType: "seed", ReceivedAt: now.AddDate(0, -2, 0), Active: true},
		{ID: xid.New("batch"), SKU: "IBU-400", BatchCode: "IB2505A", ExpiryDate: &expFar, QtyReceived: 120, QtyAvailable: 90, CostCents: 1300, SourceType: "seed", ReceivedAt: now.AddDate(0, -1, 0), Active: true},
		{ID: xid.New("batch"), SKU: "CET-10", BatchCode: "CT2505A", ExpiryDate: &expNear, QtyReceived: 80, QtyAvailable: 12, CostCents: 1000, SourceType: "seed", ReceivedAt: now.AddDate(0, -2, 0), Active: true},
		{ID: xid.New("batch"), SKU: "VIT-C-500", BatchCode: "VC2507A", ExpiryDate: &expFar, QtyReceived: 300, QtyAvailable: 250, CostCents: 600, SourceType: "seed", ReceivedAt: now.AddDate(0, 0, -10), Active: true},
	}
	for _, b := range batches {
		s.batchesBySKU[b.SKU] = append(s.batchesBySKU[b.SKU], b)
	}
	for sku := range s.batchesBySKU {
		slices.SortFunc(s.batchesBySKU[sku], compareBatchFEFO)
	}

	supplier := domain.Supplier{
		ID:        xid.New("sup"),
		Name:      "PT Kimia Sejahtera",
		Phone:     "+62-21-555-0101",
		Active:    true,
		CreatedAt: now,
	}
	s.suppliersByID[supplier.ID] = supplier

	placed := now.AddDate(0, 0, -12)
	arrived := placed.AddDate(0, 0, 5)
	po := domain.PurchaseOrder{
		ID:         xid.New("po"),
		SupplierID: supplier.ID,
		Status:     domain.POStatusReceived,
		CreatedAt:  placed,
		ReceivedAt: &arrived,
		ReceivedBy: "admin",
		Items: []domain.PurchaseOrderItem{
			{SKU: "PARA-500", Qty: 200, CostCents: 900},
			{SKU: "AMOX-500", Qty: 150, CostCents: 1700},
		},
	}
	s.purchaseOrders[po.ID] = po

	return s
}

func (s *Store) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int {
		if c := cmpString(a.Category, b.Category); c != 0 {
			return c
		}
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.SKU]; exists {
		return nil, store.ErrInvalidInput
	}
	product.Active = true
	s.products[product.SKU] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(_ context.Context, sku string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[sku]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := p
	return &found, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[product.SKU]; !ok {
		return nil, store.ErrNotFound
	}
	s.products[product.SKU] = product
	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(_ context.Context, skus []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Product, len(skus))
	for _, sku := range skus {
		if p, ok := s.products[sku]; ok {
			out[sku] = p
		}
	}
	return out, nil
}

func (s *Store) CreateBatch(_ context.Context, batch domain.ProductBatch) (*domain.ProductBatch, error) {
	if batch.SKU == "" || batch.QtyReceived < 1 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[batch.SKU]; !ok {
		return nil, store.ErrNotFound
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	if batch.QtyAvailable == 0 {
		batch.QtyAvailable = batch.QtyReceived
	}
	batch.Active = true

	s.batchesBySKU[batch.SKU] = append(s.batchesBySKU[batch.SKU], batch)
	slices.SortFunc(s.batchesBySKU[batch.SKU], compareBatchFEFO)

	created := cloneBatch(batch)
	return &created, nil
}

func (s *Store) ListBatchesBySKU(_ context.Context, sku string, includeInactive bool) ([]domain.ProductBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.products[sku]; !ok {
		return nil, store.ErrNotFound
	}
	batches := s.batchesBySKU[sku]
	out := make([]domain.ProductBatch, 0, len(batches))
	for _, b := range batches {
		if !includeInactive && !b.Active {
			continue
		}
		out = append(out, cloneBatch(b))
	}
	return out, nil
}

func (s *Store) ListActiveBatches(_ context.Context) ([]domain.ProductBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ProductBatch, 0, 64)
	for _, batches := range s.batchesBySKU {
		for _, b := range batches {
			if !b.Active {
				continue
			}
			out = append(out, cloneBatch(b))
		}
	}
	slices.SortFunc(out, func(a, b domain.ProductBatch) int {
		if c := cmpString(a.SKU, b.SKU); c != 0 {
			return c
		}
		return compareBatchFEFO(a, b)
	})
	return out, nil
}

// AdjustBatchQty applies a signed correction to a single batch, for damaged
// or miscounted stock. The available quantity never goes below zero.
func (s *Store) AdjustBatchQty(_ context.Context, batchID string, delta int) (*domain.ProductBatch, error) {
	if batchID == "" || delta == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for sku, batches := range s.batchesBySKU {
		for i := range batches {
			if batches[i].ID != batchID {
				continue
			}
			if !batches[i].Active {
				return nil, store.ErrInvalidInput
			}
			next := batches[i].QtyAvailable + delta
			if next < 0 {
				return nil, store.ErrInsufficientStock
			}
			batches[i].QtyAvailable = next
			s.batchesBySKU[sku] = batches
			adjusted := cloneBatch(batches[i])
			return &adjusted, nil
		}
	}
	return nil, store.ErrNotFound
}

// ConsumeStock decrements batch quantities first-expired-first-out across a
// whole cart, or fails without touching anything.
func (s *Store) ConsumeStock(_ context.Context, items []domain.CartItem, _ time.Time) error {
	if len(items) == 0 {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	need := make(map[string]int, len(items))
	for _, item := range items {
		if item.SKU == "" || item.Qty < 1 {
			return store.ErrInvalidInput
		}
		need[item.SKU] += item.Qty
	}

	for sku, qty := range need {
		available := 0
		for _, b := range s.batchesBySKU[sku] {
			if b.Active {
				available += b.QtyAvailable
			}
		}
		if available < qty {
			return store.ErrInsufficientStock
		}
	}

	for sku, qty := range need {
		batches := s.batchesBySKU[sku]
		slices.SortFunc(batches, compareBatchFEFO)
		remaining := qty
		for i := range batches {
			if remaining == 0 {
				break
			}
			if !batches[i].Active || batches[i].QtyAvailable <= 0 {
				continue
			}
			take := batches[i].QtyAvailable
			if take > remaining {
				take = remaining
			}
			batches[i].QtyAvailable -= take
			remaining -= take
		}
		s.batchesBySKU[sku] = batches
	}
	return nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.Active = true
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, sup := range s.suppliersByID {
		out = append(out, sup)
	}
	slices.SortFunc(out, func(a, b domain.Supplier) int {
		return cmpString(a.Name, b.Name)
	})
	return out, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if po.SupplierID == "" || len(po.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliersByID[po.SupplierID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, item := range po.Items {
		if item.SKU == "" || item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		if _, ok := s.products[item.SKU]; !ok {
			return nil, store.ErrNotFound
		}
	}

	if po.ID == "" {
		po.ID = xid.New("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	po.Status = domain.POStatusPlaced
	po.ReceivedAt = nil
	po.ReceivedBy = ""
	s.purchaseOrders[po.ID] = clonePurchaseOrder(po)

	created := clonePurchaseOrder(po)
	return &created, nil
}

func (s *Store) GetPurchaseOrderByID(_ context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.purchaseOrders[purchaseOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := clonePurchaseOrder(po)
	return &found, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		if status != "" && po.Status != status {
			continue
		}
		out = append(out, clonePurchaseOrder(po))
	}
	slices.SortFunc(out, func(a, b domain.PurchaseOrder) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) ListFulfilledPurchaseOrders(_ context.Context) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		if po.ReceivedAt == nil {
			continue
		}
		out = append(out, clonePurchaseOrder(po))
	}
	slices.SortFunc(out, func(a, b domain.PurchaseOrder) int {
		return cmpString(a.ID, b.ID)
	})
	return out, nil
}

// ReceivePurchaseOrder marks the order received and books one batch per order
// line so the received stock becomes sellable.
func (s *Store) ReceivePurchaseOrder(_ context.Context, purchaseOrderID string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrders[purchaseOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if po.Status != domain.POStatusPlaced {
		return nil, store.ErrInvalidInput
	}

	po.Status = domain.POStatusReceived
	at := receivedAt
	po.ReceivedAt = &at
	po.ReceivedBy = receivedBy

	for _, item := range po.Items {
		batch := domain.ProductBatch{
			ID:           xid.New("batch"),
			SKU:          item.SKU,
			BatchCode:    "PO-" + purchaseOrderID,
			QtyReceived:  item.Qty,
			QtyAvailable: item.Qty,
			CostCents:    item.CostCents,
			SourceType:   "purchase_order",
			SourceID:     purchaseOrderID,
			ReceivedAt:   receivedAt,
			Active:       true,
		}
		s.batchesBySKU[item.SKU] = append(s.batchesBySKU[item.SKU], batch)
		slices.SortFunc(s.batchesBySKU[item.SKU], compareBatchFEFO)
	}

	s.purchaseOrders[purchaseOrderID] = clonePurchaseOrder(po)
	received := clonePurchaseOrder(po)
	return &received, nil
}

func (s *Store) CancelPurchaseOrder(_ context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrders[purchaseOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if po.Status != domain.POStatusPlaced {
		return nil, store.ErrInvalidInput
	}
	po.Status = domain.POStatusCancelled
	s.purchaseOrders[purchaseOrderID] = clonePurchaseOrder(po)
	cancelled := clonePurchaseOrder(po)
	return &cancelled, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.OrderedAt.IsZero() {
		tx.OrderedAt = time.Now().UTC()
	}
	if tx.Status == "" {
		tx.Status = domain.TxStatusPaid
	}
	stored := cloneTransaction(&tx)
	s.transactionsByID[tx.ID] = stored

	return cloneTransaction(stored), nil
}

func (s *Store) FindTransactionByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, 0, len(s.transactionsByID))
	for _, tx := range s.transactionsByID {
		if tx.OrderedAt.Before(from) || tx.OrderedAt.After(to) {
			continue
		}
		out = append(out, *cloneTransaction(tx))
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int {
		if a.OrderedAt.Before(b.OrderedAt) {
			return -1
		}
		if a.OrderedAt.After(b.OrderedAt) {
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) VoidTransaction(_ context.Context, id string, reason string, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactionsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if tx.Status == domain.TxStatusVoided {
		return nil, store.ErrInvalidInput
	}

	tx.Status = domain.TxStatusVoided
	tx.VoidReason = reason
	voidedAt := at
	tx.VoidedAt = &voidedAt

	// Voiding puts the goods back on the shelf as a restock batch.
	for _, line := range tx.Items {
		if line.Qty < 1 {
			continue
		}
		batch := domain.ProductBatch{
			ID:           xid.New("batch"),
			SKU:          line.SKU,
			BatchCode:    "VOID-" + id,
			QtyReceived:  line.Qty,
			QtyAvailable: line.Qty,
			SourceType:   "void_restock",
			SourceID:     id,
			ReceivedAt:   at,
			Active:       true,
		}
		s.batchesBySKU[line.SKU] = append(s.batchesBySKU[line.SKU], batch)
		slices.SortFunc(s.batchesBySKU[line.SKU], compareBatchFEFO)
	}

	return cloneTransaction(tx), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, len(s.auditLogs))
	for _, entry := range s.auditLogs {
		if entry.CreatedAt.Before(from) || entry.CreatedAt.After(to) {
			continue
		}
		out = append(out, entry)
	}
	slices.SortFunc(out, func(a, b domain.AuditLog) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return cmpString(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	if username == "" || password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.usersByUsername[username] = u
	return nil
}

// compareBatchFEFO orders batches first-expired-first-out: earliest expiry
// first, nil expiry last, then oldest receipt, then ID for stability.
func compareBatchFEFO(a domain.ProductBatch, b domain.ProductBatch) int {
	switch {
	case a.ExpiryDate == nil && b.ExpiryDate != nil:
		return 1
	case a.ExpiryDate != nil && b.ExpiryDate == nil:
		return -1
	case a.ExpiryDate != nil && b.ExpiryDate != nil:
		if a.ExpiryDate.Before(*b.ExpiryDate) {
			return -1
		}
		if a.ExpiryDate.After(*b.ExpiryDate) {
			return 1
		}
	}
	if a.ReceivedAt.Before(b.ReceivedAt) {
		return -1
	}
	if a.ReceivedAt.After(b.ReceivedAt) {
		return 1
	}
	return cmpString(a.ID, b.ID)
}

func cmpString(a string, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func cloneBatch(src domain.ProductBatch) domain.ProductBatch {
	out := src
	if src.ExpiryDate != nil {
		exp := *src.ExpiryDate
		out.ExpiryDate = &exp
	}
	return out
}

func clonePurchaseOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	out := src
	out.Items = append([]domain.PurchaseOrderItem(nil), src.Items...)
	if src.ReceivedAt != nil {
		at := *src.ReceivedAt
		out.ReceivedAt = &at
	}
	return out
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	out := *src
	out.Items = append([]domain.TransactionLine(nil), src.Items...)
	if src.VoidedAt != nil {
		at := *src.VoidedAt
		out.VoidedAt = &at
	}
	return &out
}
