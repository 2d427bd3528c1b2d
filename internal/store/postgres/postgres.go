package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"apotekku/backend/internal/domain"
	"apotekku/backend/internal/store"
	"apotekku/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `
		SELECT sku, name, category, brand, price_cents, safety_factor, active
		FROM products
	`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY category, name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	product.Active = true
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (sku, name, category, brand, price_cents, safety_factor, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
	`, product.SKU, product.Name, product.Category, product.Brand, product.PriceCents, nullFloat(product.SafetyFactor), product.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT sku, name, category, brand, price_cents, safety_factor, active
		FROM products
		WHERE sku = $1
	`, sku)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.SKU == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, brand = $4, price_cents = $5, safety_factor = $6, active = $7, updated_at = now()
		WHERE sku = $1
	`, product.SKU, product.Name, product.Category, product.Brand, product.PriceCents, nullFloat(product.SafetyFactor), product.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) GetProductsBySKUs(ctx context.Context, skus []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(skus))
	if len(skus) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, name, category, brand, price_cents, safety_factor, active
		FROM products
		WHERE sku = ANY($1)
	`, skus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[product.SKU] = product
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) CreateBatch(ctx context.Context, batch domain.ProductBatch) (*domain.ProductBatch, error) {
	if strings.TrimSpace(batch.SKU) == "" || batch.QtyReceived < 1 {
		return nil, store.ErrInvalidInput
	}
	if batch.ID == "" {
		batch.ID = xid.New("batch")
	}
	batch.SKU = strings.ToUpper(strings.TrimSpace(batch.SKU))
	batch.BatchCode = strings.TrimSpace(batch.BatchCode)
	if batch.BatchCode == "" {
		batch.BatchCode = "MANUAL-" + batch.ID
	}
	if batch.SourceType == "" {
		batch.SourceType = "manual"
	}
	if batch.ReceivedAt.IsZero() {
		batch.ReceivedAt = time.Now().UTC()
	}
	if batch.QtyAvailable < 0 || batch.QtyAvailable > batch.QtyReceived {
		return nil, store.ErrInvalidInput
	}
	if batch.QtyAvailable == 0 {
		batch.QtyAvailable = batch.QtyReceived
	}
	batch.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO product_batches (
			id, sku, batch_code, expiry_date, qty_received, qty_available,
			cost_cents, source_type, source_id, active, received_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
	`, batch.ID, batch.SKU, batch.BatchCode, nullDate(batch.ExpiryDate), batch.QtyReceived, batch.QtyAvailable,
		batch.CostCents, batch.SourceType, nullIfEmpty(batch.SourceID), batch.Active, batch.ReceivedAt)
	if err != nil {
		return nil, err
	}
	created := batch
	return &created, nil
}

func (s *Store) ListBatchesBySKU(ctx context.Context, sku string, includeInactive bool) ([]domain.ProductBatch, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))

	query := `
		SELECT id, sku, batch_code, expiry_date, qty_received, qty_available,
			cost_cents, source_type, source_id, active, received_at
		FROM product_batches
		WHERE sku = $1
	`
	if !includeInactive {
		query += ` AND active = true`
	}
	query += ` ORDER BY expiry_date ASC NULLS LAST, received_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.ProductBatch, 0, 16)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) ListActiveBatches(ctx context.Context) ([]domain.ProductBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, batch_code, expiry_date, qty_received, qty_available,
			cost_cents, source_type, source_id, active, received_at
		FROM product_batches
		WHERE active = true
		ORDER BY sku, expiry_date ASC NULLS LAST, received_at ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.ProductBatch, 0, 256)
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

// AdjustBatchQty applies a signed correction to one batch's available
// quantity. The row is locked so concurrent sales cannot drive it negative.
func (s *Store) AdjustBatchQty(ctx context.Context, batchID string, delta int) (*domain.ProductBatch, error) {
	if strings.TrimSpace(batchID) == "" || delta == 0 {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var qtyAvailable int
	var active bool
	err = tx.QueryRowContext(ctx, `
		SELECT qty_available, active
		FROM product_batches
		WHERE id = $1
		FOR UPDATE
	`, batchID).Scan(&qtyAvailable, &active)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, store.ErrInvalidInput
	}
	if qtyAvailable+delta < 0 {
		return nil, store.ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE product_batches
		SET qty_available = qty_available + $2, updated_at = now()
		WHERE id = $1
	`, batchID, delta)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, sku, batch_code, expiry_date, qty_received, qty_available,
			cost_cents, source_type, source_id, active, received_at
		FROM product_batches
		WHERE id = $1
	`, batchID)
	batch, err := scanBatch(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &batch, nil
}

// ConsumeStock draws the requested quantities from batches in FEFO order
// (earliest expiry first, unexpired only) inside one serializable
// transaction. Either every line is satisfied or nothing is written.
func (s *Store) ConsumeStock(ctx context.Context, items []domain.CartItem, at time.Time) error {
	if len(items) == 0 {
		return store.ErrInvalidInput
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	today := dateOnly(at)
	for _, item := range items {
		if item.Qty < 1 {
			return store.ErrInvalidInput
		}

		rows, err := pgTx.QueryContext(ctx, `
			SELECT id, expiry_date, qty_available
			FROM product_batches
			WHERE sku = $1 AND active = true AND qty_available > 0
			ORDER BY expiry_date ASC NULLS LAST, received_at ASC, id ASC
			FOR UPDATE
		`, item.SKU)
		if err != nil {
			return err
		}

		type batchState struct {
			id        string
			expiry    *time.Time
			available int
		}
		batches := make([]batchState, 0, 8)
		for rows.Next() {
			var state batchState
			var expiry sql.NullTime
			if err := rows.Scan(&state.id, &expiry, &state.available); err != nil {
				_ = rows.Close()
				return err
			}
			if expiry.Valid {
				e := dateOnly(expiry.Time.UTC())
				state.expiry = &e
			}
			batches = append(batches, state)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()

		remaining := item.Qty
		for _, batch := range batches {
			if remaining == 0 {
				break
			}
			if batch.expiry != nil && batch.expiry.Before(today) {
				continue
			}
			used := remaining
			if used > batch.available {
				used = batch.available
			}
			if used < 1 {
				continue
			}
			_, err := pgTx.ExecContext(ctx, `
				UPDATE product_batches
				SET qty_available = qty_available - $1, updated_at = now()
				WHERE id = $2
			`, used, batch.id)
			if err != nil {
				return err
			}
			remaining -= used
		}
		if remaining > 0 {
			return store.ErrInsufficientStock
		}
	}

	return pgTx.Commit()
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, email, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, supplier.ID, supplier.Name, supplier.Phone, nullIfEmpty(supplier.Email), supplier.Active, supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, COALESCE(email,''), active, created_at
		FROM suppliers
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.Email, &supplier.Active, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if strings.TrimSpace(po.SupplierID) == "" || len(po.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if po.ID == "" {
		po.ID = xid.New("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	if po.Status == "" {
		po.Status = domain.POStatusPlaced
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_id, status, created_at, received_at, received_by)
		VALUES ($1,$2,$3,$4,NULL,NULL)
	`, po.ID, po.SupplierID, po.Status, po.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range po.Items {
		if item.SKU == "" || item.Qty < 1 {
			return nil, store.ErrInvalidInput
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, sku, qty, cost_cents)
			VALUES ($1,$2,$3,$4)
		`, po.ID, item.SKU, item.Qty, item.CostCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := po
	return &created, nil
}

func (s *Store) GetPurchaseOrderByID(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	var po domain.PurchaseOrder
	var receivedAt sql.NullTime
	var receivedBy sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, supplier_id, status, created_at, received_at, received_by
		FROM purchase_orders
		WHERE id = $1
	`, purchaseOrderID).Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedAt, &receivedAt, &receivedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	if receivedAt.Valid {
		at := receivedAt.Time.UTC()
		po.ReceivedAt = &at
	}
	if receivedBy.Valid {
		po.ReceivedBy = receivedBy.String
	}

	items, err := s.listPurchaseOrderItems(ctx, po.ID)
	if err != nil {
		return nil, err
	}
	po.Items = items
	return &po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, status string, limit int) ([]domain.PurchaseOrder, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, status, created_at, received_at, received_by
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders, err := scanPurchaseOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		items, err := s.listPurchaseOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Store) ListFulfilledPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, supplier_id, status, created_at, received_at, received_by
		FROM purchase_orders
		WHERE status = $1 AND received_at IS NOT NULL
		ORDER BY created_at ASC
	`, domain.POStatusReceived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders, err := scanPurchaseOrders(rows)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		items, err := s.listPurchaseOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// ReceivePurchaseOrder marks the order received and creates one product batch
// per order line so the stock becomes sellable immediately.
func (s *Store) ReceivePurchaseOrder(ctx context.Context, purchaseOrderID string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE
	`, purchaseOrderID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.POStatusPlaced {
		return nil, store.ErrInvalidInput
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT sku, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY sku
	`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.PurchaseOrderItem, 0, 8)
	for itemRows.Next() {
		var item domain.PurchaseOrderItem
		if err := itemRows.Scan(&item.SKU, &item.Qty, &item.CostCents); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		items = append(items, item)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	_, err = pgTx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2, received_at = $3, received_by = $4
		WHERE id = $1
	`, purchaseOrderID, domain.POStatusReceived, receivedAt, receivedBy)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO product_batches (
				id, sku, batch_code, expiry_date, qty_received, qty_available,
				cost_cents, source_type, source_id, active, received_at, updated_at
			)
			VALUES ($1,$2,$3,NULL,$4,$5,$6,'purchase_order',$7,true,$8,now())
		`, xid.New("batch"), item.SKU, "PO-"+purchaseOrderID, item.Qty, item.Qty, item.CostCents, purchaseOrderID, receivedAt)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetPurchaseOrderByID(ctx, purchaseOrderID)
}

func (s *Store) CancelPurchaseOrder(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2
		WHERE id = $1 AND status = $3
	`, purchaseOrderID, domain.POStatusCancelled, domain.POStatusPlaced)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		existing, lookupErr := s.GetPurchaseOrderByID(ctx, purchaseOrderID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if existing.Status != domain.POStatusPlaced {
			return nil, store.ErrInvalidInput
		}
		return nil, store.ErrNotFound
	}
	return s.GetPurchaseOrderByID(ctx, purchaseOrderID)
}

func (s *Store) listPurchaseOrderItems(ctx context.Context, purchaseOrderID string) ([]domain.PurchaseOrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty, cost_cents
		FROM purchase_order_items
		WHERE purchase_order_id = $1
		ORDER BY sku
	`, purchaseOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.PurchaseOrderItem, 0, 8)
	for rows.Next() {
		var item domain.PurchaseOrderItem
		if err := rows.Scan(&item.SKU, &item.Qty, &item.CostCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	if len(tx.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if tx.ID == "" {
		tx.ID = xid.New("tx")
	}
	if tx.OrderedAt.IsZero() {
		tx.OrderedAt = time.Now().UTC()
	}
	if tx.Status == "" {
		tx.Status = domain.TxStatusPaid
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, cashier_username, payment_method, subtotal_cents, vat_cents,
			total_cents, status, void_reason, voided_at, ordered_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULL,NULL,$8)
	`, tx.ID, tx.CashierUsername, tx.PaymentMethod, tx.SubtotalCents, tx.VATCents, tx.TotalCents, tx.Status, tx.OrderedAt)
	if err != nil {
		return nil, err
	}

	for _, item := range tx.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, sku, qty, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, tx.ID, item.SKU, item.Qty, item.UnitPriceCents, item.SubtotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := tx
	return &created, nil
}

func (s *Store) FindTransactionByID(ctx context.Context, id string) (*domain.Transaction, error) {
	var tx domain.Transaction
	var voidReason sql.NullString
	var voidedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, cashier_username, payment_method, subtotal_cents, vat_cents,
			total_cents, status, void_reason, voided_at, ordered_at
		FROM transactions
		WHERE id = $1
	`, id).Scan(
		&tx.ID,
		&tx.CashierUsername,
		&tx.PaymentMethod,
		&tx.SubtotalCents,
		&tx.VATCents,
		&tx.TotalCents,
		&tx.Status,
		&voidReason,
		&voidedAt,
		&tx.OrderedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if voidReason.Valid {
		tx.VoidReason = voidReason.String
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		tx.VoidedAt = &at
	}
	tx.OrderedAt = tx.OrderedAt.UTC()

	items, err := s.listTransactionItems(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	tx.Items = items

	return &tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, from time.Time, to time.Time) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cashier_username, payment_method, subtotal_cents, vat_cents,
			total_cents, status, void_reason, voided_at, ordered_at
		FROM transactions
		WHERE ordered_at >= $1 AND ordered_at <= $2
		ORDER BY ordered_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txs := make([]domain.Transaction, 0, 256)
	for rows.Next() {
		var tx domain.Transaction
		var voidReason sql.NullString
		var voidedAt sql.NullTime
		if err := rows.Scan(
			&tx.ID,
			&tx.CashierUsername,
			&tx.PaymentMethod,
			&tx.SubtotalCents,
			&tx.VATCents,
			&tx.TotalCents,
			&tx.Status,
			&voidReason,
			&voidedAt,
			&tx.OrderedAt,
		); err != nil {
			return nil, err
		}
		if voidReason.Valid {
			tx.VoidReason = voidReason.String
		}
		if voidedAt.Valid {
			at := voidedAt.Time.UTC()
			tx.VoidedAt = &at
		}
		tx.OrderedAt = tx.OrderedAt.UTC()
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range txs {
		items, err := s.listTransactionItems(ctx, txs[i].ID)
		if err != nil {
			return nil, err
		}
		txs[i].Items = items
	}
	return txs, nil
}

// VoidTransaction flips the status and restocks every sold line into a fresh
// "VOID-" batch so the units become sellable again without touching the
// original batches.
func (s *Store) VoidTransaction(ctx context.Context, id string, reason string, at time.Time) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var status string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status
		FROM transactions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status != domain.TxStatusPaid {
		return nil, store.ErrInvalidInput
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT sku, qty, unit_price_cents
		FROM transaction_items
		WHERE transaction_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	type soldLine struct {
		sku       string
		qty       int
		costCents int64
	}
	lines := make([]soldLine, 0, 8)
	for itemRows.Next() {
		var line soldLine
		if err := itemRows.Scan(&line.sku, &line.qty, &line.costCents); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	_, err = pgTx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, void_reason = $3, voided_at = $4
		WHERE id = $1 AND status = $5
	`, id, domain.TxStatusVoided, reason, at, domain.TxStatusPaid)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		if line.qty < 1 {
			continue
		}
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO product_batches (
				id, sku, batch_code, expiry_date, qty_received, qty_available,
				cost_cents, source_type, source_id, active, received_at, updated_at
			)
			VALUES ($1,$2,$3,NULL,$4,$5,$6,'void',$7,true,$8,now())
		`, xid.New("batch"), line.sku, "VOID-"+id, line.qty, line.qty, line.costCents, id, at)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.FindTransactionByID(ctx, id)
}

func (s *Store) listTransactionItems(ctx context.Context, transactionID string) ([]domain.TransactionLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, qty, unit_price_cents, subtotal_cents
		FROM transaction_items
		WHERE transaction_id = $1
		ORDER BY id ASC
	`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TransactionLine, 0, 8)
	for rows.Next() {
		var item domain.TransactionLine
		if err := rows.Scan(&item.SKU, &item.Qty, &item.UnitPriceCents, &item.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	var safetyFactor sql.NullFloat64
	err := row.Scan(&product.SKU, &product.Name, &product.Category, &product.Brand, &product.PriceCents, &safetyFactor, &product.Active)
	if err != nil {
		return domain.Product{}, err
	}
	if safetyFactor.Valid {
		f := safetyFactor.Float64
		product.SafetyFactor = &f
	}
	return product, nil
}

func scanBatch(row rowScanner) (domain.ProductBatch, error) {
	var batch domain.ProductBatch
	var expiry sql.NullTime
	var sourceID sql.NullString
	err := row.Scan(&batch.ID, &batch.SKU, &batch.BatchCode, &expiry, &batch.QtyReceived, &batch.QtyAvailable,
		&batch.CostCents, &batch.SourceType, &sourceID, &batch.Active, &batch.ReceivedAt)
	if err != nil {
		return domain.ProductBatch{}, err
	}
	batch.ReceivedAt = batch.ReceivedAt.UTC()
	if expiry.Valid {
		e := dateOnly(expiry.Time.UTC())
		batch.ExpiryDate = &e
	}
	if sourceID.Valid {
		batch.SourceID = sourceID.String
	}
	return batch, nil
}

func scanPurchaseOrders(rows *sql.Rows) ([]domain.PurchaseOrder, error) {
	orders := make([]domain.PurchaseOrder, 0, 32)
	for rows.Next() {
		var po domain.PurchaseOrder
		var receivedAt sql.NullTime
		var receivedBy sql.NullString
		if err := rows.Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedAt, &receivedAt, &receivedBy); err != nil {
			return nil, err
		}
		po.CreatedAt = po.CreatedAt.UTC()
		if receivedAt.Valid {
			at := receivedAt.Time.UTC()
			po.ReceivedAt = &at
		}
		if receivedBy.Valid {
			po.ReceivedBy = receivedBy.String
		}
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
