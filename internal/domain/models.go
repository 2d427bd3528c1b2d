package domain

import "time"

type Product struct {
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Brand        string   `json:"brand"`
	PriceCents   int64    `json:"price_cents"`
	SafetyFactor *float64 `json:"safety_factor,omitempty"`
	Active       bool     `json:"active"`
}

type ProductCreateRequest struct {
	SKU          string   `json:"sku"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Brand        string   `json:"brand"`
	PriceCents   int64    `json:"price_cents"`
	SafetyFactor *float64 `json:"safety_factor,omitempty"`
}

type ProductUpdateRequest struct {
	Name         *string  `json:"name,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Brand        *string  `json:"brand,omitempty"`
	PriceCents   *int64   `json:"price_cents,omitempty"`
	SafetyFactor *float64 `json:"safety_factor,omitempty"`
	Active       *bool    `json:"active,omitempty"`
}

// ProductBatch is a received lot of a product. A product's sellable stock is
// the sum of QtyAvailable over its active batches.
type ProductBatch struct {
	ID           string     `json:"id"`
	SKU          string     `json:"sku"`
	BatchCode    string     `json:"batch_code"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	QtyReceived  int        `json:"qty_received"`
	QtyAvailable int        `json:"qty_available"`
	CostCents    int64      `json:"cost_cents"`
	SourceType   string     `json:"source_type"`
	SourceID     string     `json:"source_id,omitempty"`
	ReceivedAt   time.Time  `json:"received_at"`
	Active       bool       `json:"active"`
}

type BatchAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type BatchReceiveRequest struct {
	SKU        string `json:"sku"`
	BatchCode  string `json:"batch_code"`
	ExpiryDate string `json:"expiry_date,omitempty"`
	Qty        int    `json:"qty"`
	CostCents  int64  `json:"cost_cents"`
}

type BatchListResponse struct {
	Batches []ProductBatch `json:"batches"`
}

type ExpiryWarning struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	BatchID    string `json:"batch_id"`
	BatchCode  string `json:"batch_code"`
	ExpiryDate string `json:"expiry_date"`
	DaysLeft   int    `json:"days_left"`
	Qty        int    `json:"qty"`
}

type ExpiryWarningResponse struct {
	WithinDays  int             `json:"within_days"`
	GeneratedAt string          `json:"generated_at"`
	Warnings    []ExpiryWarning `json:"warnings"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type PurchaseOrderItem struct {
	SKU       string `json:"sku"`
	Qty       int    `json:"qty"`
	CostCents int64  `json:"cost_cents"`
}

// PurchaseOrder lead time is only computable when ReceivedAt is set and falls
// after CreatedAt.
type PurchaseOrder struct {
	ID         string              `json:"id"`
	SupplierID string              `json:"supplier_id"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
	ReceivedBy string              `json:"received_by,omitempty"`
	Items      []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID string              `json:"supplier_id"`
	Items      []PurchaseOrderItem `json:"items"`
}

type PurchaseOrderReceiveRequest struct {
	ReceivedBy string `json:"received_by"`
}

type PurchaseOrderResponse struct {
	PurchaseOrder PurchaseOrder `json:"purchase_order"`
}

type PurchaseOrderListResponse struct {
	PurchaseOrders []PurchaseOrder `json:"purchase_orders"`
}

type TransactionLine struct {
	SKU            string `json:"sku"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Transaction struct {
	ID              string            `json:"id"`
	CashierUsername string            `json:"cashier_username"`
	PaymentMethod   string            `json:"payment_method"`
	SubtotalCents   int64             `json:"subtotal_cents"`
	VATCents        int64             `json:"vat_cents"`
	TotalCents      int64             `json:"total_cents"`
	Status          string            `json:"status"`
	VoidReason      string            `json:"void_reason,omitempty"`
	VoidedAt        *time.Time        `json:"voided_at,omitempty"`
	OrderedAt       time.Time         `json:"ordered_at"`
	Items           []TransactionLine `json:"items"`
}

type CartItem struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

type CheckoutRequest struct {
	PaymentMethod  string     `json:"payment_method"`
	VATRatePercent float64    `json:"vat_rate_percent"`
	CartItems      []CartItem `json:"cart_items"`
}

type CheckoutResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	SubtotalCents int64  `json:"subtotal_cents"`
	VATCents      int64  `json:"vat_cents"`
	TotalCents    int64  `json:"total_cents"`
	ItemCount     int    `json:"item_count"`
	CreatedAt     string `json:"created_at"`
}

type VoidTransactionRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	ManagerPIN    string `json:"manager_pin"`
}

type VoidTransactionResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	VoidedAt      string `json:"voided_at"`
}

// ReorderAdvice is one under-stocked product together with the numbers that
// led to that conclusion. AvgDailyUsage and LeadTimeDays are rounded to two
// decimals; the remaining quantities are whole units.
type ReorderAdvice struct {
	SKU           string  `json:"sku"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	CurrentStock  int     `json:"current_stock"`
	AvgDailyUsage float64 `json:"avg_daily_usage"`
	LeadTimeDays  float64 `json:"lead_time_days"`
	SafetyStock   int     `json:"safety_stock"`
	ReorderLevel  int     `json:"reorder_level"`
	SuggestedQty  int     `json:"suggested_qty"`
	Status        string  `json:"status"`
}

type ReorderAdviceResponse struct {
	WindowDays  int             `json:"window_days"`
	GeneratedAt string          `json:"generated_at"`
	Suggestions []ReorderAdvice `json:"suggestions"`
}

// SalesBucket is one calendar period instance in a sales report.
type SalesBucket struct {
	Period       string  `json:"period"`
	Start        string  `json:"start"`
	End          string  `json:"end"`
	Transactions int     `json:"transactions"`
	SalesTotal   float64 `json:"sales_total"`
	UnitsSold    int     `json:"units_sold"`
	BestSeller   string  `json:"best_seller,omitempty"`
}

type SalesReportResponse struct {
	PeriodType  string        `json:"period_type"`
	From        string        `json:"from"`
	To          string        `json:"to"`
	GeneratedAt string        `json:"generated_at"`
	Buckets     []SalesBucket `json:"buckets"`
}

// TopItem is one entry of a top-N ranking. Key is a product name or a
// category name depending on the requested grouping.
type TopItem struct {
	Key               string  `json:"key"`
	QuantitySold      int     `json:"quantity_sold"`
	Revenue           float64 `json:"revenue"`
	AvgUnitPrice      float64 `json:"avg_unit_price"`
	Transactions      int     `json:"transactions"`
	PercentageOfSales float64 `json:"percentage_of_sales"`
}

type TopItemsResponse struct {
	Type        string    `json:"type"`
	Limit       int       `json:"limit"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	GeneratedAt string    `json:"generated_at"`
	Items       []TopItem `json:"items"`
}

type DashboardStats struct {
	ActiveProducts    int     `json:"active_products"`
	LowStockCount     int     `json:"low_stock_count"`
	ExpiringSoonCount int     `json:"expiring_soon_count"`
	TodayTransactions int     `json:"today_transactions"`
	TodaySales        float64 `json:"today_sales"`
	GeneratedAt       string  `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type PasswordChangeRequest struct {
	Password string `json:"password"`
}

type UserView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	TxStatusPaid   = "paid"
	TxStatusVoided = "voided"
)

const (
	POStatusPlaced    = "placed"
	POStatusReceived  = "received"
	POStatusCancelled = "cancelled"
)

const (
	StockStatusLow = "LOW STOCK"
	StockStatusOK  = "OK"
)

const (
	RoleAdmin      = "admin"
	RolePharmacist = "pharmacist"
	RoleCashier    = "cashier"
)

const UncategorizedLabel = "Uncategorized"
