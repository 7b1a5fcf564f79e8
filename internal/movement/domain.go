package movement

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// DOCUMENT FAMILY
// ============================================================================

// Family identifies one of the three stock-affecting document kinds.
type Family string

const (
	FamilyImport Family = "IMPORT"
	FamilyExport Family = "EXPORT"
	FamilyCheck  Family = "CHECK"
)

// IsValid checks if the family is known.
func (f Family) IsValid() bool {
	switch f {
	case FamilyImport, FamilyExport, FamilyCheck:
		return true
	default:
		return false
	}
}

// Module names the family in approval and audit logs.
func (f Family) Module() string {
	switch f {
	case FamilyImport:
		return "warehouse.import"
	case FamilyExport:
		return "warehouse.export"
	default:
		return "warehouse.check"
	}
}

// CodePrefix is the prefix handed to the code generator.
func (f Family) CodePrefix() string {
	switch f {
	case FamilyImport:
		return "PN"
	case FamilyExport:
		return "PX"
	default:
		return "KK"
	}
}

// CodeTables maps each code prefix to the table storing its documents.
func CodeTables() map[string]string {
	out := make(map[string]string, 3)
	for _, f := range []Family{FamilyImport, FamilyExport, FamilyCheck} {
		out[f.CodePrefix()] = f.table()
	}
	return out
}

func (f Family) table() string {
	switch f {
	case FamilyImport:
		return "stock_imports"
	case FamilyExport:
		return "stock_exports"
	default:
		return "inventory_checks"
	}
}

// ============================================================================
// HEADER
// ============================================================================

// Header holds the fields shared by every document family.
type Header struct {
	ID               int64      `json:"id" db:"id"`
	Code             string     `json:"code" db:"code"`
	StoreID          int64      `json:"storeId" db:"store_id"`
	Status           Status     `json:"status" db:"status"`
	Note             string     `json:"note" db:"note"`
	Description      string     `json:"description" db:"description"`
	AttachmentImages []string   `json:"attachmentImages" db:"attachment_images"`
	CreatedBy        int64      `json:"createdBy" db:"created_by"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
	ApprovedBy       *int64     `json:"approvedBy" db:"approved_by"`
	ApprovedAt       *time.Time `json:"approvedAt" db:"approved_at"`
	RejectedBy       *int64     `json:"rejectedBy" db:"rejected_by"`
	RejectedAt       *time.Time `json:"rejectedAt" db:"rejected_at"`
	RejectReason     string     `json:"rejectReason,omitempty" db:"reject_reason"`
	CancelledBy      *int64     `json:"cancelledBy,omitempty" db:"cancelled_by"`
	CancelledAt      *time.Time `json:"cancelledAt,omitempty" db:"cancelled_at"`
}

// ============================================================================
// IMPORT
// ============================================================================

// ImportType is the closed set of import sources.
type ImportType string

const (
	ImportTypeSupplier ImportType = "SUPPLIER"
	ImportTypeInternal ImportType = "INTERNAL"
	ImportTypeStaff    ImportType = "STAFF"
)

// IsValid checks if the import type is known.
func (t ImportType) IsValid() bool {
	switch t {
	case ImportTypeSupplier, ImportTypeInternal, ImportTypeStaff:
		return true
	default:
		return false
	}
}

// Import is a goods receipt into a store.
type Import struct {
	Header
	ImportType    ImportType   `json:"importType" db:"import_type"`
	SupplierID    *int64       `json:"supplierId" db:"supplier_id"`
	SourceStoreID *int64       `json:"sourceStoreId" db:"source_store_id"`
	StaffID       *int64       `json:"staffId" db:"staff_id"`
	OrderID       *int64       `json:"orderId" db:"order_id"`
	ImportedBy    *int64       `json:"importedBy" db:"imported_by"`
	ImportedAt    *time.Time   `json:"importedAt" db:"imported_at"`
	Lines         []ImportLine `json:"lines" db:"-"`
}

// ImportLine is one product received.
type ImportLine struct {
	ID              int64           `json:"id" db:"id"`
	ImportID        int64           `json:"importId" db:"import_id"`
	ProductID       int64           `json:"productId" db:"product_id"`
	StoreID         int64           `json:"storeId" db:"store_id"`
	Quantity        int64           `json:"quantity" db:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice" db:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discountPercent" db:"discount_percent"`
	LineOrder       int             `json:"lineOrder" db:"line_order"`
}

// ============================================================================
// EXPORT
// ============================================================================

// ExportTypeOrder is the only export type.
const ExportTypeOrder = "ORDER"

// Export is a goods issue to a customer.
type Export struct {
	Header
	ExportType      string       `json:"exportType" db:"export_type"`
	CustomerID      int64        `json:"customerId" db:"customer_id"`
	CustomerName    string       `json:"customerName,omitempty" db:"customer_name"`
	CustomerPhone   string       `json:"customerPhone,omitempty" db:"customer_phone"`
	CustomerAddress string       `json:"customerAddress,omitempty" db:"customer_address"`
	OrderID         *int64       `json:"orderId" db:"order_id"`
	ExportedBy      *int64       `json:"exportedBy" db:"exported_by"`
	ExportedAt      *time.Time   `json:"exportedAt" db:"exported_at"`
	Lines           []ExportLine `json:"lines" db:"-"`
}

// ExportLine is one product issued.
type ExportLine struct {
	ID              int64           `json:"id" db:"id"`
	ExportID        int64           `json:"exportId" db:"export_id"`
	ProductID       int64           `json:"productId" db:"product_id"`
	StoreID         int64           `json:"storeId" db:"store_id"`
	Quantity        int64           `json:"quantity" db:"quantity"`
	UnitPrice       decimal.Decimal `json:"unitPrice" db:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discountPercent" db:"discount_percent"`
	ImportDetailsID *int64          `json:"importDetailsId,omitempty" db:"import_details_id"`
	LineOrder       int             `json:"lineOrder" db:"line_order"`
}

// ============================================================================
// INVENTORY CHECK
// ============================================================================

// Check is a periodic stock count.
type Check struct {
	Header
	CheckDate   time.Time   `json:"checkDate" db:"check_date"`
	ConfirmedBy *int64      `json:"confirmedBy" db:"confirmed_by"`
	ConfirmedAt *time.Time  `json:"confirmedAt" db:"confirmed_at"`
	Lines       []CheckLine `json:"lines" db:"-"`
}

// CheckLine is one counted product.
type CheckLine struct {
	ID             int64           `json:"id" db:"id"`
	CheckID        int64           `json:"checkId" db:"check_id"`
	ProductID      int64           `json:"productId" db:"product_id"`
	SystemQuantity int64           `json:"systemQuantity" db:"system_quantity"`
	ActualQuantity int64           `json:"actualQuantity" db:"actual_quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Note           string          `json:"note" db:"note"`
	LineOrder      int             `json:"lineOrder" db:"line_order"`
}

// ============================================================================
// REQUEST DTOs
// ============================================================================

// ImportLineInput is one requested import line.
type ImportLineInput struct {
	ProductID       int64           `json:"productId" validate:"required,gt=0"`
	StoreID         int64           `json:"storeId" validate:"omitempty,gt=0"`
	Quantity        int64           `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// ImportInput creates or replaces an import. Code is honoured on create only.
type ImportInput struct {
	Code             string            `json:"code" validate:"omitempty,max=50"`
	StoreID          int64             `json:"storeId" validate:"required,gt=0"`
	ImportType       ImportType        `json:"importType" validate:"required"`
	SupplierID       *int64            `json:"supplierId" validate:"omitempty,gt=0"`
	SourceStoreID    *int64            `json:"sourceStoreId" validate:"omitempty,gt=0"`
	StaffID          *int64            `json:"staffId" validate:"omitempty,gt=0"`
	OrderID          *int64            `json:"orderId" validate:"omitempty,gt=0"`
	Note             string            `json:"note" validate:"max=500"`
	Description      string            `json:"description" validate:"max=2000"`
	AttachmentImages []string          `json:"attachmentImages" validate:"max=20,dive,required,max=1000"`
	Lines            []ImportLineInput `json:"lines" validate:"required,min=1,dive"`
}

// ExportLineInput is one requested export line.
type ExportLineInput struct {
	ProductID       int64           `json:"productId" validate:"required,gt=0"`
	StoreID         int64           `json:"storeId" validate:"omitempty,gt=0"`
	Quantity        int64           `json:"quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	ImportDetailsID *int64          `json:"importDetailsId" validate:"omitempty,gt=0"`
}

// ExportInput creates or replaces an export. Code is honoured on create only.
type ExportInput struct {
	Code             string            `json:"code" validate:"omitempty,max=50"`
	StoreID          int64             `json:"storeId" validate:"required,gt=0"`
	ExportType       string            `json:"exportType"`
	CustomerID       *int64            `json:"customerId" validate:"required,gt=0"`
	CustomerName     string            `json:"customerName" validate:"max=200"`
	CustomerPhone    string            `json:"customerPhone" validate:"max=30"`
	CustomerAddress  string            `json:"customerAddress" validate:"max=500"`
	OrderID          *int64            `json:"orderId" validate:"omitempty,gt=0"`
	Note             string            `json:"note" validate:"max=500"`
	Description      string            `json:"description" validate:"max=2000"`
	AttachmentImages []string          `json:"attachmentImages" validate:"max=20,dive,required,max=1000"`
	Lines            []ExportLineInput `json:"lines" validate:"required,min=1,dive"`
}

// CheckLineInput is one counted product.
type CheckLineInput struct {
	ProductID      int64           `json:"productId" validate:"required,gt=0"`
	SystemQuantity int64           `json:"systemQuantity" validate:"gte=0"`
	ActualQuantity int64           `json:"actualQuantity" validate:"gte=0"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Note           string          `json:"note" validate:"max=500"`
}

// CheckInput creates or replaces an inventory check.
type CheckInput struct {
	Code             string           `json:"code" validate:"omitempty,max=50"`
	StoreID          int64            `json:"storeId" validate:"required,gt=0"`
	CheckDate        string           `json:"checkDate" validate:"required,datetime=2006-01-02"`
	Note             string           `json:"note" validate:"max=500"`
	Description      string           `json:"description" validate:"max=2000"`
	AttachmentImages []string         `json:"attachmentImages" validate:"max=20,dive,required,max=1000"`
	Lines            []CheckLineInput `json:"lines" validate:"required,min=1,dive"`
}

// RejectInput carries the reason for a reject transition.
type RejectInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

// ListFilter narrows list queries. To is exclusive.
type ListFilter struct {
	Status *Status
	Code   string
	From   *time.Time
	To     *time.Time
}
