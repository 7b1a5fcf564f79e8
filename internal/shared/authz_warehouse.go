package shared

// Warehouse movement permissions declared for RBAC.
const (
	// Import permissions
	PermImportView    = "warehouse.import.view"
	PermImportCreate  = "warehouse.import.create"
	PermImportUpdate  = "warehouse.import.update"
	PermImportApprove = "warehouse.import.approve"
	PermImportConfirm = "warehouse.import.confirm"
	PermImportReject  = "warehouse.import.reject"
	PermImportCancel  = "warehouse.import.cancel"

	// Export permissions
	PermExportView    = "warehouse.export.view"
	PermExportCreate  = "warehouse.export.create"
	PermExportUpdate  = "warehouse.export.update"
	PermExportApprove = "warehouse.export.approve"
	PermExportConfirm = "warehouse.export.confirm"
	PermExportReject  = "warehouse.export.reject"
	PermExportCancel  = "warehouse.export.cancel"

	// Inventory check permissions
	PermCheckView    = "warehouse.check.view"
	PermCheckCreate  = "warehouse.check.create"
	PermCheckUpdate  = "warehouse.check.update"
	PermCheckApprove = "warehouse.check.approve"
	PermCheckConfirm = "warehouse.check.confirm"
	PermCheckReject  = "warehouse.check.reject"
	PermCheckDelete  = "warehouse.check.delete"
)

// WarehouseScopes lists all permissions related to warehouse movements.
func WarehouseScopes() []string {
	return []string{
		PermImportView, PermImportCreate, PermImportUpdate, PermImportApprove,
		PermImportConfirm, PermImportReject, PermImportCancel,
		PermExportView, PermExportCreate, PermExportUpdate, PermExportApprove,
		PermExportConfirm, PermExportReject, PermExportCancel,
		PermCheckView, PermCheckCreate, PermCheckUpdate, PermCheckApprove,
		PermCheckConfirm, PermCheckReject, PermCheckDelete,
	}
}
