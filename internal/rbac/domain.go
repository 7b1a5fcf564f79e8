package rbac

// PermissionSet describes what the current actor may do in the warehouse.
type PermissionSet struct {
	UserID  int64    `json:"userId"`
	Granted []string `json:"granted"`
	Known   []string `json:"known"`
}
