package models

// Audit actions.
const (
	AuditActionPasswordChanged = "password_changed"
	AuditActionPasswordReset   = "password_reset"
	AuditActionEmailChanged    = "email_changed"
	AuditActionUserVerified    = "user_verified"
	AuditActionUserDeleted     = "user_deleted"
	AuditActionAdminPromoted   = "admin_promoted"
)

// AuditLog records sensitive account operations. UserID is the actor.
type AuditLog struct {
	Base
	UserID       string `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Action       string `gorm:"size:64;not null" json:"action"`
	ResourceType string `gorm:"size:64;not null" json:"resource_type"`
	ResourceID   string `gorm:"type:varchar(36)" json:"resource_id"`
	IPAddress    string `gorm:"size:64" json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
