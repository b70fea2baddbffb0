package services

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"

	"tarotjournal/internal/logger"
	"tarotjournal/internal/models"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates an AuditServicer writing to the audit_logs table.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an account event. Failures are logged and swallowed so the
// request that triggered the event still succeeds.
func (s *auditService) Log(actorID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	log := logger.Named("audit")

	err := s.db.Create(&models.AuditLog{
		UserID:       actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(changes),
	}).Error
	if err != nil {
		log.Errorw("failed to write audit entry",
			"error", err,
			"actor", actorID,
			"action", action,
			"target", resourceID,
		)
	}
}

// encodeChanges serializes the change set with secret-looking keys blanked.
func encodeChanges(changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}

	clean := make(map[string]any, len(changes))
	for k, v := range changes {
		lower := strings.ToLower(k)
		if strings.Contains(lower, "password") || strings.Contains(lower, "token") {
			v = "[redacted]"
		}
		clean[k] = v
	}

	data, err := json.Marshal(clean)
	if err != nil {
		logger.Named("audit").Warnw("unencodable audit changes", "error", err)
		return "{}"
	}
	return string(data)
}
