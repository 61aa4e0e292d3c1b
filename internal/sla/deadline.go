// Package sla holds the deadline arithmetic and compliance accounting for
// submissions. Everything here is a pure function of its inputs.
package sla

import (
	"time"

	"github.com/spec-kit/service-desk/internal/domain"
	apperrors "github.com/spec-kit/service-desk/pkg/util"
)

// Deadlines derives both SLA due dates from the creation time and the
// category attached at that moment. Categories with non-positive hours are
// a configuration error, never silently defaulted. The two deadlines are
// computed independently: a resolution window shorter than the response
// window is a misconfiguration the escalation scanner tolerates.
func Deadlines(createdAt time.Time, category *domain.Category) (responseDue, resolutionDue time.Time, err error) {
	if category == nil {
		return time.Time{}, time.Time{}, apperrors.NewConfigurationError("category required for SLA deadlines", nil)
	}
	if category.SLAResponseHours <= 0 || category.SLAResolutionHours <= 0 {
		return time.Time{}, time.Time{}, apperrors.NewConfigurationError("category SLA hours must be positive", map[string]any{
			"category_id":          category.ID,
			"sla_response_hours":   category.SLAResponseHours,
			"sla_resolution_hours": category.SLAResolutionHours,
		})
	}
	responseDue = createdAt.Add(time.Duration(category.SLAResponseHours) * time.Hour)
	resolutionDue = createdAt.Add(time.Duration(category.SLAResolutionHours) * time.Hour)
	return responseDue, resolutionDue, nil
}
