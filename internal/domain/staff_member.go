package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent   StaffRole = "AGENT"
	StaffRoleOfficer StaffRole = "OFFICER"
	StaffRoleAdmin   StaffRole = "ADMIN"
)

// StaffMember models an operator who processes submissions. Grade is the
// civil-service style level checked by the approval gate's threshold.
type StaffMember struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         StaffRole
	Grade        int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
