package rbac

import "strings"

// Role is the closed set of back-office roles.
type Role int

const (
	// RoleUnknown is any unrecognised role value. It resolves to least privilege.
	RoleUnknown Role = iota
	RoleAdmin
	RoleManager
	RoleStorekeeper
	RoleStaff
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleManager:
		return "manager"
	case RoleStorekeeper:
		return "storekeeper"
	case RoleStaff:
		return "staff"
	default:
		return "unknown"
	}
}

// ParseRole maps a role name to Role. Unrecognised names yield RoleUnknown.
func ParseRole(name string) Role {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin":
		return RoleAdmin
	case "manager":
		return RoleManager
	case "storekeeper":
		return RoleStorekeeper
	case "staff":
		return RoleStaff
	default:
		return RoleUnknown
	}
}

// Priority ranks how urgently a role should be alerted.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Capability names used by the HTTP middleware.
const (
	CapViewAll = "inventory.view_all"
	CapManage  = "inventory.manage"
)

// Permissions is the capability set derived from a role.
type Permissions struct {
	CanViewAll bool     `json:"can_view_all"`
	CanManage  bool     `json:"can_manage"`
	Priority   Priority `json:"priority"`
}

// Capabilities lists the granted capability names.
func (p Permissions) Capabilities() []string {
	var caps []string
	if p.CanViewAll {
		caps = append(caps, CapViewAll)
	}
	if p.CanManage {
		caps = append(caps, CapManage)
	}
	return caps
}
