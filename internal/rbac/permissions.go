package rbac

var leastPrivilege = Permissions{CanViewAll: false, CanManage: false, Priority: PriorityLow}

// Resolve returns the permissions of role. Every role not in the table,
// including RoleUnknown, gets the staff set.
func Resolve(role Role) Permissions {
	switch role {
	case RoleAdmin, RoleManager:
		return Permissions{CanViewAll: true, CanManage: true, Priority: PriorityHigh}
	case RoleStorekeeper:
		return Permissions{CanViewAll: true, CanManage: true, Priority: PriorityMedium}
	case RoleStaff:
		return leastPrivilege
	default:
		return leastPrivilege
	}
}

// ResolveName parses and resolves a role name in one step.
func ResolveName(name string) Permissions {
	return Resolve(ParseRole(name))
}
