package rbac

import "slices"

// 公司内角色
const (
	CompanyRoleOwner  = "owner"
	CompanyRoleAdmin  = "admin"
	CompanyRoleMember = "member"
)

// 平台角色（admin invite 时写入 user metadata）
const (
	PlatformRoleBuyer  = "buyer"
	PlatformRoleSeller = "seller"
	PlatformRoleAdmin  = "admin"
)

// Permissions checked by the company endpoints.
const (
	PermissionInviteMember = "company:invite"
	PermissionViewCompany  = "company:view"
)

var companyRolePermissions = map[string][]string{
	CompanyRoleOwner:  {PermissionInviteMember, PermissionViewCompany},
	CompanyRoleAdmin:  {PermissionInviteMember, PermissionViewCompany},
	CompanyRoleMember: {PermissionViewCompany},
}

var platformRoles = []string{PlatformRoleBuyer, PlatformRoleSeller, PlatformRoleAdmin}

// IsInvitableCompanyRole reports whether role may be granted through an invite.
// Ownership is only ever assigned to the company creator.
func IsInvitableCompanyRole(role string) bool {
	return role == CompanyRoleAdmin || role == CompanyRoleMember
}

func IsPlatformRole(role string) bool {
	return slices.Contains(platformRoles, role)
}

// HasPermission reports whether a company role grants permission. An empty role
// (accounts created before company_role was written to app_metadata) is allowed.
func HasPermission(role, permission string) bool {
	if role == "" {
		return true
	}
	return slices.Contains(companyRolePermissions[role], permission)
}

func CheckPermission(role, permission string) error {
	if !HasPermission(role, permission) {
		return &PermissionDeniedError{Role: role, Permission: permission}
	}
	return nil
}

type PermissionDeniedError struct {
	Role       string
	Permission string
}

func (e *PermissionDeniedError) Error() string {
	return "insufficient permissions"
}
