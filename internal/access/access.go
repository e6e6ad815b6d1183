// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

/*
Package access defines the static role-based authorization model for the
Solterra platform.

It maps every (Role, Resource) pair to an explicit permission set and exposes
pure, fail-closed lookup functions over that table.

# Architecture

  - The matrix is package-level, read-only state assembled at init time and
    checked for exhaustiveness by [Validate] during startup.
  - Lookups are total functions: unknown roles, unknown resources, and absent
    grants all answer "no permission" instead of returning an error.
  - No locking is required; the table is never mutated after process start.
*/
package access

// # Roles

// Role is the fixed authorization category assigned to a principal.
//
// A principal's role is immutable during a session's lifetime: it is resolved
// once at session issuance and embedded in the session record, never
// re-derived per request.
type Role string

const (
	// Unrestricted platform access, including user and credential management
	RoleAdmin Role = "admin"

	// Firm leadership: full business data access, read-only system visibility
	RoleDirector Role = "director"

	// Maintains the catalogue: properties, content, success stories
	RoleDataEditor Role = "data_editor"

	// Works the property portfolio and viewing bookings
	RolePropertySpecialist Role = "property_specialist"

	// Works leads, bookings, and CRM pipelines
	RoleSalesSpecialist Role = "sales_specialist"
)

// Roles returns every known role in declaration order.
func Roles() []Role {
	return []Role{
		RoleAdmin,
		RoleDirector,
		RoleDataEditor,
		RolePropertySpecialist,
		RoleSalesSpecialist,
	}
}

// Valid reports whether the role is one of the fixed known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDirector, RoleDataEditor, RolePropertySpecialist, RoleSalesSpecialist:
		return true
	}
	return false
}

// # Resources

// Resource is a named protected capability or data domain gated by the matrix.
type Resource string

const (
	ResourceUserManagement Resource = "user_management"
	ResourceSystemSettings Resource = "system_settings"
	ResourceAPICredentials Resource = "api_credentials"
	ResourceDashboards     Resource = "dashboards"
	ResourceCRMData        Resource = "crm_data"
	ResourceProperties     Resource = "properties"
	ResourceLeads          Resource = "leads"
	ResourceBookings       Resource = "bookings"
	ResourceContent        Resource = "content"
	ResourceTeamMembers    Resource = "team_members"
	ResourceSuccessStories Resource = "success_stories"
)

// Resources returns every protected resource in declaration order.
func Resources() []Resource {
	return []Resource{
		ResourceUserManagement,
		ResourceSystemSettings,
		ResourceAPICredentials,
		ResourceDashboards,
		ResourceCRMData,
		ResourceProperties,
		ResourceLeads,
		ResourceBookings,
		ResourceContent,
		ResourceTeamMembers,
		ResourceSuccessStories,
	}
}

// # Permissions

// Permission is a bit set of the create/read/update/delete verbs grantable
// per role per resource.
type Permission uint8

const (
	PermCreate Permission = 1 << iota
	PermRead
	PermUpdate
	PermDelete

	// PermNone is the explicit empty grant.
	PermNone Permission = 0

	// PermFull grants every verb.
	PermFull = PermCreate | PermRead | PermUpdate | PermDelete
)

// Has reports whether every bit of p is present in the set.
func (set Permission) Has(p Permission) bool {
	return p != 0 && set&p == p
}

// Names returns the granted verbs in fixed create/read/update/delete order.
func (set Permission) Names() []string {
	names := make([]string, 0, 4)
	if set.Has(PermCreate) {
		names = append(names, "create")
	}
	if set.Has(PermRead) {
		names = append(names, "read")
	}
	if set.Has(PermUpdate) {
		names = append(names, "update")
	}
	if set.Has(PermDelete) {
		names = append(names, "delete")
	}
	return names
}

// # Lookups

// HasPermission reports whether the role holds the permission on the resource.
//
// It fails closed: an unknown role, an unknown resource, or an absent grant
// all return false. It never panics and never returns an error.
func HasPermission(role Role, resource Resource, permission Permission) bool {
	grants, ok := matrix[role]
	if !ok {
		return false
	}
	return grants[resource].Has(permission)
}

// CanAccess reports whether the role holds at least one permission on the
// resource.
func CanAccess(role Role, resource Resource) bool {
	grants, ok := matrix[role]
	if !ok {
		return false
	}
	return grants[resource] != PermNone
}

// AccessibleResources returns the resources the role can access, in the
// stable declaration order of [Resources].
func AccessibleResources(role Role) []Resource {
	accessible := make([]Resource, 0, len(matrix[role]))
	for _, resource := range Resources() {
		if CanAccess(role, resource) {
			accessible = append(accessible, resource)
		}
	}
	return accessible
}

// Grants returns the raw permission set for a (role, resource) pair.
//
// Like all lookups it fails closed, answering [PermNone] for unknown pairs.
func Grants(role Role, resource Resource) Permission {
	return matrix[role][resource]
}
