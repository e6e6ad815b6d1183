// Copyright (c) 2026 Solterra. All rights reserved.
// Author: platform@solterra.group

package access

import "fmt"

// matrix is the authoritative (role, resource) → permission table.
//
// Every role carries an explicit entry for every resource, including empty
// ones, so that access decisions are always deliberate and [Validate] can
// reject an incomplete table at startup. The grants are intentionally spelled
// out verb-by-verb rather than derived from a hierarchy.
var matrix = map[Role]map[Resource]Permission{
	RoleAdmin: {
		ResourceUserManagement: PermFull,
		ResourceSystemSettings: PermFull,
		ResourceAPICredentials: PermFull,
		ResourceDashboards:     PermFull,
		ResourceCRMData:        PermFull,
		ResourceProperties:     PermFull,
		ResourceLeads:          PermFull,
		ResourceBookings:       PermFull,
		ResourceContent:        PermFull,
		ResourceTeamMembers:    PermFull,
		ResourceSuccessStories: PermFull,
	},
	RoleDirector: {
		ResourceUserManagement: PermRead,
		ResourceSystemSettings: PermRead,
		ResourceAPICredentials: PermNone,
		ResourceDashboards:     PermRead,
		ResourceCRMData:        PermFull,
		ResourceProperties:     PermFull,
		ResourceLeads:          PermFull,
		ResourceBookings:       PermFull,
		ResourceContent:        PermFull,
		ResourceTeamMembers:    PermFull,
		ResourceSuccessStories: PermFull,
	},
	RoleDataEditor: {
		ResourceUserManagement: PermNone,
		ResourceSystemSettings: PermNone,
		ResourceAPICredentials: PermNone,
		ResourceDashboards:     PermRead,
		ResourceCRMData:        PermRead,
		ResourceProperties:     PermCreate | PermRead | PermUpdate,
		ResourceLeads:          PermRead,
		ResourceBookings:       PermNone,
		ResourceContent:        PermCreate | PermRead | PermUpdate,
		ResourceTeamMembers:    PermRead,
		ResourceSuccessStories: PermCreate | PermRead | PermUpdate,
	},
	RolePropertySpecialist: {
		ResourceUserManagement: PermNone,
		ResourceSystemSettings: PermNone,
		ResourceAPICredentials: PermNone,
		ResourceDashboards:     PermRead,
		ResourceCRMData:        PermRead,
		ResourceProperties:     PermCreate | PermRead | PermUpdate,
		ResourceLeads:          PermRead,
		ResourceBookings:       PermRead | PermUpdate,
		ResourceContent:        PermRead,
		ResourceTeamMembers:    PermNone,
		ResourceSuccessStories: PermRead,
	},
	RoleSalesSpecialist: {
		ResourceUserManagement: PermNone,
		ResourceSystemSettings: PermNone,
		ResourceAPICredentials: PermNone,
		ResourceDashboards:     PermRead,
		ResourceCRMData:        PermRead | PermUpdate,
		ResourceProperties:     PermRead,
		ResourceLeads:          PermCreate | PermRead | PermUpdate,
		ResourceBookings:       PermCreate | PermRead | PermUpdate,
		ResourceContent:        PermRead,
		ResourceTeamMembers:    PermNone,
		ResourceSuccessStories: PermRead,
	},
}

// Validate checks that the matrix covers every role × resource pair with an
// explicit entry.
//
// It is called once during startup; a gap means a grant was added or renamed
// without updating the table, and the process must not serve traffic.
func Validate() error {
	for _, role := range Roles() {
		grants, ok := matrix[role]
		if !ok {
			return fmt.Errorf("access: role %q has no matrix entry", role)
		}
		for _, resource := range Resources() {
			if _, ok := grants[resource]; !ok {
				return fmt.Errorf("access: role %q has no entry for resource %q", role, resource)
			}
		}
	}
	return nil
}
