package permission

// Default role names seeded on a fresh install.
const (
	RoleSuperAdmin  = "superAdmin"
	RoleAdmin       = "admin"
	RoleRootPartner = "rootPartner"
	RolePartner     = "partner"
	RoleYouth       = "youth"
	RoleUpYouth     = "upYouth"
)

var partitionDescriptions = map[Partition]string{
	PartitionAdmin:        "admin users",
	PartitionPartner:      "partner users",
	PartitionYouth:        "youth users",
	PartitionOrganisation: "organisations",
}

// DefaultPermissions returns the seed permission catalog. IDs are left empty
// for the store to assign.
func DefaultPermissions() []Permission {
	perms := []Permission{{
		Name:        ActAndDeactUser,
		Read:        true,
		Write:       true,
		Description: "activate and deactivate users",
	}}
	for _, p := range Partitions {
		perms = append(perms,
			Permission{Name: Name(Read, p), Read: true, Description: "read " + partitionDescriptions[p]},
			Permission{Name: Name(Write, p), Read: true, Write: true, Description: "read and write " + partitionDescriptions[p]},
		)
	}
	return perms
}

// DefaultRoles returns the seed roles. Permissions hold permission names; a
// store translates them to its own references when seeding.
func DefaultRoles() []Role {
	return []Role{
		{
			Name:          RoleSuperAdmin,
			RoleType:      "admin",
			Permissions:   []string{ActAndDeactUser, "rwAdmin", "rwPartner", "rwYouth", "rwOrganisation"},
			SystemDefault: true,
			IsSuperuser:   true,
		},
		{
			Name:          RoleAdmin,
			RoleType:      "admin",
			Permissions:   []string{"rAdmin", "rwPartner", "rwYouth", "rwOrganisation"},
			SystemDefault: true,
		},
		{
			Name:          RoleRootPartner,
			RoleType:      "partner",
			Permissions:   []string{"rwPartner", "rYouth", "rOrganisation"},
			SystemDefault: true,
		},
		{
			Name:          RolePartner,
			RoleType:      "partner",
			Permissions:   []string{"rPartner", "rYouth", "rOrganisation"},
			SystemDefault: true,
		},
		{
			Name:          RoleYouth,
			RoleType:      "youth",
			Permissions:   []string{"rPartner", "rYouth", "rOrganisation"},
			SystemDefault: true,
		},
		{
			Name:          RoleUpYouth,
			RoleType:      "youth",
			Permissions:   []string{"rPartner", "rYouth", "rOrganisation"},
			SystemDefault: true,
		},
	}
}
