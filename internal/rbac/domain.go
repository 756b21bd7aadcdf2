package rbac

import "github.com/ecclesia/ecclesia/internal/shared"

// Policy groups the roles allowed to perform a class of actions.
type Policy struct {
	Name  string
	Roles []string
}

var (
	// DirectoryWriters may mutate members, committees, ministries, pastors,
	// sanctions and transfers.
	DirectoryWriters = Policy{
		Name:  "directory.write",
		Roles: []string{shared.RoleAdmin, shared.RolePastor, shared.RoleSecretary},
	}
	// FinanceWriters may record offerings, tithes, donations and moissons.
	FinanceWriters = Policy{
		Name:  "finance.write",
		Roles: []string{shared.RoleAdmin, shared.RoleTreasurer},
	}
)

// Allows reports whether the principal satisfies the policy. An empty policy
// admits any authenticated principal.
func (p Policy) Allows(principal *shared.Principal) bool {
	if principal == nil {
		return false
	}
	if len(p.Roles) == 0 {
		return true
	}
	return principal.HasRole(p.Roles...)
}
