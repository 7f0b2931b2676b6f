package core

import "flowcore/pkg/domain"

// StaticAuthorizer grants capabilities from a fixed role table. It is the
// default policy wired by the daemon; tests that don't care about authorization
// use AllowAll.
type StaticAuthorizer struct {
	grants map[domain.Role]map[domain.Capability]bool
}

// NewStaticAuthorizer returns the default role policy: admins can do
// everything, librarians manage the catalog and lend, members borrow,
// customers order, staff review and assign deliveries, students apply.
func NewStaticAuthorizer() *StaticAuthorizer {
	a := &StaticAuthorizer{grants: map[domain.Role]map[domain.Capability]bool{}}
	a.Grant(domain.RoleAdmin,
		domain.CapCatalogWrite, domain.CapBorrow, domain.CapOrder,
		domain.CapAssignDelivery, domain.CapReview, domain.CapApply)
	a.Grant(domain.RoleLibrarian, domain.CapCatalogWrite, domain.CapBorrow)
	a.Grant(domain.RoleMember, domain.CapBorrow)
	a.Grant(domain.RoleCustomer, domain.CapOrder)
	a.Grant(domain.RoleStaff, domain.CapAssignDelivery, domain.CapReview)
	a.Grant(domain.RoleStudent, domain.CapApply)
	return a
}

// Grant adds capabilities to a role.
func (a *StaticAuthorizer) Grant(role domain.Role, caps ...domain.Capability) {
	set := a.grants[role]
	if set == nil {
		set = map[domain.Capability]bool{}
		a.grants[role] = set
	}
	for _, c := range caps {
		set[c] = true
	}
}

// Allow implements domain.Authorizer.
func (a *StaticAuthorizer) Allow(actor domain.Actor, capability domain.Capability) bool {
	return a.grants[actor.Role][capability]
}

// AllowAll authorizes every actor for every capability.
type AllowAll struct{}

// Allow implements domain.Authorizer.
func (AllowAll) Allow(domain.Actor, domain.Capability) bool { return true }
