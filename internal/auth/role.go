package auth

import "strings"

// Role is the closed set of account roles carried in tokens.
type Role string

const (
	RoleCliente          Role = "CLIENTE"
	RoleAdmin            Role = "ADMIN"
	RoleGestorInventario Role = "GESTOR_INVENTARIO"
	RoleReponedor        Role = "REPONEDOR"
	RoleDespachador      Role = "DESPACHADOR"
)

var knownRoles = map[Role]struct{}{
	RoleCliente:          {},
	RoleAdmin:            {},
	RoleGestorInventario: {},
	RoleReponedor:        {},
	RoleDespachador:      {},
}

// ParseRole accepts only the enumerated roles, compared exactly.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := knownRoles[r]
	return r, ok
}

func (r Role) Valid() bool {
	_, ok := knownRoles[r]
	return ok
}

// RoleSet is a capability set used for authorization checks.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// AnyRole admits every enumerated role.
func AnyRole() RoleSet {
	return NewRoleSet(RoleCliente, RoleAdmin, RoleGestorInventario, RoleReponedor, RoleDespachador)
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for _, r := range []Role{RoleCliente, RoleAdmin, RoleGestorInventario, RoleReponedor, RoleDespachador} {
		if s.Has(r) {
			names = append(names, string(r))
		}
	}
	return strings.Join(names, ",")
}
