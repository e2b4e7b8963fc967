package user

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleAdmin:
		return true
	}
	return false
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.IsValid()
}
