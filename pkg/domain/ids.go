// Package domain holds the typed identifiers and enumerations shared across
// the gatepass modules. Identifiers are opaque strings handed to us by the
// residents directory and the mobile clients; we never mint them here except
// for pass identifiers, which internal/guestpass/credential generates.
package domain

// ProjectID identifies a gated residential project.
type ProjectID string

func (id ProjectID) String() string { return string(id) }

// IsEmpty reports whether the identifier is missing.
func (id ProjectID) IsEmpty() bool { return id == "" }

// UserID identifies a resident (directory subject id).
type UserID string

func (id UserID) String() string { return string(id) }

func (id UserID) IsEmpty() bool { return id == "" }

// UnitID identifies a unit (apartment / property) within a project.
type UnitID string

func (id UnitID) String() string { return string(id) }

func (id UnitID) IsEmpty() bool { return id == "" }

// PassID is the public guest pass identifier embedded in the credential.
// It doubles as the record primary key.
type PassID string

func (id PassID) String() string { return string(id) }

func (id PassID) IsEmpty() bool { return id == "" }

// Role is a user's role within a project membership.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleFamily Role = "family"
	RoleTenant Role = "tenant"
)

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleFamily, RoleTenant:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
