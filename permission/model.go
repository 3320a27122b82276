package permission

import "strings"

// Level is the access level encoded as the prefix of a permission name.
type Level string

const (
	// Read is satisfied by both r- and rw-prefixed permissions.
	Read Level = "r"
	// Write is satisfied only by rw-prefixed permissions.
	Write Level = "rw"
)

// Partition is the tenant partition a permission applies to.
type Partition string

const (
	PartitionAdmin        Partition = "Admin"
	PartitionPartner      Partition = "Partner"
	PartitionYouth        Partition = "Youth"
	PartitionOrganisation Partition = "Organisation"
)

// Partitions lists every partition in catalog order.
var Partitions = []Partition{PartitionAdmin, PartitionPartner, PartitionYouth, PartitionOrganisation}

// ActAndDeactUser is the special permission required to enable or disable accounts.
const ActAndDeactUser = "actAndDeactUser"

// Name returns the permission name granting level on p, e.g. "rwYouth".
func Name(level Level, p Partition) string {
	return string(level) + string(p)
}

// ParseName splits a level/partition permission name. Special permissions
// such as ActAndDeactUser report ok == false.
func ParseName(name string) (Level, Partition, bool) {
	var level Level
	var rest string
	switch {
	case strings.HasPrefix(name, string(Write)):
		level, rest = Write, name[len(Write):]
	case strings.HasPrefix(name, string(Read)):
		level, rest = Read, name[len(Read):]
	default:
		return "", "", false
	}
	for _, p := range Partitions {
		if rest == string(p) {
			return level, p, true
		}
	}
	return "", "", false
}

// PartitionForUserType maps an account's user type to the partition that
// governs access to it.
func PartitionForUserType(userType string) (Partition, bool) {
	switch userType {
	case "admin":
		return PartitionAdmin, true
	case "partner":
		return PartitionPartner, true
	case "youth":
		return PartitionYouth, true
	default:
		return "", false
	}
}

// Permission is a named capability.
type Permission struct {
	ID          string
	Name        string
	Read        bool
	Write       bool
	Description string
}

// Role is a named bundle of permission references. RoleType is the user type
// the role may be assigned to.
type Role struct {
	ID            string
	Name          string
	RoleType      string
	Permissions   []string
	SystemDefault bool
	IsSuperuser   bool
}

// Set is an ordered, duplicate-free collection of permission names.
// The zero value is an empty set.
type Set struct {
	names []string
	index map[string]struct{}
}

// NewSet builds a Set preserving the first occurrence order of names.
func NewSet(names ...string) Set {
	s := Set{names: make([]string, 0, len(names)), index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, dup := s.index[n]; dup {
			continue
		}
		s.index[n] = struct{}{}
		s.names = append(s.names, n)
	}
	return s
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Names returns a copy of the names in order.
func (s Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of names.
func (s Set) Len() int {
	return len(s.names)
}

// HasCapability reports whether set grants level on partition. A read check
// passes with either r or rw; a write check needs rw. Partitions never grant
// each other.
func HasCapability(set Set, level Level, p Partition) bool {
	switch level {
	case Read:
		return set.Has(Name(Read, p)) || set.Has(Name(Write, p))
	case Write:
		return set.Has(Name(Write, p))
	default:
		return false
	}
}
