package common

import "errors"

var (
	// ErrRoleSetFull is returned when a bounded role set has no free slot.
	ErrRoleSetFull = errors.New("role set capacity reached")
	// ErrRoleNotFound is returned when removing an address that was never
	// added.
	ErrRoleNotFound = errors.New("address not present in role set")
)

// RoleSet is a capacity-bounded set of addresses with explicit
// add/remove/contains semantics. Adding beyond the capacity fails with
// ErrRoleSetFull rather than evicting a member.
type RoleSet struct {
	capacity int
	members  map[[20]byte]struct{}
}

// NewRoleSet constructs a role set holding at most capacity members. A zero
// or negative capacity yields a set that rejects every Add.
func NewRoleSet(capacity int) *RoleSet {
	if capacity < 0 {
		capacity = 0
	}
	return &RoleSet{capacity: capacity, members: make(map[[20]byte]struct{})}
}

// Add inserts the address. Adding an existing member is a no-op.
func (s *RoleSet) Add(addr [20]byte) error {
	if s == nil {
		return ErrRoleSetFull
	}
	if _, ok := s.members[addr]; ok {
		return nil
	}
	if len(s.members) >= s.capacity {
		return ErrRoleSetFull
	}
	s.members[addr] = struct{}{}
	return nil
}

// Remove deletes the address from the set.
func (s *RoleSet) Remove(addr [20]byte) error {
	if s == nil {
		return ErrRoleNotFound
	}
	if _, ok := s.members[addr]; !ok {
		return ErrRoleNotFound
	}
	delete(s.members, addr)
	return nil
}

// Contains reports membership.
func (s *RoleSet) Contains(addr [20]byte) bool {
	if s == nil {
		return false
	}
	_, ok := s.members[addr]
	return ok
}

// Len returns the current member count.
func (s *RoleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}
