package models

// Purpose is a delegated capability attached to a key on an identity.
type Purpose uint64

const (
	// PurposeManagement may add or remove any key, including other
	// management keys.
	PurposeManagement Purpose = 1
	// PurposeAction may invoke business actions gated on the identity.
	PurposeAction Purpose = 2
	// PurposeClaim may add or remove claims, and (on an issuer) sign claims
	// on the issuer's behalf.
	PurposeClaim Purpose = 3
	// PurposeEncryption is reserved; it is not behaviorally enforced in the
	// trust core.
	PurposeEncryption Purpose = 4
)

// Valid reports whether p is one of the defined purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeManagement, PurposeAction, PurposeClaim, PurposeEncryption:
		return true
	}
	return false
}

func (p Purpose) String() string {
	switch p {
	case PurposeManagement:
		return "management"
	case PurposeAction:
		return "action"
	case PurposeClaim:
		return "claim"
	case PurposeEncryption:
		return "encryption"
	}
	return "unknown"
}

// PurposeSet is a small set abstraction over Purpose. The zero value is an
// empty set.
type PurposeSet struct {
	members map[Purpose]struct{}
}

// NewPurposeSet builds a set from the given purposes.
func NewPurposeSet(purposes ...Purpose) PurposeSet {
	s := PurposeSet{members: make(map[Purpose]struct{}, len(purposes))}
	for _, p := range purposes {
		s.members[p] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s PurposeSet) Has(p Purpose) bool {
	_, ok := s.members[p]
	return ok
}

// Add inserts p and reports whether it was newly added.
func (s *PurposeSet) Add(p Purpose) bool {
	if s.members == nil {
		s.members = make(map[Purpose]struct{}, 1)
	}
	if _, ok := s.members[p]; ok {
		return false
	}
	s.members[p] = struct{}{}
	return true
}

// Remove deletes p and reports whether it was present.
func (s *PurposeSet) Remove(p Purpose) bool {
	if _, ok := s.members[p]; !ok {
		return false
	}
	delete(s.members, p)
	return true
}

// Empty reports whether the set holds no purposes.
func (s PurposeSet) Empty() bool {
	return len(s.members) == 0
}

// List returns the members in stable numeric order.
func (s PurposeSet) List() []Purpose {
	out := make([]Purpose, 0, len(s.members))
	for _, p := range []Purpose{PurposeManagement, PurposeAction, PurposeClaim, PurposeEncryption} {
		if _, ok := s.members[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns an independent copy of the set.
func (s PurposeSet) Clone() PurposeSet {
	out := PurposeSet{members: make(map[Purpose]struct{}, len(s.members))}
	for p := range s.members {
		out.members[p] = struct{}{}
	}
	return out
}
