package auth

import (
	"fmt"

	"github.com/google/uuid"
)

// Capability is a grantable permission. Privileged operations name the
// capability they require; callers hold any number of them. Composition
// replaces role hierarchies: an admin is simply a caller granted every
// capability it needs.
type Capability uint8

const (
	CapAdmin Capability = iota
	CapLimitManager
	CapRedeemManager
	CapOrderFiller
	CapPoolManager
	CapRestrictionManager
)

func (c Capability) String() string {
	switch c {
	case CapAdmin:
		return "admin"
	case CapLimitManager:
		return "limit_manager"
	case CapRedeemManager:
		return "redeem_manager"
	case CapOrderFiller:
		return "order_filler"
	case CapPoolManager:
		return "pool_manager"
	case CapRestrictionManager:
		return "restriction_manager"
	default:
		return "unknown"
	}
}

// ParseCapability maps a wire name back to a Capability.
func ParseCapability(s string) (Capability, error) {
	switch s {
	case "admin":
		return CapAdmin, nil
	case "limit_manager":
		return CapLimitManager, nil
	case "redeem_manager":
		return CapRedeemManager, nil
	case "order_filler":
		return CapOrderFiller, nil
	case "pool_manager":
		return CapPoolManager, nil
	case "restriction_manager":
		return CapRestrictionManager, nil
	default:
		return 0, fmt.Errorf("unknown capability: %q", s)
	}
}

// Registry maps callers to granted capabilities.
type Registry struct {
	grants map[uuid.UUID]map[Capability]struct{}
}

func NewRegistry() *Registry {
	return &Registry{grants: make(map[uuid.UUID]map[Capability]struct{})}
}

func (r *Registry) Grant(caller uuid.UUID, cap Capability) {
	if r.grants[caller] == nil {
		r.grants[caller] = make(map[Capability]struct{})
	}
	r.grants[caller][cap] = struct{}{}
}

func (r *Registry) Revoke(caller uuid.UUID, cap Capability) {
	delete(r.grants[caller], cap)
}

// IsAuthorized reports whether the caller holds the capability. Admin does
// not imply other capabilities; each must be granted explicitly.
func (r *Registry) IsAuthorized(caller uuid.UUID, cap Capability) bool {
	_, ok := r.grants[caller][cap]
	return ok
}

// Snapshot returns a copy of all grants.
func (r *Registry) Snapshot() map[uuid.UUID][]Capability {
	out := make(map[uuid.UUID][]Capability, len(r.grants))
	for caller, caps := range r.grants {
		list := make([]Capability, 0, len(caps))
		for c := range caps {
			list = append(list, c)
		}
		out[caller] = list
	}
	return out
}
