package router

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Capability is a named permission an identity may hold.
type Capability uint8

const (
	// CapabilityConfigure allows asset registry and mapping mutation
	CapabilityConfigure Capability = iota + 1
	// CapabilitySubmitReports allows submitting inbound cross-chain batches
	CapabilitySubmitReports
	// CapabilityManageRoles allows granting and revoking capabilities
	CapabilityManageRoles
)

func (c Capability) String() string {
	switch c {
	case CapabilityConfigure:
		return "configure"
	case CapabilitySubmitReports:
		return "submit-reports"
	case CapabilityManageRoles:
		return "manage-roles"
	default:
		return "unknown"
	}
}

// Authority is the policy object every mutating entry point consults. It
// replaces scattered per-call boolean checks with a single injected decision
// point.
type Authority interface {
	HasCapability(identity common.Address, c Capability) bool
}

// StaticAuthority is a map-backed Authority with capability-gated mutation.
// The admin passed at construction holds CapabilityManageRoles implicitly.
type StaticAuthority struct {
	mu     sync.RWMutex
	admin  common.Address
	grants map[common.Address]map[Capability]struct{}
}

var _ Authority = (*StaticAuthority)(nil)

func NewStaticAuthority(admin common.Address) *StaticAuthority {
	return &StaticAuthority{
		admin:  admin,
		grants: make(map[common.Address]map[Capability]struct{}),
	}
}

func (a *StaticAuthority) HasCapability(identity common.Address, c Capability) bool {
	if c == CapabilityManageRoles && identity == a.admin {
		return true
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.grants[identity][c]
	return ok
}

func (a *StaticAuthority) Grant(granter, identity common.Address, c Capability) error {
	if !a.HasCapability(granter, CapabilityManageRoles) {
		return ErrUnauthorized
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.grants[identity] == nil {
		a.grants[identity] = make(map[Capability]struct{})
	}
	a.grants[identity][c] = struct{}{}
	return nil
}

func (a *StaticAuthority) Revoke(revoker, identity common.Address, c Capability) error {
	if !a.HasCapability(revoker, CapabilityManageRoles) {
		return ErrUnauthorized
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants[identity], c)
	return nil
}
