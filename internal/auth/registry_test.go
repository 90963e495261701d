package auth_test

import (
	"testing"

	"github.com/google/uuid"

	"VaultLedger/internal/auth"
)

func TestRegistry_GrantRevoke(t *testing.T) {
	r := auth.NewRegistry()
	caller := uuid.New()

	if r.IsAuthorized(caller, auth.CapOrderFiller) {
		t.Error("fresh caller should hold nothing")
	}

	r.Grant(caller, auth.CapOrderFiller)
	if !r.IsAuthorized(caller, auth.CapOrderFiller) {
		t.Error("grant should authorize")
	}

	r.Revoke(caller, auth.CapOrderFiller)
	if r.IsAuthorized(caller, auth.CapOrderFiller) {
		t.Error("revoke should deauthorize")
	}
}

func TestRegistry_CapabilitiesAreIndependent(t *testing.T) {
	r := auth.NewRegistry()
	caller := uuid.New()

	r.Grant(caller, auth.CapAdmin)
	if r.IsAuthorized(caller, auth.CapPoolManager) {
		t.Error("admin must not imply pool_manager")
	}
}

func TestRegistry_RevokeUnknownCallerIsNoop(t *testing.T) {
	r := auth.NewRegistry()
	r.Revoke(uuid.New(), auth.CapAdmin)
}
