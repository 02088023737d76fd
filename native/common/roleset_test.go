package common

import "testing"

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestRoleSetCapacity(t *testing.T) {
	set := NewRoleSet(2)
	if err := set.Add(addr(1)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := set.Add(addr(2)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := set.Add(addr(3)); err != ErrRoleSetFull {
		t.Fatalf("expected ErrRoleSetFull, got %v", err)
	}
	// Re-adding an existing member never consumes capacity.
	if err := set.Add(addr(1)); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if err := set.Remove(addr(1)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := set.Add(addr(3)); err != nil {
		t.Fatalf("add after remove: %v", err)
	}
	if set.Contains(addr(1)) {
		t.Fatalf("removed member still present")
	}
	if !set.Contains(addr(3)) {
		t.Fatalf("added member missing")
	}
}

func TestRoleSetRemoveMissing(t *testing.T) {
	set := NewRoleSet(1)
	if err := set.Remove(addr(9)); err != ErrRoleNotFound {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestAuthorityRoles(t *testing.T) {
	boss := addr(1)
	admin := addr(2)
	redeemAdmin := addr(3)
	cacheAdmin := addr(4)

	auth := NewAuthority(boss)
	if !auth.IsBoss(boss) || auth.IsBoss(admin) {
		t.Fatalf("boss check failed")
	}
	if err := auth.AddAdmin(admin); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if err := auth.AddRedemptionAdmin(redeemAdmin); err != nil {
		t.Fatalf("add redemption admin: %v", err)
	}
	auth.SetCacheAdmin("cash", cacheAdmin)

	if !auth.IsAdmin(admin) || !auth.IsAdmin(boss) {
		t.Fatalf("admin check failed")
	}
	if !auth.IsRedemptionAdmin(redeemAdmin) || auth.IsRedemptionAdmin(admin) {
		t.Fatalf("redemption admin check failed")
	}
	if !auth.IsCacheAdmin(cacheAdmin, "CASH") {
		t.Fatalf("cache admin lookup not case-insensitive")
	}
	if auth.IsCacheAdmin(cacheAdmin, "OTHER") {
		t.Fatalf("cache admin leaked across assets")
	}

	if err := Guard(auth); err != nil {
		t.Fatalf("guard with switch down: %v", err)
	}
	auth.SetKilled(true)
	if err := Guard(auth); err != ErrKillSwitchActivated {
		t.Fatalf("expected ErrKillSwitchActivated, got %v", err)
	}
}
