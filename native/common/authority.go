package common

import "strings"

const (
	// AdminCapacity bounds the administrator role set.
	AdminCapacity = 20
	// ApproverCapacity bounds the approver role set.
	ApproverCapacity = 2
)

// Authority is an in-process implementation of AuthView backed by bounded
// role sets. It exists so the daemon and tests can stand up a working
// authorization oracle; production deployments may substitute any AuthView.
type Authority struct {
	boss             [20]byte
	admins           *RoleSet
	redemptionAdmins *RoleSet
	approvers        *RoleSet
	cacheAdmins      map[string][20]byte
	killed           bool
}

// NewAuthority constructs an authority rooted at the supplied boss address.
func NewAuthority(boss [20]byte) *Authority {
	return &Authority{
		boss:             boss,
		admins:           NewRoleSet(AdminCapacity),
		redemptionAdmins: NewRoleSet(AdminCapacity),
		approvers:        NewRoleSet(ApproverCapacity),
		cacheAdmins:      make(map[string][20]byte),
	}
}

func (a *Authority) IsBoss(signer [20]byte) bool {
	return a != nil && signer == a.boss
}

func (a *Authority) IsAdmin(signer [20]byte) bool {
	if a == nil {
		return false
	}
	return signer == a.boss || a.admins.Contains(signer)
}

func (a *Authority) IsRedemptionAdmin(signer [20]byte) bool {
	if a == nil {
		return false
	}
	return signer == a.boss || a.redemptionAdmins.Contains(signer)
}

func (a *Authority) IsCacheAdmin(signer [20]byte, asset string) bool {
	if a == nil {
		return false
	}
	admin, ok := a.cacheAdmins[normalizeAsset(asset)]
	return ok && admin == signer
}

func (a *Authority) IsKilled() bool {
	return a != nil && a.killed
}

// SetKilled toggles the kill switch.
func (a *Authority) SetKilled(killed bool) {
	if a == nil {
		return
	}
	a.killed = killed
}

// AddAdmin registers an administrator, failing once the bounded set is full.
func (a *Authority) AddAdmin(addr [20]byte) error { return a.admins.Add(addr) }

// RemoveAdmin drops an administrator.
func (a *Authority) RemoveAdmin(addr [20]byte) error { return a.admins.Remove(addr) }

// AddRedemptionAdmin registers a redemption administrator.
func (a *Authority) AddRedemptionAdmin(addr [20]byte) error { return a.redemptionAdmins.Add(addr) }

// RemoveRedemptionAdmin drops a redemption administrator.
func (a *Authority) RemoveRedemptionAdmin(addr [20]byte) error { return a.redemptionAdmins.Remove(addr) }

// AddApprover registers an approver for gated offers.
func (a *Authority) AddApprover(addr [20]byte) error { return a.approvers.Add(addr) }

// RemoveApprover drops an approver.
func (a *Authority) RemoveApprover(addr [20]byte) error { return a.approvers.Remove(addr) }

// IsApprover reports whether the signer may countersign gated takes.
func (a *Authority) IsApprover(signer [20]byte) bool {
	return a != nil && a.approvers.Contains(signer)
}

// SetCacheAdmin names the accrual administrator for an asset.
func (a *Authority) SetCacheAdmin(asset string, admin [20]byte) {
	if a == nil {
		return
	}
	a.cacheAdmins[normalizeAsset(asset)] = admin
}

func normalizeAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}
