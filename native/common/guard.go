package common

import "errors"

// ErrKillSwitchActivated rejects settlement entry points while the program
// wide kill switch is raised.
var ErrKillSwitchActivated = errors.New("kill switch activated")

// AuthView is the read side of the externally managed role lists. Role
// mutation (adding and removing administrators, toggling the kill switch)
// happens outside the engines; they only ever query.
type AuthView interface {
	IsBoss(signer [20]byte) bool
	IsAdmin(signer [20]byte) bool
	IsRedemptionAdmin(signer [20]byte) bool
	IsCacheAdmin(signer [20]byte, asset string) bool
	IsKilled() bool
}

// Guard fails when the kill switch is raised. A nil view means no switch is
// wired and the operation proceeds.
func Guard(view AuthView) error {
	if view == nil {
		return nil
	}
	if view.IsKilled() {
		return ErrKillSwitchActivated
	}
	return nil
}
