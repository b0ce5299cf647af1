// Package accesscontrol implements per-component role grants.
//
// Each protocol component keeps its own independent role set; a grant on one
// component never implies anything on another. DefaultAdmin administers the
// grants themselves, every other role is a plain capability checked by the
// owning component.
package accesscontrol

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Role is a named capability within a single component.
type Role string

// DefaultAdmin may grant and revoke every role, including itself.
const DefaultAdmin Role = "DEFAULT_ADMIN"

// ErrUnauthorized indicates the caller lacks the role required for an
// operation.
var ErrUnauthorized = errors.New("unauthorized")

// AccessControl is one component's role table. It is not safe for concurrent
// use on its own; in this system every mutation runs inside the chain's
// serialized transaction unit.
type AccessControl struct {
	component string
	grants    map[Role]map[common.Address]struct{}
}

// New creates a role table for the named component with admin holding
// DefaultAdmin.
func New(component string, admin common.Address) *AccessControl {
	ac := &AccessControl{
		component: component,
		grants:    make(map[Role]map[common.Address]struct{}),
	}
	ac.grant(DefaultAdmin, admin)

	return ac
}

// Has reports whether account holds role.
func (ac *AccessControl) Has(role Role, account common.Address) bool {
	_, ok := ac.grants[role][account]

	return ok
}

// Require returns ErrUnauthorized unless account holds role.
func (ac *AccessControl) Require(role Role, account common.Address) error {
	if !ac.Has(role, account) {
		return fmt.Errorf("%w: %s needs %s role on %s", ErrUnauthorized, account.Hex(), role, ac.component)
	}

	return nil
}

// Grant gives account the role. The caller must hold DefaultAdmin.
func (ac *AccessControl) Grant(caller common.Address, role Role, account common.Address) error {
	if err := ac.Require(DefaultAdmin, caller); err != nil {
		return err
	}

	ac.grant(role, account)

	return nil
}

// Revoke removes the role from account. The caller must hold DefaultAdmin.
func (ac *AccessControl) Revoke(caller common.Address, role Role, account common.Address) error {
	if err := ac.Require(DefaultAdmin, caller); err != nil {
		return err
	}

	delete(ac.grants[role], account)

	return nil
}

// MustGrant assigns role without an authorization check. Deployment-time
// wiring only.
func (ac *AccessControl) MustGrant(role Role, account common.Address) {
	ac.grant(role, account)
}

func (ac *AccessControl) grant(role Role, account common.Address) {
	if ac.grants[role] == nil {
		ac.grants[role] = make(map[common.Address]struct{})
	}

	ac.grants[role][account] = struct{}{}
}

// Snapshot returns a deep copy of the grant table for transaction rollback.
func (ac *AccessControl) Snapshot() any {
	copied := make(map[Role]map[common.Address]struct{}, len(ac.grants))

	for role, accounts := range ac.grants {
		copied[role] = make(map[common.Address]struct{}, len(accounts))
		for account := range accounts {
			copied[role][account] = struct{}{}
		}
	}

	return copied
}

// Restore replaces the grant table with a snapshot taken earlier.
func (ac *AccessControl) Restore(snapshot any) {
	ac.grants = snapshot.(map[Role]map[common.Address]struct{})
}
