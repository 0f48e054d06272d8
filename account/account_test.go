package account_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/escrow/access"
	"github.com/xraph/escrow/account"
)

func TestAccountRoles(t *testing.T) {
	a := &account.Account{
		Address: "alice",
		Balance: 10,
		Roles:   []access.Role{access.RolePledger},
	}
	assert.True(t, a.IsPledger())
	assert.False(t, a.HasRole(access.RoleOwner))
	assert.False(t, a.Empty())

	empty := &account.Account{Address: "bob"}
	assert.True(t, empty.Empty())
	assert.False(t, empty.IsPledger())
}
