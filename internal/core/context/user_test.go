package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActor(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, SystemActor, Actor(ctx))

	ctx = WithUser(ctx, &UserContext{UserID: "tech-7"})
	assert.Equal(t, "tech-7", Actor(ctx))
}

func TestHasPermission(t *testing.T) {
	ctx := WithUser(context.Background(), &UserContext{
		UserID:      "noc-1",
		Permissions: []string{"ledger:approve"},
	})
	assert.True(t, HasPermission(ctx, "ledger:approve"))
	assert.False(t, HasPermission(ctx, "ledger:settle"))

	admin := WithUser(context.Background(), &UserContext{UserID: "root", IsAdmin: true})
	assert.True(t, HasPermission(admin, "ledger:settle"))

	assert.False(t, HasPermission(context.Background(), "ledger:read"))
}
