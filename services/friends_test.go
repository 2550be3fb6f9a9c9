package services

import (
	"context"
	"testing"

	"friendtime/apperrors"
	"friendtime/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newFriendService(env *testEnv) *FriendService {
	return NewFriendService(env.friends, env.users, zap.NewNop())
}

func TestFriendRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)
	fs := newFriendService(env)
	ctx := context.Background()
	alice, bob := env.user(t, "alice"), env.user(t, "bob")

	request, err := fs.AddFriend(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipPending, request.Status)

	// повторная и встречная заявки
	_, err = fs.AddFriend(ctx, alice, bob)
	assert.True(t, apperrors.IsConflict(err))
	_, err = fs.AddFriend(ctx, bob, alice)
	assert.True(t, apperrors.IsConflict(err))

	// принять может только получатель
	_, err = fs.AcceptFriend(ctx, alice, bob)
	assert.True(t, apperrors.IsForbidden(err))

	pending, err := fs.GetPendingRequests(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice, pending[0].FriendID)

	accepted, err := fs.AcceptFriend(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipAccepted, accepted.Status)

	_, err = fs.AddFriend(ctx, bob, alice)
	assert.True(t, apperrors.IsConflict(err))

	friends, err := fs.GetFriends(ctx, alice)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob, friends[0].FriendID)

	require.NoError(t, fs.DeleteFriend(ctx, alice, bob))
	err = fs.DeleteFriend(ctx, alice, bob)
	assert.True(t, apperrors.IsNotFound(err))

	friends, err = fs.GetFriends(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, friends)
}

func TestRejectedRequestCanBeSentAgain(t *testing.T) {
	env := newTestEnv(t)
	fs := newFriendService(env)
	ctx := context.Background()
	alice, bob := env.user(t, "alice"), env.user(t, "bob")

	_, err := fs.AddFriend(ctx, alice, bob)
	require.NoError(t, err)
	rejected, err := fs.RejectFriend(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, models.FriendshipRejected, rejected.Status)

	// уже отклоненную заявку нельзя принять
	_, err = fs.AcceptFriend(ctx, bob, alice)
	assert.True(t, apperrors.IsNotFound(err))

	again, err := fs.AddFriend(ctx, bob, alice)
	require.NoError(t, err)
	assert.Equal(t, rejected.ID, again.ID)
	assert.Equal(t, bob, again.RequesterID)
	assert.Equal(t, alice, again.RecipientID)
	assert.Equal(t, models.FriendshipPending, again.Status)
}

func TestAddFriendValidation(t *testing.T) {
	env := newTestEnv(t)
	fs := newFriendService(env)
	ctx := context.Background()
	alice := env.user(t, "alice")

	_, err := fs.AddFriend(ctx, alice, alice)
	assert.True(t, apperrors.IsValidation(err))

	_, err = fs.AddFriend(ctx, alice, "")
	assert.True(t, apperrors.IsValidation(err))

	_, err = fs.AddFriend(ctx, alice, "ghost")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestUserRegisterAndSearch(t *testing.T) {
	env := newTestEnv(t)
	us := NewUserService(env.users)
	ctx := context.Background()

	user, err := us.Register(ctx, "Walker_42")
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)

	_, err = us.Register(ctx, "walker_42")
	assert.True(t, apperrors.IsConflict(err))

	found, err := us.Search(ctx, "WALKER_42")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = us.Search(ctx, "nobody")
	assert.True(t, apperrors.IsNotFound(err))

	for _, bad := range []string{"ab", "with space", "toolong_username_over20", "dash-name", ""} {
		_, err := us.Register(ctx, bad)
		assert.True(t, apperrors.IsValidation(err), bad)
	}
}

func TestUserRegisterFakeNames(t *testing.T) {
	env := newTestEnv(t)
	us := NewUserService(env.users)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		name := gofakeit.Regex(`[a-z]{3,8}_[0-9]{2,4}`)
		if seen[name] {
			continue
		}
		seen[name] = true
		_, err := us.Register(ctx, name)
		require.NoError(t, err, name)
	}
}
