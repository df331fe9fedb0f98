package store

import (
	"testing"

	"careleads/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupUserStore(t *testing.T) *UserStore {
	t.Helper()
	db := setupTestDB(t)
	logger := testLogger()
	return NewUserStore(db, logger, NewActivityStore(db, logger))
}

func TestAuthenticateThreeOutcomes(t *testing.T) {
	users := setupUserStore(t)

	created, err := users.Create(UserCreate{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter22hunter22",
	}, "alice", nil)
	require.NoError(t, err)
	assert.False(t, created.IsApproved)

	// Correct password, unapproved account
	_, err = users.Authenticate("alice", "hunter22hunter22")
	assert.ErrorIs(t, err, ErrPendingApproval)

	// Wrong password and unknown username
	user, err := users.Authenticate("alice", "wrong")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = users.Authenticate("nobody", "hunter22hunter22")
	require.NoError(t, err)
	assert.Nil(t, user)

	// Approved account logs in
	_, err = users.Approve(created.ID, "admin", nil)
	require.NoError(t, err)

	user, err = users.Authenticate("alice", "hunter22hunter22")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.Username)
}

func TestAdminCreatedUsersSkipApproval(t *testing.T) {
	users := setupUserStore(t)

	created, err := users.Create(UserCreate{
		Username:    "bob",
		Email:       "bob@example.com",
		Password:    "hunter22hunter22",
		Role:        models.RoleAdmin,
		AutoApprove: true,
	}, "admin", nil)
	require.NoError(t, err)
	assert.True(t, created.IsApproved)
	assert.True(t, created.IsAdmin())
}

func TestCreateRejectsDuplicates(t *testing.T) {
	users := setupUserStore(t)

	_, err := users.Create(UserCreate{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter22hunter22",
	}, "alice", nil)
	require.NoError(t, err)

	_, err = users.Create(UserCreate{
		Username: "alice",
		Email:    "other@example.com",
		Password: "hunter22hunter22",
	}, "alice", nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = users.Create(UserCreate{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "hunter22hunter22",
	}, "alice2", nil)
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = users.Create(UserCreate{
		Username: "eve",
		Email:    "eve@example.com",
		Password: "hunter22hunter22",
		Role:     "superuser",
	}, "eve", nil)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRejectDeletesPendingAccount(t *testing.T) {
	users := setupUserStore(t)

	created, err := users.Create(UserCreate{
		Username: "carl",
		Email:    "carl@example.com",
		Password: "hunter22hunter22",
	}, "carl", nil)
	require.NoError(t, err)

	pending, err := users.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ok, err := users.Reject(created.ID, "admin", nil)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := users.GetByID(created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPasswordResetWorkflow(t *testing.T) {
	users := setupUserStore(t)

	created, err := users.Create(UserCreate{
		Username:    "dana",
		Email:       "dana@example.com",
		Password:    "hunter22hunter22",
		AutoApprove: true,
	}, "admin", nil)
	require.NoError(t, err)

	_, err = users.RequestPasswordReset("dana")
	require.NoError(t, err)

	requests, err := users.ListResetRequests()
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, "dana", requests[0].Username)

	_, err = users.AdminResetPassword(created.ID, "newpassword123", "admin", nil)
	require.NoError(t, err)

	requests, err = users.ListResetRequests()
	require.NoError(t, err)
	assert.Empty(t, requests)

	user, err := users.Authenticate("dana", "newpassword123")
	require.NoError(t, err)
	require.NotNil(t, user)
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	users := setupUserStore(t)

	created, err := users.Create(UserCreate{
		Username:    "erin",
		Email:       "erin@example.com",
		Password:    "hunter22hunter22",
		AutoApprove: true,
	}, "admin", nil)
	require.NoError(t, err)

	ok, err := users.ChangePassword(created.ID, "wrong", "newpassword123")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = users.ChangePassword(created.ID, "hunter22hunter22", "newpassword123")
	require.NoError(t, err)
	assert.True(t, ok)

	user, err := users.Authenticate("erin", "newpassword123")
	require.NoError(t, err)
	require.NotNil(t, user)
}

func TestUpdateProfile(t *testing.T) {
	users := setupUserStore(t)

	first, err := users.Create(UserCreate{
		Username:    "gail",
		Email:       "gail@example.com",
		Password:    "hunter22hunter22",
		AutoApprove: true,
	}, "admin", nil)
	require.NoError(t, err)

	_, err = users.Create(UserCreate{
		Username:    "hank",
		Email:       "hank@example.com",
		Password:    "hunter22hunter22",
		AutoApprove: true,
	}, "admin", nil)
	require.NoError(t, err)

	// Taking another account's username or email is rejected
	_, err = users.UpdateProfile(first.ID, "hank", "", "admin", nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, err = users.UpdateProfile(first.ID, "", "hank@example.com", "admin", nil)
	assert.ErrorIs(t, err, ErrEmailTaken)

	updated, err := users.UpdateProfile(first.ID, "gail2", "gail2@example.com", "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, "gail2", updated.Username)
	assert.Equal(t, "gail2@example.com", updated.Email)

	// Empty arguments leave fields alone
	same, err := users.UpdateProfile(first.ID, "", "", "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, "gail2", same.Username)
}

func TestUpdateRole(t *testing.T) {
	users := setupUserStore(t)

	created, err := users.Create(UserCreate{
		Username:    "fred",
		Email:       "fred@example.com",
		Password:    "hunter22hunter22",
		AutoApprove: true,
	}, "admin", nil)
	require.NoError(t, err)

	_, err = users.UpdateRole(created.ID, "owner", "admin", nil)
	assert.ErrorIs(t, err, ErrInvalidRole)

	updated, err := users.UpdateRole(created.ID, models.RoleAdmin, "admin", nil)
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())
}
