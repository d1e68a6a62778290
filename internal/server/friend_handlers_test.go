package server

import (
	"fmt"
	"net/http"
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendFlow(t *testing.T) {
	_, app := newTestServer(t)
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")

	status, raw := doJSON(t, app, http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: bob.ID})
	require.Equal(t, http.StatusOK, status, string(raw))
	state := decode[struct {
		State models.PairState   `json:"state"`
		User  models.UserSummary `json:"user"`
	}](t, raw)
	assert.Equal(t, models.PairPendingSent, state.State)
	assert.Equal(t, bob.ID, state.User.ID)

	// Bob sees the invite, Alice sees it as pending.
	status, raw = doJSON(t, app, http.MethodGet, "/invites", bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	invites := decode[[]models.UserSummary](t, raw)
	require.Len(t, invites, 1)
	assert.Equal(t, alice.ID, invites[0].ID)

	status, raw = doJSON(t, app, http.MethodGet, "/pending", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]models.UserSummary](t, raw), 1)

	status, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/status/%d", alice.ID), bob.Token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.PairPendingReceived, decode[struct {
		State models.PairState `json:"state"`
	}](t, raw).State)

	status, raw = doJSON(t, app, http.MethodPatch, "/friend", bob.Token, FriendRequest{FriendID: alice.ID})
	require.Equal(t, http.StatusOK, status, string(raw))
	accepted := decode[struct {
		Friends []models.UserSummary `json:"friends"`
		Thread  models.Thread        `json:"thread"`
	}](t, raw)
	require.Len(t, accepted.Friends, 1)
	assert.Equal(t, alice.ID, accepted.Friends[0].ID)
	assert.NotZero(t, accepted.Thread.ID)
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, accepted.Thread.Users)

	status, raw = doJSON(t, app, http.MethodGet, "/friends", alice.Token, nil)
	require.Equal(t, http.StatusOK, status)
	friends := decode[[]models.UserSummary](t, raw)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	// Both profiles reference the same thread.
	for _, id := range []uint{alice.ID, bob.ID} {
		status, raw = doJSON(t, app, http.MethodGet, fmt.Sprintf("/user/%d", id), "", nil)
		require.Equal(t, http.StatusOK, status)
		profile := decode[struct {
			Messages []uint `json:"messages"`
		}](t, raw)
		assert.Equal(t, []uint{accepted.Thread.ID}, profile.Messages)
	}
}

func TestFriendHandlers_Errors(t *testing.T) {
	_, app := newTestServer(t)
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")
	carol := signup(t, app, "carol")
	befriend(t, app, alice, carol)

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"invite without token", http.MethodPatch, "/invite", "", FriendRequest{FriendID: bob.ID}, http.StatusUnauthorized, models.CodeUnauthorized},
		{"invite self", http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: alice.ID}, http.StatusBadRequest, models.CodeValidation},
		{"invite missing friendId", http.MethodPatch, "/invite", alice.Token, map[string]string{}, http.StatusBadRequest, models.CodeValidation},
		{"invite unknown user", http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: 9999}, http.StatusNotFound, models.CodeNotFound},
		{"invite existing friend", http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: carol.ID}, http.StatusConflict, models.CodeConflict},
		{"accept without invite", http.MethodPatch, "/friend", bob.Token, FriendRequest{FriendID: alice.ID}, http.StatusConflict, models.CodeInvalidState},
		{"accept existing friend", http.MethodPatch, "/friend", carol.Token, FriendRequest{FriendID: alice.ID}, http.StatusConflict, models.CodeInvalidState},
		{"decline without invite", http.MethodDelete, "/pending", bob.Token, FriendRequest{FriendID: alice.ID}, http.StatusConflict, models.CodeInvalidState},
		{"cancel without invite", http.MethodDelete, "/invite", alice.Token, FriendRequest{FriendID: bob.ID}, http.StatusConflict, models.CodeInvalidState},
		{"status of unknown user", http.MethodGet, "/status/9999", alice.Token, nil, http.StatusNotFound, models.CodeNotFound},
		{"status with bad id", http.MethodGet, "/status/abc", alice.Token, nil, http.StatusBadRequest, models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := doJSON(t, app, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, status, string(raw))
			assert.Equal(t, tt.wantCode, decode[models.ErrorResponse](t, raw).Code)
		})
	}
}

func TestDeclineAndCancel(t *testing.T) {
	_, app := newTestServer(t)
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")

	t.Run("decline", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: bob.ID})
		require.Equal(t, http.StatusOK, status)

		status, raw := doJSON(t, app, http.MethodDelete, "/pending", bob.Token, FriendRequest{FriendID: alice.ID})
		require.Equal(t, http.StatusOK, status, string(raw))
		assert.JSONEq(t, `{"state":"none"}`, string(raw))

		_, raw = doJSON(t, app, http.MethodGet, "/invites", bob.Token, nil)
		assert.Empty(t, decode[[]models.UserSummary](t, raw))
		_, raw = doJSON(t, app, http.MethodGet, "/friends", bob.Token, nil)
		assert.Empty(t, decode[[]models.UserSummary](t, raw))
	})

	t.Run("cancel", func(t *testing.T) {
		status, _ := doJSON(t, app, http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: bob.ID})
		require.Equal(t, http.StatusOK, status)

		status, raw := doJSON(t, app, http.MethodDelete, "/invite", alice.Token, FriendRequest{FriendID: bob.ID})
		require.Equal(t, http.StatusOK, status, string(raw))

		_, raw = doJSON(t, app, http.MethodGet, "/pending", alice.Token, nil)
		assert.Empty(t, decode[[]models.UserSummary](t, raw))
		_, raw = doJSON(t, app, http.MethodGet, "/invites", bob.Token, nil)
		assert.Empty(t, decode[[]models.UserSummary](t, raw))
	})
}

func TestSendInvite_Idempotent(t *testing.T) {
	_, app := newTestServer(t)
	alice := signup(t, app, "alice")
	bob := signup(t, app, "bob")

	for i := 0; i < 2; i++ {
		status, raw := doJSON(t, app, http.MethodPatch, "/invite", alice.Token, FriendRequest{FriendID: bob.ID})
		require.Equal(t, http.StatusOK, status, string(raw))
	}

	_, raw := doJSON(t, app, http.MethodGet, "/invites", bob.Token, nil)
	assert.Len(t, decode[[]models.UserSummary](t, raw), 1)
}
