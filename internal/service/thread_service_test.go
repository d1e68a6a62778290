package service

import (
	"context"
	"strings"
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadService_PostThenList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")

	_, err := env.friends.SendInvite(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	thread, err := env.friends.AcceptInvite(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	msg, err := env.threads.PostMessage(ctx, thread.ID, alice.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, msg.AuthorID)
	_, err = env.threads.PostMessage(ctx, thread.ID, bob.ID, "  hello back ")
	require.NoError(t, err)

	for _, uid := range []uint{alice.ID, bob.ID} {
		threads, err := env.threads.ListMessages(ctx, uid)
		require.NoError(t, err)
		require.Len(t, threads, 1)
		require.Len(t, threads[0].Messages, 2)
		assert.Equal(t, "hi", threads[0].Messages[0].Text)
		assert.Equal(t, alice.ID, threads[0].Messages[0].AuthorID)
		assert.Equal(t, "  hello back ", threads[0].Messages[1].Text)
		assert.Equal(t, bob.ID, threads[0].Messages[1].AuthorID)
	}
}

func TestThreadService_TextIsStoredVerbatim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")

	const snippet = "  indented code\n"
	const opener = "\n\tfirst line\n  second line  "

	thread, err := env.threads.StartThread(ctx, alice.ID, bob.ID, opener)
	require.NoError(t, err)
	msg, err := env.threads.PostMessage(ctx, thread.ID, bob.ID, snippet)
	require.NoError(t, err)
	assert.Equal(t, snippet, msg.Text)

	threads, err := env.threads.ListMessages(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Messages, 2)
	assert.Equal(t, opener, threads[0].Messages[0].Text)
	assert.Equal(t, snippet, threads[0].Messages[1].Text)
}

func TestThreadService_PostMessage_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")
	mallory := env.mkUser(t, "mallory")

	thread, err := env.store.Repos().Threads.Create(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		threadID uint
		author   uint
		text     string
		code     string
	}{
		{"Unknown thread", 999, alice.ID, "hi", models.CodeNotFound},
		{"Not a participant", thread.ID, mallory.ID, "hi", models.CodeForbidden},
		{"Blank text", thread.ID, alice.ID, "   ", models.CodeValidation},
		{"Too long", thread.ID, alice.ID, strings.Repeat("x", 10001), models.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.threads.PostMessage(ctx, tt.threadID, tt.author, tt.text)
			assert.True(t, models.IsCode(err, tt.code), "want %s, got %v", tt.code, err)
		})
	}

	got, err := env.threads.GetThread(ctx, thread.ID, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestThreadService_StartThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")

	thread, err := env.threads.StartThread(ctx, alice.ID, bob.ID, "hey bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, thread.Users)
	require.Len(t, thread.Messages, 1)
	assert.Equal(t, "hey bob", thread.Messages[0].Text)

	// A reply from the other side lands in the same thread.
	again, err := env.threads.StartThread(ctx, bob.ID, alice.ID, "hey alice")
	require.NoError(t, err)
	assert.Equal(t, thread.ID, again.ID)
	assert.Len(t, again.Messages, 2)
	assert.Equal(t, int64(1), env.threadCount(t))

	_, err = env.threads.StartThread(ctx, alice.ID, alice.ID, "me")
	assert.True(t, models.IsCode(err, models.CodeValidation))
	_, err = env.threads.StartThread(ctx, alice.ID, 999, "anyone?")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestThreadService_StartThreadReusesAcceptedThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")

	_, err := env.friends.SendInvite(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	accepted, err := env.friends.AcceptInvite(ctx, bob.ID, alice.ID)
	require.NoError(t, err)

	thread, err := env.threads.StartThread(ctx, alice.ID, bob.ID, "now we are friends")
	require.NoError(t, err)
	assert.Equal(t, accepted.ID, thread.ID)
}

func TestThreadService_GetThread_Forbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")
	eve := env.mkUser(t, "eve")

	thread, err := env.threads.StartThread(ctx, alice.ID, bob.ID, "secret")
	require.NoError(t, err)

	_, err = env.threads.GetThread(ctx, thread.ID, eve.ID)
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	threads, err := env.threads.ListMessages(ctx, eve.ID)
	require.NoError(t, err)
	assert.Empty(t, threads)
}

// Alice invites Bob, Bob accepts, Alice posts "hi"; Bob then sees one thread.
func TestScenario_InviteAcceptPost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")

	_, err := env.friends.SendInvite(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	thread, err := env.friends.AcceptInvite(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	_, err = env.threads.PostMessage(ctx, thread.ID, alice.ID, "hi")
	require.NoError(t, err)

	b := env.hydrated(t, bob.ID)
	assert.Equal(t, []uint{alice.ID}, b.Friends)
	assert.Equal(t, []uint{thread.ID}, b.Messages)

	threads, err := env.threads.ListMessages(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Len(t, threads[0].Messages, 1)
	assert.Equal(t, models.ThreadMessage{
		ID:        threads[0].Messages[0].ID,
		ThreadID:  thread.ID,
		AuthorID:  alice.ID,
		Text:      "hi",
		CreatedAt: threads[0].Messages[0].CreatedAt,
	}, threads[0].Messages[0])
}

// Alice invites Bob, Bob declines; nobody has friends or threads.
func TestScenario_InviteDecline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.mkUser(t, "alice")
	bob := env.mkUser(t, "bob")

	_, err := env.friends.SendInvite(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.NoError(t, env.friends.DeclineInvite(ctx, bob.ID, alice.ID))

	for _, id := range []uint{alice.ID, bob.ID} {
		u := env.hydrated(t, id)
		assert.Empty(t, u.Friends)
		assert.Empty(t, u.Pending)
		assert.Empty(t, u.Invites)
		assert.Empty(t, u.Messages)
	}
}
