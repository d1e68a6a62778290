// Package service holds the business logic behind the HTTP handlers.
package service

import (
	"context"
	"fmt"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
)

// RelationState is the outcome of a relationship transition, seen from the caller.
type RelationState struct {
	State models.PairState   `json:"state"`
	Peer  models.UserSummary `json:"user"`
	// Changed is false when the call was an idempotent repeat.
	Changed bool `json:"-"`
}

// FriendService provides friend-request and friendship business logic.
// Every transition holds the pair lock and runs in one transaction that
// row-locks both users, so concurrent requests on a pair have one winner.
type FriendService struct {
	store repository.Store
	locks *PairLocks
}

// NewFriendService returns a new FriendService.
func NewFriendService(store repository.Store, locks *PairLocks) *FriendService {
	return &FriendService{
		store: store,
		locks: locks,
	}
}

// SendInvite records a friend request from requesterID to targetID.
// Repeating a pending request is a no-op. Inviting a friend, or someone who
// already invited you, is a Conflict.
func (s *FriendService) SendInvite(ctx context.Context, requesterID, targetID uint) (state *RelationState, err error) {
	span, ctx := observability.StartSpan(ctx, "friends.send_invite", observability.UserPair(requesterID, targetID)...)
	ctx = middleware.WithPeer(ctx, targetID)
	defer func() {
		span.SetError(err)
		span.End()
		middleware.ObserveTransition("invite", err)
	}()

	if requesterID == targetID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	unlock := s.locks.Lock(requesterID, targetID)
	defer unlock()

	changed := false
	err = s.store.Transaction(ctx, func(tx repository.Repositories) error {
		if err := tx.Users.LockPair(ctx, requesterID, targetID); err != nil {
			return err
		}

		rel, err := tx.Relations.Get(ctx, requesterID, targetID)
		if err != nil {
			return err
		}

		switch models.StateOf(rel) {
		case models.PairPendingSent:
			return nil
		case models.PairFriends:
			return models.NewConflictError("You are already friends")
		case models.PairPendingReceived:
			return models.NewConflictError("This user already sent you a friend request")
		}

		if err := tx.Relations.Put(ctx, requesterID, targetID, models.RelationPending); err != nil {
			return err
		}
		if err := tx.Relations.Put(ctx, targetID, requesterID, models.RelationInvite); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	target, err := s.store.Repos().Users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &RelationState{State: models.PairPendingSent, Peer: target.Summary(), Changed: changed}, nil
}

// AcceptInvite turns a pending request from requesterID into a friendship and
// creates the pair's thread, all in one transaction.
func (s *FriendService) AcceptInvite(ctx context.Context, accepterID, requesterID uint) (thread *models.Thread, err error) {
	span, ctx := observability.StartSpan(ctx, "friends.accept_invite", observability.UserPair(requesterID, accepterID)...)
	ctx = middleware.WithPeer(ctx, requesterID)
	defer func() {
		span.SetError(err)
		span.End()
		middleware.ObserveTransition("accept", err)
	}()

	if accepterID == requesterID {
		return nil, models.NewValidationError("Cannot accept a friend request from yourself")
	}

	unlock := s.locks.Lock(accepterID, requesterID)
	defer unlock()

	err = s.store.Transaction(ctx, func(tx repository.Repositories) error {
		if err := s.requireIncoming(ctx, tx, accepterID, requesterID); err != nil {
			return err
		}
		if err := tx.Relations.DeletePair(ctx, accepterID, requesterID); err != nil {
			return err
		}
		if err := tx.Relations.Put(ctx, accepterID, requesterID, models.RelationFriend); err != nil {
			return err
		}
		if err := tx.Relations.Put(ctx, requesterID, accepterID, models.RelationFriend); err != nil {
			return err
		}

		created, err := tx.Threads.Create(ctx, accepterID, requesterID)
		if err != nil {
			return err
		}
		thread = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(middleware.WithThread(ctx, thread.ID), "friend request accepted")
	return thread, nil
}

// DeclineInvite drops a pending request from requesterID. No friendship or thread results.
func (s *FriendService) DeclineInvite(ctx context.Context, accepterID, requesterID uint) (err error) {
	defer func() { middleware.ObserveTransition("decline", err) }()
	ctx = middleware.WithPeer(ctx, requesterID)

	if accepterID == requesterID {
		return models.NewValidationError("Cannot decline a friend request from yourself")
	}

	unlock := s.locks.Lock(accepterID, requesterID)
	defer unlock()

	return s.store.Transaction(ctx, func(tx repository.Repositories) error {
		if err := s.requireIncoming(ctx, tx, accepterID, requesterID); err != nil {
			return err
		}
		return tx.Relations.DeletePair(ctx, accepterID, requesterID)
	})
}

// CancelInvite withdraws requesterID's pending request to targetID.
func (s *FriendService) CancelInvite(ctx context.Context, requesterID, targetID uint) (err error) {
	defer func() { middleware.ObserveTransition("cancel", err) }()
	ctx = middleware.WithPeer(ctx, targetID)

	if requesterID == targetID {
		return models.NewValidationError("Cannot cancel a friend request to yourself")
	}

	unlock := s.locks.Lock(requesterID, targetID)
	defer unlock()

	return s.store.Transaction(ctx, func(tx repository.Repositories) error {
		if err := tx.Users.LockPair(ctx, requesterID, targetID); err != nil {
			return err
		}
		rel, err := tx.Relations.Get(ctx, requesterID, targetID)
		if err != nil {
			return err
		}
		if models.StateOf(rel) != models.PairPendingSent {
			return models.NewInvalidStateError(fmt.Sprintf("No pending friend request to user %d", targetID))
		}
		return tx.Relations.DeletePair(ctx, requesterID, targetID)
	})
}

// requireIncoming locks the pair and checks that requesterID has a pending
// request to accepterID.
func (s *FriendService) requireIncoming(ctx context.Context, tx repository.Repositories, accepterID, requesterID uint) error {
	if err := tx.Users.LockPair(ctx, accepterID, requesterID); err != nil {
		return err
	}
	rel, err := tx.Relations.Get(ctx, accepterID, requesterID)
	if err != nil {
		return err
	}
	if models.StateOf(rel) != models.PairPendingReceived {
		return models.NewInvalidStateError(fmt.Sprintf("No pending friend request from user %d", requesterID))
	}
	return nil
}

// ListFriends returns the user's friends.
func (s *FriendService) ListFriends(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return s.listPeers(ctx, userID, models.RelationFriend)
}

// ListInvites returns the users who sent userID a pending request.
func (s *FriendService) ListInvites(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return s.listPeers(ctx, userID, models.RelationInvite)
}

// ListPending returns the users userID sent a pending request to.
func (s *FriendService) ListPending(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return s.listPeers(ctx, userID, models.RelationPending)
}

func (s *FriendService) listPeers(ctx context.Context, userID uint, kind models.RelationKind) ([]models.UserSummary, error) {
	repos := s.store.Repos()
	if _, err := repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	ids, err := repos.Relations.ListPeers(ctx, userID, kind)
	if err != nil {
		return nil, err
	}
	users, err := repos.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return models.Summaries(users), nil
}

// State returns the relationship between userID and peerID from userID's side.
func (s *FriendService) State(ctx context.Context, userID, peerID uint) (models.PairState, error) {
	repos := s.store.Repos()
	if _, err := repos.Users.GetByID(ctx, peerID); err != nil {
		return "", err
	}
	if userID == peerID {
		return models.PairNone, nil
	}
	rel, err := repos.Relations.Get(ctx, userID, peerID)
	if err != nil {
		return "", err
	}
	return models.StateOf(rel), nil
}
