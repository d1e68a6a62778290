package service

import (
	"context"

	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/validation"
)

// ThreadService provides direct-messaging business logic.
type ThreadService struct {
	store repository.Store
	locks *PairLocks
}

// NewThreadService returns a new ThreadService.
func NewThreadService(store repository.Store, locks *PairLocks) *ThreadService {
	return &ThreadService{store: store, locks: locks}
}

// PostMessage appends text to a thread the author participates in.
func (s *ThreadService) PostMessage(ctx context.Context, threadID, authorID uint, text string) (*models.ThreadMessage, error) {
	ctx = middleware.WithThread(ctx, threadID)
	if err := validation.ValidateMessageText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	threads := s.store.Repos().Threads
	thread, err := threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(authorID) {
		return nil, models.NewForbiddenError("You are not a participant in this thread")
	}

	msg := &models.ThreadMessage{
		ThreadID: thread.ID,
		AuthorID: authorID,
		Text:     text,
	}
	if err := threads.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	middleware.MessagesPosted.Inc()
	return msg, nil
}

// StartThread sends an ad-hoc message to recipientID. The pair's existing
// thread is reused when there is one, otherwise a new one is created.
func (s *ThreadService) StartThread(ctx context.Context, authorID, recipientID uint, text string) (*models.Thread, error) {
	ctx = middleware.WithPeer(ctx, recipientID)
	if err := validation.ValidateMessageText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if authorID == recipientID {
		return nil, models.NewValidationError("Cannot message yourself")
	}

	repos := s.store.Repos()
	if _, err := repos.Users.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(authorID, recipientID)
	defer unlock()

	var threadID uint
	err := s.store.Transaction(ctx, func(tx repository.Repositories) error {
		thread, err := tx.Threads.FindDirect(ctx, authorID, recipientID)
		if err != nil {
			return err
		}
		if thread == nil {
			if thread, err = tx.Threads.Create(ctx, authorID, recipientID); err != nil {
				return err
			}
		}
		threadID = thread.ID
		return tx.Threads.AppendMessage(ctx, &models.ThreadMessage{
			ThreadID: thread.ID,
			AuthorID: authorID,
			Text:     text,
		})
	})
	if err != nil {
		return nil, err
	}
	middleware.MessagesPosted.Inc()

	return repos.Threads.GetByID(ctx, threadID)
}

// ListMessages returns every thread userID participates in, with full logs.
func (s *ThreadService) ListMessages(ctx context.Context, userID uint) ([]models.Thread, error) {
	repos := s.store.Repos()
	if _, err := repos.Users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return repos.Threads.ListForUser(ctx, userID)
}

// GetThread returns a single thread to one of its participants.
func (s *ThreadService) GetThread(ctx context.Context, threadID, userID uint) (*models.Thread, error) {
	ctx = middleware.WithThread(ctx, threadID)
	thread, err := s.store.Repos().Threads.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !thread.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant in this thread")
	}
	return thread, nil
}
