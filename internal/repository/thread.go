package repository

import (
	"context"
	"errors"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// ThreadRepository stores threads, their participants and their message logs.
type ThreadRepository interface {
	Create(ctx context.Context, participants ...uint) (*models.Thread, error)
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	// FindDirect returns the oldest thread shared by a and b, or nil.
	FindDirect(ctx context.Context, a, b uint) (*models.Thread, error)
	AppendMessage(ctx context.Context, msg *models.ThreadMessage) error
	ListForUser(ctx context.Context, userID uint) ([]models.Thread, error)
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository returns a new ThreadRepository implementation.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func orderedMessages(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

func orderedParticipants(db *gorm.DB) *gorm.DB {
	return db.Order("joined_at ASC, user_id ASC")
}

// Create inserts an empty thread with the given participants.
// Callers wanting atomicity with other writes run it inside Store.Transaction.
func (r *threadRepository) Create(ctx context.Context, participants ...uint) (*models.Thread, error) {
	thread := &models.Thread{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(thread).Error; err != nil {
			return err
		}
		rows := make([]models.ThreadParticipant, 0, len(participants))
		for _, uid := range participants {
			rows = append(rows, models.ThreadParticipant{ThreadID: thread.ID, UserID: uid})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	thread.Users = append([]uint(nil), participants...)
	thread.Messages = []models.ThreadMessage{}
	return thread, nil
}

func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := r.db.WithContext(ctx).
		Preload("Participants", orderedParticipants).
		Preload("Messages", orderedMessages).
		First(&thread, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Thread", id)
		}
		return nil, models.NewInternalError(err)
	}
	thread.SyncUsers()
	return &thread, nil
}

func (r *threadRepository) FindDirect(ctx context.Context, a, b uint) (*models.Thread, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.ThreadParticipant{}).
		Select("thread_id").
		Where("user_id IN ?", []uint{a, b}).
		Group("thread_id").
		Having("COUNT(*) = 2").
		Order("thread_id ASC").
		Limit(1).
		Pluck("thread_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, ids[0])
}

func (r *threadRepository) AppendMessage(ctx context.Context, msg *models.ThreadMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListForUser returns every thread userID participates in, in the order the
// user joined them, each with its full message log.
func (r *threadRepository) ListForUser(ctx context.Context, userID uint) ([]models.Thread, error) {
	threads := []models.Thread{}
	if err := r.db.WithContext(ctx).
		Joins("JOIN thread_participants tp ON tp.thread_id = threads.id AND tp.user_id = ?", userID).
		Preload("Participants", orderedParticipants).
		Preload("Messages", orderedMessages).
		Order("tp.joined_at ASC, threads.id ASC").
		Find(&threads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range threads {
		threads[i].SyncUsers()
		if threads[i].Messages == nil {
			threads[i].Messages = []models.ThreadMessage{}
		}
	}
	return threads, nil
}

func threadIDsForUser(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error) {
	ids := []uint{}
	if err := db.WithContext(ctx).
		Model(&models.ThreadParticipant{}).
		Where("user_id = ?", userID).
		Order("joined_at ASC, thread_id ASC").
		Pluck("thread_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
