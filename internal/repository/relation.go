package repository

import (
	"context"
	"errors"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// RelationRepository stores the directed edges behind the friends, pending and invites lists.
type RelationRepository interface {
	// Get returns the edge from userID to peerID, or nil when there is none.
	Get(ctx context.Context, userID, peerID uint) (*models.Relation, error)
	ListPeers(ctx context.Context, userID uint, kind models.RelationKind) ([]uint, error)
	Put(ctx context.Context, userID, peerID uint, kind models.RelationKind) error
	DeletePair(ctx context.Context, a, b uint) error
}

type relationRepository struct {
	db *gorm.DB
}

// NewRelationRepository returns a new RelationRepository implementation.
func NewRelationRepository(db *gorm.DB) RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) Get(ctx context.Context, userID, peerID uint) (*models.Relation, error) {
	var rel models.Relation
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND peer_id = ?", userID, peerID).
		First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &rel, nil
}

// ListPeers returns the peer ids of userID's edges of kind, oldest first.
func (r *relationRepository) ListPeers(ctx context.Context, userID uint, kind models.RelationKind) ([]uint, error) {
	ids := []uint{}
	if err := r.db.WithContext(ctx).
		Model(&models.Relation{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Order("id ASC").
		Pluck("peer_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// Put inserts a new edge. An existing edge for the same pair is a Conflict.
func (r *relationRepository) Put(ctx context.Context, userID, peerID uint, kind models.RelationKind) error {
	rel := &models.Relation{UserID: userID, PeerID: peerID, Kind: kind}
	if err := r.db.WithContext(ctx).Create(rel).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Relationship already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// DeletePair removes the edges between a and b in both directions.
func (r *relationRepository) DeletePair(ctx context.Context, a, b uint) error {
	if err := r.db.WithContext(ctx).
		Where("(user_id = ? AND peer_id = ?) OR (user_id = ? AND peer_id = ?)", a, b, b, a).
		Delete(&models.Relation{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
