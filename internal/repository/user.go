package repository

import (
	"context"
	"errors"

	"murmur/internal/cache"
	"murmur/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	SearchByName(ctx context.Context, escaped string, limit int) ([]models.User, error)
	Hydrate(ctx context.Context, user *models.User) error
	LockPair(ctx context.Context, a, b uint) error
}

type userRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, rdb *redis.Client) UserRepository {
	return &userRepository{db: db, rdb: rdb}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User

	err := cache.Aside(ctx, r.rdb, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByIDs returns the users in ids, preserving the order of ids.
func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	byID := make(map[uint]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Email is already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// SearchByName matches escaped as a case-insensitive substring of the name.
// escaped must already have LIKE metacharacters escaped with a backslash.
func (r *userRepository) SearchByName(ctx context.Context, escaped string, limit int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE LOWER(?) ESCAPE '\'`, "%"+escaped+"%").
		Order("name ASC, id ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

// Hydrate fills the friends, pending, invites and messages id lists of user.
func (r *userRepository) Hydrate(ctx context.Context, user *models.User) error {
	var rels []models.Relation
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("id ASC").
		Find(&rels).Error; err != nil {
		return models.NewInternalError(err)
	}

	user.Friends, user.Pending, user.Invites = []uint{}, []uint{}, []uint{}
	for _, rel := range rels {
		switch rel.Kind {
		case models.RelationFriend:
			user.Friends = append(user.Friends, rel.PeerID)
		case models.RelationPending:
			user.Pending = append(user.Pending, rel.PeerID)
		case models.RelationInvite:
			user.Invites = append(user.Invites, rel.PeerID)
		}
	}

	threadIDs, err := threadIDsForUser(ctx, r.db, user.ID)
	if err != nil {
		return err
	}
	user.Messages = threadIDs
	return nil
}

// LockPair row-locks both users in ascending id order so concurrent
// transitions on the same pair serialise. It fails with NotFound when either
// user does not exist. SQLite has no row locks; its single writer serialises instead.
func (r *userRepository) LockPair(ctx context.Context, a, b uint) error {
	ids := []uint{a, b}
	if b < a {
		ids = []uint{b, a}
	}

	q := r.db.WithContext(ctx)
	if q.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var users []models.User
	if err := q.Select("id").Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return models.NewInternalError(err)
	}

	found := make(map[uint]bool, len(users))
	for _, u := range users {
		found[u.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return models.NewNotFoundError("User", id)
		}
	}
	return nil
}
