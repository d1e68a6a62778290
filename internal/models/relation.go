package models

import "time"

// RelationKind is the role a peer plays in a user's relationship lists.
type RelationKind string

const (
	// RelationFriend marks a peer in the user's friends list.
	RelationFriend RelationKind = "friend"
	// RelationPending marks a peer the user has sent a friend request to.
	RelationPending RelationKind = "pending"
	// RelationInvite marks a peer the user has received a friend request from.
	RelationInvite RelationKind = "invite"
)

// Relation is one entry in a user's friends, pending or invites list.
// The unique (user_id, peer_id) index keeps the lists set-like and mutually exclusive.
type Relation struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    uint         `gorm:"not null;uniqueIndex:idx_relation_pair;index:idx_relation_owner_kind,priority:1" json:"user_id"`
	PeerID    uint         `gorm:"not null;uniqueIndex:idx_relation_pair" json:"peer_id"`
	Kind      RelationKind `gorm:"type:varchar(16);not null;index:idx_relation_owner_kind,priority:2" json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Relation) TableName() string {
	return "relations"
}

// PairState describes the relationship between a user and a peer, from the user's side.
type PairState string

const (
	PairNone            PairState = "none"
	PairPendingSent     PairState = "pending_sent"
	PairPendingReceived PairState = "pending_received"
	PairFriends         PairState = "friends"
)

// StateOf maps the user's edge toward a peer to the pair state.
func StateOf(rel *Relation) PairState {
	if rel == nil {
		return PairNone
	}
	switch rel.Kind {
	case RelationFriend:
		return PairFriends
	case RelationPending:
		return PairPendingSent
	case RelationInvite:
		return PairPendingReceived
	default:
		return PairNone
	}
}
