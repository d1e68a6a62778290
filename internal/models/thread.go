package models

import "time"

// Thread is an ordered message log shared by exactly its participants.
type Thread struct {
	ID           uint                `gorm:"primaryKey" json:"_id"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	Participants []ThreadParticipant `gorm:"foreignKey:ThreadID" json:"-"`
	Users        []uint              `gorm:"-" json:"users"`
	Messages     []ThreadMessage     `gorm:"foreignKey:ThreadID" json:"messages"`
}

// ThreadMessage is a single entry in a thread's log.
type ThreadMessage struct {
	ID        uint      `gorm:"primaryKey" json:"_id"`
	ThreadID  uint      `gorm:"not null;index" json:"thread_id"`
	AuthorID  uint      `gorm:"not null;index" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index" json:"date"`
}

// ThreadParticipant is the join row linking a user to a thread.
// Join order defines the order of the user's messages list.
type ThreadParticipant struct {
	ThreadID uint      `gorm:"primaryKey" json:"thread_id"`
	UserID   uint      `gorm:"primaryKey;index" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// HasParticipant reports whether userID belongs to the thread.
func (t *Thread) HasParticipant(userID uint) bool {
	for _, id := range t.Users {
		if id == userID {
			return true
		}
	}
	for _, p := range t.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// SyncUsers fills Users from the loaded Participants.
func (t *Thread) SyncUsers() {
	if len(t.Participants) == 0 {
		return
	}
	t.Users = make([]uint, 0, len(t.Participants))
	for _, p := range t.Participants {
		t.Users = append(t.Users, p.UserID)
	}
}
