package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username       string `gorm:"column:username;size:20;not null;uniqueIndex" json:"username"`
	Email          string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash   string `gorm:"column:password_hash;size:255;not null" json:"-"`
	Name           string `gorm:"column:name;size:50;not null" json:"name"`
	Bio            string `gorm:"column:bio;size:160" json:"bio"`
	Location       string `gorm:"column:location;size:30" json:"location"`
	Website        string `gorm:"column:website;size:100" json:"website"`
	ProfilePicture string `gorm:"column:profile_picture;size:255" json:"profile_picture"`
	CoverPicture   string `gorm:"column:cover_picture;size:255" json:"cover_picture"`
	IsVerified     bool   `gorm:"column:is_verified;default:false" json:"is_verified"`
}

// PublicProfile is the subset of user fields attached to tweets and
// follower/following listings.
type PublicProfile struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	Bio            string `json:"bio,omitempty"`
	ProfilePicture string `json:"profile_picture"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Username:       u.Username,
		Name:           u.Name,
		Bio:            u.Bio,
		ProfilePicture: u.ProfilePicture,
	}
}

// Follow is a directed edge in the follow graph. Storing the edge as its
// own row keeps "A follows B" a single write, so the follower and
// following views can never disagree.
type Follow struct {
	gorm.Model
	FollowerID  uint  `gorm:"column:follower_id;not null;uniqueIndex:idx_follower_following" json:"follower_id"`
	FollowingID uint  `gorm:"column:following_id;not null;uniqueIndex:idx_follower_following" json:"following_id"`
	Follower    *User `gorm:"foreignKey:FollowerID" json:"follower,omitempty"`
	Following   *User `gorm:"foreignKey:FollowingID" json:"following,omitempty"`
}

type PasswordResetToken struct {
	gorm.Model
	UserID    uint      `gorm:"column:user_id;not null" json:"user_id"`
	Token     string    `gorm:"column:token;size:10;not null" json:"-"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null" json:"expires_at"`
}
