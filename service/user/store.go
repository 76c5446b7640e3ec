package user

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/cmd/utils"
	"gorm.io/gorm"
)

// SetFollow toggles the follow edge from actor to target. The edge is one
// row, so follower and following membership cannot drift apart. Returns
// true when the actor now follows the target.
func SetFollow(db *gorm.DB, actorID, targetID uint) (bool, error) {
	if actorID == targetID {
		return false, fmt.Errorf("%w: you cannot follow yourself", utils.ErrValidation)
	}

	var target models.User
	if err := db.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: user not found", utils.ErrNotFound)
		}
		return false, err
	}

	var edge models.Follow
	err := db.Where("follower_id = ? AND following_id = ?", actorID, targetID).First(&edge).Error
	if err == nil {
		if err := db.Unscoped().Delete(&edge).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	edge = models.Follow{FollowerID: actorID, FollowingID: targetID}
	if err := db.Create(&edge).Error; err != nil {
		// A concurrent toggle may have created the edge first; the
		// requested state already holds, so report it.
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// Followers returns the users following the given user, enriched with
// their public fields.
func Followers(db *gorm.DB, userID uint) ([]models.PublicProfile, error) {
	if err := requireUser(db, userID); err != nil {
		return nil, err
	}

	var users []models.User
	err := db.Joins("JOIN follows ON follows.follower_id = users.id").
		Where("follows.following_id = ? AND follows.deleted_at IS NULL", userID).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return publicProfiles(users), nil
}

// Following returns the users the given user follows.
func Following(db *gorm.DB, userID uint) ([]models.PublicProfile, error) {
	if err := requireUser(db, userID); err != nil {
		return nil, err
	}

	var users []models.User
	err := db.Joins("JOIN follows ON follows.following_id = users.id").
		Where("follows.follower_id = ? AND follows.deleted_at IS NULL", userID).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return publicProfiles(users), nil
}

// FollowingIDs returns the IDs of the users the given user follows.
// The feed's "following" mode filters authors on this set.
func FollowingIDs(db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, err
}

func requireUser(db *gorm.DB, userID uint) error {
	var user models.User
	if err := db.Select("id").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user not found", utils.ErrNotFound)
		}
		return err
	}
	return nil
}

func publicProfiles(users []models.User) []models.PublicProfile {
	profiles := make([]models.PublicProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Public())
	}
	return profiles
}

// ProfileResult is a user's public page: the user record, both sides of
// their follow graph and how many tweets they have written.
type ProfileResult struct {
	User       models.User            `json:"user"`
	Followers  []models.PublicProfile `json:"followers"`
	Following  []models.PublicProfile `json:"following"`
	TweetCount int64                  `json:"tweet_count"`
}

func Profile(db *gorm.DB, username string) (*ProfileResult, error) {
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user not found", utils.ErrNotFound)
		}
		return nil, err
	}

	followers, err := Followers(db, user.ID)
	if err != nil {
		return nil, err
	}
	following, err := Following(db, user.ID)
	if err != nil {
		return nil, err
	}

	var tweetCount int64
	if err := db.Model(&models.Tweet{}).Where("user_id = ?", user.ID).Count(&tweetCount).Error; err != nil {
		return nil, err
	}

	return &ProfileResult{
		User:       user,
		Followers:  followers,
		Following:  following,
		TweetCount: tweetCount,
	}, nil
}

// UpdateInput carries a partial profile update. Nil fields are left
// untouched; empty strings clear the optional text fields.
type UpdateInput struct {
	Name           *string `json:"name"`
	Bio            *string `json:"bio"`
	Location       *string `json:"location"`
	Website        *string `json:"website"`
	ProfilePicture *string `json:"profile_picture"`
	CoverPicture   *string `json:"cover_picture"`
}

func (in UpdateInput) validate() error {
	if in.Name != nil {
		if l := utf8.RuneCountInString(strings.TrimSpace(*in.Name)); l < 2 || l > 50 {
			return fmt.Errorf("%w: name must be 2-50 characters", utils.ErrValidation)
		}
	}
	if in.Bio != nil && utf8.RuneCountInString(*in.Bio) > 160 {
		return fmt.Errorf("%w: bio must be at most 160 characters", utils.ErrValidation)
	}
	if in.Location != nil && utf8.RuneCountInString(*in.Location) > 30 {
		return fmt.Errorf("%w: location must be at most 30 characters", utils.ErrValidation)
	}
	if in.Website != nil && utf8.RuneCountInString(*in.Website) > 100 {
		return fmt.Errorf("%w: website must be at most 100 characters", utils.ErrValidation)
	}
	return nil
}

// UpdateProfile merges only the provided fields into the user record.
func UpdateProfile(db *gorm.DB, userID uint, in UpdateInput) (*models.User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user not found", utils.ErrNotFound)
		}
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.Location != nil {
		updates["location"] = *in.Location
	}
	if in.Website != nil {
		updates["website"] = *in.Website
	}
	if in.ProfilePicture != nil {
		updates["profile_picture"] = *in.ProfilePicture
	}
	if in.CoverPicture != nil {
		updates["cover_picture"] = *in.CoverPicture
	}

	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return &user, nil
}

// SetPicture stores a freshly uploaded profile or cover image URL and
// returns the replaced URL so the caller can remove the old file.
func SetPicture(db *gorm.DB, userID uint, column, url string) (*models.User, string, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", fmt.Errorf("%w: user not found", utils.ErrNotFound)
		}
		return nil, "", err
	}

	var previous string
	switch column {
	case "profile_picture":
		previous = user.ProfilePicture
		user.ProfilePicture = url
	case "cover_picture":
		previous = user.CoverPicture
		user.CoverPicture = url
	default:
		return nil, "", fmt.Errorf("%w: unknown picture field", utils.ErrValidation)
	}

	if err := db.Model(&user).Update(column, url).Error; err != nil {
		return nil, "", err
	}
	return &user, previous, nil
}

// SearchUsers matches the query case-insensitively against name and
// username, capped at 20 results.
func SearchUsers(db *gorm.DB, query string) ([]models.PublicProfile, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", utils.ErrValidation)
	}

	pattern := "%" + strings.ToLower(query) + "%"
	var users []models.User
	err := db.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ?", pattern, pattern).
		Limit(20).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return publicProfiles(users), nil
}
