package tweet

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/cmd/utils"
	"github.com/featherapp/feather-server/service/user"
	"gorm.io/gorm"
)

const MaxContentLength = 280

// withFeedAssociations loads everything a feed row carries: the author's
// public fields plus, for replies and retweets, the referenced tweet and
// its author.
func withFeedAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("Images").
		Preload("Hashtags").
		Preload("ReplyTo.User").
		Preload("RetweetOf.User")
}

func validateContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	length := utf8.RuneCountInString(trimmed)
	if length < 1 || length > MaxContentLength {
		return "", fmt.Errorf("%w: content must be 1-%d characters", utils.ErrValidation, MaxContentLength)
	}
	return trimmed, nil
}

func findTweet(db *gorm.DB, tweetID uint) (*models.Tweet, error) {
	var t models.Tweet
	if err := db.First(&t, tweetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tweet not found", utils.ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

type CreateInput struct {
	UserID      uint
	Content     string
	ImageURLs   []string
	ReplyToID   *uint
	RetweetOfID *uint
}

// CreateTweet validates and persists a new tweet together with its images
// and extracted hashtags. Reply and retweet references are independent
// paths: each requires its target to exist and sets the matching derived
// flag. The referenced tweet's own engagement sets are not touched here;
// retweet membership is ToggleRetweet's job.
func CreateTweet(db *gorm.DB, in CreateInput) (*models.Tweet, error) {
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	if len(in.ImageURLs) > utils.MaxTweetImages {
		return nil, fmt.Errorf("%w: at most %d images per tweet", utils.ErrValidation, utils.MaxTweetImages)
	}

	t := models.Tweet{
		UserID:  in.UserID,
		Content: content,
	}

	if in.ReplyToID != nil {
		if _, err := findTweet(db, *in.ReplyToID); err != nil {
			return nil, err
		}
		t.ReplyToID = in.ReplyToID
		t.IsReply = true
	}

	if in.RetweetOfID != nil {
		if _, err := findTweet(db, *in.RetweetOfID); err != nil {
			return nil, err
		}
		t.RetweetOfID = in.RetweetOfID
		t.IsRetweet = true
	}

	tx := db.Begin()

	if err := createTweetTx(tx, &t); err != nil {
		tx.Rollback()
		return nil, err
	}

	for i, url := range in.ImageURLs {
		image := models.TweetImage{TweetID: t.ID, URL: url, Position: i}
		if err := tx.Create(&image).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	var created models.Tweet
	if err := withFeedAssociations(db).First(&created, t.ID).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

// createTweetTx inserts the tweet row and its hashtag rows. Hashtags are
// derived from content exactly here, the only place content is ever set.
func createTweetTx(tx *gorm.DB, t *models.Tweet) error {
	if err := tx.Create(t).Error; err != nil {
		return err
	}
	for _, tag := range models.ExtractHashtags(t.Content) {
		row := models.Hashtag{TweetID: t.ID, Tag: tag}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// DeleteTweet removes a tweet and the rows it owns: images, hashtags and
// engagement edges pointing at it. Replies to it and retweets of it are
// left in place with dangling references; readers tolerate those.
func DeleteTweet(db *gorm.DB, tweetID, requestorID uint) error {
	t, err := findTweet(db, tweetID)
	if err != nil {
		return err
	}
	if t.UserID != requestorID {
		return fmt.Errorf("%w: you cannot delete another user's tweet", utils.ErrForbidden)
	}

	var images []models.TweetImage
	db.Where("tweet_id = ?", tweetID).Find(&images)

	tx := db.Begin()
	if err := deleteTweetTx(tx, t); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	for _, image := range images {
		if err := utils.DeleteImage(image.URL); err != nil {
			// Keep going: the database row is already gone.
			continue
		}
	}
	return nil
}

func deleteTweetTx(tx *gorm.DB, t *models.Tweet) error {
	owned := []interface{}{
		&models.Like{},
		&models.Retweet{},
		&models.Bookmark{},
		&models.Hashtag{},
		&models.TweetImage{},
	}
	for _, model := range owned {
		if err := tx.Unscoped().Where("tweet_id = ?", t.ID).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Delete(t).Error
}

// TweetDetail is the single-tweet view: the tweet plus its direct replies,
// newest first, each enriched with its author.
type TweetDetail struct {
	Tweet   models.Tweet   `json:"tweet"`
	Replies []models.Tweet `json:"replies"`
}

func GetTweet(db *gorm.DB, tweetID uint) (*TweetDetail, error) {
	var t models.Tweet
	if err := withFeedAssociations(db).First(&t, tweetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tweet not found", utils.ErrNotFound)
		}
		return nil, err
	}

	var replies []models.Tweet
	err := db.Preload("User").
		Where("reply_to_id = ?", tweetID).
		Order("created_at DESC").
		Find(&replies).Error
	if err != nil {
		return nil, err
	}

	return &TweetDetail{Tweet: t, Replies: replies}, nil
}

// ListFilter selects which authors a feed page draws from: everyone (zero
// value), a single author, or the viewer's followed set plus the viewer.
type ListFilter struct {
	AuthorID      uint
	ViewerID      uint
	FollowingOnly bool
	Limit         int
	Skip          int
}

// ListTweets composes a feed page, newest first, with the total count the
// filter matches.
func ListTweets(db *gorm.DB, filter ListFilter) ([]models.Tweet, int64, error) {
	query := db.Model(&models.Tweet{})

	if filter.FollowingOnly {
		if filter.ViewerID == 0 {
			return nil, 0, fmt.Errorf("%w: sign in to view your following feed", utils.ErrUnauthenticated)
		}
		followingIDs, err := user.FollowingIDs(db, filter.ViewerID)
		if err != nil {
			return nil, 0, err
		}
		authors := append(followingIDs, filter.ViewerID)
		query = query.Where("user_id IN ?", authors)
	} else if filter.AuthorID != 0 {
		query = query.Where("user_id = ?", filter.AuthorID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tweets []models.Tweet
	err := withFeedAssociations(query).
		Order("created_at DESC").
		Offset(filter.Skip).
		Limit(filter.Limit).
		Find(&tweets).Error
	if err != nil {
		return nil, 0, err
	}

	return tweets, total, nil
}

// ListBookmarked returns the viewer's bookmarked tweets, newest first.
func ListBookmarked(db *gorm.DB, userID uint) ([]models.Tweet, error) {
	var tweets []models.Tweet
	err := withFeedAssociations(db).
		Joins("JOIN bookmarks ON bookmarks.tweet_id = tweets.id").
		Where("bookmarks.user_id = ? AND bookmarks.deleted_at IS NULL", userID).
		Order("tweets.created_at DESC").
		Find(&tweets).Error
	return tweets, err
}

// ToggleLike flips the user's membership in the tweet's like set. Returns
// true when the tweet is now liked.
func ToggleLike(db *gorm.DB, tweetID, userID uint) (bool, error) {
	if _, err := findTweet(db, tweetID); err != nil {
		return false, err
	}

	var like models.Like
	err := db.Where("user_id = ? AND tweet_id = ?", userID, tweetID).First(&like).Error
	if err == nil {
		if err := db.Unscoped().Delete(&like).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	like = models.Like{UserID: userID, TweetID: tweetID}
	if err := db.Create(&like).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// ToggleBookmark flips the user's membership in the tweet's bookmark set.
func ToggleBookmark(db *gorm.DB, tweetID, userID uint) (bool, error) {
	if _, err := findTweet(db, tweetID); err != nil {
		return false, err
	}

	var bookmark models.Bookmark
	err := db.Where("user_id = ? AND tweet_id = ?", userID, tweetID).First(&bookmark).Error
	if err == nil {
		if err := db.Unscoped().Delete(&bookmark).Error; err != nil {
			return false, err
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	bookmark = models.Bookmark{UserID: userID, TweetID: tweetID}
	if err := db.Create(&bookmark).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

// ToggleRetweet is the one engagement that mutates two records: the
// original's retweet set and the actor's own retweet tweet. Both sides of
// each transition run in a single transaction so the pair cannot be
// observed half-applied.
//
// Turning the retweet on creates a tweet authored by the actor whose
// content is the quote text when given, otherwise a copy of the original's
// content. Turning it off deletes the edge and the actor's most recent
// retweet tweet of this original.
func ToggleRetweet(db *gorm.DB, tweetID, userID uint, quote string) (*models.Tweet, bool, error) {
	original, err := findTweet(db, tweetID)
	if err != nil {
		return nil, false, err
	}

	var edge models.Retweet
	err = db.Where("user_id = ? AND tweet_id = ?", userID, tweetID).First(&edge).Error
	if err == nil {
		if err := removeRetweet(db, &edge, tweetID, userID); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	content := strings.TrimSpace(quote)
	if content == "" {
		content = original.Content
	} else if _, err := validateContent(content); err != nil {
		return nil, false, err
	}

	retweet := models.Tweet{
		UserID:      userID,
		Content:     content,
		RetweetOfID: &tweetID,
		IsRetweet:   true,
	}

	tx := db.Begin()

	edge = models.Retweet{UserID: userID, TweetID: tweetID}
	if err := tx.Create(&edge).Error; err != nil {
		tx.Rollback()
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, true, nil
		}
		return nil, false, err
	}

	if err := createTweetTx(tx, &retweet); err != nil {
		tx.Rollback()
		return nil, false, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, false, err
	}

	var created models.Tweet
	if err := withFeedAssociations(db).First(&created, retweet.ID).Error; err != nil {
		return nil, true, err
	}
	return &created, true, nil
}

// removeRetweet deletes the edge and the actor's retweet tweet of this
// original together. If a race ever produced more than one retweet tweet,
// the most recently created one goes.
func removeRetweet(db *gorm.DB, edge *models.Retweet, tweetID, userID uint) error {
	tx := db.Begin()

	if err := tx.Unscoped().Delete(edge).Error; err != nil {
		tx.Rollback()
		return err
	}

	var retweetTweet models.Tweet
	err := tx.Where("user_id = ? AND retweet_of_id = ? AND is_retweet = ?", userID, tweetID, true).
		Order("created_at DESC").
		First(&retweetTweet).Error
	if err == nil {
		if err := deleteTweetTx(tx, &retweetTweet); err != nil {
			tx.Rollback()
			return err
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
