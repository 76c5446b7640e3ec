package hashtag

import (
	"fmt"
	"strings"
	"time"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/cmd/utils"
	"gorm.io/gorm"
)

// SearchByTag returns tweets carrying the tag, newest first, with the
// total match count. Tags are stored lowercase so the lookup folds case.
func SearchByTag(db *gorm.DB, tag string, limit, skip int) ([]models.Tweet, int64, error) {
	if tag == "" {
		return nil, 0, fmt.Errorf("%w: hashtag parameter is required", utils.ErrValidation)
	}
	tag = strings.ToLower(tag)

	matching := func() *gorm.DB {
		return db.Model(&models.Tweet{}).
			Joins("JOIN hashtags ON hashtags.tweet_id = tweets.id").
			Where("hashtags.tag = ? AND hashtags.deleted_at IS NULL", tag)
	}

	var total int64
	if err := matching().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tweets []models.Tweet
	err := matching().
		Preload("User").
		Preload("Images").
		Preload("Hashtags").
		Preload("ReplyTo.User").
		Preload("RetweetOf.User").
		Order("tweets.created_at DESC").
		Offset(skip).
		Limit(limit).
		Find(&tweets).Error
	if err != nil {
		return nil, 0, err
	}

	return tweets, total, nil
}

// Trend is one entry of the trending list: a tag, how many tweets in the
// window carried it, and up to three example tweet IDs.
type Trend struct {
	Tag    string `gorm:"column:tag" json:"tag"`
	Count  int64  `gorm:"column:tag_count" json:"count"`
	Tweets []uint `gorm:"-" json:"tweets"`
}

// Trending counts tag occurrences over tweets created within the last
// windowDays days, sorted by count descending. Ties break on tag order so
// the result is deterministic.
func Trending(db *gorm.DB, windowDays, limit int) ([]Trend, error) {
	if windowDays < 1 {
		windowDays = 1
	}
	if limit < 1 {
		limit = 10
	}
	since := time.Now().AddDate(0, 0, -windowDays)

	var trends []Trend
	err := db.Model(&models.Hashtag{}).
		Select("hashtags.tag AS tag, COUNT(*) AS tag_count").
		Joins("JOIN tweets ON tweets.id = hashtags.tweet_id").
		Where("tweets.created_at >= ? AND tweets.deleted_at IS NULL", since).
		Group("hashtags.tag").
		Order("tag_count DESC, tag ASC").
		Limit(limit).
		Scan(&trends).Error
	if err != nil {
		return nil, err
	}

	for i := range trends {
		var tweetIDs []uint
		err := db.Model(&models.Hashtag{}).
			Joins("JOIN tweets ON tweets.id = hashtags.tweet_id").
			Where("hashtags.tag = ? AND tweets.created_at >= ? AND tweets.deleted_at IS NULL", trends[i].Tag, since).
			Limit(3).
			Pluck("hashtags.tweet_id", &tweetIDs).Error
		if err != nil {
			return nil, err
		}
		trends[i].Tweets = tweetIDs
	}

	return trends, nil
}
