package models

import (
	"regexp"
	"strings"

	"gorm.io/gorm"
)

type Tweet struct {
	gorm.Model
	UserID     uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Content    string `gorm:"column:content;type:text;not null" json:"content"`
	IsReply    bool   `gorm:"column:is_reply;default:false" json:"is_reply"`
	IsRetweet  bool   `gorm:"column:is_retweet;default:false" json:"is_retweet"`
	ReplyToID  *uint  `gorm:"column:reply_to_id;index" json:"reply_to_id,omitempty"`
	RetweetOfID *uint `gorm:"column:retweet_of_id;index" json:"retweet_of_id,omitempty"`

	User      *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ReplyTo   *Tweet       `gorm:"foreignKey:ReplyToID" json:"reply_to,omitempty"`
	RetweetOf *Tweet       `gorm:"foreignKey:RetweetOfID" json:"retweet_of,omitempty"`
	Images    []TweetImage `gorm:"foreignKey:TweetID" json:"images,omitempty"`
	Hashtags  []Hashtag    `gorm:"foreignKey:TweetID" json:"hashtags,omitempty"`
	Likes     []Like       `gorm:"foreignKey:TweetID" json:"likes,omitempty"`
	Retweets  []Retweet    `gorm:"foreignKey:TweetID" json:"retweets,omitempty"`
	Bookmarks []Bookmark   `gorm:"foreignKey:TweetID" json:"bookmarks,omitempty"`
}

type TweetImage struct {
	gorm.Model
	TweetID  uint   `gorm:"column:tweet_id;not null;index" json:"tweet_id"`
	URL      string `gorm:"column:url;not null" json:"url"`
	Position int    `gorm:"column:position;default:0" json:"position"`
}

type Like struct {
	gorm.Model
	UserID  uint  `gorm:"column:user_id;not null;uniqueIndex:idx_like_user_tweet" json:"user_id"`
	TweetID uint  `gorm:"column:tweet_id;not null;uniqueIndex:idx_like_user_tweet" json:"tweet_id"`
	User    *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Retweet records membership in a tweet's retweet set. The retweeting
// user's own timeline entry is a separate Tweet row with RetweetOfID set;
// the two are created and removed together.
type Retweet struct {
	gorm.Model
	UserID  uint  `gorm:"column:user_id;not null;uniqueIndex:idx_retweet_user_tweet" json:"user_id"`
	TweetID uint  `gorm:"column:tweet_id;not null;uniqueIndex:idx_retweet_user_tweet" json:"tweet_id"`
	User    *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type Bookmark struct {
	gorm.Model
	UserID  uint  `gorm:"column:user_id;not null;uniqueIndex:idx_bookmark_user_tweet" json:"user_id"`
	TweetID uint  `gorm:"column:tweet_id;not null;uniqueIndex:idx_bookmark_user_tweet" json:"tweet_id"`
	User    *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Hashtag is one lowercased tag carried by one tweet. Rows are written
// exactly once, when the tweet's content is set at creation.
type Hashtag struct {
	gorm.Model
	TweetID uint   `gorm:"column:tweet_id;not null;uniqueIndex:idx_hashtag_tweet_tag" json:"tweet_id"`
	Tag     string `gorm:"column:tag;size:255;not null;uniqueIndex:idx_hashtag_tweet_tag;index" json:"tag"`
}

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractHashtags pulls every #word token out of content, lowercased and
// de-duplicated. Order of the result is not significant.
func ExtractHashtags(content string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(content, -1)
	seen := make(map[string]bool, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}
