package tweet

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/featherapp/feather-server/cmd/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/tweets", utils.AuthMiddleware(h.CreateTweet)).Methods("POST")
	router.HandleFunc("/tweets", utils.OptionalAuth(h.GetTweets)).Methods("GET")
	router.HandleFunc("/tweets/bookmarks/all", utils.AuthMiddleware(h.GetBookmarked)).Methods("GET")
	router.HandleFunc("/tweets/like/{id}", utils.AuthMiddleware(h.LikeTweet)).Methods("POST")
	router.HandleFunc("/tweets/retweet/{id}", utils.AuthMiddleware(h.RetweetTweet)).Methods("POST")
	router.HandleFunc("/tweets/bookmark/{id}", utils.AuthMiddleware(h.BookmarkTweet)).Methods("POST")
	router.HandleFunc("/tweets/{id}", h.GetTweet).Methods("GET")
	router.HandleFunc("/tweets/{id}", utils.AuthMiddleware(h.DeleteTweet)).Methods("DELETE")
}

func parseTweetID(r *http.Request) (uint, error) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid tweet ID", utils.ErrValidation)
	}
	return uint(id), nil
}

func parseOptionalID(value string) (*uint, error) {
	if value == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid tweet reference", utils.ErrValidation)
	}
	parsed := uint(id)
	return &parsed, nil
}

// CreateTweet accepts either a JSON body or a multipart form with up to
// four image attachments.
func (h *Handler) CreateTweet(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	input := CreateInput{UserID: userID}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Content   string `json:"content"`
			ReplyTo   string `json:"reply_to"`
			RetweetOf string `json:"retweet_of"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
			return
		}
		input.Content = body.Content
		if input.ReplyToID, err = parseOptionalID(body.ReplyTo); err != nil {
			utils.WriteError(w, err)
			return
		}
		if input.RetweetOfID, err = parseOptionalID(body.RetweetOf); err != nil {
			utils.WriteError(w, err)
			return
		}
	} else {
		if err := r.ParseMultipartForm(25 << 20); err != nil {
			utils.WriteError(w, fmt.Errorf("%w: error parsing form", utils.ErrValidation))
			return
		}
		input.Content = r.FormValue("content")
		if input.ReplyToID, err = parseOptionalID(r.FormValue("reply_to")); err != nil {
			utils.WriteError(w, err)
			return
		}
		if input.RetweetOfID, err = parseOptionalID(r.FormValue("retweet_of")); err != nil {
			utils.WriteError(w, err)
			return
		}

		files := r.MultipartForm.File["images"]
		if len(files) > utils.MaxTweetImages {
			utils.WriteError(w, fmt.Errorf("%w: at most %d images per tweet", utils.ErrValidation, utils.MaxTweetImages))
			return
		}
		for _, fileHeader := range files {
			file, err := fileHeader.Open()
			if err != nil {
				utils.WriteError(w, fmt.Errorf("%w: error reading image", utils.ErrValidation))
				return
			}
			imageURL, err := utils.SaveImage(file, fileHeader)
			file.Close()
			if err != nil {
				utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrValidation, err))
				return
			}
			input.ImageURLs = append(input.ImageURLs, imageURL)
		}
	}

	created, err := CreateTweet(h.db, input)
	if err != nil {
		for _, url := range input.ImageURLs {
			utils.DeleteImage(url)
		}
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Tweet created successfully",
		"tweet":   created,
	})
}

func (h *Handler) GetTweets(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Limit: 20,
	}

	query := r.URL.Query()
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if skip, err := strconv.Atoi(query.Get("skip")); err == nil && skip > 0 {
		filter.Skip = skip
	}
	if userID, err := strconv.ParseUint(query.Get("userId"), 10, 64); err == nil {
		filter.AuthorID = uint(userID)
	}
	if viewerID, err := utils.GetUserIDFromContext(r.Context()); err == nil {
		filter.ViewerID = viewerID
	}
	filter.FollowingOnly = query.Get("following") == "true"

	tweets, total, err := ListTweets(h.db, filter)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tweets":  tweets,
		"total":   total,
		"hasMore": total > int64(filter.Skip)+int64(len(tweets)),
	})
}

func (h *Handler) GetTweet(w http.ResponseWriter, r *http.Request) {
	tweetID, err := parseTweetID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	detail, err := GetTweet(h.db, tweetID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) DeleteTweet(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	tweetID, err := parseTweetID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if err := DeleteTweet(h.db, tweetID, userID); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Tweet deleted successfully",
	})
}

func (h *Handler) LikeTweet(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	tweetID, err := parseTweetID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	liked, err := ToggleLike(h.db, tweetID, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	message := "Tweet unliked"
	if liked {
		message = "Tweet liked"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": message,
		"liked":   liked,
	})
}

func (h *Handler) RetweetTweet(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	tweetID, err := parseTweetID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	var body struct {
		QuoteContent string `json:"quote_content"`
	}
	if r.Body != nil {
		// Body is optional; a plain retweet sends none.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	quote := strings.TrimSpace(body.QuoteContent)
	created, retweeted, err := ToggleRetweet(h.db, tweetID, userID, quote)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	if !retweeted {
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message":   "Retweet removed",
			"retweeted": false,
		})
		return
	}

	message := "Tweet retweeted"
	if quote != "" {
		message = "Quote tweet created"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":   message,
		"retweeted": true,
		"tweet":     created,
	})
}

func (h *Handler) BookmarkTweet(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	tweetID, err := parseTweetID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	bookmarked, err := ToggleBookmark(h.db, tweetID, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	message := "Bookmark removed"
	if bookmarked {
		message = "Tweet bookmarked"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":    message,
		"bookmarked": bookmarked,
	})
}

func (h *Handler) GetBookmarked(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	tweets, err := ListBookmarked(h.db, userID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"tweets": tweets})
}
