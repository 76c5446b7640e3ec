package hashtag

import (
	"fmt"
	"net/http"
	"strconv"

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
	router.HandleFunc("/hashtags/tag/{tag}", h.SearchByTag).Methods("GET")
	router.HandleFunc("/hashtags/trends", h.GetTrends).Methods("GET")
}

func (h *Handler) SearchByTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tag := vars["tag"]

	limit := 20
	skip := 0
	query := r.URL.Query()
	if parsed, err := strconv.Atoi(query.Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if parsed, err := strconv.Atoi(query.Get("skip")); err == nil && parsed > 0 {
		skip = parsed
	}

	tweets, total, err := SearchByTag(h.db, tag, limit, skip)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tag":     tag,
		"tweets":  tweets,
		"total":   total,
		"hasMore": total > int64(skip)+int64(len(tweets)),
	})
}

func (h *Handler) GetTrends(w http.ResponseWriter, r *http.Request) {
	days := 1
	limit := 10
	query := r.URL.Query()
	if parsed, err := strconv.Atoi(query.Get("days")); err == nil && parsed > 0 {
		days = parsed
	}
	if parsed, err := strconv.Atoi(query.Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	trends, err := Trending(h.db, days, limit)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"trends": trends,
		"period": fmt.Sprintf("Last %d days", days),
	})
}
