package user

import (
	"encoding/json"
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
	router.HandleFunc("/users/profile/{username}", h.GetProfile).Methods("GET")
	router.HandleFunc("/users/follow/{id}", utils.AuthMiddleware(h.FollowUser)).Methods("POST")
	router.HandleFunc("/users/update", utils.AuthMiddleware(h.UpdateProfile)).Methods("PUT")
	router.HandleFunc("/users/update/profile-picture", utils.AuthMiddleware(h.UpdateProfilePicture)).Methods("PUT")
	router.HandleFunc("/users/update/cover-picture", utils.AuthMiddleware(h.UpdateCoverPicture)).Methods("PUT")
	router.HandleFunc("/users/followers/{id}", h.GetFollowers).Methods("GET")
	router.HandleFunc("/users/following/{id}", h.GetFollowing).Methods("GET")
	router.HandleFunc("/users/search", h.SearchUsers).Methods("GET")
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	profile, err := Profile(h.db, vars["username"])
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) FollowUser(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	vars := mux.Vars(r)
	targetID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid user ID", utils.ErrValidation))
		return
	}

	following, err := SetFollow(h.db, userID, uint(targetID))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	message := "User unfollowed"
	if following {
		message = "User followed"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":   message,
		"following": following,
	})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	var input UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
		return
	}

	updated, err := UpdateProfile(h.db, userID, input)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    updated,
	})
}

func (h *Handler) UpdateProfilePicture(w http.ResponseWriter, r *http.Request) {
	h.updatePicture(w, r, "profile_picture")
}

func (h *Handler) UpdateCoverPicture(w http.ResponseWriter, r *http.Request) {
	h.updatePicture(w, r, "cover_picture")
}

// updatePicture saves the uploaded image, points the user record at it and
// removes the file it replaced.
func (h *Handler) updatePicture(w http.ResponseWriter, r *http.Request, column string) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: error parsing form", utils.ErrValidation))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: an image file is required", utils.ErrValidation))
		return
	}
	defer file.Close()

	imageURL, err := utils.SaveImage(file, header)
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrValidation, err))
		return
	}

	updated, previous, err := SetPicture(h.db, userID, column, imageURL)
	if err != nil {
		utils.DeleteImage(imageURL)
		utils.WriteError(w, err)
		return
	}
	if previous != "" {
		utils.DeleteImage(previous)
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Picture updated successfully",
		"user":    updated,
	})
}

func (h *Handler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid user ID", utils.ErrValidation))
		return
	}

	followers, err := Followers(h.db, uint(userID))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"followers": followers})
}

func (h *Handler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid user ID", utils.ErrValidation))
		return
	}

	following, err := Following(h.db, uint(userID))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"following": following})
}

func (h *Handler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := SearchUsers(h.db, r.URL.Query().Get("query"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}
