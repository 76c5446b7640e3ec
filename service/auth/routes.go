package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/featherapp/feather-server/cmd/models"
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
	router.HandleFunc("/auth/register", h.handleRegister).Methods("POST")
	router.HandleFunc("/auth/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/auth/me", utils.AuthMiddleware(h.handleMe)).Methods("GET")
	router.HandleFunc("/auth/reset-password", h.handleResetRequest).Methods("POST")
	router.HandleFunc("/auth/verify-reset-token", h.handleVerifyResetToken).Methods("POST")
	router.HandleFunc("/auth/reset-password/{userId}/confirm", h.handleResetConfirm).Methods("POST")
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
		return
	}

	user, err := Register(h.db, input)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	token, err := GenerateToken(user.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
		return
	}

	user, err := Login(h.db, loginRequest.Email, loginRequest.Password)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	token, err := GenerateToken(user.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: %v", utils.ErrUnauthenticated, err))
		return
	}

	var user models.User
	if err := h.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteError(w, fmt.Errorf("%w: user not found", utils.ErrNotFound))
			return
		}
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var resetRequest struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
		return
	}
	if resetRequest.Email == "" {
		utils.WriteError(w, fmt.Errorf("%w: email is required", utils.ErrValidation))
		return
	}

	// Response is the same whether or not the account exists.
	vague := map[string]string{
		"message": "If an account exists, a reset code will be sent to your email",
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(resetRequest.Email))
	if err := h.db.Where("email = ?", email).First(&user).Error; err != nil {
		utils.WriteJSON(w, http.StatusOK, vague)
		return
	}

	code, err := CreateResetToken(h.db, user.ID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	go func() {
		if err := sendResetEmail(user.Email, code); err != nil {
			log.Printf("error sending reset email: %v", err)
		}
	}()

	utils.WriteJSON(w, http.StatusOK, vague)
}

func (h *Handler) handleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
		return
	}

	user, err := VerifyResetToken(h.db, req.Email, req.Token)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Token is valid",
		"user_id": user.ID,
	})
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, err := strconv.ParseUint(vars["userId"], 10, 32)
	if err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid user ID", utils.ErrValidation))
		return
	}

	var resetRequest struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&resetRequest); err != nil {
		utils.WriteError(w, fmt.Errorf("%w: invalid request body", utils.ErrValidation))
		return
	}

	if err := ResetPassword(h.db, uint(userID), resetRequest.Token, resetRequest.Password); err != nil {
		utils.WriteError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successful",
	})
}
