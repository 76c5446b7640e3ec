package auth

import (
	"errors"
	"fmt"
	"math/rand"
	"net/mail"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/cmd/utils"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func validateRegisterInput(in RegisterInput) error {
	username := strings.TrimSpace(in.Username)
	if l := utf8.RuneCountInString(username); l < 3 || l > 20 {
		return fmt.Errorf("%w: username must be 3-20 characters", utils.ErrValidation)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may only contain letters, numbers and underscores", utils.ErrValidation)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: a valid email address is required", utils.ErrValidation)
	}
	if len(in.Password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", utils.ErrValidation)
	}
	if l := utf8.RuneCountInString(strings.TrimSpace(in.Name)); l < 2 || l > 50 {
		return fmt.Errorf("%w: name must be 2-50 characters", utils.ErrValidation)
	}
	return nil
}

// Register creates a user with a bcrypt-hashed password. Email is stored
// lowercase so uniqueness is case-insensitive.
func Register(db *gorm.DB, in RegisterInput) (*models.User, error) {
	if err := validateRegisterInput(in); err != nil {
		return nil, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var existing models.User
	result := db.Where("email = ? OR username = ?", email, username).First(&existing)
	if result.Error == nil {
		if existing.Email == email {
			return nil, fmt.Errorf("%w: email is already in use", utils.ErrConflict)
		}
		return nil, fmt.Errorf("%w: username is already in use", utils.ErrConflict)
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		Name:         strings.TrimSpace(in.Name),
	}

	if err := db.Create(&user).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("%w: email or username is already in use", utils.ErrConflict)
		}
		return nil, err
	}

	return &user, nil
}

// Login verifies the credential pair. The failure message is identical for
// an unknown email and a wrong password so callers cannot probe which
// accounts exist.
func Login(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	result := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", utils.ErrUnauthenticated)
		}
		return nil, result.Error
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", utils.ErrUnauthenticated)
	}

	return &user, nil
}

// GenerateToken issues a 30-day HS256 bearer token whose subject is the
// user ID.
func GenerateToken(userID uint) (string, error) {
	claims := &jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(os.Getenv("SECRET_KEY")))
}

// CreateResetToken replaces any outstanding reset code for the user with a
// fresh 6-digit one valid for 5 minutes.
func CreateResetToken(db *gorm.DB, userID uint) (string, error) {
	resetToken := fmt.Sprintf("%06d", rand.Intn(1000000))

	tx := db.Begin()

	if err := tx.Where("user_id = ?", userID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		tx.Rollback()
		return "", err
	}

	token := models.PasswordResetToken{
		UserID:    userID,
		Token:     resetToken,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := tx.Create(&token).Error; err != nil {
		tx.Rollback()
		return "", err
	}

	if err := tx.Commit().Error; err != nil {
		return "", err
	}

	return resetToken, nil
}

// VerifyResetToken checks an emailed reset code. Responses stay vague about
// which part failed.
func VerifyResetToken(db *gorm.DB, email, token string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error; err != nil {
		return nil, fmt.Errorf("%w: invalid email or token", utils.ErrValidation)
	}

	var resetToken models.PasswordResetToken
	if err := db.Where("user_id = ? AND token = ?", user.ID, token).First(&resetToken).Error; err != nil {
		return nil, fmt.Errorf("%w: invalid email or token", utils.ErrValidation)
	}

	if time.Now().After(resetToken.ExpiresAt) {
		return nil, fmt.Errorf("%w: token expired", utils.ErrValidation)
	}

	return &user, nil
}

// ResetPassword sets a new password after checking the emailed reset code,
// consuming the user's reset tokens in the same transaction. Without a
// valid, unexpired code the password stays untouched.
func ResetPassword(db *gorm.DB, userID uint, token, password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", utils.ErrValidation)
	}

	tx := db.Begin()

	var resetToken models.PasswordResetToken
	if err := tx.Where("user_id = ? AND token = ?", userID, token).First(&resetToken).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", utils.ErrValidation)
		}
		return err
	}
	if time.Now().After(resetToken.ExpiresAt) {
		tx.Rollback()
		return fmt.Errorf("%w: invalid or expired reset token", utils.ErrValidation)
	}

	var user models.User
	if err := tx.First(&user, userID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user not found", utils.ErrNotFound)
		}
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		tx.Rollback()
		return err
	}

	user.PasswordHash = string(passwordHash)
	if err := tx.Save(&user).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Where("user_id = ?", userID).Delete(&models.PasswordResetToken{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
