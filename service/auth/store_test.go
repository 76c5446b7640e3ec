package auth

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/cmd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.PasswordResetToken{}))
	return db
}

func validInput() RegisterInput {
	return RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "hunter22",
		Name:     "Alice",
	}
}

func TestRegisterHashesPassword(t *testing.T) {
	db := newTestDB(t)

	user, err := Register(db, validInput())
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")))
}

func TestRegisterNormalizesEmail(t *testing.T) {
	db := newTestDB(t)

	in := validInput()
	in.Email = "  Alice@Example.COM "
	user, err := Register(db, in)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestRegisterConflicts(t *testing.T) {
	db := newTestDB(t)

	_, err := Register(db, validInput())
	require.NoError(t, err)

	dupEmail := validInput()
	dupEmail.Username = "someone_else"
	_, err = Register(db, dupEmail)
	assert.ErrorIs(t, err, utils.ErrConflict)

	dupUsername := validInput()
	dupUsername.Email = "other@example.com"
	_, err = Register(db, dupUsername)
	assert.ErrorIs(t, err, utils.ErrConflict)
}

func TestRegisterValidation(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"short username", func(in *RegisterInput) { in.Username = "ab" }},
		{"long username", func(in *RegisterInput) { in.Username = strings.Repeat("a", 21) }},
		{"bad username characters", func(in *RegisterInput) { in.Username = "no spaces!" }},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *RegisterInput) { in.Password = "12345" }},
		{"short name", func(in *RegisterInput) { in.Name = "x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := Register(db, in)
			assert.ErrorIs(t, err, utils.ErrValidation)
		})
	}
}

func TestLoginDoesNotRevealWhichPartFailed(t *testing.T) {
	db := newTestDB(t)

	_, err := Register(db, validInput())
	require.NoError(t, err)

	_, wrongPassword := Login(db, "alice@example.com", "wrong")
	_, unknownEmail := Login(db, "nobody@example.com", "whatever")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.ErrorIs(t, wrongPassword, utils.ErrUnauthenticated)
	assert.ErrorIs(t, unknownEmail, utils.ErrUnauthenticated)
}

func TestLoginSuccess(t *testing.T) {
	db := newTestDB(t)

	registered, err := Register(db, validInput())
	require.NoError(t, err)

	user, err := Login(db, "Alice@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
}

func TestResetTokenFlow(t *testing.T) {
	db := newTestDB(t)

	user, err := Register(db, validInput())
	require.NoError(t, err)

	code, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	require.Len(t, code, 6)

	verified, err := VerifyResetToken(db, user.Email, code)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)

	_, err = VerifyResetToken(db, user.Email, "000000")
	if code == "000000" {
		require.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, utils.ErrValidation)
	}

	require.NoError(t, ResetPassword(db, user.ID, code, "newsecret"))

	_, err = Login(db, user.Email, "hunter22")
	assert.Error(t, err)
	_, err = Login(db, user.Email, "newsecret")
	assert.NoError(t, err)

	// Reset consumed the outstanding token.
	_, err = VerifyResetToken(db, user.Email, code)
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestResetPasswordRequiresValidToken(t *testing.T) {
	db := newTestDB(t)

	user, err := Register(db, validInput())
	require.NoError(t, err)

	// No reset was ever requested: nobody can change this password.
	var tokenCount int64
	db.Model(&models.PasswordResetToken{}).Where("user_id = ?", user.ID).Count(&tokenCount)
	require.Zero(t, tokenCount)

	err = ResetPassword(db, user.ID, "123456", "attacker-pass")
	assert.ErrorIs(t, err, utils.ErrValidation)

	_, err = Login(db, user.Email, "hunter22")
	assert.NoError(t, err)
	_, err = Login(db, user.Email, "attacker-pass")
	assert.Error(t, err)

	// A wrong code with a real token outstanding is rejected too.
	code, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	err = ResetPassword(db, user.ID, wrong, "attacker-pass")
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = Login(db, user.Email, "hunter22")
	assert.NoError(t, err)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	db := newTestDB(t)

	user, err := Register(db, validInput())
	require.NoError(t, err)

	code, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.PasswordResetToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	err = ResetPassword(db, user.ID, code, "newsecret")
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = Login(db, user.Email, "hunter22")
	assert.NoError(t, err)
}

func TestResetTokenReplacedAndExpires(t *testing.T) {
	db := newTestDB(t)

	user, err := Register(db, validInput())
	require.NoError(t, err)

	first, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)
	second, err := CreateResetToken(db, user.ID)
	require.NoError(t, err)

	if first != second {
		_, err = VerifyResetToken(db, user.Email, first)
		assert.ErrorIs(t, err, utils.ErrValidation)
	}
	_, err = VerifyResetToken(db, user.Email, second)
	require.NoError(t, err)

	// Force expiry.
	require.NoError(t, db.Model(&models.PasswordResetToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err = VerifyResetToken(db, user.Email, second)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
