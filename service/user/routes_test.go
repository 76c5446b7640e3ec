package user

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/cmd/utils"
	"github.com/featherapp/feather-server/service/auth"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*gorm.DB, *mux.Router) {
	t.Helper()
	t.Setenv("SECRET_KEY", "test-secret")
	t.Cleanup(func() { os.RemoveAll("uploads") })

	db := newTestDB(t)
	router := mux.NewRouter()
	NewHandler(db).RegisterRoutes(router)
	return db, router
}

func uploadPicture(t *testing.T, router *mux.Router, path, token, filename string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestUpdateProfilePictureUpload(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")

	token, err := auth.GenerateToken(alice.ID)
	require.NoError(t, err)
	bearer := "Bearer " + token

	rec := uploadPicture(t, router, "/users/update/profile-picture", bearer, "avatar.png")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		User models.User `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, strings.HasPrefix(resp.User.ProfilePicture, "/images/"))

	firstFile := filepath.Join(utils.ImagePath, filepath.Base(resp.User.ProfilePicture))
	_, err = os.Stat(firstFile)
	require.NoError(t, err)

	var stored models.User
	require.NoError(t, db.First(&stored, alice.ID).Error)
	assert.Equal(t, resp.User.ProfilePicture, stored.ProfilePicture)
	assert.Empty(t, stored.CoverPicture)

	// A second upload replaces the record and removes the old file.
	rec = uploadPicture(t, router, "/users/update/profile-picture", bearer, "avatar2.png")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, db.First(&stored, alice.ID).Error)
	assert.NotEqual(t, resp.User.ProfilePicture, stored.ProfilePicture)
	_, err = os.Stat(firstFile)
	assert.True(t, os.IsNotExist(err))
}

func TestUpdateCoverPictureUpload(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")

	token, err := auth.GenerateToken(alice.ID)
	require.NoError(t, err)

	rec := uploadPicture(t, router, "/users/update/cover-picture", "Bearer "+token, "cover.jpg")
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, db.First(&stored, alice.ID).Error)
	assert.True(t, strings.HasPrefix(stored.CoverPicture, "/images/"))
	assert.Empty(t, stored.ProfilePicture)
}

func TestUpdatePictureRejections(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")

	token, err := auth.GenerateToken(alice.ID)
	require.NoError(t, err)
	bearer := "Bearer " + token

	rec := uploadPicture(t, router, "/users/update/profile-picture", "", "avatar.png")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = uploadPicture(t, router, "/users/update/profile-picture", bearer, "notes.txt")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
