package tweet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/featherapp/feather-server/cmd/models"
	"github.com/featherapp/feather-server/service/auth"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) (*gorm.DB, *mux.Router) {
	t.Helper()
	t.Setenv("SECRET_KEY", "test-secret")

	db := newTestDB(t)
	router := mux.NewRouter()
	NewHandler(db).RegisterRoutes(router)
	return db, router
}

func bearerFor(t *testing.T, userID uint) string {
	t.Helper()
	token, err := auth.GenerateToken(userID)
	require.NoError(t, err)
	return "Bearer " + token
}

func doJSON(router *mux.Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateTweetEndpoint(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")

	rec := doJSON(router, http.MethodPost, "/tweets", bearerFor(t, alice.ID),
		map[string]string{"content": "hello #world"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Tweet models.Tweet `json:"tweet"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "hello #world", resp.Tweet.Content)
	require.NotNil(t, resp.Tweet.User)
	assert.Equal(t, "alice", resp.Tweet.User.Username)
}

func TestCreateTweetRequiresAuth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(router, http.MethodPost, "/tweets", "", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateTweetRejectsEmptyContent(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")

	rec := doJSON(router, http.MethodPost, "/tweets", bearerFor(t, alice.ID),
		map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTweetEndpointStatuses(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	tw := mustCreateTweet(t, db, alice.ID, "mine")

	rec := doJSON(router, http.MethodDelete, fmt.Sprintf("/tweets/%d", tw.ID), bearerFor(t, bob.ID), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(router, http.MethodDelete, "/tweets/99999", bearerFor(t, alice.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(router, http.MethodDelete, fmt.Sprintf("/tweets/%d", tw.ID), bearerFor(t, alice.ID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFollowingFeedRequiresAuth(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(router, http.MethodGet, "/tweets?following=true", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeedHasMoreFlag(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")
	for i := 0; i < 25; i++ {
		mustCreateTweet(t, db, alice.ID, fmt.Sprintf("tweet %d", i))
	}

	rec := doJSON(router, http.MethodGet, "/tweets?limit=20&skip=20", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tweets  []models.Tweet `json:"tweets"`
		Total   int64          `json:"total"`
		HasMore bool           `json:"hasMore"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(25), resp.Total)
	assert.Len(t, resp.Tweets, 5)
	assert.False(t, resp.HasMore)
}

func TestLikeEndpointToggles(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	tw := mustCreateTweet(t, db, alice.ID, "like me")

	path := fmt.Sprintf("/tweets/like/%d", tw.ID)

	rec := doJSON(router, http.MethodPost, path, bearerFor(t, bob.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Liked bool `json:"liked"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Liked)

	rec = doJSON(router, http.MethodPost, path, bearerFor(t, bob.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Liked)
}

func TestRetweetEndpoint(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	tw := mustCreateTweet(t, db, alice.ID, "original")

	path := fmt.Sprintf("/tweets/retweet/%d", tw.ID)

	rec := doJSON(router, http.MethodPost, path, bearerFor(t, bob.ID),
		map[string]string{"quote_content": "so true"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Retweeted bool          `json:"retweeted"`
		Tweet     *models.Tweet `json:"tweet"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Retweeted)
	require.NotNil(t, resp.Tweet)
	assert.Equal(t, "so true", resp.Tweet.Content)

	rec = doJSON(router, http.MethodPost, path, bearerFor(t, bob.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Retweeted)
}

func TestRetweetWhitespaceQuoteIsPlainRetweet(t *testing.T) {
	db, router := newTestServer(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	tw := mustCreateTweet(t, db, alice.ID, "original")

	rec := doJSON(router, http.MethodPost, fmt.Sprintf("/tweets/retweet/%d", tw.ID),
		bearerFor(t, bob.ID), map[string]string{"quote_content": "   "})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message   string        `json:"message"`
		Retweeted bool          `json:"retweeted"`
		Tweet     *models.Tweet `json:"tweet"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Retweeted)
	assert.Equal(t, "Tweet retweeted", resp.Message)
	require.NotNil(t, resp.Tweet)
	assert.Equal(t, "original", resp.Tweet.Content)
}
