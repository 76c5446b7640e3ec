package api

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/featherapp/feather-server/service/auth"
	"github.com/featherapp/feather-server/service/hashtag"
	"github.com/featherapp/feather-server/service/tweet"
	"github.com/featherapp/feather-server/service/user"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	authHandler := auth.NewHandler(s.db)
	authHandler.RegisterRoutes(subrouter)

	userHandler := user.NewHandler(s.db)
	userHandler.RegisterRoutes(subrouter)

	tweetHandler := tweet.NewHandler(s.db)
	tweetHandler.RegisterRoutes(subrouter)

	hashtagHandler := hashtag.NewHandler(s.db)
	hashtagHandler.RegisterRoutes(subrouter)

	router.HandleFunc("/health", s.handleHealth).Methods("GET")

	fileServer := http.FileServer(http.Dir("uploads/images"))
	router.PathPrefix("/images/").Handler(http.StripPrefix("/images/", fileServer))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, handlers.LoggingHandler(os.Stdout, cors(router)))
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbStatus := "up"
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"UP","database":"` + dbStatus + `","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}
