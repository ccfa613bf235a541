package main

import (
	"net/http"
	"os"

	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"snakeduel-server/auth"
	"snakeduel-server/game"
	"snakeduel-server/handlers"
	"snakeduel-server/stats"
)

func main() {
	dbPath := os.Getenv("SNAKEDUEL_DB")
	if dbPath == "" {
		dbPath = "snakeduel.db"
	}

	store, err := stats.Open(dbPath)
	if err != nil {
		log.Fatalf("Failed to open stats store: %v", err)
	}
	defer store.Close()

	manager := game.NewManager(store)

	wsHandler := handlers.NewWebSocketHandler(manager, store)
	statsHandler := handlers.NewStatsHandler(store)
	authHandler := handlers.NewAuthHandler()

	router := way.NewRouter()
	router.Handle("GET", "/ws", wsHandler)
	router.HandleFunc("POST", "/auth/guest", authHandler.HandleGuestToken)
	router.HandleFunc("GET", "/stats/me", auth.Middleware(statsHandler.HandleMyStats))
	router.HandleFunc("GET", "/stats/:id", statsHandler.HandlePlayerStats)
	router.HandleFunc("GET", "/leaderboard", statsHandler.HandleLeaderboard)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	log.Printf("WebSocket endpoint: /ws")
	log.Fatalln(http.ListenAndServe(":"+port, router))
}
