package main

import (
	"context"
	"log"
	"net/http"

	"nightcourt/apps/server/internal/auth"
	"nightcourt/apps/server/internal/config"
	"nightcourt/apps/server/internal/gateway"
	"nightcourt/apps/server/internal/history"
	"nightcourt/apps/server/internal/lobby"
	"nightcourt/apps/server/internal/room"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}

	authService := auth.NewManager(cfg.SessionTTL)
	defer authService.Close()
	historyService, historyMode, err := history.NewService(history.Options{
		Mode:       cfg.HistoryMode,
		SQLitePath: cfg.SQLitePath,
		DSN:        cfg.DatabaseURL,
	})
	if err != nil {
		log.Fatalf("[Server] Failed to init history service: %v", err)
	}
	defer historyService.Close()

	lby := lobby.New(lobby.Config{
		Room: room.Config{
			Rules:          cfg.Rules.GameConfig(),
			NightDeadline:  cfg.Deadlines.Night,
			SpeechDeadline: cfg.Deadlines.Speech,
			VoteDeadline:   cfg.Deadlines.Vote,
		},
		IdleTTL:  cfg.RoomIdleTTL,
		MaxRooms: cfg.MaxRooms,
	}, historyService)
	defer lby.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go lby.Run(ctx)

	gw := gateway.New(lby, authService, cfg.AllowedOrigin)
	authHTTP := auth.NewHTTPHandler(authService)
	historyHTTP := history.NewHTTPHandler(authService, historyService)
	lobbyHTTP := lobby.NewHTTPHandler(lby, cfg.PublicBaseURL)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	authHTTP.RegisterRoutes(mux)
	historyHTTP.RegisterRoutes(mux)
	lobbyHTTP.RegisterRoutes(mux)

	log.Printf("[Server] History mode: %s", historyMode)
	log.Printf("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, mux); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}
