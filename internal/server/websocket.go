// Package server hosts the websocket notification gateway through which
// subscribers observe game state transitions.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tabletopd/tabletopd/internal/config"
	"github.com/tabletopd/tabletopd/internal/notify"
	"go.uber.org/zap"
)

// Handler builds the gateway's HTTP handler: a /healthz probe and the /ws
// subscription endpoint. Clients subscribe to a single game with
// ?game_id=..., or to all games by omitting it.
func Handler(cfg config.WebSocketConfig, hub *notify.Hub, logger *zap.Logger) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := notify.NewClient(hub, conn, r.URL.Query().Get("game_id"), logger)
		hub.Register(client)

		go client.WritePump()
		go client.ReadPump()
	})
	return mux
}

// StartWebSocketServer serves the gateway until ctx is canceled.
func StartWebSocketServer(ctx context.Context, cfg config.WebSocketConfig, hub *notify.Hub, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           Handler(cfg, hub, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("websocket gateway listening", zap.String("address", cfg.Address))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}
