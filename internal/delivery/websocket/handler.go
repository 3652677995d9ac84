package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"strategy-backend/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Handler streams the authenticated user's strategy view. The push interval
// is coarse on purpose; mutations already return the fresh view inline, the
// socket only keeps secondary devices converging.
type Handler struct {
	strategies *usecase.StrategyService
	userID     func(r *http.Request) string
	interval   time.Duration
}

func NewHandler(strategies *usecase.StrategyService, userID func(r *http.Request) string) *Handler {
	return &Handler{
		strategies: strategies,
		userID:     userID,
		interval:   15 * time.Second,
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		http.Error(w, "Missing authorization token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	log.Printf("New client connected for user %s", userID)

	// Send initial view immediately. The warm cache serves it when present.
	view, err := h.strategies.LoadView(r.Context(), userID, false)
	if err != nil {
		log.Println("Load error:", err)
		return
	}
	if err := conn.WriteJSON(view); err != nil {
		log.Println("Write error:", err)
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			view, err := h.strategies.LoadView(r.Context(), userID, false)
			if err != nil {
				log.Println("Load error:", err)
				return
			}
			if err := conn.WriteJSON(view); err != nil {
				log.Println("Write error:", err)
				return
			}
		}
	}
}
