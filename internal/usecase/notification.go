package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"strategy-backend/internal/infrastructure/fcm"
	"strategy-backend/internal/repository"
)

// NotificationService pushes a "strategies changed" message to a user's
// registered devices after a mutation, so another open session knows its
// cached view is stale and reloads.
type NotificationService struct {
	fcmClient *fcm.Client
	tokenRepo *repository.TokenRepository
}

func NewNotificationService(fcmClient *fcm.Client, tokenRepo *repository.TokenRepository) *NotificationService {
	return &NotificationService{
		fcmClient: fcmClient,
		tokenRepo: tokenRepo,
	}
}

// StrategiesChanged notifies the user's devices. Sends happen in the
// background; a failed push only logs, the mutation already succeeded.
func (n *NotificationService) StrategiesChanged(userID, action, strategyName string) {
	if n.fcmClient == nil || !n.fcmClient.IsEnabled() {
		return // FCM not configured
	}

	tokens := n.tokenRepo.GetTokensForUser(userID)
	if len(tokens) == 0 {
		return // No registered devices
	}

	title := "Strategies updated"
	body := fmt.Sprintf("Strategy %q was %s. Pull to refresh.", strategyName, action)
	data := map[string]string{
		"type":   "STRATEGIES_CHANGED",
		"action": action,
		"name":   strategyName,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := n.fcmClient.SendMulticast(ctx, tokens, title, body, data); err != nil {
			log.Printf("Error sending strategy notification for user %s: %v", userID, err)
		} else {
			log.Printf("Sent strategy notification for user %s to %d devices", userID, len(tokens))
		}
	}()
}
