package utils

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/gomail.v2"

	"github.com/fadeclub/fadeclub_backend/config"
	"github.com/fadeclub/fadeclub_backend/models"
)

// SaveNotification saves an in-app notification to the database
func SaveNotification(db *mongo.Client, userID primitive.ObjectID, title, message, notifType string, data interface{}) error {
	collection := config.GetCollection(db, "notifications")

	notification := models.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Title:     title,
		Message:   message,
		Type:      notifType,
		Data:      data,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.InsertOne(ctx, notification)
	return err
}

// SendEmail sends a plain-text email through the configured SMTP relay.
// Failures are logged, not returned; email is strictly fire-and-forget.
func SendEmail(to, subject, body string) {
	smtpHost := os.Getenv("SMTP_HOST")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")
	if smtpHost == "" {
		log.Printf("SMTP not configured, skipping email to %s", to)
		return
	}
	smtpPort := 2525
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		fmt.Sscanf(portStr, "%d", &smtpPort)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", smtpUser)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPass)
	if err := d.DialAndSend(m); err != nil {
		log.Printf("Failed to send email to %s: %v", to, err)
	}
}

// NotifyCommissionEarned records an in-app notification and emails the
// beneficiary about a fresh ledger row.
func NotifyCommissionEarned(db *mongo.Client, beneficiary *models.Member, event models.CommissionEvent) {
	title := "Commission earned"
	message := fmt.Sprintf("You earned $%.2f (%s, level %d).", event.Amount, event.Kind, event.Level)
	if err := SaveNotification(db, beneficiary.ID, title, message, "commission_earned", map[string]interface{}{
		"commissionId": event.ID.Hex(),
		"kind":         event.Kind,
		"amount":       event.Amount,
		"level":        event.Level,
	}); err != nil {
		log.Printf("Failed to save commission notification for %s: %v", beneficiary.ID.Hex(), err)
	}

	body := fmt.Sprintf("Hi %s,\n\nYou just earned a $%.2f %s commission.\nIt is pending payout review.\n\nFadeClub", beneficiary.FullName, event.Amount, event.Kind)
	SendEmail(beneficiary.Email, title, body)
}

// NotifyPlacementCompleted tells a member where they landed in the matrix.
func NotifyPlacementCompleted(db *mongo.Client, member *models.Member, node *models.MatrixNode) {
	title := "Welcome to the matrix"
	message := fmt.Sprintf("You were placed at level %d, position %d.", node.Level, node.PositionIndex)
	if err := SaveNotification(db, member.ID, title, message, "placement_completed", map[string]interface{}{
		"nodeId":        node.ID.Hex(),
		"level":         node.Level,
		"slot":          models.SlotName(node.Slot),
		"positionIndex": node.PositionIndex,
	}); err != nil {
		log.Printf("Failed to save placement notification for %s: %v", member.ID.Hex(), err)
	}

	body := fmt.Sprintf("Hi %s,\n\nYour membership is active and you were placed at level %d (position %d).\n\nFadeClub", member.FullName, node.Level, node.PositionIndex)
	SendEmail(member.Email, title, body)
}

// NotifyAdminMatrixFull escalates a failed placement to the operations inbox.
func NotifyAdminMatrixFull(memberID string) {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		log.Printf("ADMIN_EMAIL not configured; matrix-full escalation for member %s not emailed", memberID)
		return
	}
	subject := "Matrix full: manual placement required"
	body := fmt.Sprintf("Member %s could not be placed: the matrix has no open slot within the configured depth.\nQueue this member for manual placement.", memberID)
	SendEmail(adminEmail, subject, body)
}
