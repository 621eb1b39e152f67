package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/example/froydpay/internal/models"
	"github.com/example/froydpay/internal/utils"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramService sends operator alerts to a Telegram chat.
type TelegramService struct {
	botToken    string
	adminChatID string
	apiBase     string
	client      *http.Client
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		apiBase:     telegramAPIBase,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(ctx context.Context, chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase, s.botToken)

	body, err := json.Marshal(telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(ctx context.Context, text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(ctx, s.adminChatID, text)
}

// NotifyPaymentSucceeded tells operators about a settled payment.
func (s *TelegramService) NotifyPaymentSucceeded(ctx context.Context, txn *models.Transaction) error {
	if s.adminChatID == "" {
		return nil
	}

	merchant := "orphaned"
	if txn.MerchantID != nil {
		merchant = txn.MerchantID.String()
	}

	customer := txn.CustomerName
	if customer == "" {
		customer = "-"
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT SUCCEEDED</b>
<b>💰 Amount:</b> %s
<b>🏪 Merchant:</b> %s
<b>🔖 Reference:</b> %s
<b>👤 Customer:</b> %s
<b>💳 Provider:</b> %s (%s)
━━━━━━━━━━━━━━━━━━`,
		utils.FormatAmount(txn.Amount, txn.Currency),
		merchant,
		html.EscapeString(txn.SourceRefID),
		html.EscapeString(customer),
		txn.Provider,
		html.EscapeString(txn.ProviderTxID),
	)

	return s.SendToAdmin(ctx, strings.TrimSpace(message))
}
