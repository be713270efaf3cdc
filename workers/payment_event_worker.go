package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"tournament-rewards-system/services"
	"tournament-rewards-system/utils"
)

// VerifiedPayment is one cleared payment from the payment service.
type VerifiedPayment struct {
	PaymentID      string    `json:"payment_id"`
	UserID         string    `json:"user_id"`
	ItemType       string    `json:"item_type"`
	TournamentType string    `json:"tournament_type"`
	Amount         float64   `json:"amount"`
	VerifiedAt     time.Time `json:"verified_at"`
}

// PaymentEventClient polls the payment service for verified payments and
// feeds them into referral processing.
type PaymentEventClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Processing *services.ReferralProcessingService
}

func NewPaymentEventClient(processing *services.ReferralProcessingService) *PaymentEventClient {
	baseURL := os.Getenv("PAYMENT_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("PAYMENT_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("REWARDS_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("REWARDS_SERVICE_TOKEN environment variable is required for payment polling")
	}

	return &PaymentEventClient{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: utils.HTTPClient,
		Processing: processing,
	}
}

func (c *PaymentEventClient) GetVerifiedPayments(ctx context.Context, since time.Time) ([]VerifiedPayment, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/internal/payments/verified", c.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("since", since.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call payment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("payment service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Payments []VerifiedPayment `json:"payments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode payment service response: %w", err)
	}

	return response.Payments, nil
}

// PollVerifiedPayments drives referral validation off the payment feed.
// The cursor only advances when the whole batch processed, so a failed
// batch is retried next tick. Reprocessing is safe — validation credits
// exactly once.
func PollVerifiedPayments(ctx context.Context, client *PaymentEventClient, pollInterval time.Duration) {
	log.Println("Starting verified-payment polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Verified-payment polling stopped.")
			return
		case <-ticker.C:
			logTime := time.Now().UTC()

			payments, err := client.GetVerifiedPayments(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling verified payments: %v", err)
				continue
			}

			count := len(payments)
			if count == 0 {
				continue
			}
			log.Printf("📥 Received %d verified payment(s) from payment service.", count)

			failed := 0
			for _, p := range payments {
				if _, err := client.Processing.ProcessVerifiedPayment(p.UserID, p.ItemType, p.TournamentType); err != nil {
					log.Printf("❌ Failed to process payment %s for %s: %v", p.PaymentID, p.UserID, err)
					failed++
				}
			}
			if failed > 0 {
				// Retry the same window next tick
				log.Printf("⚠️ %d of %d payment(s) failed — keeping sync cursor", failed, count)
				continue
			}

			lastSyncTime = logTime
			log.Printf("✅ Processed %d verified payment(s).", count)
		}
	}
}
