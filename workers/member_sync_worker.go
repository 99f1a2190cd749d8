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

	"binary-plan-engine/models"
	"binary-plan-engine/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberSyncClient mirrors the user directory's binary tree into the local
// members table. The settlement engine only ever reads this mirror; the
// directory service owns placement and sponsorship.
type MemberSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewMemberSyncClient(db *gorm.DB) *MemberSyncClient {
	baseURL := os.Getenv("DIRECTORY_SERVICE_URL")
	if baseURL == "" {
		log.Fatal("DIRECTORY_SERVICE_URL environment variable is required")
	}
	token := os.Getenv("SETTLEMENT_SERVICE_TOKEN")
	if token == "" {
		log.Fatal("SETTLEMENT_SERVICE_TOKEN environment variable is required for member sync")
	}

	return &MemberSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: utils.HTTPClient,
	}
}

func (c *MemberSyncClient) GetChangedMembers(ctx context.Context, since time.Time) ([]models.Member, error) {
	since = since.UTC()

	u, err := url.Parse(fmt.Sprintf("%s/api/v1/public/members", c.BaseURL))
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
		return nil, fmt.Errorf("failed to call directory service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("directory service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Members []models.Member `json:"members"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode directory service response: %w", err)
	}

	return response.Members, nil
}

// PollMembers keeps the mirror fresh. On upsert failure the sync window is not
// advanced, so the same batch is retried next tick.
func PollMembers(ctx context.Context, client *MemberSyncClient, pollInterval time.Duration) {
	log.Println("Starting member directory polling...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Member polling stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()

			members, err := client.GetChangedMembers(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling members: %v", err)
				continue
			}

			if len(members) == 0 {
				continue
			}

			if err := client.DB.Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"parent_id",
						"left_child_id",
						"right_child_id",
						"position",
						"referral_code",
						"referrer_code",
						"email",
						"full_name",
						"is_active",
						"updated_at",
					}),
				},
			).Create(&members).Error; err != nil {
				log.Printf("❌ Failed to upsert %d member(s): %v", len(members), err)
				continue
			}

			lastSyncTime = tickTime
			log.Printf("✅ Upserted %d member(s) into the directory mirror.", len(members))
		}
	}
}
