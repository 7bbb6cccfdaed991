package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The HTTP API serializes these models directly, so their JSON keys must stay
// snake_case like the client expects.
func TestModelJSONKeys(t *testing.T) {
	now := time.Now().UTC()

	t.Run("event", func(t *testing.T) {
		data, err := json.Marshal(&Event{
			ID:           1,
			Title:        "Team A vs Team B",
			Outcomes:     []string{"Team A", "Team B"},
			Coefficients: []Coefficient{2000, 1857},
			TotalBank:    100,
			Status:       EventStatusActive,
			EndTime:      now,
			CreatedAt:    now,
		})
		require.NoError(t, err)

		var keys map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &keys))
		for _, k := range []string{"id", "title", "outcomes", "coefficients", "total_bank", "status", "end_time", "result_outcome", "winner_index", "created_at"} {
			assert.Contains(t, keys, k)
		}
		assert.NotContains(t, keys, "TotalBank")
	})

	t.Run("user bet", func(t *testing.T) {
		data, err := json.Marshal(&UserBet{
			Bet: Bet{
				ID:              1,
				UserID:          1001,
				EventID:         1,
				GiftIDs:         []int64{1},
				TotalValue:      100,
				Coefficient:     2000,
				PotentialPayout: 200,
				Status:          BetStatusPending,
			},
			EventTitle:  "Team A vs Team B",
			EventStatus: EventStatusActive,
		})
		require.NoError(t, err)

		var keys map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &keys))
		for _, k := range []string{"id", "user_id", "event_id", "gift_ids", "total_value", "potential_payout", "actual_payout", "event_title", "event_status"} {
			assert.Contains(t, keys, k)
		}
	})

	t.Run("deposit and transaction", func(t *testing.T) {
		data, err := json.Marshal(&Deposit{ID: 1, TelegramUserID: 1001, Title: "Plush Pepe", Slug: "plushpepe-1", Value: 25, MessageID: 7})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"telegram_user_id":1001`)
		assert.Contains(t, string(data), `"message_id":7`)

		data, err = json.Marshal(&Transaction{ID: 1, UserID: 1001, Type: TxTypeWithdrawal, Status: TxStatusCompleted})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"recipient_user_id"`)
		assert.Contains(t, string(data), `"gift_value"`)
	})
}
