// Package stream publishes ledger activity to Kafka for downstream
// consumers (notification workers, analytics).
package stream

// Kafka topics.
const (
	TopicBetPlaced    = "bet_placed"
	TopicEventSettled = "event_settled"
)

// BetPlaced is emitted after a bet commits.
type BetPlaced struct {
	BetID           int64  `json:"bet_id"`
	EventID         int64  `json:"event_id"`
	UserID          int64  `json:"user_id"`
	Outcome         string `json:"outcome"`
	TotalValue      int64  `json:"total_value"`
	PotentialPayout int64  `json:"potential_payout"`
	TsUnixMs        int64  `json:"ts_unix_ms"`
}

// EventSettled is emitted after an event settlement commits.
type EventSettled struct {
	EventID       int64  `json:"event_id"`
	ResultOutcome string `json:"result_outcome"`
	WinnerIndex   int    `json:"winner_index"`
	WinnersCount  int64  `json:"winners_count"`
	LosersCount   int64  `json:"losers_count"`
	TotalPayouts  int64  `json:"total_payouts"`
	TsUnixMs      int64  `json:"ts_unix_ms"`
}
