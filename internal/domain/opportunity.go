package domain

import "time"

// Opportunity is a computed arbitrage candidate: buy on BuyVenue, resell on
// the Steam Community Market.
type Opportunity struct {
	Item             string    `json:"name"`
	BuyPrice         float64   `json:"buy_price"`
	BuyVenue         Venue     `json:"buy_platform"`
	BuyURL           string    `json:"buy_url"`
	SteamPrice       float64   `json:"steam_price"`
	NetSteamPrice    float64   `json:"net_steam_price"`
	ProfitPercentage float64   `json:"profit_percentage"`
	ProfitAbsolute   float64   `json:"profit_absolute"`
	SteamURL         string    `json:"steam_url"`
	Timestamp        time.Time `json:"timestamp"`
}

// ArchiveEntry is one profitability run inside the archive.
type ArchiveEntry struct {
	Timestamp          time.Time     `json:"timestamp"`
	TotalOpportunities int           `json:"total_opportunities"`
	Mode               string        `json:"mode"`
	Opportunities      []Opportunity `json:"opportunities"`
}

// ArchiveHistoryLimit caps the ring buffer of previous runs kept on disk.
const ArchiveHistoryLimit = 10

// OpportunityArchive is the persisted profitability artifact. Writing a new
// current entry pushes the previous one onto history, which saturates at
// ArchiveHistoryLimit entries.
type OpportunityArchive struct {
	Current     ArchiveEntry   `json:"current"`
	LastUpdated time.Time      `json:"last_updated"`
	History     []ArchiveEntry `json:"history"`
}

// Push replaces the current entry, moving the old one onto history and
// trimming history to the limit.
func (a *OpportunityArchive) Push(entry ArchiveEntry) {
	if !a.Current.Timestamp.IsZero() {
		a.History = append(a.History, a.Current)
		if len(a.History) > ArchiveHistoryLimit {
			a.History = a.History[len(a.History)-ArchiveHistoryLimit:]
		}
	}
	a.Current = entry
	a.LastUpdated = entry.Timestamp
}
