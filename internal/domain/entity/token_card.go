package entity

// Performance is the gain or loss of a token relative to its entry price.
type Performance struct {
	Percent    string `json:"percent"` // absolute value, two decimals, e.g. "12.50%"
	IsPositive bool   `json:"isPositive"`
}

// TokenCard is the presentation view of one tracked token.
type TokenCard struct {
	Address        string      `json:"address"`
	Name           string      `json:"name"`
	Symbol         string      `json:"symbol"`
	PriceUSD       string      `json:"priceUsd"`
	PriceFormatted string      `json:"priceFormatted"`
	EntryPrice     float64     `json:"entryPrice"`
	EntryFormatted string      `json:"entryFormatted"`
	EntryMarketCap float64     `json:"entryMarketCap"`
	EntryTimestamp int64       `json:"entryTimestamp"`
	Performance    Performance `json:"performance"`
	PriceChange24h string      `json:"priceChange24h"`
	MarketCap      string      `json:"marketCap"`
	Volume         Volume      `json:"volume"`
	Txns           Txns        `json:"txns"`
	Info           TokenInfo   `json:"info"`
	Note           string      `json:"note,omitempty"`
	GroupIDs       []string    `json:"groupIds,omitempty"`
}

// GroupView is a group with the cards of its tracked members.
type GroupView struct {
	TokenGroup
	Cards []TokenCard `json:"cards"`
}
