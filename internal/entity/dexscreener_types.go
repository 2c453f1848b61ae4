package entity

import "encoding/json"

// DEXTokenPair is the envelope returned by /latest/dex/tokens/{address}.
type DEXTokenPair struct {
	SchemaVersion string     `json:"schemaVersion"`
	Pairs         []PairData `json:"pairs"` // null when the token is unknown
}

// PairData contains detailed information about a trading pair.
// Only the first pair of a response is used as the token's market snapshot.
type PairData struct {
	ChainID       string           `json:"chainId"`
	DexID         string           `json:"dexId"`
	URL           string           `json:"url"`
	PairAddress   string           `json:"pairAddress"`
	BaseToken     *DEXToken        `json:"baseToken"`
	QuoteToken    *DEXToken        `json:"quoteToken"`
	PriceNative   string           `json:"priceNative"`
	PriceUsd      string           `json:"priceUsd"`
	Txns          *PairTxns        `json:"txns"`
	Volume        *PairVolume      `json:"volume"`
	PriceChange   *PairPriceChange `json:"priceChange"`
	Liquidity     *DEXLiquidity    `json:"liquidity"` // Pointer to handle potential nulls
	Fdv           float64          `json:"fdv"`
	MarketCap     float64          `json:"marketCap"`
	PairCreatedAt int64            `json:"pairCreatedAt"`
	Info          *PairInfo        `json:"info"`
}

// DEXToken represents a token in a trading pair.
type DEXToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// DEXLiquidity represents the liquidity information for a pair.
type DEXLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// PairTxns represents transaction counts for a pair.
// A nil bucket means the API omitted that window.
type PairTxns struct {
	M5  *TxnSummary `json:"m5"`
	H1  *TxnSummary `json:"h1"`
	H6  *TxnSummary `json:"h6"`
	H24 *TxnSummary `json:"h24"`
}

// TxnSummary contains buy and sell counts.
type TxnSummary struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// PairVolume represents trading volume over different periods.
type PairVolume struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// PairPriceChange represents price change percentage over different periods.
type PairPriceChange struct {
	M5  float64 `json:"m5"`
	H1  float64 `json:"h1"`
	H6  float64 `json:"h6"`
	H24 float64 `json:"h24"`
}

// PairInfo holds the optional token profile attached to a pair.
type PairInfo struct {
	ImageURL string        `json:"imageUrl"`
	Header   string        `json:"header"`
	Websites []PairWebsite `json:"websites"`
	Socials  []PairSocial  `json:"socials"`
}

// PairWebsite is one entry of info.websites.
type PairWebsite struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// PairSocial is one typed link of info.socials (type is e.g. "twitter", "telegram").
type PairSocial struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// UnmarshalJSON accepts both the object form {"label","url"} and a bare URL string.
func (w *PairWebsite) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var url string
		if err := json.Unmarshal(data, &url); err != nil {
			return err
		}
		w.URL = url
		return nil
	}
	type plain PairWebsite
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*w = PairWebsite(p)
	return nil
}
