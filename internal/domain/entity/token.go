package entity

// BaseToken identifies the traded token of a pair.
type BaseToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// PriceChange holds percentage price changes.
type PriceChange struct {
	H24 float64 `json:"h24"`
}

// Volume holds USD trading volume per window.
type Volume struct {
	H24 float64 `json:"h24"`
	H6  float64 `json:"h6"`
	H1  float64 `json:"h1"`
	M5  float64 `json:"m5"`
}

// TxnCount contains buy and sell counts for one window.
type TxnCount struct {
	Buys  int `json:"buys"`
	Sells int `json:"sells"`
}

// Txns holds transaction counts per window.
type Txns struct {
	H24 TxnCount `json:"h24"`
	H6  TxnCount `json:"h6"`
	H1  TxnCount `json:"h1"`
	M5  TxnCount `json:"m5"`
}

// Socials is the flattened set of links a token may advertise.
type Socials struct {
	Website  string `json:"website,omitempty"`
	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Discord  string `json:"discord,omitempty"`
}

// TokenInfo is optional token metadata.
type TokenInfo struct {
	ImageURL string  `json:"imageUrl,omitempty"`
	Header   string  `json:"header,omitempty"`
	Socials  Socials `json:"socials"`
}

// TokenData is the normalized market snapshot of a token.
// Every field is always populated; absent API values are zeroed.
type TokenData struct {
	BaseToken   BaseToken   `json:"baseToken"`
	PriceUsd    string      `json:"priceUsd"`
	PriceChange PriceChange `json:"priceChange"`
	Volume      Volume      `json:"volume"`
	Txns        Txns        `json:"txns"`
	MarketCap   float64     `json:"marketCap"`
	Info        TokenInfo   `json:"info"`
}

// EntryData is the user's recorded cost basis for a token.
type EntryData struct {
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

// TokenEntry is one tracked token: market snapshot plus user data.
type TokenEntry struct {
	TokenData
	Note      *string   `json:"note,omitempty"`
	EntryData EntryData `json:"entryData"`
}

// TokenDataPatch is a shallow update of a TokenEntry's market fields.
// Nil fields are left untouched. Note is only written when set explicitly;
// EntryData is never patched.
type TokenDataPatch struct {
	BaseToken   *BaseToken
	PriceUsd    *string
	PriceChange *PriceChange
	Volume      *Volume
	Txns        *Txns
	MarketCap   *float64
	Info        *TokenInfo
	Note        *string
}

// PatchFromTokenData builds a patch that replaces every market field of an entry.
func PatchFromTokenData(d TokenData) TokenDataPatch {
	return TokenDataPatch{
		BaseToken:   &d.BaseToken,
		PriceUsd:    &d.PriceUsd,
		PriceChange: &d.PriceChange,
		Volume:      &d.Volume,
		Txns:        &d.Txns,
		MarketCap:   &d.MarketCap,
		Info:        &d.Info,
	}
}

// Apply merges the patch into e.
func (p TokenDataPatch) Apply(e *TokenEntry) {
	if p.BaseToken != nil {
		e.BaseToken = *p.BaseToken
	}
	if p.PriceUsd != nil {
		e.PriceUsd = *p.PriceUsd
	}
	if p.PriceChange != nil {
		e.PriceChange = *p.PriceChange
	}
	if p.Volume != nil {
		e.Volume = *p.Volume
	}
	if p.Txns != nil {
		e.Txns = *p.Txns
	}
	if p.MarketCap != nil {
		e.MarketCap = *p.MarketCap
	}
	if p.Info != nil {
		e.Info = *p.Info
	}
	if p.Note != nil {
		note := *p.Note
		e.Note = &note
	}
}
