package entity

// TokenGroup is a user-defined, ordered set of token addresses.
// Tokens may reference addresses that are no longer tracked; readers skip them.
type TokenGroup struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tokens      []string `json:"tokens"`
}

// Portfolio is the persisted root aggregate.
type Portfolio struct {
	Tokens map[string]TokenEntry `json:"tokens"`
	Groups map[string]TokenGroup `json:"groups"`
}

// NewPortfolio returns an empty portfolio with initialized maps.
func NewPortfolio() *Portfolio {
	return &Portfolio{
		Tokens: make(map[string]TokenEntry),
		Groups: make(map[string]TokenGroup),
	}
}

// Clone returns a deep copy of p.
func (p *Portfolio) Clone() *Portfolio {
	c := &Portfolio{
		Tokens: make(map[string]TokenEntry, len(p.Tokens)),
		Groups: make(map[string]TokenGroup, len(p.Groups)),
	}
	for addr, t := range p.Tokens {
		if t.Note != nil {
			note := *t.Note
			t.Note = &note
		}
		c.Tokens[addr] = t
	}
	for id, g := range p.Groups {
		g.Tokens = append([]string(nil), g.Tokens...)
		c.Groups[id] = g
	}
	return c
}

// GroupsOf returns the ids of groups that list address, in no particular order.
func (p *Portfolio) GroupsOf(address string) []string {
	var ids []string
	for id, g := range p.Groups {
		for _, a := range g.Tokens {
			if a == address {
				ids = append(ids, id)
				break
			}
		}
	}
	return ids
}
