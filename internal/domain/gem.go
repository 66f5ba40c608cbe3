package domain

import "encoding/json"

// Gem is one inventory record as returned by the remote catalog API.
// Only the fields the grids display are typed; everything else the API sends
// is kept in Extra so exports and templates can still reach it.
type Gem struct {
	ID        string         `json:"id"`
	StockID   string         `json:"stockId,omitempty"`
	Shape     string         `json:"shape,omitempty"`
	StoneType string         `json:"stoneType,omitempty"`
	Color     string         `json:"color,omitempty"`
	Clarity   string         `json:"clarity,omitempty"`
	Cut       string         `json:"cut,omitempty"`
	Carat     float64        `json:"carat,omitempty"`
	Origin    string         `json:"origin,omitempty"`
	Lab       string         `json:"lab,omitempty"`
	Price     float64        `json:"price,omitempty"`
	Status    string         `json:"status,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	Extra     map[string]any `json:"-"`
}

// gemFields lists the JSON keys decoded into typed fields.
var gemFields = map[string]struct{}{
	"id": {}, "_id": {}, "stockId": {}, "shape": {}, "stoneType": {}, "color": {},
	"clarity": {}, "cut": {}, "carat": {}, "origin": {}, "lab": {}, "price": {},
	"status": {}, "imageUrl": {},
}

// UnmarshalJSON decodes a gem, accepting either "id" or "_id" as identifier.
func (g *Gem) UnmarshalJSON(data []byte) error {
	type plain Gem
	var aux struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*g = Gem(aux.plain)
	if g.ID == "" {
		g.ID = aux.MongoID
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range gemFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		g.Extra = raw
	}
	return nil
}
