package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Item is a purchasable entry. A reward item has PointsCost > 0 and no unit
// price; every other item is paid for with money.
type Item struct {
	ID         string
	Name       string
	UnitPrice  decimal.NullDecimal
	PointsCost int64
}

func MenuItem(id, name string, price interface{}) Item {
	return Item{ID: id, Name: name, UnitPrice: decimal.NewNullDecimal(ParsePrice(price))}
}

func RewardItem(id, name string, points int64) Item {
	return Item{ID: id, Name: name, PointsCost: points}
}

func (i Item) IsReward() bool { return i.PointsCost > 0 }

// Price is the unit price, 0 for reward items and missing prices.
func (i Item) Price() decimal.Decimal {
	if i.IsReward() || !i.UnitPrice.Valid {
		return decimal.Zero
	}
	return i.UnitPrice.Decimal
}

type itemJSON struct {
	ID     json.RawMessage `json:"id"`
	Name   string          `json:"name"`
	Price  interface{}     `json:"price"`
	Points int64           `json:"points"`
}

// UnmarshalJSON reads catalog entries whose id may be a string or a number
// and whose price may be a number, a "$"-prefixed string or absent.
func (i *Item) UnmarshalJSON(b []byte) error {
	var raw itemJSON
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return err
	}
	if raw.Points > 0 {
		*i = RewardItem(id, raw.Name, raw.Points)
		return nil
	}
	*i = MenuItem(id, raw.Name, raw.Price)
	return nil
}

func (i Item) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{"id": i.ID, "name": i.Name}
	if i.IsReward() {
		out["points"] = i.PointsCost
	} else {
		out["price"] = i.Price()
	}
	return json.Marshal(out)
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("cart: item without id")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// Line is an item in the cart with its quantity (always >= 1).
type Line struct {
	Item
	Quantity int `json:"quantity"`
}
