package cart

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{12.99, "12.99"},
		{"$12.99", "12.99"},
		{" $ 8.50 ", "8.5"},
		{"€3", "3"},
		{"12.99", "12.99"},
		{json.Number("4.25"), "4.25"},
		{7, "7"},
		{nil, "0"},
		{"free", "0"},
		{"$$5", "0"},
		{math.NaN(), "0"},
		{true, "0"},
	}
	for _, c := range cases {
		got := ParsePrice(c.in)
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Errorf("ParsePrice(%#v) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	p := DefaultPricing()

	empty := ComputeTotals(nil, p)
	if !empty.Total.IsZero() || !empty.DeliveryFee.IsZero() {
		t.Fatalf("empty cart totals = %+v", empty)
	}

	lines := []Line{{Item: MenuItem("1", "Jerk Chicken", "$12.99"), Quantity: 2}}
	got := ComputeTotals(lines, p)
	want := map[string]decimal.Decimal{
		"subtotal": got.Subtotal, "tax": got.Tax, "fee": got.DeliveryFee, "total": got.Total,
	}
	expect := map[string]string{"subtotal": "25.98", "tax": "3.3774", "fee": "5", "total": "34.3574"}
	for k, v := range expect {
		if !want[k].Equal(decimal.RequireFromString(v)) {
			t.Errorf("%s = %s, want %s", k, want[k], v)
		}
	}
	if got.PointsEarned() != 34 {
		t.Errorf("points earned = %d, want 34", got.PointsEarned())
	}

	withReward := append(lines, Line{Item: RewardItem("food-1", "Free Jerk Chicken", 100), Quantity: 1})
	if r := ComputeTotals(withReward, p); !r.Subtotal.Equal(got.Subtotal) {
		t.Errorf("reward line changed subtotal: %s", r.Subtotal)
	}

	onlyPoints := []Line{{Item: RewardItem("food-1", "Free Jerk Chicken", 100), Quantity: 1}}
	op := ComputeTotals(onlyPoints, p)
	if !op.Subtotal.IsZero() || !op.Tax.IsZero() || !op.DeliveryFee.Equal(decimal.NewFromInt(5)) {
		t.Errorf("points-only cart totals = %+v", op)
	}
}

func TestItemUnmarshal(t *testing.T) {
	var items []Item
	raw := `[
		{"id": 1, "name": "Jerk Chicken", "price": "$12.99"},
		{"id": "m-2", "name": "Patty", "price": 3.5},
		{"id": "food-1", "name": "Free Jerk Chicken", "points": 100},
		{"id": "m-3", "name": "Mystery"}
	]`
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if items[0].ID != "1" || !items[0].Price().Equal(decimal.RequireFromString("12.99")) {
		t.Errorf("item 0 = %+v", items[0])
	}
	if !items[1].Price().Equal(decimal.RequireFromString("3.5")) {
		t.Errorf("item 1 price = %s", items[1].Price())
	}
	if !items[2].IsReward() || items[2].PointsCost != 100 || !items[2].Price().IsZero() {
		t.Errorf("item 2 = %+v", items[2])
	}
	if items[3].IsReward() || !items[3].Price().IsZero() {
		t.Errorf("item 3 = %+v", items[3])
	}

	if err := json.Unmarshal([]byte(`{"name":"no id"}`), new(Item)); err == nil {
		t.Error("expected error for missing id")
	}
}
