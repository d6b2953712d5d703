package document

import (
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/kailas-cloud/esdex/internal/domain"
)

func mustObject(t *testing.T, m map[string]any) *Object {
	t.Helper()
	o, err := ObjectFromMap(m)
	if err != nil {
		t.Fatalf("ObjectFromMap: %v", err)
	}
	return o
}

func mustJSON(t *testing.T, o *Object) string {
	t.Helper()
	raw, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func TestShape_RemovesID(t *testing.T) {
	src := mustObject(t, map[string]any{"_id": 7, "name": "Product A"})

	doc, err := Shape(src, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc.Get("_id"); ok {
		t.Fatal("_id must not be embedded in the document body")
	}
	if got := mustJSON(t, doc); got != `{"name":"Product A"}` {
		t.Errorf("doc = %s", got)
	}
	if _, ok := src.Get("_id"); !ok {
		t.Error("source must not be modified")
	}
}

func TestShape_Conversions(t *testing.T) {
	src := mustObject(t, map[string]any{
		"conversions": map[string]int{"tomato": 12, "apple": 3},
	})

	doc, err := Shape(src, Options{Conversions: "conversions"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"conversions":[{"query":"apple","count":3},{"query":"tomato","count":12}]}`
	if got := mustJSON(t, doc); got != want {
		t.Errorf("doc = %s, want %s", got, want)
	}
}

func TestShape_ConversionsKeepDecodedOrder(t *testing.T) {
	v, err := Decode([]byte(`{"conversions":{"zucchini":1,"apple":2}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	doc, err := Shape(v.Object(), Options{Conversions: "conversions"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"conversions":[{"query":"zucchini","count":1},{"query":"apple","count":2}]}`
	if got := mustJSON(t, doc); got != want {
		t.Errorf("doc = %s, want %s", got, want)
	}
}

func TestShape_ConversionsAbsentOrNullUntouched(t *testing.T) {
	src := mustObject(t, map[string]any{"conversions": nil, "name": "x"})

	doc, err := Shape(src, Options{Conversions: "conversions"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustJSON(t, doc); got != `{"conversions":null,"name":"x"}` {
		t.Errorf("doc = %s", got)
	}
}

func TestShape_ConversionsInvalid(t *testing.T) {
	src := mustObject(t, map[string]any{"conversions": "lots"})

	_, err := Shape(src, Options{Conversions: "conversions"})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	var fe *domain.FieldError
	if !errors.As(err, &fe) || fe.Field != "conversions" {
		t.Errorf("expected FieldError for conversions, got %v", err)
	}
}

func TestShape_SuggestFilledWithNull(t *testing.T) {
	src := mustObject(t, map[string]any{"name": "Dollar Tree", "color": false})

	doc, err := Shape(src, Options{Suggest: []string{"name", "color", "brand"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		field    string
		wantNull bool
	}{
		{"name", false},
		{"color", true},
		{"brand", true},
	}
	for _, tc := range tests {
		v, ok := doc.Get(tc.field)
		if !ok {
			t.Errorf("%s: key missing, want explicit value", tc.field)
			continue
		}
		if v.IsNull() != tc.wantNull {
			t.Errorf("%s: null = %v, want %v", tc.field, v.IsNull(), tc.wantNull)
		}
	}
}

func TestShape_LocationSinglePair(t *testing.T) {
	src := mustObject(t, map[string]any{
		"location": []any{decimal.RequireFromString("37.7749295"), "-122.4194155"},
	})

	doc, err := Shape(src, Options{Locations: []string{"location"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustJSON(t, doc); got != `{"location":[-122.4194155,37.7749295]}` {
		t.Errorf("doc = %s", got)
	}
}

func TestShape_LocationMultiplePairs(t *testing.T) {
	src := mustObject(t, map[string]any{
		"multiple_locations": [][]float64{{37.5, -122.25}, {0, 0}},
	})

	doc, err := Shape(src, Options{Locations: []string{"multiple_locations"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustJSON(t, doc); got != `{"multiple_locations":[[-122.25,37.5],[0,0]]}` {
		t.Errorf("doc = %s", got)
	}
}

func TestShape_LocationAbsentSkipped(t *testing.T) {
	src := mustObject(t, map[string]any{"name": "x"})

	doc, err := Shape(src, Options{Locations: []string{"location"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := doc.Get("location"); ok {
		t.Error("absent location must stay absent")
	}
}

func TestShape_LocationInvalid(t *testing.T) {
	tests := []struct {
		name string
		loc  any
	}{
		{"scalar", 12.5},
		{"bool coordinate", []any{true, 1.0}},
		{"mixed pairs", []any{[]any{1.0, 2.0}, 3.0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := mustObject(t, map[string]any{"location": tc.loc})
			_, err := Shape(src, Options{Locations: []string{"location"}})
			if !errors.Is(err, domain.ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

type pricedItem struct {
	SKU   string           `json:"sku"`
	Price decimal.Decimal  `json:"price"`
	Sale  *decimal.Decimal `json:"sale,omitempty"`
}

func TestShape_DecimalsCoercedAtAnyDepth(t *testing.T) {
	d := decimal.RequireFromString
	sale := d("8.5")

	tests := []struct {
		name string
		src  map[string]any
		want string
	}{
		{
			name: "plain containers",
			src: map[string]any{
				"price": d("10.25"),
				"nested": map[string]any{
					"list": []any{d("1.5"), map[string]any{"deep": d("2.75")}},
				},
			},
			want: `{"nested":{"list":[1.5,{"deep":2.75}]},"price":10.25}`,
		},
		{
			name: "typed slice",
			src:  map[string]any{"prices": []decimal.Decimal{d("1.5"), d("2")}},
			want: `{"prices":[1.5,2]}`,
		},
		{
			name: "typed map",
			src:  map[string]any{"by_store": map[string]decimal.Decimal{"b": d("3.5"), "a": d("2.25")}},
			want: `{"by_store":{"a":2.25,"b":3.5}}`,
		},
		{
			name: "typed slice inside plain map",
			src:  map[string]any{"nested": map[string]any{"deep": []decimal.Decimal{d("3.5")}}},
			want: `{"nested":{"deep":[3.5]}}`,
		},
		{
			name: "struct fields",
			src: map[string]any{"items": []pricedItem{
				{SKU: "a-1", Price: d("4.75"), Sale: &sale},
				{SKU: "a-2", Price: d("1")},
			}},
			want: `{"items":[{"sku":"a-1","price":4.75,"sale":8.5},{"sku":"a-2","price":1}]}`,
		},
		{
			name: "big float",
			src:  map[string]any{"weights": []*big.Float{big.NewFloat(0.5)}},
			want: `{"weights":[0.5]}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Shape(mustObject(t, tc.src), Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var walk func(v Value)
			walk = func(v Value) {
				switch v.Kind() {
				case KindDecimal:
					t.Errorf("decimal left in document: %s", v.DecimalValue())
				case KindString:
					if _, err := decimal.NewFromString(v.StringValue()); err == nil {
						t.Errorf("number left as string: %q", v.StringValue())
					}
				case KindObject:
					for _, k := range v.Object().Keys() {
						child, _ := v.Object().Get(k)
						walk(child)
					}
				case KindArray:
					for _, item := range v.Items() {
						walk(item)
					}
				}
			}
			walk(ObjectValue(doc))

			if got := mustJSON(t, doc); got != tc.want {
				t.Errorf("doc = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestCoerceDecimals_LeavesOtherKindsAlone(t *testing.T) {
	in := Array(Int(3), String("a"), Bool(true), Null(), Float(1.25))
	out := CoerceDecimals(in)
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `[3,"a",true,null,1.25]` {
		t.Errorf("got %s", raw)
	}
}
