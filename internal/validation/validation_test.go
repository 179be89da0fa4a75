package validation

import "testing"

type line struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
}

type request struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Users int    `json:"user_count" validate:"gte=1,lte=5000"`
	Items []line `json:"items" validate:"dive"`
}

func TestStruct(t *testing.T) {
	v := Struct(request{Email: "nope", Users: 0, Items: []line{{SKU: "A", Quantity: 1}, {Quantity: 0}}})
	want := map[string]string{
		"name":              "required",
		"email":             "invalid_email",
		"user_count":        "too_small",
		"items[1].sku":      "required",
		"items[1].quantity": "too_small",
	}
	if len(v) != len(want) {
		t.Fatalf("got %v want %v", v, want)
	}
	for k, code := range want {
		if v[k] != code {
			t.Errorf("%s: got %q want %q", k, v[k], code)
		}
	}
}

func TestStructValid(t *testing.T) {
	if v := Struct(request{Name: "Acme", Users: 10}); !v.Empty() {
		t.Fatalf("unexpected violations %v", v)
	}
}

func TestBasicValidators(t *testing.T) {
	v := make(Violations)
	Required("name", "  ", v)
	PositiveInt("user_count", 0, v)
	RangeFloat("rating", 6, 1, 5, v)
	if v["name"] != "required" || v["user_count"] != "must_be_positive" || v["rating"] != "out_of_range" {
		t.Fatalf("unexpected %v", v)
	}
}
