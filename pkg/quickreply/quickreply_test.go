package quickreply

import (
	"reflect"
	"testing"
)

func TestSuggestionsDeterministic(t *testing.T) {
	cases := []struct {
		category, sub string
		first         string
	}{
		{"services", "Грузоперевозки", "Здравствуйте! Какая цена за час?"},
		{"rent", "Квартиры", "Здравствуйте! Ещё сдаётся?"},
		{"sale", "", "Здравствуйте! Ещё актуально?"},
	}
	for _, tc := range cases {
		a := Suggestions(tc.category, tc.sub)
		b := Suggestions(tc.category, tc.sub)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("(%s,%s): selector not deterministic", tc.category, tc.sub)
		}
		if len(a) != 5 {
			t.Fatalf("(%s,%s): expected 5 suggestions, got %d", tc.category, tc.sub, len(a))
		}
		if a[0] != tc.first {
			t.Fatalf("(%s,%s): first suggestion = %q, want %q", tc.category, tc.sub, a[0], tc.first)
		}
	}
}

func TestSuggestionsPriorityOrder(t *testing.T) {
	// freight beats the general services set
	freight := Suggestions("services", "Грузоперевозки")
	general := Suggestions("services", "Ремонт")
	if reflect.DeepEqual(freight, general) {
		t.Fatalf("freight subcategory must take priority over general services")
	}

	// real-estate rent beats general rent
	flat := Suggestions("rent", "Квартиры")
	tools := Suggestions("rent", "Инструменты")
	if reflect.DeepEqual(flat, tools) {
		t.Fatalf("real-estate rent must take priority over general rent")
	}

	// jobs have their own set
	jobs := Suggestions("jobs", "")
	if jobs[0] != "Здравствуйте! Вакансия ещё открыта?" {
		t.Fatalf("unexpected jobs suggestions: %v", jobs)
	}

	// unknown categories fall through to the sale defaults
	def := Suggestions("weird", "whatever")
	if def[0] != "Здравствуйте! Ещё актуально?" {
		t.Fatalf("unknown category must use the default set")
	}
}

func TestSuggestionsReturnsCopy(t *testing.T) {
	a := Suggestions("sale", "")
	a[0] = "mutated"
	b := Suggestions("sale", "")
	if b[0] != "Здравствуйте! Ещё актуально?" {
		t.Fatalf("caller mutation leaked into the fixture")
	}
}
