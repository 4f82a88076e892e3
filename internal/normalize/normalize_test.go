package normalize

import "testing"

func TestKeyEquivalence(t *testing.T) {
	inputs := []string{"Towels (12)", " towels (12) ", "TOWELS (12)", "Towels", "towels\t"}
	want, ok := Key(inputs[0])
	if !ok {
		t.Fatalf("Key(%q) returned null", inputs[0])
	}
	for _, in := range inputs[1:] {
		got, ok := Key(in)
		if !ok || got != want {
			t.Fatalf("Key(%q) = %q,%v want %q", in, got, ok, want)
		}
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"trim", "  Apt 4  ", "Apt 4", true},
		{"collapse whitespace", "Coffee   Beans\t Dark", "Coffee Beans Dark", true},
		{"strip one trailing parenthetical", "Soap (500ml) (x2)", "Soap (500ml)", true},
		{"inner parenthetical kept", "Soap (bar) refill", "Soap (bar) refill", true},
		{"blank", "   ", "", false},
		{"nan", "NaN", "", false},
		{"none", "None", "", false},
		{"na marker", "<NA>", "", false},
		{"only parenthetical", "(12)", "", false},
		{"accents preserved", "Almacén Sur", "Almacén Sur", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Text(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Text(%q) = %q,%v want %q,%v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestKeyUpperCases(t *testing.T) {
	got, ok := Key("loc a")
	if !ok || got != "LOC A" {
		t.Fatalf("Key = %q,%v", got, ok)
	}
	if _, ok := Key("nan"); ok {
		t.Fatalf("expected null key for nan")
	}
}

func TestFoldHeader(t *testing.T) {
	tests := map[string]string{
		"Ubicación":         "ubicacion",
		"ubicacion":         "ubicacion",
		"  CANTIDAD  Real ": "cantidad real",
		"Artículo":          "articulo",
	}
	for in, want := range tests {
		if got := FoldHeader(in); got != want {
			t.Errorf("FoldHeader(%q) = %q want %q", in, got, want)
		}
	}
}

func TestColumnName(t *testing.T) {
	for _, in := range []string{"Unit Cost", "unit_cost", "UNIT-COST", "Unit.Cost"} {
		if got := ColumnName(in); got != "unitcost" {
			t.Errorf("ColumnName(%q) = %q", in, got)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{" 7 ", "7"},
		{"1 000", "1000"},
		{"2,5", "2.5"},
		{"12,50", "12.50"},
		{"1,234", "1234"},
		{"1,234,567", "1234567"},
		{"-1,234.75", "-1234.75"},
		{"1,2345", "1,2345"},
		{"1.234,5", "1.234,5"},
	}
	for _, tt := range tests {
		if got := Number(tt.in); got != tt.want {
			t.Errorf("Number(%q) = %q want %q", tt.in, got, tt.want)
		}
	}
}
