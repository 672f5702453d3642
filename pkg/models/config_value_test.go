package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b ConfigValue
		want bool
	}{
		{"same string", StringValue("a"), StringValue("a"), true},
		{"different kinds", StringValue("1"), NumberValue(1), false},
		{"nan equals nan", NumberValue(math.NaN()), NumberValue(math.NaN()), true},
		{"list order matters", ListValue{NumberValue(1), NumberValue(2)}, ListValue{NumberValue(2), NumberValue(1)}, false},
		{"nested maps", MapValue{"a": ListValue{BoolValue(true)}}, MapValue{"a": ListValue{BoolValue(true)}}, true},
		{"missing key", MapValue{"a": BoolValue(true)}, MapValue{"b": BoolValue(true)}, false},
		{"nil and empty list", ListValue(nil), ListValue{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModConfigYAML(t *testing.T) {
	doc := ModConfig{
		"speed": NumberValue(3),
		"ratio": NumberValue(0.5),
		"name":  StringValue("true"),
		"on":    BoolValue(false),
		"list":  ListValue{StringValue("x"), MapValue{"k": NumberValue(-1)}},
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "speed: 3\n") || !strings.Contains(text, `name: "true"`) {
		t.Fatalf("unexpected encoding:\n%s", text)
	}
	if strings.Index(text, "list:") > strings.Index(text, "speed:") {
		t.Fatalf("keys not sorted:\n%s", text)
	}

	var back ModConfig
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !back.Equal(doc) {
		t.Fatalf("round trip mismatch: %#v", back)
	}
}

func TestModConfigYAMLEdgeCases(t *testing.T) {
	var doc ModConfig
	if err := yaml.Unmarshal([]byte("a: ~\nb: &x [1]\nc: *x\n"), &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := doc["a"]; ok {
		t.Fatal("null entry kept")
	}
	if !Equal(doc["c"], ListValue{NumberValue(1)}) {
		t.Fatalf("alias not resolved: %#v", doc["c"])
	}

	if err := yaml.Unmarshal([]byte("- 1\n- 2\n"), &doc); err == nil {
		t.Fatal("sequence root accepted")
	}

	for _, cyclic := range []string{"a: &x [*x]\n", "a: &x {b: [1, *x]}\n"} {
		var c ModConfig
		if err := yaml.Unmarshal([]byte(cyclic), &c); err == nil || !strings.Contains(err.Error(), "refers to itself") {
			t.Fatalf("Unmarshal(%q) err = %v, want alias cycle error", cyclic, err)
		}
	}

	var shared ModConfig
	if err := yaml.Unmarshal([]byte("a: &x {k: 1}\nb: *x\nc: *x\n"), &shared); err != nil {
		t.Fatalf("repeated alias rejected: %v", err)
	}
}

func TestModConfigJSON(t *testing.T) {
	var doc ModConfig
	if err := json.Unmarshal([]byte(`{"a":1.5,"b":[true,"x"],"c":{"d":null}}`), &doc); err == nil {
		t.Fatal("null value accepted")
	}
	if err := json.Unmarshal([]byte(`{"a":1.5,"b":[true,"x"],"c":{}}`), &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	want := ModConfig{"a": NumberValue(1.5), "b": ListValue{BoolValue(true), StringValue("x")}, "c": MapValue{}}
	if !doc.Equal(want) {
		t.Fatalf("doc = %#v", doc)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"a":1.5,"b":[true,"x"],"c":{}}` {
		t.Fatalf("Marshal = %s", data)
	}
}

func TestParseValueJSON(t *testing.T) {
	v, err := ParseValueJSON([]byte(`[1, "two"]`))
	if err != nil || !Equal(v, ListValue{NumberValue(1), StringValue("two")}) {
		t.Fatalf("ParseValueJSON = %#v, %v", v, err)
	}
	if _, err := ParseValueJSON([]byte(`null`)); err == nil {
		t.Fatal("null accepted")
	}
}
