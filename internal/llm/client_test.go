package llm

import (
	"testing"

	"github.com/koopa0/stockchat/internal/dispatch"
)

func TestSerializeToolCall(t *testing.T) {
	t.Run("valid arguments round-trip through Classify", func(t *testing.T) {
		raw := serializeToolCall("get_quantity", `{"item":"apples"}`)

		o := Classify(raw)
		if o.Kind != OutcomeToolCall {
			t.Fatalf("Classify(%q).Kind = %v, want OutcomeToolCall", raw, o.Kind)
		}
		if o.Intent.Name != "get_quantity" || o.Intent.Arguments["item"] != "apples" {
			t.Errorf("intent = %+v", o.Intent)
		}
	})

	t.Run("broken argument JSON routes to recovery", func(t *testing.T) {
		raw := serializeToolCall("get_quantity", `{"item": `)

		o := Classify(raw)
		if o.Kind != OutcomeUnparseable {
			t.Fatalf("Classify(%q).Kind = %v, want OutcomeUnparseable", raw, o.Kind)
		}
	})

	t.Run("non-object arguments route to recovery", func(t *testing.T) {
		raw := serializeToolCall("get_quantity", `"apples"`)
		if o := Classify(raw); o.Kind != OutcomeUnparseable {
			t.Fatalf("Classify(%q).Kind = %v, want OutcomeUnparseable", raw, o.Kind)
		}
	})
}

func TestToolParams(t *testing.T) {
	specs := []dispatch.Spec{
		{
			Name:        "get_price",
			Description: "Get the price of an item",
			Params:      []dispatch.Param{{Name: "item", Kind: dispatch.KindString, Description: "The item"}},
		},
	}

	tools := toolParams(specs)
	if len(tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(tools))
	}

	fn := tools[0].Function
	if fn.Name != "get_price" {
		t.Errorf("tool name = %q", fn.Name)
	}
	props, ok := fn.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("parameters missing properties: %v", fn.Parameters)
	}
	if _, ok := props["item"]; !ok {
		t.Errorf("item parameter not declared: %v", props)
	}
	req, ok := fn.Parameters["required"].([]string)
	if !ok || len(req) != 1 || req[0] != "item" {
		t.Errorf("required = %v, want [item]", fn.Parameters["required"])
	}
}

func TestClientConfigValidation(t *testing.T) {
	spec := dispatch.Spec{Name: "get_price", Params: []dispatch.Param{{Name: "item", Kind: dispatch.KindString}}}

	tests := []struct {
		name string
		cfg  ClientConfig
		ok   bool
	}{
		{"valid", ClientConfig{APIKey: "sk-x", Model: "gpt-4o-mini", Specs: []dispatch.Spec{spec}}, true},
		{"missing key", ClientConfig{Model: "gpt-4o-mini", Specs: []dispatch.Spec{spec}}, false},
		{"missing model", ClientConfig{APIKey: "sk-x", Specs: []dispatch.Spec{spec}}, false},
		{"no specs", ClientConfig{APIKey: "sk-x", Model: "gpt-4o-mini"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			if tt.ok && err != nil {
				t.Errorf("NewClient() error = %v, want nil", err)
			}
			if !tt.ok && err == nil {
				t.Error("NewClient() succeeded, want error")
			}
		})
	}
}
