package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigValue is one node of a mod configuration tree. The set of
// implementations is closed: StringValue, NumberValue, BoolValue, ListValue
// and MapValue.
type ConfigValue interface {
	configValue()
}

type (
	StringValue string
	NumberValue float64
	BoolValue   bool
	ListValue   []ConfigValue
	MapValue    map[string]ConfigValue
)

func (StringValue) configValue() {}
func (NumberValue) configValue() {}
func (BoolValue) configValue()   {}
func (ListValue) configValue()   {}
func (MapValue) configValue()    {}

// ModConfig is the top-level document persisted per (game, mod).
type ModConfig map[string]ConfigValue

// Equal reports structural equality of two values.
func Equal(a, b ConfigValue) bool {
	switch av := a.(type) {
	case StringValue:
		bv, ok := b.(StringValue)
		return ok && av == bv
	case NumberValue:
		bv, ok := b.(NumberValue)
		return ok && (av == bv || (math.IsNaN(float64(av)) && math.IsNaN(float64(bv))))
	case BoolValue:
		bv, ok := b.(BoolValue)
		return ok && av == bv
	case ListValue:
		bv, ok := b.(ListValue)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case MapValue:
		bv, ok := b.(MapValue)
		return ok && equalMaps(av, bv)
	case nil:
		return b == nil
	default:
		panic(fmt.Sprintf("models: unknown config value %T", a))
	}
}

// Equal reports structural equality of two documents.
func (c ModConfig) Equal(other ModConfig) bool {
	return equalMaps(c, other)
}

func equalMaps(a, b map[string]ConfigValue) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// ToNative converts a value into plain Go data (string, float64, bool,
// []any, map[string]any) suitable for generic encoders.
func ToNative(v ConfigValue) any {
	switch tv := v.(type) {
	case StringValue:
		return string(tv)
	case NumberValue:
		return float64(tv)
	case BoolValue:
		return bool(tv)
	case ListValue:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = ToNative(item)
		}
		return out
	case MapValue:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = ToNative(item)
		}
		return out
	default:
		panic(fmt.Sprintf("models: unknown config value %T", v))
	}
}

// FromNative converts plain Go data into a ConfigValue. Nil and unsupported
// types are rejected.
func FromNative(v any) (ConfigValue, error) {
	switch tv := v.(type) {
	case string:
		return StringValue(tv), nil
	case bool:
		return BoolValue(tv), nil
	case float64:
		return NumberValue(tv), nil
	case float32:
		return NumberValue(tv), nil
	case int:
		return NumberValue(tv), nil
	case int64:
		return NumberValue(tv), nil
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", tv, err)
		}
		return NumberValue(f), nil
	case []any:
		list := make(ListValue, 0, len(tv))
		for i, item := range tv {
			cv, err := FromNative(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list = append(list, cv)
		}
		return list, nil
	case map[string]any:
		m := make(MapValue, len(tv))
		for k, item := range tv {
			cv, err := FromNative(item)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = cv
		}
		return m, nil
	case nil:
		return nil, fmt.Errorf("null values are not supported")
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// ParseValueJSON decodes a JSON literal into a ConfigValue.
func ParseValueJSON(data []byte) (ConfigValue, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return FromNative(raw)
}

// MarshalJSON implements json.Marshaler.
func (c ModConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToNative(MapValue(c)))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ModConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := FromNative(raw)
	if err != nil {
		return err
	}
	*c = ModConfig(v.(MapValue))
	return nil
}

// MarshalYAML implements yaml.Marshaler. Keys are emitted in sorted order so
// that rewriting an unchanged document is byte-stable.
func (c ModConfig) MarshalYAML() (interface{}, error) {
	return valueToNode(MapValue(c))
}

// UnmarshalYAML implements yaml.Unmarshaler. The document root must be a mapping.
func (c *ModConfig) UnmarshalYAML(node *yaml.Node) error {
	v, err := nodeToValue(node)
	if err != nil {
		return err
	}
	if v == nil {
		*c = ModConfig{}
		return nil
	}
	m, ok := v.(MapValue)
	if !ok {
		return fmt.Errorf("config root must be a mapping, got %s", kindName(node))
	}
	*c = ModConfig(m)
	return nil
}

func valueToNode(v ConfigValue) (*yaml.Node, error) {
	switch tv := v.(type) {
	case StringValue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(tv)}, nil
	case NumberValue:
		return numberNode(float64(tv)), nil
	case BoolValue:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(bool(tv))}, nil
	case ListValue:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range tv {
			child, err := valueToNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case MapValue:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := make([]string, 0, len(tv))
		for k := range tv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child, err := valueToNode(tv[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				child)
		}
		return node, nil
	default:
		return nil, fmt.Errorf("unknown config value %T", v)
	}
}

func numberNode(f float64) *yaml.Node {
	switch {
	case math.IsNaN(f):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".nan"}
	case math.IsInf(f, 1):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: ".inf"}
	case math.IsInf(f, -1):
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: "-.inf"}
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(int64(f), 10)}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(f, 'g', -1, 64)}
	}
}

// maxAliasExpansion bounds how many nodes a document may produce through
// aliases.
const maxAliasExpansion = 10000

// nodeDecoder converts YAML nodes, refusing alias cycles and runaway alias
// expansion.
type nodeDecoder struct {
	expanding  map[*yaml.Node]bool
	aliasDepth int
	expanded   int
}

// nodeToValue converts a YAML node. A nil value with nil error means the node
// was null or empty.
func nodeToValue(node *yaml.Node) (ConfigValue, error) {
	d := &nodeDecoder{expanding: make(map[*yaml.Node]bool)}
	return d.decode(node)
}

func (d *nodeDecoder) decode(node *yaml.Node) (ConfigValue, error) {
	if d.aliasDepth > 0 {
		d.expanded++
		if d.expanded > maxAliasExpansion {
			return nil, fmt.Errorf("line %d: document expands too many aliases", node.Line)
		}
	}

	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return d.decode(node.Content[0])
	case yaml.AliasNode:
		if node.Alias == nil {
			return nil, fmt.Errorf("line %d: dangling alias", node.Line)
		}
		if d.expanding[node.Alias] {
			return nil, fmt.Errorf("line %d: alias *%s refers to itself", node.Line, node.Value)
		}
		d.expanding[node.Alias] = true
		d.aliasDepth++
		v, err := d.decode(node.Alias)
		d.aliasDepth--
		delete(d.expanding, node.Alias)
		return v, err
	case yaml.ScalarNode:
		return scalarToValue(node)
	case yaml.SequenceNode:
		list := make(ListValue, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := d.decode(child)
			if err != nil {
				return nil, err
			}
			if v == nil {
				continue
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.MappingNode:
		m := make(MapValue, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			v, err := d.decode(valNode)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", keyNode.Value, err)
			}
			if v == nil {
				continue
			}
			m[keyNode.Value] = v
		}
		return m, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", node.Line)
	}
}

func scalarToValue(node *yaml.Node) (ConfigValue, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, err
		}
		return BoolValue(b), nil
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, err
		}
		return NumberValue(f), nil
	case "!!str", "!!timestamp", "!!binary":
		return StringValue(node.Value), nil
	default:
		return nil, fmt.Errorf("line %d: unsupported tag %s", node.Line, node.Tag)
	}
}

func kindName(node *yaml.Node) string {
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	switch node.Kind {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.MappingNode:
		return "mapping"
	default:
		return "unknown"
	}
}
