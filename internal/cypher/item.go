package cypher

import (
	"encoding/json"
	"fmt"

	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
)

// ItemKind discriminates the four shapes a RETURN/SET/REMOVE/DELETE
// list entry can take.
type ItemKind string

const (
	ItemVar            ItemKind = "var"
	ItemVarWithLabel    ItemKind = "var_with_label"
	ItemVarWithKey       ItemKind = "var_with_key"
	ItemVarWithKeyValue   ItemKind = "var_with_key_value"
)

// Item is one entry of a RETURN, SET, REMOVE, or DELETE clause:
//   - Var:            n
//   - VarWithLabel:    n:Label       (add a label via SET, drop via REMOVE)
//   - VarWithKey:      n.key         (drop a property via REMOVE)
//   - VarWithKeyValue: n.key = 'val' (assign a property via SET)
type Item struct {
	Kind  ItemKind
	Var   string
	Key   string // label name for VarWithLabel, property key otherwise
	Value string // only set for VarWithKeyValue
}

// Var builds a bare variable reference item.
func Var(varName string) Item { return Item{Kind: ItemVar, Var: varName} }

// VarWithLabel builds an n:Label item.
func VarWithLabel(varName, label string) Item {
	return Item{Kind: ItemVarWithLabel, Var: varName, Key: label}
}

// VarWithKey builds an n.key item.
func VarWithKey(varName, key string) Item {
	return Item{Kind: ItemVarWithKey, Var: varName, Key: key}
}

// VarWithKeyValue builds an n.key = 'value' item.
func VarWithKeyValue(varName, key, value string) Item {
	return Item{Kind: ItemVarWithKeyValue, Var: varName, Key: key, Value: value}
}

// render renders this item's Cypher-dialect fragment.
func (it Item) render() string {
	switch it.Kind {
	case ItemVar:
		return it.Var
	case ItemVarWithLabel:
		return fmt.Sprintf("%s:%s", it.Var, it.Key)
	case ItemVarWithKey:
		return fmt.Sprintf("%s.%s", it.Var, it.Key)
	case ItemVarWithKeyValue:
		return fmt.Sprintf("%s.%s = '%s'", it.Var, it.Key, it.Value)
	default:
		return ""
	}
}

// itemTag is the wire name of each variant, matching the Rust enum's
// own variant names exactly: a tuple enum with no #[serde(tag = ...)]
// serializes as an externally-tagged object keyed by the variant name,
// whose value is the variant's field(s) — a bare value for a single
// field, a positional array for more than one.
func itemTag(kind ItemKind) string {
	switch kind {
	case ItemVar:
		return "Var"
	case ItemVarWithLabel:
		return "VarWithLabel"
	case ItemVarWithKey:
		return "VarWithKey"
	case ItemVarWithKeyValue:
		return "VarWithKeyValue"
	default:
		return ""
	}
}

func itemKindForTag(tag string) (ItemKind, bool) {
	switch tag {
	case "Var":
		return ItemVar, true
	case "VarWithLabel":
		return ItemVarWithLabel, true
	case "VarWithKey":
		return ItemVarWithKey, true
	case "VarWithKeyValue":
		return ItemVarWithKeyValue, true
	default:
		return "", false
	}
}

func (it Item) MarshalJSON() ([]byte, error) {
	tag := itemTag(it.Kind)
	if tag == "" {
		return nil, graphproxyerrors.Structuralf("cannot marshal item of unknown kind %q", it.Kind)
	}

	var payload any
	switch it.Kind {
	case ItemVar:
		payload = it.Var
	case ItemVarWithLabel, ItemVarWithKey:
		payload = [2]string{it.Var, it.Key}
	case ItemVarWithKeyValue:
		payload = [3]string{it.Var, it.Key, it.Value}
	}

	return json.Marshal(map[string]any{tag: payload})
}

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return graphproxyerrors.Structuralf("item must be a single-keyed tagged object, got %d keys", len(raw))
	}

	var tag string
	var payload json.RawMessage
	for k, v := range raw {
		tag, payload = k, v
	}

	kind, ok := itemKindForTag(tag)
	if !ok {
		return graphproxyerrors.Structuralf("unknown item variant %q", tag)
	}

	switch kind {
	case ItemVar:
		var varName string
		if err := json.Unmarshal(payload, &varName); err != nil {
			return graphproxyerrors.SerializationError(err, "failed to decode Var payload")
		}
		it.Kind, it.Var, it.Key, it.Value = kind, varName, "", ""

	case ItemVarWithLabel, ItemVarWithKey:
		var fields [2]string
		if err := json.Unmarshal(payload, &fields); err != nil {
			return graphproxyerrors.SerializationError(err, "failed to decode "+tag+" payload")
		}
		it.Kind, it.Var, it.Key, it.Value = kind, fields[0], fields[1], ""

	case ItemVarWithKeyValue:
		var fields [3]string
		if err := json.Unmarshal(payload, &fields); err != nil {
			return graphproxyerrors.SerializationError(err, "failed to decode VarWithKeyValue payload")
		}
		it.Kind, it.Var, it.Key, it.Value = kind, fields[0], fields[1], fields[2]
	}

	return nil
}
