package graph

import (
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/clique-labs/graphproxy/internal/cypher"
	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
)

// getReturnVars extracts the bare variable names from a RETURN list, in
// order. Only Item::Var entries name something the backend returns a
// whole node/relation for; the other item kinds only ever appear in
// SET/REMOVE/DELETE.
func getReturnVars(q cypher.CypherQuery) []string {
	var vars []string
	for _, it := range q.ReturnList {
		if it.Kind == cypher.ItemVar {
			vars = append(vars, it.Var)
		}
	}
	return vars
}

// buildRowFromRecord converts one backend record into a Row by pulling
// each return variable's bound node or relationship out of the driver's
// record map, in RETURN order.
func buildRowFromRecord(record map[string]any, vars []string) (cypher.Row, error) {
	row := cypher.Row{}
	for _, v := range vars {
		val, ok := record[v]
		if !ok {
			continue
		}
		switch bound := val.(type) {
		case neo4j.Node:
			inner, err := innerFromProps(bound.Labels, bound.Props)
			if err != nil {
				return cypher.Row{}, err
			}
			row.Inners = append(row.Inners, inner)
		case neo4j.Relationship:
			inner, err := innerFromProps([]string{bound.Type}, bound.Props)
			if err != nil {
				return cypher.Row{}, err
			}
			row.Inners = append(row.Inners, inner)
		default:
			return cypher.Row{}, graphproxyerrors.BackendErrorf(nil, "return variable %q bound to unsupported type %T", v, val)
		}
	}
	return row, nil
}

func innerFromProps(labels []string, props map[string]any) (cypher.Inner, error) {
	properties := make([]cypher.Property, 0, len(props))
	for k, v := range props {
		s, ok := v.(string)
		if !ok {
			return cypher.Inner{}, graphproxyerrors.BackendErrorf(nil, "property %q is not a string", k)
		}
		properties = append(properties, cypher.Property{Key: k, Value: s})
	}
	sort.Slice(properties, func(i, j int) bool { return properties[i].Key < properties[j].Key })
	return cypher.NewInner(append([]string(nil), labels...), properties), nil
}
