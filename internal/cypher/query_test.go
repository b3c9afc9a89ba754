package cypher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func props(pairs ...string) []Property {
	var out []Property
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Property{Key: pairs[i], Value: pairs[i+1]})
	}
	return out
}

func roundTrip(t *testing.T, q CypherQuery) string {
	t.Helper()
	s, err := q.Render()
	require.NoError(t, err)

	serialized, err := q.Serialize()
	require.NoError(t, err)
	back, err := Deserialize(serialized)
	require.NoError(t, err)
	s2, err := back.Render()
	require.NoError(t, err)
	assert.Equal(t, s, s2)

	return s
}

func TestCreateSingleNode(t *testing.T) {
	q := NewBuilder().
		CreateOp().
		Node(NewNode("n", []string{"label1", "label2"}, props("k1", "v1", "k2", "v2"))).
		Return([]Item{Var("n")}).
		Build()

	assert.Equal(t, "CREATE (n:label1:label2 {k1: 'v1', k2: 'v2'}) RETURN n", roundTrip(t, q))
}

func TestCreatePattern(t *testing.T) {
	q := NewBuilder().
		CreateOp().
		Node(NewNode("a", []string{"label1", "label2"}, props("k1", "v1", "k2", "v2"))).
		Relation(NewRelation("r", []string{"rlabel1", "rlabel2"}, props("rk1", "rv1", "rk2", "rv2"))).
		NextNode(NewNode("b", []string{"label1", "label2"}, props("k1", "nv1", "k2", "nv2"))).
		Return([]Item{Var("a"), Var("r"), Var("b")}).
		Build()

	assert.Equal(t,
		"CREATE (a:label1:label2 {k1: 'v1', k2: 'v2'})-[r:rlabel1:rlabel2 {rk1: 'rv1', rk2: 'rv2'}]->(b:label1:label2 {k1: 'nv1', k2: 'nv2'}) RETURN a, r, b",
		roundTrip(t, q))
}

func TestCreateMatchThenLink(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("a", []string{"label1", "label2"}, props("k1", "v1", "k2", "v2"))).
		NextNode(NewNode("b", []string{"label1", "label2"}, props("k1", "nv1", "k2", "nv2"))).
		CreateOp().
		Relation(NewRelation("r", []string{"rlabel1"}, props("rk1", "rv1", "rk2", "rv2"))).
		Return([]Item{Var("r")}).
		Build()

	assert.Equal(t,
		"MATCH (a:label1:label2 {k1: 'v1', k2: 'v2'}), (b:label1:label2 {k1: 'nv1', k2: 'nv2'}) CREATE (a)-[r:rlabel1 {rk1: 'rv1', rk2: 'rv2'}]->(b) RETURN r",
		roundTrip(t, q))
}

func TestReadSingleNode(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1", "label2"}, props("k1", "v1"))).
		Return([]Item{Var("n")}).
		Build()

	assert.Equal(t, "MATCH (n:label1:label2 {k1: 'v1'}) RETURN n", roundTrip(t, q))
}

func TestReadPattern(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("a", []string{"label1"}, props("k2", "v2"))).
		Relation(NewRelation("r", []string{"rlabel1"}, props("rk1", "rv1"))).
		NextNode(NewNode("b", []string{"label1"}, nil)).
		Return([]Item{Var("a"), Var("r"), Var("b")}).
		Build()

	assert.Equal(t, "MATCH (a:label1 {k2: 'v2'})-[r:rlabel1 {rk1: 'rv1'}]->(b:label1) RETURN a, r, b", roundTrip(t, q))
}

func TestReadBareNextNode(t *testing.T) {
	// Two disjoint patterns in one MATCH, no relation: the shape the
	// match-then-link create and shortest-path both resolve endpoints
	// with.
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, props("k1", "v1"))).
		NextNode(NewNode("m", []string{"label2"}, props("k2", "v2"))).
		Return([]Item{Var("n"), Var("m")}).
		Build()

	assert.Equal(t, "MATCH (n:label1 {k1: 'v1'}), (m:label2 {k2: 'v2'}) RETURN n, m", roundTrip(t, q))

	crud, err := q.Classify()
	require.NoError(t, err)
	assert.Equal(t, Read, crud)
}

func TestSetSingleNode(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, props("k1", "v1"))).
		Set([]Item{
			VarWithLabel("n", "label3"),
			VarWithKeyValue("n", "k1", "new_v1"),
			VarWithKeyValue("n", "k3", "v3"),
		}).
		Return([]Item{Var("n")}).
		Build()

	assert.Equal(t,
		"MATCH (n:label1 {k1: 'v1'})  SET n:label3, n.k1 = 'new_v1', n.k3 = 'v3' RETURN n",
		roundTrip(t, q))
}

func TestSetRelation(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("a", []string{"label1"}, props("k1", "v1"))).
		Relation(NewRelation("r", nil, nil)).
		NextNode(NewNode("", nil, nil)).
		Set([]Item{
			VarWithKeyValue("r", "rk1", "new_rv1"),
			VarWithKeyValue("r", "rk3", "rv3"),
		}).
		Build()

	assert.Equal(t,
		"MATCH (a:label1 {k1: 'v1'})-[r]->()  SET r.rk1 = 'new_rv1', r.rk3 = 'rv3' ",
		roundTrip(t, q))
}

func TestRemoveSingleNode(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, props("k1", "v1"))).
		Remove([]Item{
			VarWithLabel("n", "label3"),
			VarWithKey("n", "k3"),
		}).
		Build()

	assert.Equal(t, "MATCH (n:label1 {k1: 'v1'}) REMOVE n:label3, n.k3  ", roundTrip(t, q))
}

func TestRemoveRelation(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("", []string{"label1", "label2"}, props("k1", "v1"))).
		Relation(NewRelation("r", nil, nil)).
		NextNode(NewNode("", []string{"label1", "label2"}, props("k1", "nv1"))).
		Remove([]Item{VarWithKey("r", "rk3")}).
		Return([]Item{Var("r")}).
		Build()

	assert.Equal(t,
		"MATCH (:label1:label2 {k1: 'v1'})-[r]->(:label1:label2 {k1: 'nv1'}) REMOVE r.rk3  RETURN r",
		roundTrip(t, q))
}

func TestRemoveThenSet(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, props("k1", "v1"))).
		Remove([]Item{
			VarWithLabel("n", "label3"),
			VarWithKey("n", "k3"),
		}).
		Set([]Item{VarWithKeyValue("n", "k4", "v4")}).
		Build()

	assert.Equal(t, "MATCH (n:label1 {k1: 'v1'}) REMOVE n:label3, n.k3 SET n.k4 = 'v4' ", roundTrip(t, q))
}

func TestRemoveThenSetRelation(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("", []string{"label1", "label2"}, props("k1", "v1"))).
		Relation(NewRelation("r", nil, nil)).
		NextNode(NewNode("", []string{"label1", "label2"}, props("k1", "nv1"))).
		Remove([]Item{VarWithKey("r", "rk3")}).
		Set([]Item{VarWithKeyValue("r", "rk4", "rv4")}).
		Return([]Item{Var("r")}).
		Build()

	assert.Equal(t,
		"MATCH (:label1:label2 {k1: 'v1'})-[r]->(:label1:label2 {k1: 'nv1'}) REMOVE r.rk3 SET r.rk4 = 'rv4' RETURN r",
		roundTrip(t, q))
}

func TestDeletePattern(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, props("k1", "v1"))).
		Relation(NewRelation("r", nil, nil)).
		NextNode(NewNode("", nil, nil)).
		Delete([]Item{Var("n"), Var("r")}, false).
		Build()

	assert.Equal(t, "MATCH (n:label1 {k1: 'v1'})-[r]->() DELETE n, r ", roundTrip(t, q))
}

func TestDetachDeleteSingleNode(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, props("k1", "v1"))).
		Delete([]Item{Var("n")}, true).
		Build()

	assert.Equal(t, "MATCH (n:label1 {k1: 'v1'}) DETACH DELETE n ", roundTrip(t, q))
}

func TestDetachDeleteBareNode(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", nil, nil)).
		Delete([]Item{Var("n")}, true).
		Build()

	assert.Equal(t, "MATCH (n) DETACH DELETE n ", roundTrip(t, q))
}

func TestValidateRejectsRelationWithoutNextNode(t *testing.T) {
	q := CypherQuery{
		Node:     NewNode("n", []string{"label1"}, nil),
		Relation: NewRelation("r", nil, nil),
	}
	err := q.Validate()
	assert.Error(t, err)
}

func TestValidateRejectsCreatedRelationWithoutLabel(t *testing.T) {
	q := NewBuilder().
		CreateOp().
		Node(NewNode("a", []string{"label1"}, nil)).
		Relation(NewRelation("r", nil, nil)).
		NextNode(NewNode("b", []string{"label1"}, nil)).
		Return([]Item{Var("a")}).
		Build()

	err := q.Validate()
	assert.Error(t, err)
}

func TestCanonicalizeRewritesVars(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("foo", []string{"label1"}, nil)).
		Relation(NewRelation("bar", nil, nil)).
		NextNode(NewNode("baz", nil, nil)).
		Set([]Item{VarWithKeyValue("bar", "k", "v")}).
		Return([]Item{Var("foo"), Var("bar"), Var("baz")}).
		Build()

	Canonicalize(&q)

	assert.Equal(t, NodeVarName, q.Node.Var())
	assert.Equal(t, RelationVarName, q.Relation.Var())
	assert.Equal(t, NextNodeVarName, q.NextNode.Var())
	assert.Equal(t, RelationVarName, q.SetList[0].Var)
	assert.Equal(t, []string{NodeVarName, RelationVarName, NextNodeVarName},
		[]string{q.ReturnList[0].Var, q.ReturnList[1].Var, q.ReturnList[2].Var})
}

func TestItemMarshalJSONMatchesExternallyTaggedWireFormat(t *testing.T) {
	body, err := json.Marshal(Var("n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Var":"n"}`, string(body))

	body, err = json.Marshal(VarWithLabel("n", "Label"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"VarWithLabel":["n","Label"]}`, string(body))

	body, err = json.Marshal(VarWithKey("n", "k"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"VarWithKey":["n","k"]}`, string(body))

	body, err = json.Marshal(VarWithKeyValue("n", "k", "v"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"VarWithKeyValue":["n","k","v"]}`, string(body))
}

func TestItemUnmarshalJSONAcceptsExternallyTaggedWireFormat(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"VarWithKeyValue":["n","k","v"]}`), &it))
	assert.Equal(t, VarWithKeyValue("n", "k", "v"), it)

	require.NoError(t, json.Unmarshal([]byte(`{"Var":"n"}`), &it))
	assert.Equal(t, Var("n"), it)
}

func TestItemUnmarshalJSONRejectsUnknownVariant(t *testing.T) {
	var it Item
	err := json.Unmarshal([]byte(`{"Bogus":"n"}`), &it)
	assert.Error(t, err)
}

func TestDeleteClauseMarshalJSONIsPositionalArray(t *testing.T) {
	q := NewBuilder().
		Match().
		Node(NewNode("n", []string{"label1"}, nil)).
		Delete([]Item{Var("n")}, true).
		Build()

	body, err := json.Marshal(q.DeleteList)
	require.NoError(t, err)
	assert.JSONEq(t, `[[{"Var":"n"}],true]`, string(body))
}

func TestDeleteClauseUnmarshalJSONAcceptsPositionalArray(t *testing.T) {
	var d DeleteClause
	require.NoError(t, json.Unmarshal([]byte(`[[{"Var":"n"}],true]`), &d))
	require.Len(t, d.Items, 1)
	assert.Equal(t, Var("n"), d.Items[0])
	assert.True(t, d.Detach)
}
