package graph

import (
	"encoding/json"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clique-labs/graphproxy/internal/cipher"
	"github.com/clique-labs/graphproxy/internal/cypher"
	"github.com/clique-labs/graphproxy/internal/identity"
	"github.com/clique-labs/graphproxy/internal/integrity"
)

func TestEncryptorRoundTripsThroughCipher(t *testing.T) {
	c, err := cipher.New(testAESKey())
	require.NoError(t, err)
	enc := NewEncryptor(c)

	n := cypher.NewNode("n", []string{"Person"}, []cypher.Property{{Key: "name", Value: "alice"}})
	stampNode(n)

	q := cypher.CypherQuery{Node: n}
	require.NoError(t, enc.EncryptQuery(&q))

	// uid/hash stay plaintext; everything else is wrapped.
	uid, ok := q.Node.Get(identity.UIDKey)
	require.True(t, ok)
	assert.False(t, cipher.IsWrapped(uid))

	hash, ok := q.Node.Get(integrity.HashKey)
	require.True(t, ok)
	assert.False(t, cipher.IsWrapped(hash))

	for _, l := range q.Node.Labels {
		assert.True(t, cipher.IsWrapped(l))
	}
	for _, p := range q.Node.Properties {
		if p.Key == identity.UIDKey || p.Key == integrity.HashKey {
			continue
		}
		assert.True(t, cipher.IsWrapped(p.Key))
		assert.True(t, cipher.IsWrapped(p.Value))
	}
}

func TestDecryptAndVerifyRowDetectsTamperedProperty(t *testing.T) {
	c, err := cipher.New(testAESKey())
	require.NoError(t, err)
	enc := NewEncryptor(c)

	n := cypher.NewNode("n", []string{"Person"}, []cypher.Property{{Key: "name", Value: "alice"}})
	stampNode(n)

	q := cypher.CypherQuery{Node: n}
	require.NoError(t, enc.EncryptQuery(&q))

	row := cypher.NewRow([]cypher.Inner{cypher.NewInner(q.Node.Labels, q.Node.Properties)})

	// Tamper with one encrypted property value in place, simulating a
	// backend that returned a substituted payload.
	row.Inners[0].Properties[0].Value = c.Wrap("mallory")

	_, err = enc.DecryptAndVerifyRow(row)
	assert.Error(t, err)
}

func TestDecryptAndVerifyRowRejectsMissingUID(t *testing.T) {
	c, err := cipher.New(testAESKey())
	require.NoError(t, err)
	enc := NewEncryptor(c)

	n := cypher.NewNode("n", []string{"Person"}, []cypher.Property{{Key: "name", Value: "alice"}})
	// Stamp only a hash, never a uid: the tamper check must still fire.
	stampNodeHash(n)

	q := cypher.CypherQuery{Node: n}
	require.NoError(t, enc.EncryptQuery(&q))

	row := cypher.NewRow([]cypher.Inner{cypher.NewInner(q.Node.Labels, q.Node.Properties)})
	_, err = enc.DecryptAndVerifyRow(row)
	assert.Error(t, err)
}

func TestStampNodeIncludesUIDInHash(t *testing.T) {
	n := cypher.NewNode("n", []string{"Person"}, []cypher.Property{{Key: "name", Value: "alice"}})
	stampNode(n)

	uid, ok := n.Get(identity.UIDKey)
	require.True(t, ok)

	hash, ok := n.Get(integrity.HashKey)
	require.True(t, ok)

	expected := integrity.Digest(n.Labels, []cypher.Property{
		{Key: identity.UIDKey, Value: uid},
		{Key: "name", Value: "alice"},
	})
	assert.Equal(t, expected, hash)
}

func TestApplySetAndApplyRemove(t *testing.T) {
	inners := []cypher.Inner{
		cypher.NewInner([]string{"Person"}, []cypher.Property{{Key: "name", Value: "alice"}}),
	}

	require.NoError(t, applySet(inners, []cypher.Item{
		cypher.VarWithKeyValue(cypher.NodeVarName, "age", "30"),
		cypher.VarWithLabel(cypher.NodeVarName, "Employee"),
	}))

	age, ok := inners[0].Get("age")
	assert.True(t, ok)
	assert.Equal(t, "30", age)
	assert.Contains(t, inners[0].Labels, "Employee")

	require.NoError(t, applyRemove(inners, []cypher.Item{
		cypher.VarWithKey(cypher.NodeVarName, "age"),
	}))
	_, ok = inners[0].Get("age")
	assert.False(t, ok)
}

func TestApplyRemoveForbidsRelationLabelRemoval(t *testing.T) {
	inners := []cypher.Inner{
		cypher.NewInner(nil, nil),
		cypher.NewInner([]string{"KNOWS"}, nil),
	}
	err := applyRemove(inners, []cypher.Item{
		cypher.VarWithLabel(cypher.RelationVarName, "KNOWS"),
	})
	assert.Error(t, err)
}

func testAESKey() [16]byte {
	var k [16]byte
	for i := range k {
		k[i] = byte(i * 7)
	}
	return k
}

// Sanity check that buildRowFromRecord decodes the driver's own Node
// and Relationship record-bound types the way the Engine expects.
func TestBuildRowFromRecordDecodesDriverTypes(t *testing.T) {
	record := map[string]any{
		"n": neo4j.Node{Labels: []string{"Person"}, Props: map[string]any{"name": "alice", "uid": "u1"}},
		"r": neo4j.Relationship{Type: "KNOWS", Props: map[string]any{"uid": "u1u2"}},
	}
	row, err := buildRowFromRecord(record, []string{"n", "r"})
	require.NoError(t, err)
	require.Len(t, row.Inners, 2)

	name, ok := row.Inners[0].Get("name")
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, []string{"KNOWS"}, row.Inners[1].Labels)
}

// TestQueryWireRoundTrip is a smoke test that the wire-level JSON
// round trip used by Execute preserves every field Canonicalize and
// Classify depend on.
func TestQueryWireRoundTrip(t *testing.T) {
	q := cypher.NewBuilder().
		Match().
		Node(cypher.NewNode("n", []string{"Person"}, nil)).
		Return([]cypher.Item{cypher.Var("n")}).
		Build()

	body, err := json.Marshal(q)
	require.NoError(t, err)

	back, err := cypher.Deserialize(body)
	require.NoError(t, err)

	crud, err := back.Classify()
	require.NoError(t, err)
	assert.Equal(t, cypher.Read, crud)
}
