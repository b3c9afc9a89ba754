package graph

import (
	"context"
	"log/slog"

	"github.com/clique-labs/graphproxy/internal/cypher"
	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
	"github.com/clique-labs/graphproxy/internal/identity"
	"github.com/clique-labs/graphproxy/internal/integrity"
)

// Engine turns a deserialized client query into one or more encrypted
// backend round trips and decrypts/verifies what comes back. It is the
// component that knows the shape of every CRUD and shortest-path
// operation; Backend only knows how to run an already-rendered query
// string.
type Engine struct {
	backend Backend
	enc     *Encryptor
	logger  *slog.Logger
}

// NewEngine builds an Engine over a backend and a fixed encryptor.
func NewEngine(backend Backend, enc *Encryptor) *Engine {
	return &Engine{backend: backend, enc: enc, logger: slog.Default().With("component", "engine")}
}

// Execute deserializes a wire frame body, canonicalizes and classifies
// it, and dispatches to the matching strategy.
func (e *Engine) Execute(ctx context.Context, body []byte) (cypher.Rows, error) {
	query, err := cypher.Deserialize(body)
	if err != nil {
		return cypher.Rows{}, err
	}

	cypher.Canonicalize(query)

	if err := query.Validate(); err != nil {
		return cypher.Rows{}, err
	}

	crud, err := query.Classify()
	if err != nil {
		return cypher.Rows{}, err
	}

	switch crud {
	case cypher.Create:
		return e.create(ctx, *query)
	case cypher.Read:
		return e.read(ctx, *query)
	case cypher.Update:
		return e.update(ctx, *query)
	case cypher.Delete:
		return e.delete(ctx, *query)
	case cypher.FindShortestPath:
		return e.findShortestPath(ctx, *query)
	default:
		return cypher.Rows{}, graphproxyerrors.Internalf("unhandled CRUD type %s", crud)
	}
}

// create implements the three CREATE shapes: a single node, a fresh
// node-relation-node pattern, and a pattern created between two nodes
// that already exist (match-then-link).
func (e *Engine) create(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	switch {
	case query.Node != nil && query.Relation == nil && query.NextNode == nil && !query.UseMatch:
		stampNode(query.Node)

	case query.Node != nil && query.Relation != nil && query.NextNode != nil && !query.UseMatch:
		fromUID := stampNodeUID(query.Node)
		toUID := stampNodeUID(query.NextNode)
		query.Relation.AddProperty(identity.UIDKey, identity.RelationUID(fromUID, toUID))
		stampNodeHash(query.Node)
		stampNodeHash(query.NextNode)
		stampRelationHash(query.Relation)

	case query.Node != nil && query.Relation != nil && query.NextNode != nil && query.UseMatch:
		return e.createMatchThenLink(ctx, query)

	default:
		return cypher.Rows{}, graphproxyerrors.Structuralf("invalid create query shape: %+v", query)
	}

	if err := e.enc.EncryptQuery(&query); err != nil {
		return cypher.Rows{}, err
	}
	return e.executeEncQuery(ctx, query)
}

func (e *Engine) createMatchThenLink(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	readQuery := query.Clone()
	readQuery.Relation = nil
	readQuery.UseCreate = false
	readQuery.ReturnList = []cypher.Item{cypher.Var(cypher.NodeVarName), cypher.Var(cypher.NextNodeVarName)}

	plainRows, err := e.read(ctx, readQuery)
	if err != nil {
		return cypher.Rows{}, err
	}

	result := cypher.Rows{}
	for _, row := range plainRows.RowList {
		if len(row.Inners) != 2 {
			return cypher.Rows{}, graphproxyerrors.TamperDetected("match-then-link read returned an unexpected shape")
		}
		fromUID, ok := row.Inners[0].Get(identity.UIDKey)
		if !ok {
			return cypher.Rows{}, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.NodeVarName)
		}
		toUID, ok := row.Inners[1].Get(identity.UIDKey)
		if !ok {
			return cypher.Rows{}, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.NextNodeVarName)
		}

		single := query.Clone()
		single.Node.AddProperty(identity.UIDKey, fromUID)
		single.NextNode.AddProperty(identity.UIDKey, toUID)
		single.Relation.AddProperty(identity.UIDKey, identity.RelationUID(fromUID, toUID))
		stampRelationHash(single.Relation)

		if err := e.enc.EncryptQuery(&single); err != nil {
			return cypher.Rows{}, err
		}
		rows, err := e.executeEncQuery(ctx, single)
		if err != nil {
			return cypher.Rows{}, err
		}
		if !rows.IsEmpty() {
			result.Push(rows.RowList[0])
		}
	}
	return result, nil
}

func (e *Engine) read(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	if err := e.enc.EncryptQuery(&query); err != nil {
		return cypher.Rows{}, err
	}
	return e.executeEncQuery(ctx, query)
}

// update implements SET/REMOVE on a single node and on a
// node-relation-node pattern. Both shapes first read the current
// plaintext content so the new hash can be computed, apply the
// transformation in memory, then issue a single filtered write that
// both updates the entity and refreshes its hash. Both branches return
// the accumulated rows: the single-node branch previously had no return
// path at all.
func (e *Engine) update(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	switch {
	case query.Node != nil && query.Relation == nil && query.NextNode == nil:
		return e.updateNode(ctx, query)
	case query.Node != nil && query.Relation != nil && query.NextNode != nil:
		return e.updatePattern(ctx, query)
	default:
		return cypher.Rows{}, graphproxyerrors.Structuralf("invalid update query shape: %+v", query)
	}
}

func (e *Engine) updateNode(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	readQuery := query.Clone()
	readQuery.SetList = nil
	readQuery.RemoveList = nil
	readQuery.ReturnList = []cypher.Item{cypher.Var(cypher.NodeVarName)}

	plainRows, err := e.read(ctx, readQuery)
	if err != nil {
		return cypher.Rows{}, err
	}

	result := cypher.Rows{}
	for _, row := range plainRows.RowList {
		if len(row.Inners) != 1 {
			return cypher.Rows{}, graphproxyerrors.TamperDetected("update read returned an unexpected shape")
		}
		uid, ok := row.Inners[0].Get(identity.UIDKey)
		if !ok {
			return cypher.Rows{}, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.NodeVarName)
		}

		inners := []cypher.Inner{row.Inners[0]}
		if err := applyRemove(inners, query.RemoveList); err != nil {
			return cypher.Rows{}, err
		}
		if err := applySet(inners, query.SetList); err != nil {
			return cypher.Rows{}, err
		}

		single := query.Clone()
		single.Node.AddProperty(identity.UIDKey, uid)
		single.SetList = append(single.SetList,
			cypher.VarWithKeyValue(cypher.NodeVarName, integrity.HashKey, integrity.DigestOf(inners[0])))

		if err := e.enc.EncryptQuery(&single); err != nil {
			return cypher.Rows{}, err
		}
		rows, err := e.executeEncQuery(ctx, single)
		if err != nil {
			return cypher.Rows{}, err
		}
		if !rows.IsEmpty() {
			result.Push(rows.RowList[0])
		}
	}
	return result, nil
}

func (e *Engine) updatePattern(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	readQuery := query.Clone()
	readQuery.SetList = nil
	readQuery.RemoveList = nil
	readQuery.ReturnList = []cypher.Item{
		cypher.Var(cypher.NodeVarName),
		cypher.Var(cypher.RelationVarName),
		cypher.Var(cypher.NextNodeVarName),
	}

	plainRows, err := e.read(ctx, readQuery)
	if err != nil {
		return cypher.Rows{}, err
	}

	result := cypher.Rows{}
	for _, row := range plainRows.RowList {
		if len(row.Inners) != 3 {
			return cypher.Rows{}, graphproxyerrors.TamperDetected("update read returned an unexpected shape")
		}
		relationUID, ok := row.Inners[1].Get(identity.UIDKey)
		if !ok {
			return cypher.Rows{}, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.RelationVarName)
		}

		inners := append([]cypher.Inner(nil), row.Inners...)
		if err := applyRemove(inners, query.RemoveList); err != nil {
			return cypher.Rows{}, err
		}
		if err := applySet(inners, query.SetList); err != nil {
			return cypher.Rows{}, err
		}

		single := query.Clone()
		single.Relation.AddProperty(identity.UIDKey, relationUID)
		single.SetList = append(single.SetList,
			cypher.VarWithKeyValue(cypher.NodeVarName, integrity.HashKey, integrity.DigestOf(inners[0])),
			cypher.VarWithKeyValue(cypher.RelationVarName, integrity.HashKey, integrity.DigestOf(inners[1])),
			cypher.VarWithKeyValue(cypher.NextNodeVarName, integrity.HashKey, integrity.DigestOf(inners[2])))

		if err := e.enc.EncryptQuery(&single); err != nil {
			return cypher.Rows{}, err
		}
		rows, err := e.executeEncQuery(ctx, single)
		if err != nil {
			return cypher.Rows{}, err
		}
		if !rows.IsEmpty() {
			result.Push(rows.RowList[0])
		}
	}
	return result, nil
}

// delete needs no intermediate read: deleting an entity never needs its
// hash refreshed.
func (e *Engine) delete(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	if err := e.enc.EncryptQuery(&query); err != nil {
		return cypher.Rows{}, err
	}
	return e.executeEncQuery(ctx, query)
}

// executeEncQuery renders an already-encrypted query, runs it against
// the backend, and decrypts+verifies every returned row.
func (e *Engine) executeEncQuery(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	rendered, err := query.Render()
	if err != nil {
		return cypher.Rows{}, err
	}

	records, err := e.backend.ExecuteQuery(ctx, rendered)
	if err != nil {
		return cypher.Rows{}, graphproxyerrors.BackendError(err, "backend query failed")
	}

	returnVars := getReturnVars(query)
	rows := cypher.Rows{}
	for _, record := range records {
		encRow, err := buildRowFromRecord(record, returnVars)
		if err != nil {
			return cypher.Rows{}, err
		}
		if encRow.IsEmpty() {
			continue
		}
		plainRow, err := e.enc.DecryptAndVerifyRow(encRow)
		if err != nil {
			return cypher.Rows{}, err
		}
		rows.Push(plainRow)
	}
	return rows, nil
}

// stampNode appends a fresh uid then a hash to a freshly created,
// standalone node.
func stampNode(n *cypher.Node) {
	stampNodeUID(n)
	stampNodeHash(n)
}

// stampNodeUID appends a fresh uid property to n and returns it.
func stampNodeUID(n *cypher.Node) string {
	uid := identity.NewNodeUID()
	n.AddProperty(identity.UIDKey, uid)
	return uid
}

// stampNodeHash appends a hash property computed over n's current
// labels and properties (which must already include its uid, if any).
func stampNodeHash(n *cypher.Node) {
	n.AddProperty(integrity.HashKey, integrity.Digest(n.Labels, n.Properties))
}

func stampRelationHash(r *cypher.Relation) {
	r.AddProperty(integrity.HashKey, integrity.Digest(r.Labels, r.Properties))
}

func varIndex(varName string) (int, bool) {
	switch varName {
	case cypher.NodeVarName:
		return 0, true
	case cypher.RelationVarName:
		return 1, true
	case cypher.NextNodeVarName:
		return 2, true
	default:
		return 0, false
	}
}

func applySet(inners []cypher.Inner, items []cypher.Item) error {
	for _, it := range items {
		idx, ok := varIndex(it.Var)
		if !ok || idx >= len(inners) {
			return graphproxyerrors.Structuralf("invalid var in SET: %q", it.Var)
		}
		switch it.Kind {
		case cypher.ItemVarWithKeyValue:
			inners[idx].Set(it.Key, it.Value)
		case cypher.ItemVarWithLabel:
			inners[idx].AddLabel(it.Key)
		default:
			return graphproxyerrors.Structuralf("invalid SET item: %+v", it)
		}
	}
	return nil
}

func applyRemove(inners []cypher.Inner, items []cypher.Item) error {
	for _, it := range items {
		idx, ok := varIndex(it.Var)
		if !ok || idx >= len(inners) {
			return graphproxyerrors.Structuralf("invalid var in REMOVE: %q", it.Var)
		}
		switch it.Kind {
		case cypher.ItemVarWithKey:
			inners[idx].RemoveProperty(it.Key)
		case cypher.ItemVarWithLabel:
			if it.Var == cypher.RelationVarName {
				return graphproxyerrors.Structural("cannot remove the label of a relation")
			}
			inners[idx].RemoveLabel(it.Key)
		default:
			return graphproxyerrors.Structuralf("invalid REMOVE item: %+v", it)
		}
	}
	return nil
}
