package graph

import (
	"context"

	"github.com/clique-labs/graphproxy/internal/cypher"
	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
	"github.com/clique-labs/graphproxy/internal/identity"
)

// hop remembers, for one visited node during the breadth-first search,
// its decrypted content and the uid of the node that first reached it
// — the predecessor pointer a shortest path is reconstructed from.
type hop struct {
	inner cypher.Inner
	prev  string
}

// findShortestPath runs an unweighted breadth-first search between two
// endpoints by issuing a Read per expansion step: there is no
// single-query shortest-path primitive available to the backend once
// every label and property is opaque ciphertext, so the search walks
// one hop at a time, decrypting and verifying each batch of neighbors
// before deciding where to go next.
func (e *Engine) findShortestPath(ctx context.Context, query cypher.CypherQuery) (cypher.Rows, error) {
	endpointQuery := cypher.NewBuilder().
		Match().
		Node(query.Node.Clone()).
		NextNode(query.NextNode.Clone()).
		Return([]cypher.Item{cypher.Var(cypher.NodeVarName), cypher.Var(cypher.NextNodeVarName)}).
		Build()

	endpointRows, err := e.read(ctx, endpointQuery)
	if err != nil {
		return cypher.Rows{}, err
	}
	if len(endpointRows.RowList) != 1 || len(endpointRows.RowList[0].Inners) != 2 {
		return cypher.Rows{}, graphproxyerrors.TamperDetected("shortest-path endpoint lookup returned an unexpected shape")
	}

	srcUID, ok := endpointRows.RowList[0].Inners[0].Get(identity.UIDKey)
	if !ok {
		return cypher.Rows{}, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.NodeVarName)
	}
	dstUID, ok := endpointRows.RowList[0].Inners[1].Get(identity.UIDKey)
	if !ok {
		return cypher.Rows{}, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.NextNodeVarName)
	}

	visited := map[string]hop{srcUID: {inner: endpointRows.RowList[0].Inners[0]}}
	queue := []string{srcUID}

	result := cypher.Rows{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur == dstUID {
			result.Push(cypher.NewRow(reconstructPath(visited, dstUID)))
			break
		}

		neighbors, err := e.expandNeighbors(ctx, cur)
		if err != nil {
			return cypher.Rows{}, err
		}

		for _, n := range neighbors {
			if n.relationUID != identity.RelationUID(cur, n.uid) {
				return cypher.Rows{}, graphproxyerrors.TamperDetected("relation uid does not match its endpoints: the backend may have substituted an edge")
			}
			if _, seen := visited[n.uid]; !seen {
				visited[n.uid] = hop{inner: n.inner, prev: cur}
				queue = append(queue, n.uid)
			}
		}
	}

	return result, nil
}

type neighbor struct {
	uid         string
	relationUID string
	inner       cypher.Inner
}

// expandNeighbors issues "MATCH ({uid: cur})-[r]->(m) RETURN r, m" and
// returns each matched edge's relation uid alongside the neighbor it
// leads to.
func (e *Engine) expandNeighbors(ctx context.Context, curUID string) ([]neighbor, error) {
	hopQuery := cypher.NewBuilder().
		Match().
		Node(cypher.NewNode("", nil, []cypher.Property{{Key: identity.UIDKey, Value: curUID}})).
		Relation(cypher.NewRelation(cypher.RelationVarName, nil, nil)).
		NextNode(cypher.NewNode(cypher.NextNodeVarName, nil, nil)).
		Return([]cypher.Item{cypher.Var(cypher.RelationVarName), cypher.Var(cypher.NextNodeVarName)}).
		Build()

	rows, err := e.read(ctx, hopQuery)
	if err != nil {
		return nil, err
	}

	neighbors := make([]neighbor, 0, len(rows.RowList))
	for _, row := range rows.RowList {
		if len(row.Inners) != 2 {
			return nil, graphproxyerrors.TamperDetected("shortest-path hop returned an unexpected shape")
		}
		relInner, nextInner := row.Inners[0], row.Inners[1]

		relUID, ok := relInner.Get(identity.UIDKey)
		if !ok {
			return nil, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.RelationVarName)
		}
		nextUID, ok := nextInner.Get(identity.UIDKey)
		if !ok {
			return nil, graphproxyerrors.TamperDetectedf("matched %s is missing its uid", cypher.NextNodeVarName)
		}

		neighbors = append(neighbors, neighbor{uid: nextUID, relationUID: relUID, inner: nextInner})
	}
	return neighbors, nil
}

// reconstructPath walks predecessor pointers back from dst to the
// source and reverses them into source-to-destination order.
func reconstructPath(visited map[string]hop, dstUID string) []cypher.Inner {
	var inners []cypher.Inner
	uid := dstUID
	for {
		h, ok := visited[uid]
		if !ok {
			break
		}
		inners = append(inners, h.inner)
		if h.prev == "" {
			break
		}
		uid = h.prev
	}
	for i, j := 0, len(inners)-1; i < j; i, j = i+1, j-1 {
		inners[i], inners[j] = inners[j], inners[i]
	}
	return inners
}
