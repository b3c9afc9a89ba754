package cypher

// Canonical variable names every query is rewritten to before
// classification, encryption, or rendering. A client may call its
// node whatever it likes; the backend only ever sees these three.
const (
	NodeVarName     = "n"
	RelationVarName = "r"
	NextNodeVarName = "m"
)

// Canonicalize rewrites every variable name a client supplied to its
// fixed canonical slot (node -> n, relation -> r, next_node -> m),
// rewriting every Var/VarWithLabel/VarWithKey/VarWithKeyValue entry in
// the return/set/remove/delete lists to match. A node/relation/next_node
// with no var_name is left unbound; only names actually present are
// remapped.
func Canonicalize(q *CypherQuery) {
	rename := make(map[string]string, 3)

	if q.Node != nil && q.Node.VarName != nil {
		old := *q.Node.VarName
		canon := NodeVarName
		q.Node.VarName = &canon
		rename[old] = canon
	}
	if q.Relation != nil && q.Relation.VarName != nil {
		old := *q.Relation.VarName
		canon := RelationVarName
		q.Relation.VarName = &canon
		rename[old] = canon
	}
	if q.NextNode != nil && q.NextNode.VarName != nil {
		old := *q.NextNode.VarName
		canon := NextNodeVarName
		q.NextNode.VarName = &canon
		rename[old] = canon
	}

	renameItems(q.ReturnList, rename)
	renameItems(q.SetList, rename)
	renameItems(q.RemoveList, rename)
	if q.DeleteList != nil {
		renameItems(q.DeleteList.Items, rename)
	}
}

func renameItems(items []Item, rename map[string]string) {
	for i, it := range items {
		if newVar, ok := rename[it.Var]; ok {
			items[i].Var = newVar
		}
	}
}
