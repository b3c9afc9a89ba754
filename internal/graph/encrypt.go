package graph

import (
	"github.com/clique-labs/graphproxy/internal/cipher"
	"github.com/clique-labs/graphproxy/internal/cypher"
	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
	"github.com/clique-labs/graphproxy/internal/identity"
	"github.com/clique-labs/graphproxy/internal/integrity"
)

// Encryptor walks a canonicalized query and turns every label, property
// key, and property value into a ciphertext token before it reaches the
// backend, and reverses that on the way back out while verifying that
// nothing was substituted along the way.
type Encryptor struct {
	cipher *cipher.Cipher
}

// NewEncryptor builds an Encryptor over a fixed cipher key.
func NewEncryptor(c *cipher.Cipher) *Encryptor {
	return &Encryptor{cipher: c}
}

// isReserved reports whether key names one of the two plaintext
// identity/integrity properties that never get encrypted.
func isReserved(key string) bool {
	return key == identity.UIDKey || key == integrity.HashKey
}

// EncryptQuery mutates query in place, replacing every user-supplied
// label, key, and value with its encrypted token. A per-query memo
// table ensures the same plaintext always maps to the same token within
// one query, matching the deterministic cipher's own guarantee but
// saving the redundant AES calls. Variable names are left untouched;
// a bare Item::Var (as used in DELETE and RETURN) is never touched
// since it carries no label/key/value to encrypt, and delete lists may
// not contain anything else.
func (e *Encryptor) EncryptQuery(query *cypher.CypherQuery) error {
	memo := make(map[string]string)
	encStr := func(s string) string {
		if enc, ok := memo[s]; ok {
			return enc
		}
		enc := e.cipher.Wrap(s)
		memo[s] = enc
		return enc
	}

	encPattern := func(labels []string, properties []cypher.Property) {
		for i := range labels {
			labels[i] = encStr(labels[i])
		}
		for i := range properties {
			if isReserved(properties[i].Key) {
				continue
			}
			properties[i].Key = encStr(properties[i].Key)
			properties[i].Value = encStr(properties[i].Value)
		}
	}

	if query.Node != nil {
		encPattern(query.Node.Labels, query.Node.Properties)
	}
	if query.Relation != nil {
		encPattern(query.Relation.Labels, query.Relation.Properties)
	}
	if query.NextNode != nil {
		encPattern(query.NextNode.Labels, query.NextNode.Properties)
	}

	if err := e.encryptItems(query.ReturnList, encStr); err != nil {
		return err
	}
	if err := e.encryptItems(query.SetList, encStr); err != nil {
		return err
	}
	if err := e.encryptItems(query.RemoveList, encStr); err != nil {
		return err
	}
	if query.DeleteList != nil {
		for _, it := range query.DeleteList.Items {
			if it.Kind != cypher.ItemVar {
				return graphproxyerrors.Structuralf("delete list may only contain bare variables, got %+v", it)
			}
		}
	}

	return nil
}

func (e *Encryptor) encryptItems(items []cypher.Item, encStr func(string) string) error {
	for i, it := range items {
		switch it.Kind {
		case cypher.ItemVar:
			// nothing to encrypt
		case cypher.ItemVarWithLabel:
			items[i].Key = encStr(it.Key)
		case cypher.ItemVarWithKey:
			if !isReserved(it.Key) {
				items[i].Key = encStr(it.Key)
			}
		case cypher.ItemVarWithKeyValue:
			if !isReserved(it.Key) {
				items[i].Key = encStr(it.Key)
				items[i].Value = encStr(it.Value)
			}
		default:
			return graphproxyerrors.Structuralf("unknown item kind %q", it.Kind)
		}
	}
	return nil
}

// DecryptAndVerifyRow decrypts every ciphertext token in an encrypted
// row and verifies the integrity of every Inner in it: a missing uid,
// a missing hash, or a recomputed hash that doesn't match the stored
// one all fail the row as tampered. The original engine's equivalent
// step decrypted but never actually checked the hash it decrypted;
// that verification happens for real here.
func (e *Encryptor) DecryptAndVerifyRow(row cypher.Row) (cypher.Row, error) {
	memo := make(map[string]string)
	decStr := func(s string) (string, error) {
		if plain, ok := memo[s]; ok {
			return plain, nil
		}
		plain, err := e.cipher.Unwrap(s)
		if err != nil {
			return "", err
		}
		memo[s] = plain
		return plain, nil
	}

	out := cypher.Row{Inners: make([]cypher.Inner, len(row.Inners))}
	for i, in := range row.Inners {
		plain, err := e.decryptInner(in, decStr)
		if err != nil {
			return cypher.Row{}, err
		}
		if err := integrity.Verify(plain); err != nil {
			return cypher.Row{}, err
		}
		if _, ok := plain.Get(identity.UIDKey); !ok {
			return cypher.Row{}, graphproxyerrors.TamperDetectedf("entity is missing its %s property", identity.UIDKey)
		}
		out.Inners[i] = plain
	}
	return out, nil
}

func (e *Encryptor) decryptInner(in cypher.Inner, decStr func(string) (string, error)) (cypher.Inner, error) {
	labels := make([]string, len(in.Labels))
	for i, l := range in.Labels {
		plain, err := decStr(l)
		if err != nil {
			return cypher.Inner{}, err
		}
		labels[i] = plain
	}

	properties := make([]cypher.Property, len(in.Properties))
	for i, p := range in.Properties {
		if isReserved(p.Key) {
			properties[i] = p
			continue
		}
		key, err := decStr(p.Key)
		if err != nil {
			return cypher.Inner{}, err
		}
		value, err := decStr(p.Value)
		if err != nil {
			return cypher.Inner{}, err
		}
		properties[i] = cypher.Property{Key: key, Value: value}
	}

	return cypher.NewInner(labels, properties), nil
}
