package commands

import (
	"fmt"

	"github.com/google/btree"

	"github.com/gogpu/progc"
	"github.com/gogpu/progc/blobcache"
	"github.com/gogpu/progc/cmd/progc/internal/manifest"
)

// catalog remembers the fingerprint of every program built by watch.
type catalog struct {
	tree *btree.BTreeG[catalogItem]
}

type catalogItem struct {
	name        string
	fingerprint blobcache.Key
}

func lessCatalogItem(a, b catalogItem) bool { return a.name < b.name }

func newCatalog() *catalog {
	return &catalog{tree: btree.NewG[catalogItem](8, lessCatalogItem)}
}

// update replaces the catalog with entries. It returns the entries that are
// new or whose description changed, and the names that disappeared, both in
// name order.
func (c *catalog) update(entries []manifest.Entry) (changed []manifest.Entry, removed []string) {
	next := btree.NewG[catalogItem](8, lessCatalogItem)
	byName := make(map[string]manifest.Entry, len(entries))
	for _, e := range entries {
		item := catalogItem{name: e.Name, fingerprint: fingerprint(e.Desc)}
		next.ReplaceOrInsert(item)
		byName[e.Name] = e
	}
	next.Ascend(func(item catalogItem) bool {
		if old, ok := c.tree.Get(item); !ok || old.fingerprint != item.fingerprint {
			changed = append(changed, byName[item.name])
		}
		return true
	})
	c.tree.Ascend(func(item catalogItem) bool {
		if !next.Has(item) {
			removed = append(removed, item.name)
		}
		return true
	})
	c.tree = next
	return changed, removed
}

// forget drops name so the next update reports it as changed.
func (c *catalog) forget(name string) {
	c.tree.Delete(catalogItem{name: name})
}

func (c *catalog) len() int { return c.tree.Len() }

func fingerprint(d *progc.ProgramDescription) blobcache.Key {
	parts := make([]string, 0, len(d.Sources)+len(d.EntryPoints)+3)
	parts = append(parts, d.Sources[:]...)
	parts = append(parts, d.EntryPoints[:]...)
	parts = append(parts,
		fmt.Sprint(d.Constants),
		fmt.Sprint(d.Attributes),
		d.Priority.String())
	return blobcache.KeyOf(parts...)
}
