package collection

import (
	"github.com/livefir/blaze/tracker"
)

// Cache holds the documents publications have sent to this client. It
// implements pubsub.Sink. Its queries are reactive: a computation that
// called Find or FindOne reruns when that collection changes.
//
// Cache is not thread-safe; pubsub.Server delivers to it on the goroutine
// that calls Pump.
type Cache struct {
	collections map[string]*cachedCollection
}

type cachedCollection struct {
	docs  map[string]map[string]any
	order []string
	dep   *tracker.Dependency
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{collections: make(map[string]*cachedCollection)}
}

func (c *Cache) collection(name string) *cachedCollection {
	cc, ok := c.collections[name]
	if !ok {
		cc = &cachedCollection{
			docs: make(map[string]map[string]any),
			dep:  tracker.NewDependency(),
		}
		c.collections[name] = cc
	}
	return cc
}

// Added stores a document. Adding an id that is already present merges the
// fields.
func (c *Cache) Added(coll, id string, fields map[string]any) {
	cc := c.collection(coll)
	doc, exists := cc.docs[id]
	if !exists {
		doc = make(map[string]any, len(fields))
		cc.docs[id] = doc
		cc.order = append(cc.order, id)
	}
	for k, v := range fields {
		doc[k] = v
	}
	cc.dep.Changed()
}

// Changed merges fields into a document. A nil value clears the field.
func (c *Cache) Changed(coll, id string, fields map[string]any) {
	cc := c.collection(coll)
	doc, exists := cc.docs[id]
	if !exists {
		return
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	cc.dep.Changed()
}

// Removed drops a document.
func (c *Cache) Removed(coll, id string) {
	cc := c.collection(coll)
	if _, exists := cc.docs[id]; !exists {
		return
	}
	delete(cc.docs, id)
	for i, other := range cc.order {
		if other == id {
			cc.order = append(cc.order[:i], cc.order[i+1:]...)
			break
		}
	}
	cc.dep.Changed()
}

// Find returns the documents of coll in arrival order.
func (c *Cache) Find(coll string) []Document {
	cc := c.collection(coll)
	cc.dep.Depend()

	docs := make([]Document, 0, len(cc.order))
	for _, id := range cc.order {
		docs = append(docs, Document{ID: id, Collection: coll, Fields: copyFields(cc.docs[id])})
	}
	return docs
}

// FindOne returns one document of coll.
func (c *Cache) FindOne(coll, id string) (Document, bool) {
	cc := c.collection(coll)
	cc.dep.Depend()

	fields, ok := cc.docs[id]
	if !ok {
		return Document{}, false
	}
	return Document{ID: id, Collection: coll, Fields: copyFields(fields)}, true
}

// Count returns the number of documents in coll.
func (c *Cache) Count(coll string) int {
	cc := c.collection(coll)
	cc.dep.Depend()
	return len(cc.order)
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
