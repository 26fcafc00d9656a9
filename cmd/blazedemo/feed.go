package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/net/html"

	"github.com/livefir/blaze"
	"github.com/livefir/blaze/collection"
	"github.com/livefir/blaze/view"
)

// feed wires the page and post templates to a store and its client cache.
type feed struct {
	ctx   context.Context
	store *collection.Store
	cache *collection.Cache
	coll  string
	faker *gofakeit.Faker

	page *blaze.Template
	post *blaze.Template
}

func newFeed(ctx context.Context, store *collection.Store, cache *collection.Cache, coll string, faker *gofakeit.Faker) (*feed, error) {
	f := &feed{ctx: ctx, store: store, cache: cache, coll: coll, faker: faker}

	if err := blaze.RegisterHelper("plural", blaze.HelperFunc(pluralize)); err != nil {
		return nil, err
	}

	var err error
	if f.post, err = blaze.New("post", f.renderPost); err != nil {
		return nil, err
	}
	if err := f.post.Events(blaze.EventMap{
		"click .like":   f.like,
		"click .remove": f.remove,
	}); err != nil {
		return nil, err
	}

	if f.page, err = blaze.New("feed", f.renderPage); err != nil {
		return nil, err
	}
	if err := f.page.Helpers(map[string]any{
		"posts": blaze.HelperFunc(func(any, ...any) (any, error) { return f.cache.Find(f.coll), nil }),
		"count": blaze.HelperFunc(func(any, ...any) (any, error) { return f.cache.Count(f.coll), nil }),
		"title": coll,
	}); err != nil {
		return nil, err
	}
	if err := f.page.Events(blaze.EventMap{"click .add": f.add}); err != nil {
		return nil, err
	}

	f.page.OnCreated(func(inst *blaze.Instance) error {
		_, err := inst.Subscribe(f.coll, blaze.SubscribeOptions{
			OnReady: func() { log.Printf("blazedemo: %s ready", f.coll) },
			OnError: func(err error) { log.Printf("blazedemo: %s stopped: %v", f.coll, err) },
		})
		return err
	})
	f.page.OnDestroyed(func(inst *blaze.Instance) error {
		log.Printf("blazedemo: feed view %d destroyed", inst.View().ID())
		return nil
	})
	return f, nil
}

func pluralize(data any, args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("plural: want 1 argument, got %d", len(args))
	}
	if n, ok := args[0].(int); ok && n == 1 {
		return "1 post", nil
	}
	return fmt.Sprintf("%v posts", args[0]), nil
}

func (f *feed) renderPage(v *view.View) (string, error) {
	if !blaze.InstanceOf(v).SubscriptionsReady() {
		return `<section class="feed"><p class="loading">loading</p></section>`, nil
	}

	title, err := blaze.CallHelper(v, "title")
	if err != nil {
		return "", err
	}
	count, err := blaze.CallHelper(v, "count")
	if err != nil {
		return "", err
	}
	label, err := blaze.CallHelper(v, "plural", count)
	if err != nil {
		return "", err
	}
	posts, err := blaze.CallHelper(v, "posts")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<section class="feed"><h1>%s</h1><p class="count">%s</p><button class="add">new post</button><ul>`,
		html.EscapeString(fmt.Sprint(title)), html.EscapeString(fmt.Sprint(label)))
	for _, doc := range posts.([]collection.Document) {
		s, err := blaze.IncludeWithData(v, f.post, doc)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteString(`</ul></section>`)
	return b.String(), nil
}

func (f *feed) renderPost(v *view.View) (string, error) {
	doc, ok := v.Data().(collection.Document)
	if !ok {
		return "", fmt.Errorf("post: data is %T, want collection.Document", v.Data())
	}
	return fmt.Sprintf(`<li class="post" data-id="%s"><span class="title">%s</span><span class="author">%s</span><button class="like">%d</button><button class="remove">x</button></li>`,
		html.EscapeString(doc.ID),
		html.EscapeString(fmt.Sprint(doc.Fields["title"])),
		html.EscapeString(fmt.Sprint(doc.Fields["author"])),
		likesOf(doc)), nil
}

func (f *feed) like(data any, evt *view.Event, inst *blaze.Instance, args ...any) error {
	doc, ok := data.(collection.Document)
	if !ok {
		return fmt.Errorf("like: data is %T", data)
	}
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	fields["likes"] = likesOf(doc) + 1
	return f.store.Update(f.ctx, f.coll, doc.ID, fields)
}

func (f *feed) remove(data any, evt *view.Event, inst *blaze.Instance, args ...any) error {
	doc, ok := data.(collection.Document)
	if !ok {
		return fmt.Errorf("remove: data is %T", data)
	}
	return f.store.Remove(f.ctx, f.coll, doc.ID)
}

func (f *feed) add(data any, evt *view.Event, inst *blaze.Instance, args ...any) error {
	_, err := f.store.Insert(f.ctx, f.coll, fakePost(f.faker))
	return err
}

func fakePost(faker *gofakeit.Faker) map[string]any {
	return map[string]any{
		"title":  faker.HackerPhrase(),
		"author": faker.Name(),
		"likes":  faker.IntRange(0, 50),
	}
}

// seed fills an empty collection with n fake posts.
func seed(ctx context.Context, store *collection.Store, coll string, n int, faker *gofakeit.Faker) error {
	existing, err := store.Count(ctx, coll)
	if err != nil {
		return err
	}
	if existing > 0 || n == 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		if _, err := store.Insert(ctx, coll, fakePost(faker)); err != nil {
			return err
		}
	}
	log.Printf("blazedemo: seeded %d posts into %s", n, coll)
	return nil
}

// likesOf reads the likes field, which is a float64 once it went through
// the store's JSON encoding.
func likesOf(doc collection.Document) int {
	switch n := doc.Fields["likes"].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}
