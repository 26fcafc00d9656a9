package main

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/livefir/blaze"
	"github.com/livefir/blaze/collection"
	"github.com/livefir/blaze/pubsub"
	"github.com/livefir/blaze/view"
)

type harness struct {
	store *collection.Store
	doc   *view.Document
	feed  *feed
	view  *view.View
}

func newHarness(t *testing.T, posts int) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store, err := collection.Open(ctx, filepath.Join(t.TempDir(), "feed.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	faker := gofakeit.New(7)
	if err := seed(ctx, store, "posts", posts, faker); err != nil {
		t.Fatalf("seed() error = %v", err)
	}

	cache := collection.NewCache()
	server := pubsub.NewServer(pubsub.WithSink(cache))
	t.Cleanup(server.Close)
	if err := server.Publish("posts", store.LivePublication("posts")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	doc := view.NewDocument(view.WithConnection(server))
	f, err := newFeed(ctx, store, cache, "posts", faker)
	if err != nil {
		t.Fatalf("newFeed() error = %v", err)
	}
	t.Cleanup(blaze.ResetHelpers)

	v, err := blaze.Render(doc, f.page)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	t.Cleanup(func() { _ = doc.Remove(v) })

	if err := waitReady(doc, blaze.InstanceOf(v), 2*time.Second); err != nil {
		t.Fatalf("waitReady() error = %v", err)
	}
	return &harness{store: store, doc: doc, feed: f, view: v}
}

func (h *harness) click(t *testing.T, selector string, index int) {
	t.Helper()
	nodes, err := h.doc.Query(selector)
	if err != nil || index >= len(nodes) {
		t.Fatalf("Query(%q) = %d nodes, %v", selector, len(nodes), err)
	}
	if err := h.doc.Dispatch(&view.Event{Type: "click", Target: nodes[index]}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if err := h.doc.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func (h *harness) posts(t *testing.T) int {
	t.Helper()
	nodes, _ := h.doc.Query("li.post")
	return len(nodes)
}

func TestFeedRendersSeededPosts(t *testing.T) {
	h := newHarness(t, 3)

	if got := h.posts(t); got != 3 {
		t.Fatalf("rendered %d posts, want 3", got)
	}
	count, _ := h.doc.Query(".count")
	if len(count) != 1 || textOf(count[0]) != "3 posts" {
		t.Errorf("count label = %q, want \"3 posts\"", textOf(count[0]))
	}
	if !strings.Contains(h.doc.HTML(), "<h1>posts</h1>") {
		t.Errorf("HTML() missing title: %s", h.doc.HTML())
	}
}

func TestFeedEventsWriteThroughStore(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	docs, _ := h.store.Find(ctx, "posts")
	before := likesOf(docs[0])

	h.click(t, "li.post button.like", 0)
	updated, err := h.store.Get(ctx, "posts", docs[0].ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if likesOf(updated) != before+1 {
		t.Errorf("likes = %d, want %d", likesOf(updated), before+1)
	}
	likes, _ := h.doc.Query("li.post button.like")
	if got := textOf(likes[0]); got != strconv.Itoa(before+1) {
		t.Errorf("rendered likes = %q, want %d", got, before+1)
	}

	h.click(t, "button.add", 0)
	if got := h.posts(t); got != 3 {
		t.Errorf("after add: %d posts, want 3", got)
	}

	h.click(t, "li.post button.remove", 0)
	h.click(t, "li.post button.remove", 0)
	if got := h.posts(t); got != 1 {
		t.Errorf("after removes: %d posts, want 1", got)
	}
	count, _ := h.doc.Query(".count")
	if got := textOf(count[0]); got != "1 post" {
		t.Errorf("count label = %q, want \"1 post\"", got)
	}
}

func TestSeedSkipsNonEmptyCollection(t *testing.T) {
	ctx := context.Background()
	store, err := collection.Open(ctx, filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	faker := gofakeit.New(1)
	_ = seed(ctx, store, "posts", 4, faker)
	_ = seed(ctx, store, "posts", 4, faker)
	if n, _ := store.Count(ctx, "posts"); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestModelKeys(t *testing.T) {
	h := newHarness(t, 2)
	var m tea.Model = newModel(h.doc)

	press := func(s string) {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}

	press("j")
	press("j")
	if got := m.(model).cursor; got != 1 {
		t.Errorf("cursor = %d, want 1 (clamped to the last post)", got)
	}
	if !strings.Contains(m.View(), "> ♥") {
		t.Errorf("View() has no selected line:\n%s", m.View())
	}

	press("a")
	if got := h.posts(t); got != 3 {
		t.Errorf("after add key: %d posts, want 3", got)
	}
	press("d")
	if got := h.posts(t); got != 2 {
		t.Errorf("after delete key: %d posts, want 2", got)
	}
	if err := m.(model).err; err != nil {
		t.Errorf("model error = %v", err)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should produce tea.QuitMsg")
	}
}
