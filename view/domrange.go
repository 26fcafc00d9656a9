package view

import (
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/livefir/blaze/errs"
)

const (
	placeholderTag  = "blaze-view"
	placeholderAttr = "data-blaze-view"
)

// owners maps each top-level node of a live range to the view that owns it.
// Like the rest of the package it is only touched on the render loop.
var owners = make(map[*html.Node]*View)

// DomRange is the content of one view: a run of sibling nodes, some of
// which may be the ranges of views included at the top level.
type DomRange struct {
	view          *View
	members       []rangeMember
	parentElement *html.Node
}

type rangeMember struct {
	node *html.Node
	sub  *DomRange
}

// View returns the view that owns r.
func (r *DomRange) View() *View { return r.view }

// ParentElement returns the element r's nodes are attached under, or nil
// while r is detached.
func (r *DomRange) ParentElement() *html.Node { return r.parentElement }

// FirstNode returns the first node of r.
func (r *DomRange) FirstNode() *html.Node {
	for _, m := range r.members {
		if m.node != nil {
			return m.node
		}
		if n := m.sub.FirstNode(); n != nil {
			return n
		}
	}
	return nil
}

// LastNode returns the last node of r.
func (r *DomRange) LastNode() *html.Node {
	for i := len(r.members) - 1; i >= 0; i-- {
		m := r.members[i]
		if m.node != nil {
			return m.node
		}
		if n := m.sub.LastNode(); n != nil {
			return n
		}
	}
	return nil
}

// Nodes returns r's top-level nodes in document order, flattening the
// ranges of included views.
func (r *DomRange) Nodes() []*html.Node {
	var nodes []*html.Node
	for _, m := range r.members {
		if m.node != nil {
			nodes = append(nodes, m.node)
			continue
		}
		nodes = append(nodes, m.sub.Nodes()...)
	}
	return nodes
}

// Contains reports whether n is one of r's nodes or a descendant of one.
func (r *DomRange) Contains(n *html.Node) bool {
	for w := ViewOf(n); w != nil; w = w.parent {
		if w == r.view {
			return true
		}
	}
	return false
}

// Select returns the elements inside r matching the CSS selector, in
// document order.
func (r *DomRange) Select(selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, errs.InvalidArgument("DomRange.Select", "bad selector %q: %v", selector, err)
	}
	var found []*html.Node
	for _, n := range r.Nodes() {
		found = append(found, sel.MatchAll(n)...)
	}
	return found, nil
}

func (r *DomRange) isTopLevel(n *html.Node) bool {
	for _, top := range r.Nodes() {
		if top == n {
			return true
		}
	}
	return false
}

func (r *DomRange) setMembers(members []rangeMember) {
	r.members = members
	for _, m := range members {
		if m.node != nil {
			owners[m.node] = r.view
		}
	}
}

// replaceMembers swaps r's content for members, moving them into the DOM
// where the old content was.
func (r *DomRange) replaceMembers(members []rangeMember) {
	fresh := &DomRange{view: r.view, members: members}
	if r.parentElement != nil {
		fresh.insertInto(r.parentElement, r.FirstNode())
		r.detach()
	}
	r.release()
	r.setMembers(members)
}

// insertInto places r's nodes under parent, before the sibling before
// (nil appends).
func (r *DomRange) insertInto(parent, before *html.Node) {
	r.parentElement = parent
	for _, m := range r.members {
		if m.node != nil {
			if m.node.Parent != nil {
				m.node.Parent.RemoveChild(m.node)
			}
			parent.InsertBefore(m.node, before)
			continue
		}
		m.sub.insertInto(parent, before)
	}
}

// detach removes r's nodes from the tree.
func (r *DomRange) detach() {
	for _, m := range r.members {
		if m.node != nil {
			if m.node.Parent != nil {
				m.node.Parent.RemoveChild(m.node)
			}
			continue
		}
		m.sub.detach()
	}
	r.parentElement = nil
}

// release forgets the ownership of r's own nodes. Included views release
// their ranges when they are destroyed.
func (r *DomRange) release() {
	for _, m := range r.members {
		if m.node != nil && owners[m.node] == r.view {
			delete(owners, m.node)
		}
	}
}

// ViewOf returns the innermost live view whose range contains n, or nil.
func ViewOf(n *html.Node) *View {
	for a := n; a != nil; a = a.Parent {
		if v, ok := owners[a]; ok {
			return v
		}
	}
	return nil
}

func placeholderMarkup(key string) string {
	return fmt.Sprintf(`<%s %s="%s"></%s>`, placeholderTag, placeholderAttr, key, placeholderTag)
}

func placeholderKey(n *html.Node) (string, bool) {
	if n.Type != html.ElementNode || n.Data != placeholderTag {
		return "", false
	}
	for _, attr := range n.Attr {
		if attr.Key == placeholderAttr {
			return attr.Val, true
		}
	}
	return "", false
}

func parseFragment(markup string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("parse rendered markup: %w", err)
	}
	return nodes, nil
}

// assemble turns parsed nodes into range members, swapping each placeholder
// for the content of the view it stands for.
func (v *View) assemble(nodes []*html.Node) ([]rangeMember, error) {
	members := make([]rangeMember, 0, len(nodes))
	for _, n := range nodes {
		if key, ok := placeholderKey(n); ok {
			child, found := v.pending[key]
			if !found {
				continue
			}
			delete(v.pending, key)
			members = append(members, rangeMember{sub: child.domrange})
			continue
		}
		v.expandPlaceholders(n)
		members = append(members, rangeMember{node: n})
	}

	if len(v.pending) > 0 {
		names := make([]string, 0, len(v.pending))
		for _, child := range v.pending {
			names = append(names, child.name)
		}
		return nil, errs.InvalidState("view.render", "view %q lost the placement of included views %v", v.name, names)
	}
	if len(members) == 0 {
		// An empty range keeps a blank text node so it still has a position.
		members = append(members, rangeMember{node: &html.Node{Type: html.TextNode}})
	}
	return members, nil
}

// expandPlaceholders replaces placeholders nested anywhere under n.
func (v *View) expandPlaceholders(n *html.Node) {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if _, ok := placeholderKey(c); ok {
				found = append(found, c)
				continue
			}
			walk(c)
		}
	}
	walk(n)

	for _, ph := range found {
		key, _ := placeholderKey(ph)
		child, ok := v.pending[key]
		if !ok {
			continue
		}
		delete(v.pending, key)
		child.domrange.insertInto(ph.Parent, ph)
		ph.Parent.RemoveChild(ph)
	}
}
