package view

import (
	"github.com/livefir/blaze/errs"
	"github.com/livefir/blaze/pubsub"
)

// Subscribe starts a subscription that stops when v is destroyed. A nil
// conn uses the document's connection.
func (v *View) Subscribe(conn pubsub.Connection, name string, args []any, cb pubsub.Callbacks) (pubsub.Handle, error) {
	if v.inRender {
		return nil, errs.InvalidState("view.Subscribe", "can't subscribe from inside render of %q", v.name)
	}
	if v.isDestroyed {
		return nil, errs.InvalidState("view.Subscribe", "view %q is destroyed", v.name)
	}
	if conn == nil && v.doc != nil {
		conn = v.doc.conn
	}
	if conn == nil {
		return nil, errs.InvalidState("view.Subscribe", "no connection for view %q", v.name)
	}

	h, err := conn.Subscribe(name, args, cb)
	if err != nil {
		return nil, err
	}
	v.Defer(h.Stop)
	return h, nil
}
