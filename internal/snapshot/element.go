// Copyright 2025 Joseph Cumines
//
// Capability-based element walker

package snapshot

// Element is a host UI element understood by ElementWalker. The set of
// variants is closed: Container, Text, Button and Draggable.
type Element interface {
	role() string
	label() string
	children() []Element
}

// HasMouseEvents is the capability of elements that accept pointer input.
// ElementWalker registers exactly the elements implementing it.
type HasMouseEvents interface {
	Element
	MouseEvents() Callbacks
}

// Container groups other elements. Role defaults to "group".
type Container struct {
	Role  string
	Label string
	Items []Element
}

// Text is a non-interactive label. Role defaults to "text".
type Text struct {
	Role  string
	Label string
}

// Button responds to click and hover. Role defaults to "button".
type Button struct {
	OnClick func()
	OnHover func()
	Role    string
	Label   string
}

// Draggable can be dragged onto another ref, and optionally clicked or
// hovered. Role defaults to "draggable".
type Draggable struct {
	OnDrag  func(target string)
	OnClick func()
	OnHover func()
	Role    string
	Label   string
}

func (c *Container) role() string        { return orDefault(c.Role, "group") }
func (c *Container) label() string       { return c.Label }
func (c *Container) children() []Element { return c.Items }

func (t *Text) role() string        { return orDefault(t.Role, "text") }
func (t *Text) label() string       { return t.Label }
func (t *Text) children() []Element { return nil }

func (b *Button) role() string        { return orDefault(b.Role, "button") }
func (b *Button) label() string       { return b.Label }
func (b *Button) children() []Element { return nil }

// MouseEvents implements HasMouseEvents.
func (b *Button) MouseEvents() Callbacks {
	return Callbacks{OnClick: b.OnClick, OnHover: b.OnHover}
}

func (d *Draggable) role() string        { return orDefault(d.Role, "draggable") }
func (d *Draggable) label() string       { return d.Label }
func (d *Draggable) children() []Element { return nil }

// MouseEvents implements HasMouseEvents.
func (d *Draggable) MouseEvents() Callbacks {
	return Callbacks{OnClick: d.OnClick, OnHover: d.OnHover, OnDrag: d.OnDrag}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ElementWalker walks an element tree built fresh by Root on every walk.
type ElementWalker struct {
	Root func() Element
}

// NewElementWalker returns a walker over the tree returned by root.
func NewElementWalker(root func() Element) *ElementWalker {
	return &ElementWalker{Root: root}
}

// Walk implements SceneWalker.
func (w *ElementWalker) Walk(refs *RefRegistry) *SceneNode {
	if w.Root == nil {
		return nil
	}
	root := w.Root()
	if isNil(root) {
		return nil
	}
	return walkElement(root, refs)
}

// isNil reports whether e is nil, including a nil pointer of one of the
// element variants.
func isNil(e Element) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *Container:
		return v == nil
	case *Text:
		return v == nil
	case *Button:
		return v == nil
	case *Draggable:
		return v == nil
	}
	return false
}

func walkElement(e Element, refs *RefRegistry) *SceneNode {
	node := &SceneNode{Role: e.role(), Label: e.label()}
	if m, ok := e.(HasMouseEvents); ok {
		node.Interactive = true
		node.Ref = refs.Register(m.MouseEvents())
	}
	for _, child := range e.children() {
		if isNil(child) {
			continue
		}
		node.Children = append(node.Children, walkElement(child, refs))
	}
	return node
}

var (
	_ HasMouseEvents = (*Button)(nil)
	_ HasMouseEvents = (*Draggable)(nil)
	_ SceneWalker    = (*ElementWalker)(nil)
)
