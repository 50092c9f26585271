// Copyright 2025 Joseph Cumines

// Package snapshot turns a host application's UI into a referenceable text
// tree. SceneWalkers build SceneNode trees and register interactive nodes
// with a RefRegistry; Format renders the result for the controller.
package snapshot

// SceneNode is one node of the UI tree produced by a walk. Nodes are rebuilt
// from scratch on every walk and are owned by their parent.
type SceneNode struct {
	Role        string
	Label       string
	Ref         string
	Children    []*SceneNode
	Interactive bool
}

// SceneWalker produces the node tree for one UI subsystem. Walk must
// register every interactive node with refs, in depth-first order, and
// record the returned ref on the node. A nil result contributes nothing.
type SceneWalker interface {
	Walk(refs *RefRegistry) *SceneNode
}

// WalkerFunc adapts a function to SceneWalker.
type WalkerFunc func(refs *RefRegistry) *SceneNode

// Walk calls f.
func (f WalkerFunc) Walk(refs *RefRegistry) *SceneNode {
	return f(refs)
}

// Add appends children to n and returns n.
func (n *SceneNode) Add(children ...*SceneNode) *SceneNode {
	n.Children = append(n.Children, children...)
	return n
}
