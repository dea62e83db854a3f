package frontend

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
)

// cLanguage returns the tree-sitter C grammar.
func cLanguage() *sitter.Language {
	return sitter.NewLanguage(c.Language())
}

// nodeText extracts the text content of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(uint(i))
		if child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// childrenByType returns every direct child with the given type.
func childrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(uint(i)); child.Kind() == nodeType {
			out = append(out, child)
		}
	}
	return out
}

// childrenByField returns every child stored under a field name, in order.
func childrenByField(node *sitter.Node, field string) []*sitter.Node {
	cursor := node.Walk()
	defer cursor.Close()

	nodes := node.ChildrenByFieldName(field, cursor)
	out := make([]*sitter.Node, 0, len(nodes))
	for i := range nodes {
		out = append(out, &nodes[i])
	}
	return out
}

// firstNamedChild returns the first named child, skipping comments.
func firstNamedChild(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(uint(i))
		if child.Kind() != "comment" {
			return child
		}
	}
	return nil
}
