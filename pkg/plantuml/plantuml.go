// Package plantuml renders a statum state tree as a PlantUML state diagram.
// The tree is discovered by walking the Superstate chains of the leaves the
// caller provides; superstates shared between leaves appear once.
package plantuml

import (
	"fmt"
	"io"
	"strings"

	statum "github.com/stateforward/go-statum"
	"github.com/stateforward/go-statum/pkg/sets"
)

type node struct {
	children sets.Set[string]
	hasEntry bool
	hasExit  bool
}

type tree struct {
	nodes map[string]*node
	roots sets.Set[string]
}

func (t *tree) node(name string) *node {
	n, ok := t.nodes[name]
	if !ok {
		n = &node{children: sets.New[string]()}
		t.nodes[name] = n
	}
	return n
}

func collect[C any](leaves []statum.State[C]) *tree {
	t := &tree{
		nodes: map[string]*node{},
		roots: sets.New[string](),
	}
	for _, leaf := range leaves {
		var current statum.Superstate[C] = leaf
		childName := ""
		for current != nil {
			name := statum.NameOf(current)
			n := t.node(name)
			if _, ok := current.(statum.Enterer[C]); ok {
				n.hasEntry = true
			}
			if _, ok := current.(statum.Exiter[C]); ok {
				n.hasExit = true
			}
			if childName != "" {
				n.children.Add(childName)
			}
			childName = name
			current = current.Superstate()
		}
		t.roots.Add(childName)
	}
	return t
}

func generate(builder *strings.Builder, t *tree, depth int, name string) {
	n := t.nodes[name]
	indent := strings.Repeat(" ", depth*2)
	if n.children.Size() > 0 {
		fmt.Fprintf(builder, "%sstate %s {\n", indent, name)
		for _, child := range sets.Sorted(n.children) {
			generate(builder, t, depth+1, child)
		}
		fmt.Fprintf(builder, "%s}\n", indent)
	} else {
		fmt.Fprintf(builder, "%sstate %s\n", indent, name)
	}
	if n.hasEntry {
		fmt.Fprintf(builder, "%sstate %s: entry\n", indent, name)
	}
	if n.hasExit {
		fmt.Fprintf(builder, "%sstate %s: exit\n", indent, name)
	}
}

// Generate writes the diagram for the tree reachable from initial and leaves,
// with an initial-state marker pointing at initial.
func Generate[C any](writer io.Writer, name string, initial statum.State[C], leaves ...statum.State[C]) error {
	t := collect(append([]statum.State[C]{initial}, leaves...))
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "@startuml %s\n", name)
	for _, root := range sets.Sorted(t.roots) {
		generate(builder, t, 0, root)
	}
	fmt.Fprintf(builder, "[*] --> %s\n", statum.NameOf(initial))
	fmt.Fprintf(builder, "@enduml\n")
	_, err := io.WriteString(writer, builder.String())
	return err
}
