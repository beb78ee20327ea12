package filetree

import (
	"errors"
	"strings"
)

// SkipDir returned from a WalkFunc skips the node's children and files.
var SkipDir = errors.New("filetree: skip dir")

// WalkFunc is called for every node; path joins display titles with "/".
type WalkFunc func(path string, n *Node) error

// Walk visits nodes depth-first, toc roots first. The synthetic root is not visited.
func (t *Tree) Walk(fn WalkFunc) error {
	if t == nil || t.Root == nil {
		return nil
	}
	for _, child := range t.Root.Children {
		if err := walk(child.Title, child, fn); err != nil {
			if errors.Is(err, SkipDir) {
				continue
			}
			return err
		}
	}
	return nil
}

func walk(path string, n *Node, fn WalkFunc) error {
	if err := fn(path, n); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := walk(path+"/"+child.Title, child, fn); err != nil {
			if errors.Is(err, SkipDir) {
				continue
			}
			return err
		}
	}
	return nil
}

// Find resolves a "/"-joined title path such as "toc1/data/ui".
func (t *Tree) Find(path string) (*Node, bool) {
	if t == nil || t.Root == nil {
		return nil, false
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	cur := t.Root
	for _, part := range parts {
		var next *Node
		for _, child := range cur.Children {
			if strings.EqualFold(child.Title, part) {
				next = child
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

type Stats struct {
	Tocs           int
	Folders        int
	Files          int
	Size           uint64
	CompressedSize uint64
}

func (t *Tree) Stats() Stats {
	var s Stats
	if t == nil || t.Root == nil {
		return s
	}
	s.Tocs = len(t.Root.Children)
	_ = t.Walk(func(_ string, n *Node) error {
		s.Folders++
		for _, f := range n.Files {
			s.Files++
			s.Size += f.Size
			s.CompressedSize += f.CompressedSize
		}
		return nil
	})
	return s
}
