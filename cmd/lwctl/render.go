package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/lwctl/internal/filetree"
	"github.com/danmuck/lwctl/internal/progress"
)

func renderTree(w io.Writer, tree *filetree.Tree) error {
	if _, err := fmt.Fprintf(w, "%s\n", tree.Name); err != nil {
		return err
	}
	for _, toc := range tree.Root.Children {
		if err := renderNode(w, toc, 1); err != nil {
			return err
		}
	}
	return nil
}

func renderNode(w io.Writer, n *filetree.Node, depth int) error {
	indent := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%s%s/\n", indent, n.DisplayName()); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := renderNode(w, child, depth+1); err != nil {
			return err
		}
	}
	for _, f := range n.Files {
		if _, err := fmt.Fprintf(w, "%s  %s\t%d\t%d\t%s\t%s\n",
			indent, f.Name, f.Size, f.CompressedSize, f.Method.Code(), f.ModTime.Format("2006-01-02")); err != nil {
			return err
		}
	}
	return nil
}

func renderStats(w io.Writer, st filetree.Stats) error {
	_, err := fmt.Fprintf(w, "tocs=%d folders=%d files=%d size=%d compressed=%d\n",
		st.Tocs, st.Folders, st.Files, st.Size, st.CompressedSize)
	return err
}

type progressPrinter struct {
	w io.Writer
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) print(ev progress.Event) {
	switch ev.Kind {
	case progress.Done:
		fmt.Fprintln(p.w, "done")
	case progress.Counters:
		fmt.Fprintf(p.w, "read=%d decompress=%d write=%d total=%d\n", ev.Read, ev.Decompress, ev.Write, ev.Total)
	default:
		var b strings.Builder
		if ev.Level != progress.Info {
			fmt.Fprintf(&b, "%s: ", ev.Level)
		}
		if ev.Max > 0 {
			fmt.Fprintf(&b, "[%d/%d] ", ev.Current, ev.Max)
		}
		if ev.Message != "" {
			b.WriteString(ev.Message)
		} else {
			b.WriteString(ev.Filename)
		}
		fmt.Fprintln(p.w, strings.TrimSpace(b.String()))
	}
}
