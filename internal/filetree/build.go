package filetree

import (
	"encoding/json"
	"fmt"
	"time"
)

// BuildJSON parses and builds a raw filetree param.
func BuildJSON(raw json.RawMessage) (*Tree, error) {
	l, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Build(l)
}

// Build converts a listing into a Tree. Any missing required field or unknown
// storage code fails the whole build; no partial tree is returned.
func Build(l Listing) (*Tree, error) {
	root := &Node{}
	for i, toc := range l.Tocs {
		loc := fmt.Sprintf("tocs[%d]", i)
		if toc.Folder == nil {
			return nil, fmt.Errorf("%w: %s missing tocfolder", ErrMalformedTree, loc)
		}
		node, err := buildFolder(*toc.Folder, loc+".tocfolder")
		if err != nil {
			return nil, err
		}
		if toc.Name != nil {
			node.Title = *toc.Name
		}
		node.Alias = toc.Alias
		root.Children = append(root.Children, node)
	}
	return &Tree{Name: l.Name, Root: root}, nil
}

func buildFolder(f Folder, loc string) (*Node, error) {
	if f.Path == nil {
		return nil, fmt.Errorf("%w: %s missing path", ErrMalformedTree, loc)
	}
	node := &Node{
		Title: Title(*f.Path),
		Path:  *f.Path,
	}
	for i, sub := range f.Subfolders {
		child, err := buildFolder(sub, fmt.Sprintf("%s.subfolders[%d]", loc, i))
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	for i, file := range f.Files {
		entry, err := buildFile(file, fmt.Sprintf("%s.files[%d]", loc, i))
		if err != nil {
			return nil, err
		}
		node.Files = append(node.Files, entry)
	}
	return node, nil
}

func buildFile(f File, loc string) (FileEntry, error) {
	switch {
	case f.Name == nil:
		return FileEntry{}, fmt.Errorf("%w: %s missing name", ErrMalformedTree, loc)
	case f.Storage == nil:
		return FileEntry{}, fmt.Errorf("%w: %s missing storage", ErrMalformedTree, loc)
	case f.Date == nil:
		return FileEntry{}, fmt.Errorf("%w: %s missing date", ErrMalformedTree, loc)
	case f.CompressedLen == nil:
		return FileEntry{}, fmt.Errorf("%w: %s missing compressedlen", ErrMalformedTree, loc)
	case f.DecompressedLen == nil:
		return FileEntry{}, fmt.Errorf("%w: %s missing decompressedlen", ErrMalformedTree, loc)
	}
	method, err := ParseStorage(*f.Storage)
	if err != nil {
		return FileEntry{}, fmt.Errorf("%s: %w", loc, err)
	}
	date, err := f.Date.Int64()
	if err != nil {
		return FileEntry{}, fmt.Errorf("%w: %s date: %v", ErrMalformedTree, loc, err)
	}
	compressed, err := f.CompressedLen.Uint64()
	if err != nil {
		return FileEntry{}, fmt.Errorf("%w: %s compressedlen: %v", ErrMalformedTree, loc, err)
	}
	size, err := f.DecompressedLen.Uint64()
	if err != nil {
		return FileEntry{}, fmt.Errorf("%w: %s decompressedlen: %v", ErrMalformedTree, loc, err)
	}
	return FileEntry{
		Name:           *f.Name,
		Size:           size,
		CompressedSize: compressed,
		Method:         method,
		ModTime:        time.Unix(date, 0).UTC(),
	}, nil
}
