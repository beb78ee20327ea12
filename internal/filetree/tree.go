package filetree

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedTree = errors.New("filetree: malformed tree")

// StorageMethod is how a file's bytes are stored in the archive.
type StorageMethod uint8

const (
	Uncompressed StorageMethod = iota
	DecompressDuringRead
	DecompressAllAtOnce
)

var storageCodes = map[string]StorageMethod{
	"store":           Uncompressed,
	"compress_stream": DecompressDuringRead,
	"compress_buffer": DecompressAllAtOnce,
}

func ParseStorage(code string) (StorageMethod, error) {
	m, ok := storageCodes[code]
	if !ok {
		return 0, fmt.Errorf("%w: unknown storage code %q", ErrMalformedTree, code)
	}
	return m, nil
}

// Code returns the wire code.
func (m StorageMethod) Code() string {
	for code, v := range storageCodes {
		if v == m {
			return code
		}
	}
	return ""
}

func (m StorageMethod) String() string {
	switch m {
	case Uncompressed:
		return "Uncompressed"
	case DecompressDuringRead:
		return "DecompressDuringRead"
	case DecompressAllAtOnce:
		return "DecompressAllAtOnce"
	default:
		return fmt.Sprintf("StorageMethod(%d)", uint8(m))
	}
}

type FileEntry struct {
	Name           string
	Size           uint64
	CompressedSize uint64
	Method         StorageMethod
	ModTime        time.Time
}

// Node is a folder, or a toc when attached directly to the root.
type Node struct {
	Title    string
	Alias    string
	Path     string
	Children []*Node
	Files    []FileEntry
}

// DisplayName renders the title with the alias as a suffix, if there is one.
func (n *Node) DisplayName() string {
	if n.Alias == "" {
		return n.Title
	}
	return n.Title + " (" + n.Alias + ")"
}

// Tree is a built listing. Root is the synthetic anchor: empty title and alias,
// one child per toc.
type Tree struct {
	Name string
	Root *Node
}

// Title derives a node title from a folder path: the last segment, trailing separators stripped.
func Title(path string) string {
	trimmed := strings.TrimRight(path, `/\`)
	if i := strings.LastIndexAny(trimmed, `/\`); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
