package filetree

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lwctl/internal/testutil/testlog"
)

const exampleListing = `{"name":"Root","tocs":[{"name":"toc1","alias":"","tocfolder":{"path":"data/","subfolders":[],"files":[{"name":"a.txt","storage":"store","date":"0","compressedlen":"10","decompressedlen":"10"}]}}]}`

func TestBuildExampleListing(t *testing.T) {
	testlog.Start(t)
	tree, err := BuildJSON(json.RawMessage(exampleListing))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if tree.Name != "Root" {
		t.Fatalf("unexpected archive name: %q", tree.Name)
	}
	if tree.Root.Title != "" || tree.Root.Alias != "" {
		t.Fatalf("synthetic root must be anonymous: %+v", tree.Root)
	}
	if len(tree.Root.Children) != 1 {
		t.Fatalf("unexpected toc count: %d", len(tree.Root.Children))
	}
	toc := tree.Root.Children[0]
	if toc.Title != "toc1" {
		t.Fatalf("toc name must override path title, got %q", toc.Title)
	}
	if toc.DisplayName() != "toc1" {
		t.Fatalf("empty alias must render no suffix, got %q", toc.DisplayName())
	}
	if len(toc.Files) != 1 {
		t.Fatalf("unexpected files: %+v", toc.Files)
	}
	f := toc.Files[0]
	if f.Name != "a.txt" || f.Method != Uncompressed || f.Size != 10 || f.CompressedSize != 10 {
		t.Fatalf("unexpected file entry: %+v", f)
	}
	if !f.ModTime.Equal(time.Unix(0, 0)) {
		t.Fatalf("unexpected mod time: %v", f.ModTime)
	}
}

func TestBuildNumericFieldsAndNesting(t *testing.T) {
	testlog.Start(t)
	raw := `{
	  "name": "English",
	  "tocs": [{
	    "name": "TOC1", "alias": "Data",
	    "tocfolder": {
	      "path": "",
	      "files": [{"name": "keeper.txt", "storage": "compress_buffer", "date": 1700000000, "compressedlen": 3, "decompressedlen": 9}],
	      "subfolders": [
	        {"path": "art\\", "files": [], "subfolders": [
	          {"path": "art\\fx/", "files": [{"name": "glow.dds", "storage": "compress_stream", "date": 1, "compressedlen": 5, "decompressedlen": 50}], "subfolders": []}
	        ]},
	        {"path": "ui", "files": [], "subfolders": []}
	      ]
	    }
	  }]
	}`
	tree, err := BuildJSON(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	toc := tree.Root.Children[0]
	if toc.DisplayName() != "TOC1 (Data)" {
		t.Fatalf("unexpected display name: %q", toc.DisplayName())
	}
	if len(toc.Children) != 2 || toc.Children[0].Title != "art" || toc.Children[1].Title != "ui" {
		t.Fatalf("unexpected children: %+v", toc.Children)
	}
	fx := toc.Children[0].Children[0]
	if fx.Title != "fx" || fx.Files[0].Method != DecompressDuringRead {
		t.Fatalf("unexpected nested folder: %+v", fx)
	}
	if toc.Files[0].Method != DecompressAllAtOnce || toc.Files[0].ModTime.Unix() != 1700000000 {
		t.Fatalf("unexpected toc file: %+v", toc.Files[0])
	}

	n, ok := tree.Find("toc1/ART/fx")
	if !ok || n != fx {
		t.Fatalf("find failed: %v %+v", ok, n)
	}
	if _, ok := tree.Find("toc1/missing"); ok {
		t.Fatalf("find should miss")
	}

	st := tree.Stats()
	if st.Tocs != 1 || st.Folders != 4 || st.Files != 2 || st.Size != 59 || st.CompressedSize != 8 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	var paths []string
	if err := tree.Walk(func(path string, n *Node) error {
		paths = append(paths, path)
		if n.Title == "art" {
			return SkipDir
		}
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if strings.Join(paths, ",") != "TOC1,TOC1/art,TOC1/ui" {
		t.Fatalf("unexpected walk order: %v", paths)
	}
}

func TestBuildUnknownStorageReturnsNoTree(t *testing.T) {
	testlog.Start(t)
	raw := strings.Replace(exampleListing, `"storage":"store"`, `"storage":"zzz"`, 1)
	tree, err := BuildJSON(json.RawMessage(raw))
	if !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("expected ErrMalformedTree, got %v", err)
	}
	if tree != nil {
		t.Fatalf("partial tree returned: %+v", tree)
	}
}

func TestBuildMissingRequiredFields(t *testing.T) {
	testlog.Start(t)
	for _, field := range []string{`"name":"a.txt",`, `"storage":"store",`, `"date":"0",`, `"compressedlen":"10",`, `,"decompressedlen":"10"`, `"path":"data/",`} {
		raw := strings.Replace(exampleListing, field, "", 1)
		if raw == exampleListing {
			t.Fatalf("fixture did not contain %s", field)
		}
		tree, err := BuildJSON(json.RawMessage(raw))
		if !errors.Is(err, ErrMalformedTree) {
			t.Fatalf("without %s: expected ErrMalformedTree, got %v", field, err)
		}
		if tree != nil {
			t.Fatalf("without %s: partial tree returned", field)
		}
	}
}

func TestBuildRejectsBadNumbersAndShapes(t *testing.T) {
	testlog.Start(t)
	cases := []string{
		strings.Replace(exampleListing, `"compressedlen":"10"`, `"compressedlen":"ten"`, 1),
		strings.Replace(exampleListing, `"date":"0"`, `"date":1.5`, 1),
		strings.Replace(exampleListing, `"decompressedlen":"10"`, `"decompressedlen":-1`, 1),
		`{"name":"x","tocs":[{"name":"t","alias":""}]}`,
		`{"name":"x","tocs":"nope"}`,
		``,
	}
	for i, raw := range cases {
		if _, err := BuildJSON(json.RawMessage(raw)); !errors.Is(err, ErrMalformedTree) {
			t.Fatalf("case %d: expected ErrMalformedTree, got %v", i, err)
		}
	}
}

func TestTitle(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"data/":         "data",
		`data\art\\`:    "art",
		"a/b/c":         "c",
		"":              "",
		"/":             "",
		`mixed\path/fx`: "fx",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Fatalf("Title(%q)=%q want %q", in, got, want)
		}
	}
}

func TestStorageCodes(t *testing.T) {
	testlog.Start(t)
	for _, m := range []StorageMethod{Uncompressed, DecompressDuringRead, DecompressAllAtOnce} {
		got, err := ParseStorage(m.Code())
		if err != nil || got != m {
			t.Fatalf("storage %s did not round trip: %v %v", m, got, err)
		}
	}
	if _, err := ParseStorage("Store"); !errors.Is(err, ErrMalformedTree) {
		t.Fatalf("storage codes are case sensitive, got %v", err)
	}
}
