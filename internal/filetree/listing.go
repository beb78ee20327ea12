package filetree

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Listing is the filetree param as sent by the engine.
type Listing struct {
	Name string `json:"name"`
	Tocs []Toc  `json:"tocs"`
}

type Toc struct {
	Name   *string `json:"name"`
	Alias  string  `json:"alias"`
	Folder *Folder `json:"tocfolder"`
}

type Folder struct {
	Path       *string  `json:"path"`
	Subfolders []Folder `json:"subfolders"`
	Files      []File   `json:"files"`
}

type File struct {
	Name            *string `json:"name"`
	Storage         *string `json:"storage"`
	Date            *Number `json:"date"`
	CompressedLen   *Number `json:"compressedlen"`
	DecompressedLen *Number `json:"decompressedlen"`
}

// Number accepts a JSON number or a decimal string. Engines built on different
// JSON writers disagree on which one they emit.
type Number struct {
	raw string
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.raw = strings.TrimSpace(s)
		return nil
	}
	if string(b) == "null" {
		return fmt.Errorf("null number")
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	n.raw = num.String()
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.raw), nil
}

func (n Number) Uint64() (uint64, error) {
	return strconv.ParseUint(n.raw, 10, 64)
}

func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(n.raw, 10, 64)
}

// NumberOf builds a Number from an integer, for engines and tests composing listings.
func NumberOf(v int64) *Number {
	return &Number{raw: strconv.FormatInt(v, 10)}
}

// Parse decodes a raw filetree param without validating it.
func Parse(raw json.RawMessage) (Listing, error) {
	var l Listing
	if len(bytes.TrimSpace(raw)) == 0 {
		return Listing{}, fmt.Errorf("%w: empty listing", ErrMalformedTree)
	}
	if err := json.Unmarshal(raw, &l); err != nil {
		return Listing{}, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	return l, nil
}
