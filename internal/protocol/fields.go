package protocol

// OpenParam is the param of open.
type OpenParam struct {
	Path string `json:"path"`
}

// ExtractParam is the param of extract: the destination directory.
type ExtractParam struct {
	Path string `json:"path"`
}

// ExtractItemParam is the param of extract_file, extract_folder and extract_toc.
// Item names the file path, folder path or toc name inside the open archive.
type ExtractItemParam struct {
	Path string `json:"path"`
	Item string `json:"item"`
}

// GenerateParam asks the engine to build a new archive from a directory tree.
type GenerateParam struct {
	Root          string   `json:"root"`
	AllInOne      bool     `json:"allinone"`
	Archive       string   `json:"archive"`
	ThreadNum     int      `json:"threadnum"`
	Encryption    bool     `json:"encryption"`
	CompressLevel int      `json:"compresslevel"`
	KeepSign      bool     `json:"keepsign"`
	IgnoreList    []string `json:"ignorelist"`
	Seed          uint32   `json:"seed"`
}

// ErrorParam is the optional param of an engine error reply.
type ErrorParam struct {
	Message string `json:"message"`
}
