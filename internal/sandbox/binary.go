package sandbox

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// binarySniffLen is how much of a file is inspected for binary heuristics.
const binarySniffLen = 8192

// controlByteRatio is the fraction of control bytes (excluding tab, LF, CR)
// beyond which a non-UTF-8 sample is classified as binary.
const controlByteRatio = 0.1

// binarySignatures are magic-byte prefixes of well-known binary formats.
var binarySignatures = [][]byte{
	{0x89, 'P', 'N', 'G'},        // PNG
	{0xFF, 0xD8, 0xFF},           // JPEG
	[]byte("GIF8"),               // GIF
	[]byte("RIFF"),               // WAV, AVI, WebP container
	[]byte("%PDF"),               // PDF
	{'P', 'K', 0x03, 0x04},       // ZIP, DOCX, JAR
	{0x7F, 'E', 'L', 'F'},        // ELF
	[]byte("MZ"),                 // PE executable
	{0x1F, 0x8B},                 // gzip
	[]byte("BZh"),                // bzip2
	{0xFD, '7', 'z', 'X', 'Z'},   // xz
	[]byte("Rar!\x1a\x07"),       // RAR
	{0x00, 0x00, 0x01, 0x00},     // ICO
}

// binaryExtensions short-circuit content inspection for known binary types.
var binaryExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {},
	".webp": {}, ".tiff": {}, ".tif": {},
	".mp3": {}, ".mp4": {}, ".wav": {}, ".avi": {}, ".mov": {}, ".mkv": {},
	".flac": {}, ".ogg": {}, ".webm": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {}, ".xz": {}, ".rar": {}, ".7z": {},
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".bin": {}, ".dat": {},
	".pyc": {}, ".class": {}, ".o": {}, ".a": {},
	".db": {}, ".sqlite": {}, ".sqlite3": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {}, ".eot": {},
}

// IsBinary classifies a file as binary or text.
//
// Known binary extensions short-circuit without touching content. With
// inspectContent, the first 8 KiB is checked against magic-byte signatures,
// then for NUL bytes, then for UTF-8 validity with a control-byte ratio
// fallback. Unreadable files are reported as text (fail-open): the caller
// hits the real read error on its own open attempt and can surface that.
func IsBinary(path string, inspectContent bool) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := binaryExtensions[ext]; ok {
		return true
	}
	if !inspectContent {
		return false
	}

	f, err := os.Open(path) // #nosec G304 -- callers validate the path first
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, binarySniffLen)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false
	}
	sample := buf[:n]
	if len(sample) == 0 {
		return false // empty file is text
	}

	for _, sig := range binarySignatures {
		if bytes.HasPrefix(sample, sig) {
			return true
		}
	}

	if bytes.IndexByte(sample, 0x00) >= 0 {
		return true
	}

	if utf8.Valid(sample) {
		return false
	}

	var control int
	for _, b := range sample {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			control++
		}
	}
	return float64(control)/float64(len(sample)) > controlByteRatio
}
