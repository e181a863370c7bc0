// Package ingest reads loosely structured tabular text files: unknown
// encoding, unknown delimiter, unknown amounts of leading metadata. Format
// detection is best-effort; readers retry alternate assumptions when the
// first parse yields nothing usable.
package ingest

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ErrFormat reports that no encoding/delimiter combination produced a
// two-column numeric table from a file.
var ErrFormat = errors.New("ingest: unrecognized file format")

// Delimiter identifies how columns are separated on a data line.
type Delimiter int

const (
	Whitespace Delimiter = iota // any run of spaces or tabs
	Tab
	Comma
)

func (d Delimiter) String() string {
	switch d {
	case Tab:
		return "tab"
	case Comma:
		return "comma"
	default:
		return "whitespace"
	}
}

// Format is the detected shape of a tabular file. It is a hint: readers must
// be prepared for it to be wrong and retry with different assumptions.
type Format struct {
	SkipLines int       // leading lines before the first data row
	Columns   [2]int    // indices of the angle and intensity columns
	Delimiter Delimiter
	Encoding  string // one of "utf-8", "gbk", "latin1", "ascii"
}

// sniffLines is how far into a file detection looks for the first data row.
const sniffLines = 50

// defaultFormat is the fallback when no data row is found in the sniff
// window: assume a 20-line header and the first two columns.
func defaultFormat(enc string) Format {
	return Format{SkipLines: 20, Columns: [2]int{0, 1}, Encoding: enc}
}

// encodingOrder is the priority order detection tries. ASCII is decoded as
// latin1 (it is a strict subset).
var encodingOrder = []string{"utf-8", "gbk", "latin1", "ascii"}

func decoderFor(name string) encoding.Encoding {
	switch name {
	case "gbk":
		return simplifiedchinese.GBK
	case "latin1", "ascii":
		return charmap.ISO8859_1
	default:
		return nil // utf-8 needs no transform
	}
}

// metadataPrefixes mark comment or header lines that detection skips over.
var metadataPrefixes = []string{"#", "PDF", "Ref:", "CELL:", "Strong", "Radiation", "%"}

func isMetadataLine(line string) bool {
	if line == "" {
		return true
	}
	for _, p := range metadataPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// DetectFormat sniffs the encoding, delimiter, header length and numeric
// column pair of a tabular file. It tries encodings in priority order and
// scans the first sniffLines lines of each for a row whose candidate columns
// both parse as floats; column pair [0,2] is accepted as a fallback for
// formats with an intervening index column. When nothing matches it returns
// defaults rather than an error.
func DetectFormat(path string) Format {
	for _, enc := range encodingOrder {
		lines, err := readHead(path, enc, sniffLines)
		if err != nil {
			continue
		}
		for i, line := range lines {
			line = strings.TrimSpace(line)
			if isMetadataLine(line) {
				continue
			}
			delim, parts := splitLine(line)
			if len(parts) < 2 {
				continue
			}
			if floatOK(parts[0]) && floatOK(parts[1]) {
				return Format{SkipLines: i, Columns: [2]int{0, 1}, Delimiter: delim, Encoding: enc}
			}
			if len(parts) >= 3 && floatOK(parts[0]) && floatOK(parts[2]) {
				return Format{SkipLines: i, Columns: [2]int{0, 2}, Delimiter: delim, Encoding: enc}
			}
		}
		return defaultFormat(enc)
	}
	return defaultFormat("utf-8")
}

// splitLine picks the delimiter by presence: tab beats comma beats
// whitespace, matching the detection contract.
func splitLine(line string) (Delimiter, []string) {
	switch {
	case strings.Contains(line, "\t"):
		return Tab, strings.Split(line, "\t")
	case strings.Contains(line, ","):
		return Comma, strings.Split(line, ",")
	default:
		return Whitespace, strings.Fields(line)
	}
}

func floatOK(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// readHead reads up to n lines of the file decoded from the named encoding.
func readHead(path, enc string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if dec := decoderFor(enc); dec != nil {
		r = transform.NewReader(f, dec.NewDecoder())
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for len(lines) < n && sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// readDecoded returns every line of the file decoded from the named encoding.
func readDecoded(path, enc string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if dec := decoderFor(enc); dec != nil {
		r = transform.NewReader(f, dec.NewDecoder())
	}

	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
