package ingest

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/simplifiedchinese"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestDetectFormat_TabDelimited(t *testing.T) {
	path := writeFile(t, "data.txt", "# comment\n10.0\t150\n10.1\t160\n")

	f := DetectFormat(path)
	if f.Delimiter != Tab {
		t.Errorf("Delimiter = %v, want tab", f.Delimiter)
	}
	if f.SkipLines != 1 {
		t.Errorf("SkipLines = %d, want 1", f.SkipLines)
	}
	if f.Columns != [2]int{0, 1} {
		t.Errorf("Columns = %v, want [0 1]", f.Columns)
	}
	if f.Encoding != "utf-8" {
		t.Errorf("Encoding = %q, want utf-8", f.Encoding)
	}
}

func TestDetectFormat_CommaAndMetadata(t *testing.T) {
	content := "PDF card 01-234\nRef: somewhere\nCELL: 1 2 3\nStrong lines\nRadiation CuKa\n% junk\n\n10.0,150\n10.1,160\n"
	path := writeFile(t, "data.txt", content)

	f := DetectFormat(path)
	if f.Delimiter != Comma {
		t.Errorf("Delimiter = %v, want comma", f.Delimiter)
	}
	if f.SkipLines != 7 {
		t.Errorf("SkipLines = %d, want 7", f.SkipLines)
	}
}

func TestDetectFormat_InterveningColumn(t *testing.T) {
	// First two fields don't both parse (h k l index in column 1), so
	// detection falls back to columns 0 and 2.
	path := writeFile(t, "data.txt", "10.0 (111) 150\n10.5 (200) 90\n")

	f := DetectFormat(path)
	if f.Columns != [2]int{0, 2} {
		t.Errorf("Columns = %v, want [0 2]", f.Columns)
	}
	if f.Delimiter != Whitespace {
		t.Errorf("Delimiter = %v, want whitespace", f.Delimiter)
	}
}

func TestDetectFormat_NoDataFallsBack(t *testing.T) {
	path := writeFile(t, "data.txt", "# only\n# comments\n# here\n")

	f := DetectFormat(path)
	if f.SkipLines != 20 {
		t.Errorf("SkipLines = %d, want fallback 20", f.SkipLines)
	}
	if f.Columns != [2]int{0, 1} {
		t.Errorf("Columns = %v, want fallback [0 1]", f.Columns)
	}
}

func TestDetectFormat_MissingFile(t *testing.T) {
	f := DetectFormat(filepath.Join(t.TempDir(), "nope.txt"))
	if f.SkipLines != 20 || f.Encoding != "utf-8" {
		t.Errorf("missing file: got %+v, want utf-8 defaults", f)
	}
}

func TestReadTable_GBKEncoded(t *testing.T) {
	// GBK-encoded Chinese header before plain numeric rows.
	enc := simplifiedchinese.GBK.NewEncoder()
	header, err := enc.String("样品名称: 测试\n")
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	path := writeFile(t, "data.txt", header+"10.0\t150\n10.1\t160\n10.2\t170\n")

	rows, _, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if countNumeric(rows) != 3 {
		t.Errorf("numeric rows = %d, want 3", countNumeric(rows))
	}
}

func TestReadTable_Whitespace(t *testing.T) {
	path := writeFile(t, "data.txt", "10.0   150\n10.1   160\n# interleaved comment\n10.2   170\n")

	rows, _, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (comment skipped)", len(rows))
	}
	if rows[0].Angle != 10.0 || rows[0].Intensity != 150 {
		t.Errorf("row 0 = %+v", rows[0])
	}
}

func TestReadTable_DirtyRowsBecomeNaN(t *testing.T) {
	path := writeFile(t, "data.txt", "10.0 150\nbad row here\n10.2 170\n")

	rows, _, err := ReadTable(path)
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if countNumeric(rows) != 2 {
		t.Errorf("numeric rows = %d, want 2", countNumeric(rows))
	}
	if !math.IsNaN(rows[1].Angle) {
		t.Errorf("dirty row should surface as NaN, got %+v", rows[1])
	}
}

func TestReadTable_Unparseable(t *testing.T) {
	path := writeFile(t, "data.txt", "no numbers\nanywhere at all\n")

	_, _, err := ReadTable(path)
	if !errors.Is(err, ErrFormat) {
		t.Errorf("want ErrFormat, got %v", err)
	}
}

func TestFallbackChain_Order(t *testing.T) {
	f := Format{SkipLines: 15, Columns: [2]int{0, 1}, Delimiter: Comma}
	chain := FallbackChain(f)
	if len(chain) != 5 {
		t.Fatalf("chain length = %d, want 5", len(chain))
	}
	if chain[0].Delimiter != Comma || chain[0].SkipLines != 15 {
		t.Errorf("first attempt must be the detected format, got %+v", chain[0])
	}
	if chain[4].Delimiter != Whitespace || chain[4].SkipLines != 5 {
		t.Errorf("last attempt must relax skip by 10, got %+v", chain[4])
	}

	// Relaxed skip clamps at zero.
	chain = FallbackChain(Format{SkipLines: 3})
	if chain[4].SkipLines != 0 {
		t.Errorf("relaxed skip = %d, want 0", chain[4].SkipLines)
	}
}
