package importer

import (
	"bytes"
	"testing"
)

func TestDetectEncoding(t *testing.T) {
	// UTF-8 BOM
	b := []byte{0xEF, 0xBB, 0xBF, 'a', 'b'}
	enc, has := detectEncoding(b)
	if enc != "utf-8-bom" || !has {
		t.Fatalf("detectEncoding utf8-bom failed: %v %v", enc, has)
	}

	// UTF-16LE BOM
	b2 := []byte{0xFF, 0xFE, 0x61, 0x00, 0x62, 0x00}
	enc2, has2 := detectEncoding(b2)
	if enc2 != "utf-16le" || has2 {
		t.Fatalf("detectEncoding utf16le failed: %v %v", enc2, has2)
	}

	// Latin-1 byte that is not valid UTF-8
	enc3, _ := detectEncoding([]byte("caf\xe9,1\n"))
	if enc3 != "windows-1252" {
		t.Fatalf("detectEncoding latin1 = %q", enc3)
	}

	// A multi-byte rune cut by the sample boundary is still UTF-8
	enc4, _ := detectEncoding([]byte("caf\xc3"))
	if enc4 != "utf-8" {
		t.Fatalf("detectEncoding truncated utf8 = %q", enc4)
	}
}

func TestReadCSV_UTF16AndLatin1(t *testing.T) {
	// "name\nZoë\n" in UTF-16LE with BOM
	utf16 := []byte{0xFF, 0xFE}
	for _, r := range "name\nZoë\n" {
		utf16 = append(utf16, byte(r), byte(r>>8))
	}
	tbl, res, err := ReadCSV(bytes.NewReader(utf16), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV utf16 failed: %v", err)
	}
	if res.Encoding != "utf-16le" {
		t.Fatalf("encoding = %q", res.Encoding)
	}
	c, _ := tbl.Column("name")
	if c.Values[0] != "Zoë" {
		t.Fatalf("utf16 cell = %q", c.Values[0])
	}

	tbl, res, err = ReadCSV(bytes.NewReader([]byte("city\nM\xfcnchen\n")), &Options{HeaderMode: "present"})
	if err != nil {
		t.Fatalf("ReadCSV latin1 failed: %v", err)
	}
	c, _ = tbl.Column("city")
	if res.Encoding != "windows-1252" || c.Values[0] != "München" {
		t.Fatalf("latin1 decode: %q %q", res.Encoding, c.Values[0])
	}
}

func TestCandidateDelims(t *testing.T) {
	if got := candidateDelims([]rune{',', 0, ';'}); len(got) != 2 {
		t.Fatalf("candidateDelims = %q", got)
	}
	if got := candidateDelims(nil); len(got) != 4 {
		t.Fatalf("candidateDelims default = %q", got)
	}
}
