package migration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Abraxas-365/applyflow/pkg/errx"
	"github.com/Abraxas-365/applyflow/recruitment/candidate"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
)

const maxLineSize = 16 << 20

// LoadRecords reads a source holding a single JSON array of records. Each
// element is returned undecoded so a malformed record fails on its own.
func LoadRecords(r io.Reader) ([]json.RawMessage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSourceInvalid, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, candidate.ErrSourceInvalid().WithDetail("reason", "top-level value is not an array")
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSourceInvalid, err)
	}
	return records, nil
}

// LoadRecordsFile opens path and loads it with LoadRecords.
func LoadRecordsFile(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, candidate.ErrRegistry.NewWithCause(candidate.CodeSourceInvalid, err).WithDetail("path", path)
	}
	defer f.Close()

	records, err := LoadRecords(f)
	if e, ok := errx.As(err); ok {
		return nil, e.WithDetail("path", path)
	}
	return records, err
}

// ExportLine is one line of a JSON Lines export. Err is set when the line
// could not be decoded.
type ExportLine struct {
	Number int
	Doc    map[string]any
	Err    error
}

// ReadExport reads a JSON Lines export, one document per line, in MongoDB
// extended JSON ($oid, $date...). Blank lines are skipped.
func ReadExport(r io.Reader) ([]ExportLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var lines []ExportLine
	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		doc, err := decodeExtJSON(line)
		lines = append(lines, ExportLine{Number: n, Doc: doc, Err: err})
	}
	if err := sc.Err(); err != nil {
		return lines, candidate.ErrRegistry.NewWithCause(candidate.CodeSourceInvalid, err).WithDetail("line", n+1)
	}
	return lines, nil
}

func decodeExtJSON(line []byte) (map[string]any, error) {
	vr, err := bsonrw.NewExtJSONValueReader(bytes.NewReader(line), false)
	if err != nil {
		return nil, err
	}
	dec, err := bson.NewDecoder(vr)
	if err != nil {
		return nil, err
	}
	dec.DefaultDocumentM()

	doc := map[string]any{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
