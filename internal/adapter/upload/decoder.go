// Package upload decodes user-supplied Xanthos output files into datasets.
// Files are CSV with an id column and one column per period, optionally
// zipped and optionally wrapped in a base64 data URL.
package upload

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/couchcryptid/xanthos-vis-service/internal/domain"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("not a valid file")

const idColumn = "id"

var zipMagic = []byte("PK\x03\x04")

// Report summarizes a decode.
type Report struct {
	Rows        int
	SkippedRows int
	Archive     bool
}

// Decode turns an uploaded file into a dataset. The unit and variable are
// classified from filename. Rows with the wrong number of fields or a blank
// value are skipped and counted; any other problem fails the whole upload.
func Decode(filename string, data []byte) (*domain.Dataset, Report, error) {
	var report Report

	data, err := unwrapDataURL(data)
	if err != nil {
		return nil, report, malformed(err)
	}
	if bytes.HasPrefix(data, zipMagic) || strings.EqualFold(path.Ext(filename), ".zip") {
		report.Archive = true
		if data, err = firstMember(data); err != nil {
			return nil, report, malformed(err)
		}
	}

	periods, ids, values, skipped, err := readTable(bytes.NewReader(data))
	report.Rows = len(ids)
	report.SkippedRows = skipped
	if err != nil {
		return nil, report, malformed(err)
	}

	ds, err := domain.NewDataset(filename, periods, ids, values)
	if err != nil {
		return nil, report, malformed(err)
	}
	return ds, report, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// unwrapDataURL decodes "data:<type>;base64,<payload>". Anything that does
// not start with "data:" is returned unchanged.
func unwrapDataURL(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("data:")) {
		return data, nil
	}
	meta, payload, ok := bytes.Cut(data, []byte(","))
	if !ok {
		return nil, errors.New("data url has no payload")
	}
	if !bytes.HasSuffix(meta, []byte(";base64")) {
		return payload, nil
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(payload)))
	n, err := base64.StdEncoding.Decode(decoded, bytes.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return decoded[:n], nil
}

func firstMember(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(rc)
	}
	return nil, errors.New("zip archive is empty")
}

func readTable(r io.Reader) (periods []string, ids []int, values [][]float64, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("read header: %w", err)
	}
	idIdx := -1
	var periodIdx []int
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		switch {
		case h == idColumn:
			idIdx = i
		case domain.IsPeriodCode(h):
			periods = append(periods, h)
			periodIdx = append(periodIdx, i)
		default:
			return nil, nil, nil, 0, fmt.Errorf("column %q is neither id nor a period code", h)
		}
	}
	if idIdx < 0 {
		return nil, nil, nil, 0, errors.New("missing id column")
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, nil, skipped, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) != len(header) {
			skipped++
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(record[idIdx]))
		if err != nil {
			return nil, nil, nil, skipped, fmt.Errorf("line %d: id %q is not an integer", line, record[idIdx])
		}
		row := make([]float64, len(periodIdx))
		blank := false
		for j, c := range periodIdx {
			cell := strings.TrimSpace(record[c])
			if cell == "" {
				blank = true
				break
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, nil, nil, skipped, fmt.Errorf("line %d: column %s: %q is not a number", line, header[c], record[c])
			}
			row[j] = v
		}
		// Rows with missing values are dropped like ragged ones.
		if blank {
			skipped++
			continue
		}
		ids = append(ids, id)
		values = append(values, row)
	}
	return periods, ids, values, skipped, nil
}
