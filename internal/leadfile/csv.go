package leadfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter rune // 0 = sniff ',', ';' or tab from the header line
	Comment   rune // comment character (0 = none)
}

// ReadCSV reads a header row and lead rows from r.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([]model.Lead, error) {
	br := bufio.NewReader(r)

	// Drop a UTF-8 byte order mark.
	if bom, _ := br.Peek(3); bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	if opts.Delimiter == 0 {
		line, _ := br.Peek(4096)
		opts.Delimiter = sniffDelimiter(string(line))
	}

	reader := csv.NewReader(br)
	reader.Comma = opts.Delimiter
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "leadfile: csv context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "leadfile: csv read row")
		}
		rows = append(rows, record)
	}

	return FromRows(rows)
}

// sniffDelimiter picks the most frequent candidate delimiter on the first
// line.
func sniffDelimiter(head string) rune {
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	best, bestCount := ',', strings.Count(head, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(head, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
