package leadfile

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// ReadJSON reads a JSON array of lead objects. Keys follow the same aliases
// as spreadsheet headers; numeric values such as CNPJs are kept verbatim.
func ReadJSON(r io.Reader) ([]model.Lead, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		return nil, eris.Wrap(err, "leadfile: json decode")
	}
	if len(objs) == 0 {
		return nil, nil
	}

	// Union of keys, sorted, becomes the header row.
	seen := make(map[string]bool)
	var header []string
	for _, o := range objs {
		for k := range o {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	sort.Strings(header)

	rows := make([][]string, 0, len(objs)+1)
	rows = append(rows, header)
	for _, o := range objs {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = stringify(o[k])
		}
		rows = append(rows, row)
	}
	return FromRows(rows)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
