// Package leadfile loads leads from CSV, XLSX and JSON files.
package leadfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/model"
)

// Column aliases, keyed by the squashed header.
var aliases = map[string]string{
	"id": "id", "leadid": "id", "identifier": "id", "cnpj": "id", "placeid": "id",
	"name": "name", "company": "name", "companyname": "name", "nome": "name",
	"tradename": "name", "razaosocial": "name",
	"address": "address", "street": "address", "endereco": "address",
	"city": "city", "cidade": "city", "municipio": "city",
	"state": "state", "estado": "state", "uf": "state",
	"phone": "phone", "telephone": "phone", "telefone": "phone",
	"website": "website", "site": "website", "url": "website", "placeswebsite": "website",
	"email": "email", "mail": "email",
}

// placeholders are spreadsheet artifacts that mean "no value".
var placeholders = map[string]bool{"nan": true, "none": true, "null": true, "n/a": true}

// Load reads leads from path, choosing the parser by file extension.
func Load(ctx context.Context, path string) ([]model.Lead, error) {
	var (
		leads []model.Lead
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".tsv", ".txt":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrap(openErr, "leadfile: open")
		}
		defer f.Close() //nolint:errcheck
		leads, err = ReadCSV(ctx, f, CSVOptions{})
	case ".xlsx":
		leads, err = ReadXLSX(path, XLSXOptions{})
	case ".json":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrap(openErr, "leadfile: open")
		}
		defer f.Close() //nolint:errcheck
		leads, err = ReadJSON(f)
	default:
		return nil, eris.Errorf("leadfile: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("leadfile: loaded leads",
		zap.String("path", path),
		zap.Int("leads", len(leads)),
	)
	return leads, nil
}

// FromRows maps a header row plus data rows to leads. Rows that are
// entirely empty are skipped. When no identifier column exists, leads are
// numbered "row-N" by their 1-based data row.
func FromRows(rows [][]string) ([]model.Lead, error) {
	if len(rows) == 0 {
		return nil, eris.New("leadfile: no header row")
	}

	cols := make(map[int]string)
	hasID := false
	for i, h := range rows[0] {
		if key, ok := aliases[squash(h)]; ok {
			if _, dup := findCol(cols, key); dup {
				continue
			}
			cols[i] = key
			hasID = hasID || key == "id"
		}
	}
	if _, ok := findCol(cols, "name"); !ok {
		return nil, eris.New("leadfile: no name column")
	}

	var leads []model.Lead
	for n, row := range rows[1:] {
		values := make(map[string]string, len(cols))
		empty := true
		for i, key := range cols {
			if i >= len(row) {
				continue
			}
			if v := Clean(row[i]); v != "" {
				values[key] = v
				empty = false
			}
		}
		if empty {
			continue
		}
		if !hasID {
			values["id"] = fmt.Sprintf("row-%d", n+1)
		}
		leads = append(leads, fromValues(values))
	}
	return leads, nil
}

// Clean trims v and maps spreadsheet placeholders to "".
func Clean(v string) string {
	v = strings.TrimSpace(v)
	if placeholders[strings.ToLower(v)] {
		return ""
	}
	return v
}

func fromValues(v map[string]string) model.Lead {
	return model.Lead{
		ID:      v["id"],
		Name:    v["name"],
		Address: v["address"],
		City:    v["city"],
		State:   v["state"],
		Phone:   v["phone"],
		Website: v["website"],
		Email:   v["email"],
	}
}

func findCol(cols map[int]string, key string) (int, bool) {
	for i, k := range cols {
		if k == key {
			return i, true
		}
	}
	return 0, false
}

// squash folds accents and drops everything but letters and digits, so
// "E-mail", "Endereço" and "lead_id" match their aliases.
func squash(h string) string {
	return strings.ReplaceAll(model.NormalizeKeyPart(h), " ", "")
}
