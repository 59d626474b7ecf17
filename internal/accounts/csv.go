package accounts

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/ledger/internal/model"
)

// Header is the CSV header for a chart of accounts file.
var Header = []string{"code", "name", "type", "parent_code", "description", "retired"}

const (
	numFields     = 6
	colCode       = 0
	colName       = 1
	colType       = 2
	colParentCode = 3
	colDesc       = 4
	colRetired    = 5
)

// ChartRow is one account in a chart of accounts file. Parents are named
// by code so a file is portable between books.
type ChartRow struct {
	Code        string
	Name        string
	Type        model.AccountType
	ParentCode  string
	Description string
	Retired     bool
}

// ReadChart reads a chart of accounts CSV.
func ReadChart(r io.Reader) ([]ChartRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chart CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var rows []ChartRow
	for i, rec := range records[1:] {
		row, err := UnmarshalChartRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteChart writes a chart of accounts CSV.
func WriteChart(w io.Writer, rows []ChartRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, row := range rows {
		if err := cw.Write(MarshalChartRow(row)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalChartRow converts a ChartRow to a CSV record.
func MarshalChartRow(row ChartRow) []string {
	rec := make([]string, numFields)
	rec[colCode] = row.Code
	rec[colName] = row.Name
	rec[colType] = string(row.Type)
	rec[colParentCode] = row.ParentCode
	rec[colDesc] = row.Description
	if row.Retired {
		rec[colRetired] = "true"
	}
	return rec
}

// UnmarshalChartRow converts a CSV record to a ChartRow.
func UnmarshalChartRow(record []string) (ChartRow, error) {
	if len(record) != numFields {
		return ChartRow{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	typ, err := model.ParseAccountType(record[colType])
	if err != nil {
		return ChartRow{}, err
	}

	var retired bool
	if record[colRetired] != "" {
		retired, err = strconv.ParseBool(record[colRetired])
		if err != nil {
			return ChartRow{}, fmt.Errorf("parsing retired %q: %w", record[colRetired], err)
		}
	}

	return ChartRow{
		Code:        record[colCode],
		Name:        record[colName],
		Type:        typ,
		ParentCode:  record[colParentCode],
		Description: record[colDesc],
		Retired:     retired,
	}, nil
}

// Export returns the directory as chart rows ordered by code.
func (d *Directory) Export() []ChartRow {
	accts := d.All()
	codes := make(map[string]string, len(accts))
	for _, a := range accts {
		codes[a.ID] = a.Code
	}

	rows := make([]ChartRow, 0, len(accts))
	for _, a := range accts {
		rows = append(rows, ChartRow{
			Code:        a.Code,
			Name:        a.Name,
			Type:        a.Type,
			ParentCode:  codes[a.ParentID],
			Description: a.Description,
			Retired:     a.Retired,
		})
	}
	return rows
}

// Import creates every row as an account. A row's parent must be created
// by an earlier row or already exist. Retired rows are retired after all
// rows are created so they can still parent later rows.
func (d *Directory) Import(ctx context.Context, rows []ChartRow) error {
	var retire []string
	for i, row := range rows {
		var parentID string
		if row.ParentCode != "" {
			parent, err := d.ByCode(row.ParentCode)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+2, &model.Error{Kind: model.ErrInvalidParent, AccountCode: row.Code, Detail: "parent " + row.ParentCode})
			}
			parentID = parent.ID
		}
		acct, err := d.Create(ctx, NewAccount{
			Code:        row.Code,
			Name:        row.Name,
			Type:        row.Type,
			ParentID:    parentID,
			Description: row.Description,
		})
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if row.Retired {
			retire = append(retire, acct.ID)
		}
	}
	for _, id := range retire {
		if err := d.Retire(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
