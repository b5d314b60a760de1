// Package importer reads product spreadsheets uploaded by a company.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"mentora/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ColumnName  = "Nama Produk"
	ColumnPrice = "Harga"
)

var (
	ErrMissingColumns  = fmt.Errorf("spreadsheet must have %q and %q columns", ColumnName, ColumnPrice)
	ErrUnsupportedFile = errors.New("unsupported file type, upload .xlsx or .csv")
)

// Parse reads products from an .xlsx (first sheet) or .csv file. Blank rows are skipped; any
// other malformed row fails the whole file.
func Parse(filename string, r io.Reader) ([]models.Product, error) {
	var (
		rows      [][]string
		err       error
		rawDouble bool
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
		rawDouble = true
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, ErrUnsupportedFile
	}
	if err != nil {
		return nil, err
	}
	return parseRows(rows, rawDouble)
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

// parseRows converts a header row plus data rows. rawDouble marks numeric cells stored as
// binary doubles (19.990000000000002 for 19.99); their prices are rounded to cents.
func parseRows(rows [][]string, rawDouble bool) ([]models.Product, error) {
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}
	nameIdx, priceIdx := -1, -1
	for i, header := range rows[0] {
		switch strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")) {
		case ColumnName:
			nameIdx = i
		case ColumnPrice:
			priceIdx = i
		}
	}
	if nameIdx < 0 || priceIdx < 0 {
		return nil, ErrMissingColumns
	}

	products := make([]models.Product, 0, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		name := strings.TrimSpace(cell(row, nameIdx))
		rawPrice := strings.TrimSpace(cell(row, priceIdx))
		if name == "" && rawPrice == "" {
			continue
		}
		if name == "" {
			return nil, fmt.Errorf("row %d: %s is empty", line, ColumnName)
		}
		price, err := decimal.NewFromString(rawPrice)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid %s %q", line, ColumnPrice, rawPrice)
		}
		if rawDouble {
			price = price.Round(2)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("row %d: %s cannot be negative", line, ColumnPrice)
		}
		products = append(products, models.Product{Name: name, Price: price})
	}
	return products, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
