package drive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

var (
	dateColumns     = []string{"date", "sale_date", "tanggal"}
	productColumns  = []string{"product_id", "sku", "product"}
	quantityColumns = []string{"quantity", "qty", "qty_sold"}

	dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05", "02/01/2006"}
)

// ImportReport summarises one import run.
type ImportReport struct {
	Files   int `json:"files"`
	Rows    int `json:"rows"`
	Rollups int `json:"rollups"`
}

// SalesImporter loads daily sales sheets into the rollup table.
type SalesImporter struct {
	downloader *Downloader
	writer     repository.SalesRollupWriter
}

// NewSalesImporter builds an importer. downloader may be nil when only local
// files are imported.
func NewSalesImporter(downloader *Downloader, writer repository.SalesRollupWriter) *SalesImporter {
	return &SalesImporter{downloader: downloader, writer: writer}
}

// ImportFolder downloads the Drive folder into opts.DownloadDir and imports every sheet.
func (i *SalesImporter) ImportFolder(ctx context.Context, ownerID string, opts DownloadOptions) (*ImportReport, error) {
	if i.downloader == nil {
		return nil, fmt.Errorf("drive import is not configured")
	}

	paths, err := i.downloader.DownloadFolder(ctx, opts)
	if err != nil {
		return nil, err
	}
	return i.ImportFiles(ctx, ownerID, paths...)
}

// ImportFiles parses local CSV/XLSX files and upserts their per-day totals.
// Totals are summed across all files before writing.
func (i *SalesImporter) ImportFiles(ctx context.Context, ownerID string, paths ...string) (*ImportReport, error) {
	report := &ImportReport{}
	totals := make(map[rollupKey]float64)

	for _, path := range paths {
		records, err := readRecords(path)
		if err != nil {
			return nil, err
		}
		rows, err := accumulate(records, totals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		report.Files++
		report.Rows += rows
		log.Debug().Str("file", path).Int("rows", rows).Msg("parsed sales sheet")
	}

	rollups := toRollups(totals)
	if len(rollups) == 0 {
		return report, nil
	}

	written, err := i.writer.UpsertDailyRollups(ctx, ownerID, rollups)
	if err != nil {
		return nil, fmt.Errorf("write sales rollups: %w", err)
	}
	report.Rollups = written

	log.Info().
		Str("owner_id", ownerID).
		Int("files", report.Files).
		Int("rows", report.Rows).
		Int("rollups", report.Rollups).
		Msg("sales import completed")

	return report, nil
}

type rollupKey struct {
	productID string
	day       time.Time
}

func readRecords(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSXRecords(path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return readCSVRecords(f)
	}
	return nil, fmt.Errorf("unsupported sales file %s", path)
}

func readCSVRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

// readXLSXRecords reads the first sheet of an XLSX workbook.
func readXLSXRecords(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx file %s has no sheets", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// accumulate adds the quantities of records into totals and returns the
// number of data rows consumed. Blank lines are ignored.
func accumulate(records [][]string, totals map[rollupKey]float64) (int, error) {
	if len(records) == 0 {
		return 0, errors.New("missing header row")
	}

	colMap := make(map[string]int)
	for idx, col := range records[0] {
		colMap[strings.ToLower(strings.TrimSpace(col))] = idx
	}
	dateIdx, ok := findColumn(colMap, dateColumns)
	if !ok {
		return 0, fmt.Errorf("missing required column: date")
	}
	productIdx, ok := findColumn(colMap, productColumns)
	if !ok {
		return 0, fmt.Errorf("missing required column: product_id")
	}
	qtyIdx, ok := findColumn(colMap, quantityColumns)
	if !ok {
		return 0, fmt.Errorf("missing required column: quantity")
	}

	rows := 0
	for n, record := range records[1:] {
		line := n + 2
		get := func(idx int) string {
			if idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
			return ""
		}

		rawDate, productID, rawQty := get(dateIdx), get(productIdx), get(qtyIdx)
		if rawDate == "" && productID == "" && rawQty == "" {
			continue
		}
		if productID == "" {
			return rows, fmt.Errorf("line %d: empty product_id", line)
		}

		day, err := parseDay(rawDate)
		if err != nil {
			return rows, fmt.Errorf("line %d: %w", line, err)
		}
		qty, err := strconv.ParseFloat(strings.ReplaceAll(rawQty, ",", ""), 64)
		if err != nil {
			return rows, fmt.Errorf("line %d: invalid quantity %q", line, rawQty)
		}
		if qty < 0 {
			return rows, fmt.Errorf("line %d: negative quantity", line)
		}

		totals[rollupKey{productID: productID, day: day}] += qty
		rows++
	}

	return rows, nil
}

func findColumn(colMap map[string]int, names []string) (int, bool) {
	for _, name := range names {
		if idx, ok := colMap[name]; ok {
			return idx, true
		}
	}
	return 0, false
}

func parseDay(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func toRollups(totals map[rollupKey]float64) []domain.SalesRollup {
	rollups := make([]domain.SalesRollup, 0, len(totals))
	for key, qty := range totals {
		rollups = append(rollups, domain.SalesRollup{
			ProductID: key.productID,
			SaleDate:  key.day,
			Quantity:  qty,
		})
	}
	sort.Slice(rollups, func(a, b int) bool {
		if rollups[a].ProductID != rollups[b].ProductID {
			return rollups[a].ProductID < rollups[b].ProductID
		}
		return rollups[a].SaleDate.Before(rollups[b].SaleDate)
	})
	return rollups
}
