package drive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/repository/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAccumulateSumsPerProductAndDay(t *testing.T) {
	records, err := readCSVRecords(bytes.NewBufferString(
		"Date,SKU,Qty\n" +
			"2025-03-01,rice,4\n" +
			"2025-03-01,rice,6\n" +
			"2025-03-01T18:30:00Z,oil,2\n" +
			",,\n" +
			"02/03/2025,rice,\"1,000\"\n"))
	require.NoError(t, err)

	totals := make(map[rollupKey]float64)
	rows, err := accumulate(records, totals)

	require.NoError(t, err)
	assert.Equal(t, 4, rows)
	assert.Equal(t, 10.0, totals[rollupKey{"rice", day(2025, time.March, 1)}])
	assert.Equal(t, 2.0, totals[rollupKey{"oil", day(2025, time.March, 1)}])
	assert.Equal(t, 1000.0, totals[rollupKey{"rice", day(2025, time.March, 2)}])
}

func TestAccumulateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{"missing quantity column", "date,product_id\n2025-03-01,rice\n", "quantity"},
		{"bad date", "date,product_id,quantity\nyesterday,rice,1\n", "line 2: invalid date"},
		{"bad quantity", "date,product_id,quantity\n2025-03-01,rice,lots\n", "line 2: invalid quantity"},
		{"empty product", "date,product_id,quantity\n2025-03-01,,3\n", "empty product_id"},
		{"negative quantity", "date,product_id,quantity\n2025-03-01,rice,2\n2025-03-02,rice,-1\n", "line 3: negative quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := readCSVRecords(bytes.NewBufferString(tt.csv))
			require.NoError(t, err)
			_, err = accumulate(records, make(map[rollupKey]float64))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestImportFilesMergesCSVAndXLSX(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "march.csv", "date,product_id,quantity\n2025-03-01,rice,3\n2025-03-02,rice,5\n")

	xlsxPath := filepath.Join(dir, "march.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]interface{}{"sale_date", "sku", "qty"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]interface{}{"2025-03-01", "rice", 2}))
	require.NoError(t, wb.SaveAs(xlsxPath))
	require.NoError(t, wb.Close())

	writer := &mocks.SalesRollupWriter{}
	expected := []domain.SalesRollup{
		{ProductID: "rice", SaleDate: day(2025, time.March, 1), Quantity: 5},
		{ProductID: "rice", SaleDate: day(2025, time.March, 2), Quantity: 5},
	}
	writer.On("UpsertDailyRollups", mock.Anything, "owner-1", expected).Return(2, nil)

	report, err := NewSalesImporter(nil, writer).ImportFiles(context.Background(), "owner-1", csvPath, xlsxPath)

	require.NoError(t, err)
	assert.Equal(t, &ImportReport{Files: 2, Rows: 3, Rollups: 2}, report)
	writer.AssertExpectations(t)
}

func TestImportFilesWriterFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "date,product_id,quantity\n2025-03-01,rice,3\n")
	writer := &mocks.SalesRollupWriter{}
	writer.On("UpsertDailyRollups", mock.Anything, "owner-1", mock.Anything).Return(0, errors.New("tx aborted"))

	_, err := NewSalesImporter(nil, writer).ImportFiles(context.Background(), "owner-1", path)

	assert.ErrorContains(t, err, "tx aborted")
}

func TestImportFilesUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "hello")

	_, err := NewSalesImporter(nil, &mocks.SalesRollupWriter{}).ImportFiles(context.Background(), "owner-1", path)

	assert.ErrorContains(t, err, "unsupported")
}

type fakeSource struct {
	files    []*File
	contents map[string]string
	folders  map[string]string
	listed   []string
}

func (f *fakeSource) ListFiles(ctx context.Context, folderID string) ([]*File, error) {
	f.listed = append(f.listed, folderID)
	return f.files, nil
}

func (f *fakeSource) FindFolderByPath(ctx context.Context, path string) (string, error) {
	id, ok := f.folders[path]
	if !ok {
		return "", errors.New("folder not found: " + path)
	}
	return id, nil
}

func (f *fakeSource) DownloadFile(ctx context.Context, fileID string, w io.Writer) error {
	content, ok := f.contents[fileID]
	if !ok {
		return errors.New("no such file")
	}
	_, err := io.WriteString(w, content)
	return err
}

func TestImportFolderDownloadsSalesSheets(t *testing.T) {
	source := &fakeSource{
		files: []*File{
			{ID: "1", Name: "sales.csv"},
			{ID: "2", Name: "readme.pdf"},
		},
		contents: map[string]string{"1": "date,product_id,quantity\n2025-03-03,oil,7\n"},
	}
	writer := &mocks.SalesRollupWriter{}
	writer.On("UpsertDailyRollups", mock.Anything, "owner-1", []domain.SalesRollup{
		{ProductID: "oil", SaleDate: day(2025, time.March, 3), Quantity: 7},
	}).Return(1, nil)

	dir := t.TempDir()
	importer := NewSalesImporter(NewDownloader(source), writer)
	report, err := importer.ImportFolder(context.Background(), "owner-1", DownloadOptions{FolderID: "folder", DownloadDir: dir})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.FileExists(t, filepath.Join(dir, "sales.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "readme.pdf"))
	assert.Equal(t, []string{"folder"}, source.listed)
}

func TestImportFolderResolvesFolderPath(t *testing.T) {
	source := &fakeSource{
		files:    []*File{{ID: "1", Name: "sales.csv"}},
		contents: map[string]string{"1": "date,product_id,quantity\n2025-03-03,oil,7\n"},
		folders:  map[string]string{"sales/2025": "folder-2025"},
	}
	writer := &mocks.SalesRollupWriter{}
	writer.On("UpsertDailyRollups", mock.Anything, "owner-1", mock.Anything).Return(1, nil)

	importer := NewSalesImporter(NewDownloader(source), writer)
	report, err := importer.ImportFolder(context.Background(), "owner-1", DownloadOptions{
		FolderPath:  "sales/2025",
		DownloadDir: t.TempDir(),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Rollups)
	assert.Equal(t, []string{"folder-2025"}, source.listed)
}

func TestDownloadFolderRequiresFolder(t *testing.T) {
	source := &fakeSource{folders: map[string]string{}}
	d := NewDownloader(source)

	_, err := d.DownloadFolder(context.Background(), DownloadOptions{DownloadDir: t.TempDir()})
	assert.ErrorContains(t, err, "folder id or folder path is required")

	_, err = d.DownloadFolder(context.Background(), DownloadOptions{FolderPath: "missing", DownloadDir: t.TempDir()})
	assert.ErrorContains(t, err, "folder not found: missing")
	assert.Empty(t, source.listed)
}

func TestImportFolderWithoutDrive(t *testing.T) {
	_, err := NewSalesImporter(nil, &mocks.SalesRollupWriter{}).ImportFolder(context.Background(), "owner-1", DownloadOptions{FolderID: "f", DownloadDir: t.TempDir()})
	assert.ErrorContains(t, err, "not configured")
}
