package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// ExportFormat selects the encoding of an exported recommendation snapshot.
type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"

	exportSheet = "Recommendations"
)

var exportHeader = []string{
	"product_id", "product_name", "current_stock", "daily_average_sales",
	"days_until_runout", "predicted_runout_date", "urgency", "should_reorder",
	"suggested_reorder_quantity", "lead_time_days", "confidence", "trend",
	"seasonal_factor", "auto_reorder", "preferred_supplier_id",
}

// ParseExportFormat accepts "csv" or "xlsx"; empty means csv.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExportCSV:
		return ExportCSV, true
	case ExportXLSX:
		return ExportXLSX, true
	}
	return "", false
}

func (f ExportFormat) contentType() string {
	if f == ExportXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ExportResult describes an uploaded snapshot.
type ExportResult struct {
	Key         string       `json:"key"`
	Format      ExportFormat `json:"format"`
	Rows        int          `json:"rows"`
	Size        int64        `json:"size"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// ExportRecommendations computes the ranked list and uploads it to object
// storage under exports/<owner>/<date>-<id>.<ext>.
func (s *ReplenishmentService) ExportRecommendations(ctx context.Context, ownerID string, opts domain.RecommendationOptions, format ExportFormat) (*ExportResult, error) {
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}

	recs, err := s.GetRecommendations(ctx, ownerID, opts)
	if err != nil {
		return nil, err
	}

	var data []byte
	switch format {
	case ExportXLSX:
		data, err = EncodeXLSX(recs.Forecasts)
	default:
		format = ExportCSV
		data, err = EncodeCSV(recs.Forecasts)
	}
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%s-%s.%s", ownerID, recs.GeneratedAt.Format("2006-01-02"), uuid.NewString(), format)
	if err := s.store.UploadObject(ctx, key, data, format.contentType()); err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", ownerID).
		Str("key", key).
		Int("rows", len(recs.Forecasts)).
		Msg("recommendations exported")

	return &ExportResult{
		Key:         key,
		Format:      format,
		Rows:        len(recs.Forecasts),
		Size:        int64(len(data)),
		GeneratedAt: recs.GeneratedAt,
	}, nil
}

// ListExports lists the owner's previously uploaded snapshots.
func (s *ReplenishmentService) ListExports(ctx context.Context, ownerID string) ([]storage.ObjectInfo, error) {
	if s.store == nil {
		return nil, storage.ErrNotConfigured
	}
	return s.store.ListObjects(ctx, fmt.Sprintf("exports/%s/", ownerID))
}

func exportRecord(sf domain.StockForecast) []string {
	supplier := ""
	if sf.PreferredSupplierID != nil {
		supplier = *sf.PreferredSupplierID
	}
	return []string{
		sf.ProductID,
		sf.ProductName,
		strconv.FormatFloat(sf.CurrentStock, 'f', -1, 64),
		strconv.FormatFloat(sf.DailyAverageSales, 'f', 2, 64),
		strconv.Itoa(sf.DaysUntilRunout),
		sf.PredictedRunoutDate.Format("2006-01-02"),
		string(sf.Urgency),
		strconv.FormatBool(sf.ShouldReorder),
		strconv.Itoa(sf.SuggestedReorderQuantity),
		strconv.Itoa(sf.LeadTimeDays),
		strconv.FormatFloat(sf.Confidence, 'f', 2, 64),
		string(sf.Trend),
		strconv.FormatFloat(sf.SeasonalFactor, 'f', 3, 64),
		strconv.FormatBool(sf.AutoReorder),
		supplier,
	}
}

func EncodeCSV(forecasts []domain.StockForecast) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, sf := range forecasts {
		if err := w.Write(exportRecord(sf)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeXLSX(forecasts []domain.StockForecast) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return nil, err
	}

	if err := sw.SetRow("A1", toCells(exportHeader)); err != nil {
		return nil, err
	}
	for i, sf := range forecasts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, toCells(exportRecord(sf))); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
