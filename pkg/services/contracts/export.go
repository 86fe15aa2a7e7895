package contracts

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"contract-flow/pkg/logging"
)

const exportSheet = "Contracts"

// ExportXLSX returns every contract as a workbook.
func (s *Service) ExportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	contracts, err := s.ListContracts(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	headers := []string{"ID", "Title", "Status", "Version", "Owner", "Envelope", "Created", "Updated"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}
	for i, c := range contracts {
		row := i + 2
		owner := ""
		if c.Owner != nil {
			owner = c.Owner.Email
		}
		values := []any{c.ID, c.Title, c.Status, c.Version, owner, c.EnvelopeID,
			c.CreatedAt.UTC().Format(time.RFC3339), c.UpdatedAt.UTC().Format(time.RFC3339)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
	}
	_ = f.SetColWidth(exportSheet, "A", "A", 38)
	_ = f.SetColWidth(exportSheet, "B", "B", 40)
	_ = f.SetColWidth(exportSheet, "C", "F", 16)
	_ = f.SetColWidth(exportSheet, "G", "H", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	logging.FromContext(ctx, s.logger).Info("export.xlsx.ok",
		zap.Int("rows", len(contracts)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	return buf.Bytes(), nil
}
