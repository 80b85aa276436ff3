package services

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"gar-rock/resume-crunch/internal/models"
)

const exportSheet = "Scores"

var exportHeaders = []string{
	"Resume", "Document", "Status", "Parse Tier", "Overall", "Skills", "Experience",
	"Education", "Keywords Found", "Total Keywords", "Processing Seconds", "Recommendations",
}

// ExportScores writes one row per scored document, plus one row for every
// record without scores, into an xlsx workbook.
func ExportScores(records []models.ResumeRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(exportSheet, cell, header)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#1E3A5F"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	endCell, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	f.SetCellStyle(exportSheet, "A1", endCell, headerStyle)

	row := 2
	for i := range records {
		rec := &records[i]

		var seconds any
		if d, ok := rec.ProcessingDuration(); ok {
			seconds = d.Seconds()
		}

		if rec.ProcessingStatus != models.StatusCompleted || len(rec.Scores) == 0 {
			writeRow(f, row, []any{rec.Filename, "", string(rec.ProcessingStatus), rec.ParseTier,
				nil, nil, nil, nil, nil, nil, seconds, rec.ErrorMessage})
			row++
			continue
		}

		docs := make([]string, 0, len(rec.Scores))
		for name := range rec.Scores {
			docs = append(docs, name)
		}
		sort.Strings(docs)

		for _, doc := range docs {
			s := rec.Scores[doc]
			writeRow(f, row, []any{rec.Filename, doc, string(rec.ProcessingStatus), rec.ParseTier,
				s.OverallScore, s.SkillsMatch, s.ExperienceMatch, s.EducationMatch,
				s.KeywordsFound, s.TotalKeywords, seconds, rec.Recommendations})
			row++
		}
	}

	for i := range exportHeaders {
		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(exportSheet, colName, colName, 18)
	}
	f.SetColWidth(exportSheet, "L", "L", 80)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, row int, values []any) {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		f.SetCellValue(exportSheet, cell, v)
	}
}
