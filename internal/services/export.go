package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/cto-screener/internal/models"
	"alfredoptarigan/cto-screener/internal/repositories"
)

type ExportFormat string

const (
	ExportCSV  ExportFormat = "csv"
	ExportXLSX ExportFormat = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

var exportHeaders = []string{
	"Candidate Name",
	"LinkedIn URL",
	"Current Title",
	"Current Company",
	"Location",
	"Decision",
	"Score",
	"Reasoning",
	"English",
	"Native Language",
	"Technical Depth",
	"Leadership",
	"Cultural Fit",
	"Customer Facing",
	"Hands On",
	"Recommendation",
}

type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a session's evaluations as a downloadable sheet,
// highest score first.
type ExportService interface {
	Export(ctx context.Context, sessionID uuid.UUID, format ExportFormat) (*ExportFile, error)
}

type exportService struct {
	sessions   repositories.SessionRepository
	candidates repositories.CandidateRepository
}

func NewExportService(sessions repositories.SessionRepository, candidates repositories.CandidateRepository) ExportService {
	return &exportService{sessions: sessions, candidates: candidates}
}

func (s *exportService) Export(ctx context.Context, sessionID uuid.UUID, format ExportFormat) (*ExportFile, error) {
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportXLSX {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}

	evaluations, err := s.candidates.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(evaluations))
	for i := range evaluations {
		rows = append(rows, exportRow(&evaluations[i]))
	}

	name := fmt.Sprintf("screening-results-%s.%s", sessionID, format)
	if format == ExportXLSX {
		data, err := renderXLSX(rows)
		if err != nil {
			return nil, err
		}
		return &ExportFile{
			Filename:    name,
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}, nil
	}

	data, err := renderCSV(rows)
	if err != nil {
		return nil, err
	}
	return &ExportFile{Filename: name, ContentType: "text/csv", Data: data}, nil
}

// exportRow flattens one evaluation. Undecoded or missing parts render as
// empty cells.
func exportRow(e *models.CandidateEvaluation) []string {
	row := []string{
		e.FullName,
		e.LinkedinURL,
		e.CurrentTitle,
		e.CurrentCompany,
		e.Location,
		string(e.DecisionResult),
		"",
		"", "", "", "", "", "", "", "", "",
	}
	if e.OverallScore != nil {
		row[6] = strconv.FormatFloat(*e.OverallScore, 'f', -1, 64)
	}

	if lang, err := e.Language(); err == nil && lang != nil {
		row[8] = englishCell(lang)
		row[9] = lang.NativeLanguage
	}

	if d, err := e.Decision(); err == nil && d != nil {
		a := d.DetailedAnalysis
		row[7] = d.Reasoning
		row[10] = score(a.TechnicalDepth)
		row[11] = score(a.LeadershipCapability)
		row[12] = score(a.CulturalFit)
		row[13] = score(a.CustomerFacing)
		row[14] = score(a.HandsOnCurrent)
		row[15] = string(d.InterviewRecommendation)
	}
	return row
}

func englishCell(l *models.LanguageCheck) string {
	if !l.HasEnglishProficiency {
		return "No"
	}
	if l.EnglishLevel != "" {
		return l.EnglishLevel
	}
	return "Yes"
}

func score(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func renderCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeaders); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

func renderXLSX(rows [][]string) ([]byte, error) {
	const sheet = "Screening Results"

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	f.SetCellStyle(sheet, "A1", last, headerStyle)

	for r, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
			// numeric columns stay numeric so the sheet can sort them
			if n, err := strconv.ParseFloat(v, 64); err == nil && isScoreColumn(col) {
				f.SetCellValue(sheet, cell, n)
				continue
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "A", 25)
	f.SetColWidth(sheet, "B", "B", 45)
	f.SetColWidth(sheet, "H", "H", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func isScoreColumn(col int) bool {
	return col == 6 || (col >= 10 && col <= 14)
}
