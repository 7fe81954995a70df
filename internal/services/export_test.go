package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"alfredoptarigan/cto-screener/internal/models"
)

func seedEvaluatedSession(t *testing.T) (*memStore, uuid.UUID) {
	t.Helper()

	store := newMemStore()
	second := germanProfile()
	second["linkedinUrl"] = "https://www.linkedin.com/in/jonas-weber"
	second["fullName"] = "Jonas Weber"
	sessionID, ids := store.seedSession(models.ScreeningConfig{TargetRole: models.RoleCTO}, second, germanProfile())

	svc := newTestScreening(store, &scriptedGemini{primary: []string{passJSON}})
	if _, err := svc.ProcessCandidate(context.Background(), ids[1], sessionID); err != nil {
		t.Fatalf("ProcessCandidate() error = %v", err)
	}
	return store, sessionID
}

func TestExportCSV(t *testing.T) {
	store, sessionID := seedEvaluatedSession(t)
	svc := NewExportService(memSessionRepo{s: store}, memCandidateRepo{s: store})

	file, err := svc.Export(context.Background(), sessionID, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if file.ContentType != "text/csv" || !strings.HasSuffix(file.Filename, ".csv") {
		t.Errorf("file = %s (%s)", file.Filename, file.ContentType)
	}

	rows, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	if err != nil {
		t.Fatalf("csv is unreadable: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header plus 2", len(rows))
	}
	if len(rows[0]) != len(exportHeaders) || rows[0][0] != "Candidate Name" {
		t.Errorf("header = %v", rows[0])
	}

	evaluated := rows[1]
	if evaluated[0] != "Anna Schmidt" || evaluated[5] != "PASS" || evaluated[6] != "84" {
		t.Errorf("evaluated row = %v, want the scored candidate first", evaluated)
	}
	if evaluated[10] != "85" || evaluated[15] != "Recommended" {
		t.Errorf("analysis columns = %v", evaluated[10:])
	}
	if evaluated[8] == "" || evaluated[8] == "No" {
		t.Errorf("english column = %q, want proficiency", evaluated[8])
	}

	pending := rows[2]
	if pending[0] != "Jonas Weber" || pending[5] != "PENDING" || pending[6] != "" || pending[15] != "" {
		t.Errorf("pending row = %v", pending)
	}
}

func TestExportXLSX(t *testing.T) {
	store, sessionID := seedEvaluatedSession(t)
	svc := NewExportService(memSessionRepo{s: store}, memCandidateRepo{s: store})

	file, err := svc.Export(context.Background(), sessionID, ExportXLSX)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasSuffix(file.Filename, ".xlsx") {
		t.Errorf("filename = %s", file.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	if err != nil {
		t.Fatalf("xlsx is unreadable: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Screening Results")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "Candidate Name" || rows[1][0] != "Anna Schmidt" || rows[1][6] != "84" {
		t.Errorf("rows = %v", rows[:2])
	}
}

func TestExportErrors(t *testing.T) {
	store, sessionID := seedEvaluatedSession(t)
	svc := NewExportService(memSessionRepo{s: store}, memCandidateRepo{s: store})

	if _, err := svc.Export(context.Background(), sessionID, "pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("pdf export error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := svc.Export(context.Background(), uuid.New(), ExportCSV); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session error = %v, want ErrSessionNotFound", err)
	}
}
