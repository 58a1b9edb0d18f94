package services

import (
	"bytes"
	"testing"

	"uxcellence/models"
)

func exportState() *models.State {
	qid := "q1"
	marks := 88
	return &models.State{
		CurrentRound: 1,
		Rounds:       testRounds(),
		Teams: []models.Team{
			{ID: "t1", Name: "Pixel, Inc", Round: 1, HasSpun: true, AssignedQuestionID: &qid, Marks: &marks, Reason: "clean flow"},
			{ID: "t2", Name: "Grid Lords", Round: 1},
			{ID: "t3", Name: "Elsewhere", Round: 2},
		},
		Questions: []models.Question{
			{ID: "q1", Round: 1, Text: "Redesign the checkout", IsLocked: true},
		},
	}
}

func TestExportRoundCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportRound(&buf, exportState(), 1, FormatCSV); err != nil {
		t.Fatalf("export: %v", err)
	}

	expected := "#,Team Name,Question,Marks,Reason\n" +
		"1,\"Pixel, Inc\",Redesign the checkout,88,clean flow\n" +
		"2,Grid Lords,Not assigned,N/A,-\n"
	if buf.String() != expected {
		t.Fatalf("expected %q, got %q", expected, buf.String())
	}
}

func TestExportRoundTSV(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportRound(&buf, exportState(), 2, FormatTSV); err != nil {
		t.Fatalf("export: %v", err)
	}

	expected := "#\tTeam Name\tQuestion\tMarks\tReason\n" +
		"1\tElsewhere\tNot assigned\tN/A\t-\n"
	if buf.String() != expected {
		t.Fatalf("expected %q, got %q", expected, buf.String())
	}
	if ExportContentType(FormatTSV) != "text/tab-separated-values" {
		t.Fatalf("unexpected content type %q", ExportContentType(FormatTSV))
	}
}

func TestExportRoundPDF(t *testing.T) {
	state := exportState()
	long := "Rebuild the onboarding flow for a banking app so that first-time users can open an account in under two minutes on a small phone screen"
	state.Questions[0].Text = long

	var buf bytes.Buffer
	if err := ExportRound(&buf, state, 1, FormatPDF); err != nil {
		t.Fatalf("export: %v", err)
	}
	out := buf.Bytes()
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("expected a PDF header, got %q", out[:min(len(out), 16)])
	}
	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Fatal("expected a complete PDF document")
	}
	if ExportContentType(FormatPDF) != "application/pdf" {
		t.Fatalf("unexpected content type %q", ExportContentType(FormatPDF))
	}
}

func TestExportRowsDefaults(t *testing.T) {
	rows := exportRows(exportState(), 1)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	expected := []string{"2", "Grid Lords", "Not assigned", "N/A", "-"}
	for i, cell := range expected {
		if rows[1][i] != cell {
			t.Fatalf("expected %q in column %d, got %q", cell, i, rows[1][i])
		}
	}
	if title := roundTitle(exportState(), 1); title != "Round 1: Style Battle" {
		t.Fatalf("unexpected title %q", title)
	}
}

func TestExportRoundRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := ExportRound(&buf, exportState(), 1, "xlsx")
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatal("expected nothing written for an unknown format")
	}
}
