package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

func seedRosterFixture() *memStore {
	store := newMemStore()
	store.addPeriod(fallPeriod())
	store.addStudent(&models.Student{ID: "student-1", StudentNumber: "2201", FullName: "Ayu"})
	store.addStudent(&models.Student{ID: "student-2", StudentNumber: "2202", FullName: "Bima"})
	store.addRegistration(&models.Registration{ID: "reg-1", StudentID: "student-1", PeriodID: "period-1", Status: models.RegistrationInProgress, AssignedLecturerID: strPtr("lecturer-1"), CompanyName: "PT Contoh"})
	store.addRegistration(&models.Registration{ID: "reg-2", StudentID: "student-2", PeriodID: "period-1", Status: models.RegistrationSearching, AssignedLecturerID: strPtr("lecturer-2")})
	return store
}

func TestRosterCSVForAdmin(t *testing.T) {
	store := seedRosterFixture()
	svc := NewExportService(registrationStub{store}, periodStub{store}, nil, nil, nil, nil)

	file, err := svc.Roster(context.Background(), "period-1", ExportCSV, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "roster-2025-2026-ganjil.csv", file.Filename)
	body := string(file.Content)
	assert.Contains(t, body, "Student Number")
	assert.Contains(t, body, "PT Contoh")
	assert.Contains(t, body, "0/13")
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(body), "\n")+1)
}

func TestRosterScopesLecturer(t *testing.T) {
	store := seedRosterFixture()
	svc := NewExportService(registrationStub{store}, periodStub{store}, nil, nil, nil, nil)

	file, err := svc.Roster(context.Background(), "period-1", "CSV", lecturerActor("lecturer-2"))
	require.NoError(t, err)
	body := string(file.Content)
	assert.Contains(t, body, "Bima")
	assert.NotContains(t, body, "Ayu")

	_, err = svc.Roster(context.Background(), "period-1", ExportCSV, studentActor("student-1"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestRosterBinaryFormats(t *testing.T) {
	store := seedRosterFixture()
	svc := NewExportService(registrationStub{store}, periodStub{store}, nil, nil, nil, nil)

	pdf, err := svc.Roster(context.Background(), "period-1", ExportPDF, adminActor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf.Content), "%PDF"))

	xlsx, err := svc.Roster(context.Background(), "period-1", ExportXLSX, adminActor)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(xlsx.Content), "PK"))
	assert.Equal(t, "roster-2025-2026-ganjil.xlsx", xlsx.Filename)

	_, err = svc.Roster(context.Background(), "period-1", "docx", adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
