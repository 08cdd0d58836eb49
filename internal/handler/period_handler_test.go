package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

type periodServiceMock struct {
	lastFilter models.PeriodFilter
	lastReq    dto.PeriodRequest
	lastID     string
	deleteErr  error
	createErr  error
}

func (m *periodServiceMock) List(ctx context.Context, filter models.PeriodFilter) ([]models.Period, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Period{{ID: "period-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *periodServiceMock) Get(ctx context.Context, id string) (*models.Period, error) {
	m.lastID = id
	return &models.Period{ID: id}, nil
}

func (m *periodServiceMock) Active(ctx context.Context) (*models.Period, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no active period")
}

func (m *periodServiceMock) Visible(ctx context.Context, actor *models.Actor) ([]models.Period, error) {
	return []models.Period{{ID: "period-1", IsActive: true}}, nil
}

func (m *periodServiceMock) Create(ctx context.Context, req dto.PeriodRequest, actor *models.Actor) (*models.Period, error) {
	m.lastReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.Period{ID: "period-9", Semester: req.Semester}, nil
}

func (m *periodServiceMock) Update(ctx context.Context, id string, req dto.PeriodRequest, actor *models.Actor) (*models.Period, error) {
	m.lastID = id
	m.lastReq = req
	return &models.Period{ID: id}, nil
}

func (m *periodServiceMock) SetActive(ctx context.Context, id string, actor *models.Actor) (*models.Period, error) {
	m.lastID = id
	return &models.Period{ID: id, IsActive: true}, nil
}

func (m *periodServiceMock) Delete(ctx context.Context, id string, actor *models.Actor) error {
	m.lastID = id
	return m.deleteErr
}

func TestPeriodHandlerListFilters(t *testing.T) {
	svc := &periodServiceMock{}
	h := NewPeriodHandler(svc)

	c, w := newTestContext(http.MethodGet, "/periods?academic_year=2025/2026&is_active=true&page=3", nil, adminClaims)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025/2026", svc.lastFilter.AcademicYear)
	require.NotNil(t, svc.lastFilter.IsActive)
	assert.True(t, *svc.lastFilter.IsActive)
	assert.Equal(t, 3, svc.lastFilter.Page)
	assert.Equal(t, 1, decodeEnvelope(t, w).Pagination.TotalCount)

	c, _ = newTestContext(http.MethodGet, "/periods?is_active=maybe", nil, adminClaims)
	h.List(c)
	assert.Nil(t, svc.lastFilter.IsActive)
}

func TestPeriodHandlerCreate(t *testing.T) {
	svc := &periodServiceMock{}
	h := NewPeriodHandler(svc)

	c, w := newTestContext(http.MethodPost, "/periods", jsonBody(t, dto.PeriodRequest{Semester: "Genap", AcademicYear: "2025/2026"}), adminClaims)
	c.Request.Header.Set("Content-Type", "application/json")
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Genap", svc.lastReq.Semester)

	svc.createErr = appErrors.Clone(appErrors.ErrDuplicateEntity, "period already exists")
	c, w = newTestContext(http.MethodPost, "/periods", jsonBody(t, dto.PeriodRequest{Semester: "Genap"}), adminClaims)
	c.Request.Header.Set("Content-Type", "application/json")
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newTestContext(http.MethodPost, "/periods", bytes.NewBufferString(`[`), adminClaims)
	c.Request.Header.Set("Content-Type", "application/json")
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPeriodHandlerActivateAndDelete(t *testing.T) {
	svc := &periodServiceMock{}
	h := NewPeriodHandler(svc)

	c, w := newTestContext(http.MethodPost, "/periods/period-2/activate", nil, adminClaims)
	c.Params = append(c.Params, ginParam("id", "period-2"))
	h.Activate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "period-2", svc.lastID)

	c, w = newTestContext(http.MethodDelete, "/periods/period-2", nil, adminClaims)
	c.Params = append(c.Params, ginParam("id", "period-2"))
	h.Delete(c)
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc.deleteErr = appErrors.Clone(appErrors.ErrConflict, "period has registrations")
	c, w = newTestContext(http.MethodDelete, "/periods/period-2", nil, adminClaims)
	c.Params = append(c.Params, ginParam("id", "period-2"))
	h.Delete(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPeriodHandlerActiveNotFound(t *testing.T) {
	h := NewPeriodHandler(&periodServiceMock{})

	c, w := newTestContext(http.MethodGet, "/periods/active", nil, studentClaims)
	h.Active(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newTestContext(http.MethodGet, "/periods/visible", nil, studentClaims)
	h.Visible(c)
	assert.Equal(t, http.StatusOK, w.Code)
}
