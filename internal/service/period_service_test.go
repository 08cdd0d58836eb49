package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/internship-api/internal/dto"
	"github.com/noah-isme/internship-api/internal/models"
	appErrors "github.com/noah-isme/internship-api/pkg/errors"
)

type cacheRepoStub struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.entries, key)
		}
	}
	return nil
}

func validPeriodRequest() dto.PeriodRequest {
	return dto.PeriodRequest{
		Semester:             "Genap",
		AcademicYear:         "2025/2026",
		RegistrationStart:    "2026-02-01",
		RegistrationEnd:      "2026-02-07",
		LecturerSelectionEnd: "2026-02-14",
		InternshipStart:      "2026-03-02",
		SearchDeadline:       "2026-03-16",
		InternshipEnd:        "2026-06-01",
		TargetDepartments:    []string{" Informatics ", "informatics", ""},
	}
}

func newTestPeriodService(store *memStore, cache *CacheService) *PeriodService {
	return NewPeriodService(periodStub{store}, studentStub{store}, retakeStub{store}, cache, auditStub{store}, nil, nil, time.Minute)
}

func TestValidatePeriodDates(t *testing.T) {
	period := fallPeriod()
	require.NoError(t, ValidatePeriodDates(period))

	period.LecturerSelectionEnd = period.RegistrationEnd
	require.NoError(t, ValidatePeriodDates(period), "equal boundaries are allowed")

	period.SearchDeadline = period.InternshipEnd.AddDate(0, 0, 1)
	err := ValidatePeriodDates(period)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
	assert.Equal(t, "search_deadline <= internship_end", appErrors.FromError(err).Details["rule"])
}

func TestPeriodCreateNormalisesTargets(t *testing.T) {
	store := newMemStore()
	svc := newTestPeriodService(store, nil)

	period, err := svc.Create(context.Background(), validPeriodRequest(), adminActor)
	require.NoError(t, err)
	assert.False(t, period.IsActive)
	assert.Equal(t, []string{"Informatics"}, []string(period.TargetDepartments))
	assert.Empty(t, period.TargetCohorts)

	_, err = svc.Create(context.Background(), validPeriodRequest(), adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateEntity))
}

func TestPeriodCreateRejectsInvalidPayload(t *testing.T) {
	store := newMemStore()
	svc := newTestPeriodService(store, nil)

	req := validPeriodRequest()
	req.RegistrationEnd = "07/02/2026"
	_, err := svc.Create(context.Background(), req, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	req = validPeriodRequest()
	req.RegistrationEnd = "2026-02-20"
	_, err = svc.Create(context.Background(), req, adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	_, err = svc.Create(context.Background(), validPeriodRequest(), studentActor("student-1"))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
	assert.Empty(t, store.periods)
}

func TestPeriodSetActiveKeepsSingleActiveAndInvalidatesCache(t *testing.T) {
	store := newMemStore()
	store.addPeriod(fallPeriod())
	second := fallPeriod()
	second.ID = "period-2"
	second.IsActive = false
	store.addPeriod(second)

	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, time.Minute, nil, true)
	svc := newTestPeriodService(store, cache)
	ctx := context.Background()

	active, err := svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "period-1", active.ID)
	assert.Contains(t, repo.entries, activePeriodCacheKey)

	_, err = svc.SetActive(ctx, "period-2", adminActor)
	require.NoError(t, err)
	assert.NotContains(t, repo.entries, activePeriodCacheKey)

	active, err = svc.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "period-2", active.ID)
	assert.False(t, store.periods["period-1"].IsActive)
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionPeriodActivate, store.audits[0].Action)
}

func TestPeriodVisibleAppliesEligibility(t *testing.T) {
	store := newMemStore()
	period := fallPeriod()
	period.TargetCohorts = []string{"2022"}
	store.addPeriod(period)
	store.addStudent(&models.Student{ID: "student-1", Department: strPtr("Informatics"), CohortYear: strPtr("2022")})
	store.addStudent(&models.Student{ID: "student-2", Department: strPtr("Informatics"), CohortYear: strPtr("2020")})
	svc := newTestPeriodService(store, nil)
	ctx := context.Background()

	visible, err := svc.Visible(ctx, studentActor("student-1"))
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	visible, err = svc.Visible(ctx, studentActor("student-2"))
	require.NoError(t, err)
	assert.Empty(t, visible)

	store.periods["period-1"].AllowRetake = true
	reviewedAt := mustDate("2025-08-01")
	store.retakes["r-1"] = &models.RetakeRequest{ID: "r-1", StudentID: "student-2", Status: models.RetakeApproved, ReviewedAt: &reviewedAt}
	visible, err = svc.Visible(ctx, studentActor("student-2"))
	require.NoError(t, err)
	assert.Len(t, visible, 1)
}

func TestPeriodDeleteRefusesWhenRegistrationsExist(t *testing.T) {
	store := newMemStore()
	store.addPeriod(fallPeriod())
	store.addRegistration(&models.Registration{ID: "reg-1", StudentID: "student-1", PeriodID: "period-1"})
	svc := newTestPeriodService(store, nil)

	err := svc.Delete(context.Background(), "period-1", adminActor)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict))

	delete(store.regs, "reg-1")
	require.NoError(t, svc.Delete(context.Background(), "period-1", adminActor))
	assert.Empty(t, store.periods)
}

func TestCacheServiceDisabledIsPermanentMiss(t *testing.T) {
	repo := newCacheRepoStub()
	cache := NewCacheService(repo, nil, 0, nil, false)
	require.NoError(t, cache.Set(context.Background(), "k", "v", 0))

	var out string
	hit, err := cache.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, repo.gets)

	var nilCache *CacheService
	hit, err = nilCache.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}
