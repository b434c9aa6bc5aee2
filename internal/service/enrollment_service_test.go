package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/fieldcrypt"
)

type stubEnrollmentRepo struct {
	records map[string]*models.Enrollment

	created        *models.Enrollment
	patches        map[string]map[string]interface{}
	batchIDs       []string
	batchStatus    models.EnrollmentStatus
	deletedIDs     []string
	archivedID     string
	archivedDelete bool
}

func newStubEnrollmentRepo() *stubEnrollmentRepo {
	return &stubEnrollmentRepo{
		records: make(map[string]*models.Enrollment),
		patches: make(map[string]map[string]interface{}),
	}
}

func (r *stubEnrollmentRepo) Create(_ context.Context, e *models.Enrollment) error {
	if e.ID == "" {
		e.ID = "generated-id"
	}
	copied := *e
	r.created = &copied
	r.records[e.ID] = &copied
	return nil
}

func (r *stubEnrollmentRepo) GetByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := r.records[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *stubEnrollmentRepo) GetByUser(_ context.Context, userID string) ([]*models.Enrollment, error) {
	var out []*models.Enrollment
	for _, e := range r.records {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *stubEnrollmentRepo) List(context.Context, models.EnrollmentFilter, int) ([]*models.Enrollment, error) {
	var out []*models.Enrollment
	for _, e := range r.records {
		out = append(out, e)
	}
	return out, nil
}

func (r *stubEnrollmentRepo) Paginate(context.Context, models.EnrollmentFilter, models.PageRequest) ([]*models.Enrollment, models.PageInfo, int, error) {
	var out []*models.Enrollment
	for _, e := range r.records {
		out = append(out, e)
	}
	return out, models.PageInfo{PageSize: len(out)}, len(out), nil
}

func (r *stubEnrollmentRepo) Search(context.Context, string, int) ([]*models.Enrollment, error) {
	return nil, nil
}

func (r *stubEnrollmentRepo) Update(_ context.Context, id string, patch map[string]interface{}) error {
	r.patches[id] = patch
	return nil
}

func (r *stubEnrollmentRepo) Delete(_ context.Context, id string) error {
	r.deletedIDs = append(r.deletedIDs, id)
	return nil
}

func (r *stubEnrollmentRepo) BatchUpdateStatus(_ context.Context, ids []string, status models.EnrollmentStatus) error {
	r.batchIDs = ids
	r.batchStatus = status
	return nil
}

func (r *stubEnrollmentRepo) BatchDelete(_ context.Context, ids []string) error {
	r.deletedIDs = append(r.deletedIDs, ids...)
	return nil
}

func (r *stubEnrollmentRepo) Archive(_ context.Context, id string, deleteOriginal bool) (string, error) {
	if _, ok := r.records[id]; !ok {
		return "", apperrors.ErrNotFound
	}
	r.archivedID = "archived-" + id
	r.archivedDelete = deleteOriginal
	return r.archivedID, nil
}

func (r *stubEnrollmentRepo) ListArchived(context.Context, string) ([]*models.Enrollment, error) {
	return nil, nil
}

func (r *stubEnrollmentRepo) Watch(models.EnrollmentFilter, func([]*models.Enrollment, error)) (func(), error) {
	return func() {}, nil
}

type stubSettings struct {
	settings models.EnrollmentSettings
	err      error
}

func (s *stubSettings) Get(context.Context) (models.EnrollmentSettings, error) {
	return s.settings, s.err
}

func newServiceUnderTest(repo *stubEnrollmentRepo, settings models.EnrollmentSettings) *EnrollmentService {
	crypt := fieldcrypt.New("a-very-long-secret-for-testing-purposes")
	return NewEnrollmentService(repo, &stubSettings{settings: settings}, crypt, zap.NewNop(), "2026-2027", false)
}

func openSettings() models.EnrollmentSettings {
	return models.DefaultEnrollmentSettings("2026-2027")
}

func TestSubmitRejectedWhenClosed(t *testing.T) {
	tests := []struct {
		name       string
		settings   models.EnrollmentSettings
		enrollment *models.Enrollment
	}{
		{"globally closed", models.EnrollmentSettings{IsOpen: false, JuniorHighOpen: true, SeniorHighOpen: true}, validJunior()},
		{"junior gate closed", models.EnrollmentSettings{IsOpen: true, SeniorHighOpen: true}, validJunior()},
		{"senior gate closed", models.EnrollmentSettings{IsOpen: true, JuniorHighOpen: true}, validSenior()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newStubEnrollmentRepo()
			svc := newServiceUnderTest(repo, tt.settings)

			_, err := svc.Submit(context.Background(), models.Principal{UID: "u1"}, tt.enrollment)
			assert.ErrorIs(t, err, apperrors.ErrEnrollmentClosed)
			assert.Nil(t, repo.created)
		})
	}
}

func TestSubmitEncryptsAtRest(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	principal := models.Principal{UID: "u1", Email: "student@example.com"}
	view, err := svc.Submit(context.Background(), principal, validJunior())
	require.NoError(t, err)

	// The submitter gets the masked summary, never plaintext or ciphertext.
	assert.Equal(t, "J*** D*** C***", view.FullName)
	assert.Empty(t, view.LRN)
	assert.Empty(t, view.ContactNumber)
	assert.False(t, view.Encrypted)
	assert.Empty(t, view.IV)
	assert.Equal(t, models.EnrollmentStatusSubmitted, view.Status)
	assert.Equal(t, "u1", view.UserID)
	assert.Equal(t, "student@example.com", view.UserEmail)
	assert.Equal(t, "2026-2027", view.SchoolYear)

	// The stored record carries only ciphertext.
	require.NotNil(t, repo.created)
	assert.True(t, repo.created.Encrypted)
	assert.NotEqual(t, "Juan Dela Cruz", repo.created.FullName)
	assert.Len(t, repo.created.IV, 32)
	assert.NotEmpty(t, repo.created.SearchHash)
	assert.NotEmpty(t, repo.created.EncryptedAt)
}

func TestSubmitEncryptsAllProtectedFields(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	form := validSenior()
	form.FatherOccupation = "Fisherman"
	_, err := svc.Submit(context.Background(), models.Principal{UID: "u1"}, form)
	require.NoError(t, err)

	stored := repo.created
	require.NotNil(t, stored)
	require.True(t, stored.Encrypted)
	plaintexts := map[string]string{
		"lrn":              "123456789012",
		"fullName":         "Juan Dela Cruz",
		"birthPlace":       "Naga City",
		"guardianRelation": "Mother",
		"fatherName":       "Jose Dela Cruz",
		"motherName":       "Maria Dela Cruz",
		"fatherOccupation": "Fisherman",
		"lastSchool":       "Naga Central School",
	}
	ciphertexts := map[string]string{
		"lrn":              stored.LRN,
		"fullName":         stored.FullName,
		"birthPlace":       stored.BirthPlace,
		"guardianRelation": stored.GuardianRelation,
		"fatherName":       stored.FatherName,
		"motherName":       stored.MotherName,
		"fatherOccupation": stored.FatherOccupation,
		"lastSchool":       stored.LastSchool,
	}
	for field, plain := range plaintexts {
		assert.NotEmpty(t, ciphertexts[field], field)
		assert.NotEqual(t, plain, ciphertexts[field], field)
	}
	// Fields the form never carried stay empty instead of gaining ciphertext.
	assert.Empty(t, stored.MotherOccupation)

	// An admin read recovers every plaintext.
	admin, err := svc.Get(context.Background(), &models.User{ID: "registrar", Role: models.RoleAdmin}, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jose Dela Cruz", admin.FatherName)
	assert.Equal(t, "Naga City", admin.BirthPlace)
	assert.Equal(t, "Naga Central School", admin.LastSchool)
	assert.Equal(t, "Mother", admin.GuardianRelation)
	assert.Equal(t, "Fisherman", admin.FatherOccupation)
	assert.Empty(t, admin.MotherOccupation)
}

func TestSubmitCollectsValidationFailures(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	bad := validJunior()
	bad.LRN = "short"
	bad.Age = 2

	_, err := svc.Submit(context.Background(), models.Principal{UID: "u1"}, bad)
	var fields apperrors.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "lrn")
	assert.Contains(t, fields, "age")
	assert.Nil(t, repo.created)
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	_, err := svc.Submit(context.Background(), models.Principal{UID: "owner"}, validJunior())
	require.NoError(t, err)
	id := repo.created.ID

	_, err = svc.Get(context.Background(), &models.User{ID: "stranger", Role: models.RoleStudent}, id)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	// The owner gets the masked summary; decryption is reserved for admins.
	own, err := svc.Get(context.Background(), &models.User{ID: "owner", Role: models.RoleStudent}, id)
	require.NoError(t, err)
	assert.Equal(t, "J*** D*** C***", own.FullName)
	assert.Empty(t, own.LRN)
	assert.Empty(t, own.BirthDate)
	assert.Empty(t, own.ContactNumber)
	assert.Empty(t, own.Address)
	assert.Equal(t, models.EnrollmentStatusSubmitted, own.Status)

	admin, err := svc.Get(context.Background(), &models.User{ID: "registrar", Role: models.RoleAdmin}, id)
	require.NoError(t, err)
	assert.Equal(t, "Juan Dela Cruz", admin.FullName)
	assert.Equal(t, "123456789012", admin.LRN)
}

func TestListMineReturnsMaskedSummaries(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	_, err := svc.Submit(context.Background(), models.Principal{UID: "owner"}, validJunior())
	require.NoError(t, err)

	mine, err := svc.ListMine(context.Background(), "owner")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "J*** D*** C***", mine[0].FullName)
	assert.Empty(t, mine[0].LRN)
	assert.Empty(t, mine[0].GuardianName)
	assert.Empty(t, mine[0].SearchHash)
	assert.False(t, mine[0].Encrypted)
}

func TestUpdateBlockedAfterReview(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	_, err := svc.Submit(context.Background(), models.Principal{UID: "owner"}, validJunior())
	require.NoError(t, err)
	id := repo.created.ID
	repo.records[id].Status = models.EnrollmentStatusVerified

	owner := &models.User{ID: "owner", Role: models.RoleStudent}
	_, err = svc.Update(context.Background(), owner, id, validJunior())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConflict.Code, apperrors.FromError(err).Code)

	// Admins may still amend the record.
	admin := &models.User{ID: "registrar", Role: models.RoleAdmin}
	_, err = svc.Update(context.Background(), admin, id, validJunior())
	require.NoError(t, err)
	assert.Contains(t, repo.patches, id)
}

func TestUpdatePreservesIdentityFields(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	_, err := svc.Submit(context.Background(), models.Principal{UID: "owner", Email: "owner@example.com"}, validJunior())
	require.NoError(t, err)
	id := repo.created.ID

	amended := validJunior()
	amended.UserID = "someone-else"
	amended.Status = models.EnrollmentStatusPrinted
	amended.FullName = "Juan Miguel Dela Cruz"

	owner := &models.User{ID: "owner", Role: models.RoleStudent}
	view, err := svc.Update(context.Background(), owner, id, amended)
	require.NoError(t, err)
	assert.Equal(t, "owner", view.UserID)
	assert.Equal(t, models.EnrollmentStatusSubmitted, view.Status)
	// Owners see the masked summary of their amendment.
	assert.Equal(t, "J*** M***** D*** C***", view.FullName)

	patch := repo.patches[id]
	require.NotNil(t, patch)
	assert.NotContains(t, patch, "id")
}

func TestUpdateStatusTransitions(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())
	repo.records["e1"] = &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusPrinted}

	err := svc.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusVerified, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	err = svc.UpdateStatus(context.Background(), "e1", "mailed", "")
	assert.Equal(t, apperrors.ErrValidation.Code, apperrors.FromError(err).Code)

	repo.records["e2"] = &models.Enrollment{ID: "e2", Status: models.EnrollmentStatusSubmitted}
	err = svc.UpdateStatus(context.Background(), "e2", models.EnrollmentStatusVerified, "")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusVerified, repo.patches["e2"]["status"])
}

func TestUpdateStatusRejectionNeedsReason(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())
	repo.records["e1"] = &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusSubmitted}

	err := svc.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusRejected, "  ")
	var fields apperrors.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "rejectionReason")

	err = svc.UpdateStatus(context.Background(), "e1", models.EnrollmentStatusRejected, "missing PSA copy")
	require.NoError(t, err)
	assert.Equal(t, "missing PSA copy", repo.patches["e1"]["rejectionReason"])
}

func TestBatchUpdateStatusChecksEveryRecordFirst(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())
	repo.records["a"] = &models.Enrollment{ID: "a", Status: models.EnrollmentStatusSubmitted}
	repo.records["b"] = &models.Enrollment{ID: "b", Status: models.EnrollmentStatusPrinted}

	err := svc.BatchUpdateStatus(context.Background(), []string{"a", "b"}, models.EnrollmentStatusVerified)
	require.Error(t, err)
	// Nothing was written once any record failed the check.
	assert.Nil(t, repo.batchIDs)

	repo.records["b"].Status = models.EnrollmentStatusSubmitted
	err = svc.BatchUpdateStatus(context.Background(), []string{"a", "b"}, models.EnrollmentStatusVerified)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, repo.batchIDs)
	assert.Equal(t, models.EnrollmentStatusVerified, repo.batchStatus)
}

func TestBatchUpdateStatusDisallowsRejection(t *testing.T) {
	repo := newStubEnrollmentRepo()
	svc := newServiceUnderTest(repo, openSettings())

	err := svc.BatchUpdateStatus(context.Background(), []string{"a"}, models.EnrollmentStatusRejected)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrValidation.Code, apperrors.FromError(err).Code)
}

func TestArchiveUsesConfiguredMode(t *testing.T) {
	repo := newStubEnrollmentRepo()
	repo.records["e1"] = &models.Enrollment{ID: "e1", Status: models.EnrollmentStatusPrinted}
	crypt := fieldcrypt.New("a-very-long-secret-for-testing-purposes")
	svc := NewEnrollmentService(repo, &stubSettings{settings: openSettings()}, crypt, zap.NewNop(), "2026-2027", true)

	archivedID, err := svc.Archive(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "archived-e1", archivedID)
	assert.True(t, repo.archivedDelete)

	_, err = svc.Archive(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrNotFound.Code, apperrors.FromError(err).Code)
}
