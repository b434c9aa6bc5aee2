package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
	"github.com/snchs-registrar/enrollment-api/pkg/fieldcrypt"
)

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	GetByID(ctx context.Context, id string) (*models.Enrollment, error)
	GetByUser(ctx context.Context, userID string) ([]*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter, limit int) ([]*models.Enrollment, error)
	Paginate(ctx context.Context, filter models.EnrollmentFilter, page models.PageRequest) ([]*models.Enrollment, models.PageInfo, int, error)
	Search(ctx context.Context, term string, pageSize int) ([]*models.Enrollment, error)
	Update(ctx context.Context, id string, patch map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	BatchUpdateStatus(ctx context.Context, ids []string, status models.EnrollmentStatus) error
	BatchDelete(ctx context.Context, ids []string) error
	Archive(ctx context.Context, id string, deleteOriginal bool) (string, error)
	ListArchived(ctx context.Context, schoolYear string) ([]*models.Enrollment, error)
	Watch(filter models.EnrollmentFilter, fn func([]*models.Enrollment, error)) (func(), error)
}

type settingsReader interface {
	Get(ctx context.Context) (models.EnrollmentSettings, error)
}

// EnrollmentService owns the submission workflow: gating, validation, field
// encryption, lifecycle transitions and archival.
type EnrollmentService struct {
	repo           enrollmentRepository
	settings       settingsReader
	crypt          *fieldcrypt.Encryptor
	logger         *zap.Logger
	schoolYear     string
	deleteOriginal bool
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(repo enrollmentRepository, settings settingsReader, crypt *fieldcrypt.Encryptor, logger *zap.Logger, schoolYear string, deleteOriginal bool) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:           repo,
		settings:       settings,
		crypt:          crypt,
		logger:         logger,
		schoolYear:     schoolYear,
		deleteOriginal: deleteOriginal,
	}
}

// Submit validates and stores a new enrollment for the principal. Sensitive
// fields are encrypted before they reach the store.
func (s *EnrollmentService) Submit(ctx context.Context, principal models.Principal, enrollment *models.Enrollment) (*models.Enrollment, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load enrollment settings")
	}
	if !enrollmentOpen(settings, enrollment.Type) {
		return nil, apperrors.ErrEnrollmentClosed
	}

	if fields := validateEnrollment(enrollment); fields != nil {
		return nil, fields
	}

	enrollment.ID = ""
	enrollment.UserID = principal.UID
	enrollment.UserEmail = principal.Email
	enrollment.Status = models.EnrollmentStatusSubmitted
	enrollment.SchoolYear = settings.SchoolYear
	if enrollment.SchoolYear == "" {
		enrollment.SchoolYear = s.schoolYear
	}
	enrollment.AdminNotes = ""
	enrollment.RejectionReason = ""

	if err := s.encryptFields(enrollment); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to protect enrollment data")
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to save enrollment")
	}

	s.logger.Info("enrollment submitted",
		zap.String("id", enrollment.ID),
		zap.String("type", string(enrollment.Type)),
		zap.String("user_id", principal.UID))
	return s.summaryView(enrollment), nil
}

// Get returns one enrollment. Only the owner and admins may read it.
// Decryption is admin-only; the owner gets the masked summary.
func (s *EnrollmentService) Get(ctx context.Context, actor *models.User, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapReadErr(err, "enrollment not found")
	}
	if actor.Role == models.RoleAdmin {
		return s.decryptView(enrollment), nil
	}
	if enrollment.UserID != actor.ID {
		return nil, apperrors.ErrForbidden
	}
	return s.summaryView(enrollment), nil
}

// ListMine returns masked summaries of the principal's own submissions.
func (s *EnrollmentService) ListMine(ctx context.Context, uid string) ([]*models.Enrollment, error) {
	enrollments, err := s.repo.GetByUser(ctx, uid)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load enrollments")
	}
	return s.summaryAll(enrollments), nil
}

// AdminList returns one admin page, decrypted, with totals.
func (s *EnrollmentService) AdminList(ctx context.Context, filter models.EnrollmentFilter, page models.PageRequest) ([]*models.Enrollment, models.PageInfo, int, error) {
	if page.PageSize <= 0 {
		page.PageSize = 20
	}
	enrollments, info, total, err := s.repo.Paginate(ctx, filter, page)
	if err != nil {
		return nil, models.PageInfo{}, 0, apperrors.FromError(err)
	}
	return s.decryptAll(enrollments), info, total, nil
}

// Search finds recent enrollments matching the term, decrypted for the admin
// panel. Results are capped at pageSize after ranking.
func (s *EnrollmentService) Search(ctx context.Context, term string, pageSize int) ([]*models.Enrollment, error) {
	enrollments, err := s.repo.Search(ctx, term, pageSize)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "search failed")
	}
	return s.decryptAll(enrollments), nil
}

// Update lets the owner amend a still-submitted enrollment, or an admin amend
// any record. The merged result is re-validated and re-encrypted.
func (s *EnrollmentService) Update(ctx context.Context, actor *models.User, id string, updated *models.Enrollment) (*models.Enrollment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapReadErr(err, "enrollment not found")
	}
	if actor.Role != models.RoleAdmin {
		if current.UserID != actor.ID {
			return nil, apperrors.ErrForbidden
		}
		if current.Status != models.EnrollmentStatusSubmitted {
			return nil, apperrors.Clone(apperrors.ErrConflict, "enrollment can no longer be edited")
		}
	}

	merged := *updated
	merged.ID = current.ID
	merged.Type = current.Type
	merged.UserID = current.UserID
	merged.UserEmail = current.UserEmail
	merged.Status = current.Status
	merged.SubmittedAt = current.SubmittedAt
	merged.SchoolYear = current.SchoolYear
	if actor.Role != models.RoleAdmin {
		merged.AdminNotes = current.AdminNotes
		merged.RejectionReason = current.RejectionReason
	}

	if fields := validateEnrollment(&merged); fields != nil {
		return nil, fields
	}
	if err := s.encryptFields(&merged); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to protect enrollment data")
	}

	patch, err := enrollmentPatch(&merged)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update enrollment")
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update enrollment")
	}
	if actor.Role == models.RoleAdmin {
		return s.decryptView(&merged), nil
	}
	return s.summaryView(&merged), nil
}

// UpdateStatus moves one enrollment along the lifecycle. Rejection requires a
// reason; transitions never move backward.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, reason string) error {
	if !models.ValidStatus(status) {
		return apperrors.Clone(apperrors.ErrValidation, "unknown status")
	}
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return mapReadErr(err, "enrollment not found")
	}
	if !models.CanTransition(current.Status, status) {
		return apperrors.ErrInvalidTransition
	}
	patch := map[string]interface{}{"status": status}
	if status == models.EnrollmentStatusRejected {
		if strings.TrimSpace(reason) == "" {
			return apperrors.FieldErrors{"rejectionReason": "a rejection reason is required"}
		}
		patch["rejectionReason"] = reason
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to update status")
	}
	s.logger.Info("enrollment status changed",
		zap.String("id", id),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)))
	return nil
}

// BatchUpdateStatus applies one transition to many records atomically. Every
// record must allow the transition or nothing is written.
func (s *EnrollmentService) BatchUpdateStatus(ctx context.Context, ids []string, status models.EnrollmentStatus) error {
	if !models.ValidStatus(status) || status == models.EnrollmentStatusRejected {
		return apperrors.Clone(apperrors.ErrValidation, "status not allowed in batch updates")
	}
	if len(ids) == 0 {
		return apperrors.Clone(apperrors.ErrValidation, "no ids given")
	}
	for _, id := range ids {
		current, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return mapReadErr(err, "enrollment "+id+" not found")
		}
		if !models.CanTransition(current.Status, status) {
			return apperrors.Clone(apperrors.ErrInvalidTransition, "enrollment "+id+" cannot move to "+string(status))
		}
	}
	if err := s.repo.BatchUpdateStatus(ctx, ids, status); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "batch update failed")
	}
	return nil
}

// BatchDelete removes many records atomically.
func (s *EnrollmentService) BatchDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return apperrors.Clone(apperrors.ErrValidation, "no ids given")
	}
	if err := s.repo.BatchDelete(ctx, ids); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "batch delete failed")
	}
	return nil
}

// Delete removes one record.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return mapReadErr(err, "enrollment not found")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to delete enrollment")
	}
	return nil
}

// Archive copies the record into the archive collection and marks or removes
// the original depending on configuration. Returns the archived copy's id.
func (s *EnrollmentService) Archive(ctx context.Context, id string) (string, error) {
	archivedID, err := s.repo.Archive(ctx, id, s.deleteOriginal)
	if err != nil {
		return "", mapReadErr(err, "enrollment not found")
	}
	s.logger.Info("enrollment archived",
		zap.String("id", id),
		zap.String("archived_id", archivedID),
		zap.Bool("original_deleted", s.deleteOriginal))
	return archivedID, nil
}

// ListArchived returns archived records for a school year, decrypted.
func (s *EnrollmentService) ListArchived(ctx context.Context, schoolYear string) ([]*models.Enrollment, error) {
	enrollments, err := s.repo.ListArchived(ctx, schoolYear)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to load archive")
	}
	return s.decryptAll(enrollments), nil
}

// Watch streams decrypted filtered lists until the disposer is called.
func (s *EnrollmentService) Watch(filter models.EnrollmentFilter, fn func([]*models.Enrollment, error)) (func(), error) {
	return s.repo.Watch(filter, func(enrollments []*models.Enrollment, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(s.decryptAll(enrollments), nil)
	})
}

// protectedFields maps every personally identifying field to its value. The
// same set drives encryption, decryption and the non-admin summary.
func protectedFields(e *models.Enrollment) map[string]string {
	return map[string]string{
		"lrn":              e.LRN,
		"fullName":         e.FullName,
		"birthDate":        e.BirthDate,
		"birthPlace":       e.BirthPlace,
		"address":          e.Address,
		"guardianName":     e.GuardianName,
		"guardianRelation": e.GuardianRelation,
		"contactNumber":    e.ContactNumber,
		"fatherName":       e.FatherName,
		"motherName":       e.MotherName,
		"fatherOccupation": e.FatherOccupation,
		"motherOccupation": e.MotherOccupation,
		"lastSchool":       e.LastSchool,
	}
}

func applyProtectedFields(e *models.Enrollment, values map[string]string) {
	e.LRN = values["lrn"]
	e.FullName = values["fullName"]
	e.BirthDate = values["birthDate"]
	e.BirthPlace = values["birthPlace"]
	e.Address = values["address"]
	e.GuardianName = values["guardianName"]
	e.GuardianRelation = values["guardianRelation"]
	e.ContactNumber = values["contactNumber"]
	e.FatherName = values["fatherName"]
	e.MotherName = values["motherName"]
	e.FatherOccupation = values["fatherOccupation"]
	e.MotherOccupation = values["motherOccupation"]
	e.LastSchool = values["lastSchool"]
}

// sensitive fields share one record IV.
func (s *EnrollmentService) encryptFields(e *models.Enrollment) error {
	e.SearchHash = fieldcrypt.SearchHash(e.FullName)
	ciphertexts, iv, err := s.crypt.EncryptFields(protectedFields(e))
	if err != nil {
		return err
	}
	applyProtectedFields(e, ciphertexts)
	e.Encrypted = true
	e.IV = iv
	e.EncryptedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// decryptView returns a decrypted copy, leaving the stored record untouched.
// Fields that fail to decrypt carry the sentinel instead of failing the read.
// Only admin paths may call this; everyone else goes through summaryView.
func (s *EnrollmentService) decryptView(e *models.Enrollment) *models.Enrollment {
	if !e.Encrypted {
		return e
	}
	view := *e
	applyProtectedFields(&view, s.crypt.DecryptFields(protectedFields(e), e.IV))
	view.Encrypted = false
	view.IV = ""
	return &view
}

// summaryView strips every protected field for non-admin callers. The full
// name is reduced to initials so students can still recognise their own
// submission; status, school year and document flags stay intact.
func (s *EnrollmentService) summaryView(e *models.Enrollment) *models.Enrollment {
	view := *e
	name := e.FullName
	if e.Encrypted {
		plain, err := s.crypt.Decrypt(e.FullName, e.IV)
		if err != nil {
			plain = ""
		}
		name = plain
	}
	applyProtectedFields(&view, map[string]string{})
	view.FullName = fieldcrypt.MaskName(name)
	view.Encrypted = false
	view.IV = ""
	view.EncryptedAt = ""
	view.SearchHash = ""
	return &view
}

func (s *EnrollmentService) summaryAll(enrollments []*models.Enrollment) []*models.Enrollment {
	out := make([]*models.Enrollment, len(enrollments))
	for i, e := range enrollments {
		out[i] = s.summaryView(e)
	}
	return out
}

func (s *EnrollmentService) decryptAll(enrollments []*models.Enrollment) []*models.Enrollment {
	out := make([]*models.Enrollment, len(enrollments))
	for i, e := range enrollments {
		out[i] = s.decryptView(e)
	}
	return out
}

func enrollmentOpen(settings models.EnrollmentSettings, t models.EnrollmentType) bool {
	if !settings.IsOpen {
		return false
	}
	switch t {
	case models.EnrollmentTypeJunior:
		return settings.JuniorHighOpen
	case models.EnrollmentTypeSenior:
		return settings.SeniorHighOpen
	default:
		return false
	}
}

// enrollmentPatch flattens the record into a merge patch via its JSON form so
// the store overwrites every top-level field consistently.
func enrollmentPatch(e *models.Enrollment) (map[string]interface{}, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var patch map[string]interface{}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return nil, err
	}
	delete(patch, "id")
	return patch, nil
}

func mapReadErr(err error, notFoundMsg string) error {
	e := apperrors.FromError(err)
	if e.Code == apperrors.ErrNotFound.Code {
		return apperrors.Clone(apperrors.ErrNotFound, notFoundMsg)
	}
	return e
}
