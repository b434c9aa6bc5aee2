package repository

import (
	"context"
	"errors"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	"github.com/snchs-registrar/enrollment-api/internal/store"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

// settingsDocID is the singleton document holding enrollment settings.
const settingsDocID = "enrollment"

// SettingsRepository manages the enrollment-settings singleton.
type SettingsRepository struct {
	store             DocumentStore
	watcher           ChangeWatcher
	defaultSchoolYear string
}

// NewSettingsRepository constructs the repository. defaultSchoolYear seeds
// the defaults used when the document does not exist yet.
func NewSettingsRepository(docs DocumentStore, watcher ChangeWatcher, defaultSchoolYear string) *SettingsRepository {
	return &SettingsRepository{store: docs, watcher: watcher, defaultSchoolYear: defaultSchoolYear}
}

// Get reads the settings, falling back to open defaults when the document is
// missing.
func (r *SettingsRepository) Get(ctx context.Context) (models.EnrollmentSettings, error) {
	doc, err := r.store.Get(ctx, store.CollectionSettings, settingsDocID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.DefaultEnrollmentSettings(r.defaultSchoolYear), nil
	}
	if err != nil {
		return models.EnrollmentSettings{}, err
	}
	var settings models.EnrollmentSettings
	if err := doc.Decode(&settings); err != nil {
		return models.EnrollmentSettings{}, err
	}
	return settings, nil
}

// Set replaces the settings document.
func (r *SettingsRepository) Set(ctx context.Context, settings models.EnrollmentSettings) error {
	return r.store.Set(ctx, store.CollectionSettings, settingsDocID, settings)
}

// Watch streams the settings to fn on every change. Missing documents
// surface as defaults, mirroring Get.
func (r *SettingsRepository) Watch(fn func(models.EnrollmentSettings, error)) (func(), error) {
	if r.watcher == nil {
		return nil, errors.New("change watcher not configured")
	}
	cancel := r.watcher.Subscribe(store.Query{Collection: store.CollectionSettings}, func(docs []store.Document, err error) {
		if err != nil {
			fn(models.EnrollmentSettings{}, err)
			return
		}
		for _, doc := range docs {
			if doc.ID != settingsDocID {
				continue
			}
			var settings models.EnrollmentSettings
			if derr := doc.Decode(&settings); derr != nil {
				fn(models.EnrollmentSettings{}, derr)
				return
			}
			fn(settings, nil)
			return
		}
		fn(models.DefaultEnrollmentSettings(r.defaultSchoolYear), nil)
	})
	return cancel, nil
}
