package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snchs-registrar/enrollment-api/internal/models"
)

// birthDateForAge yields a birth date whose anniversary was today, so the
// computed age is exactly years.
func birthDateForAge(years int) string {
	return time.Now().UTC().AddDate(-years, 0, 0).Format("2006-01-02")
}

func validJunior() *models.Enrollment {
	return &models.Enrollment{
		Type:             models.EnrollmentTypeJunior,
		LRN:              "123456789012",
		FullName:         "Juan Dela Cruz",
		BirthDate:        birthDateForAge(13),
		Age:              13,
		Gender:           "Male",
		Religion:         "Catholic",
		Address:          "123 Mabini Street, Naga City",
		GradeLevel:       "7",
		LastSchool:       "Naga Central School",
		GeneralAverage:   88.5,
		GuardianName:     "Maria Dela Cruz",
		GuardianRelation: "Mother",
		ContactNumber:    "09171234567",
		HasPSA:           true,
	}
}

func validSenior() *models.Enrollment {
	e := validJunior()
	e.Type = models.EnrollmentTypeSenior
	e.BirthDate = birthDateForAge(17)
	e.Age = 17
	e.GradeLevel = "11"
	e.Strand = models.StrandSTEM
	e.Semester = "1st"
	e.BirthPlace = "Naga City"
	e.FatherName = "Jose Dela Cruz"
	e.MotherName = "Maria Dela Cruz"
	e.HasPSA = false
	e.HasForm9 = true
	return e
}

func TestValidateEnrollmentAcceptsValidForms(t *testing.T) {
	assert.Nil(t, validateEnrollment(validJunior()))
	assert.Nil(t, validateEnrollment(validSenior()))
}

func TestValidateEnrollmentRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *models.Enrollment)
		field  string
	}{
		{"unknown type", func(e *models.Enrollment) { e.Type = "college" }, "type"},
		{"short lrn", func(e *models.Enrollment) { e.LRN = "12345" }, "lrn"},
		{"lrn with letters", func(e *models.Enrollment) { e.LRN = "12345678901a" }, "lrn"},
		{"empty name", func(e *models.Enrollment) { e.FullName = "  " }, "fullName"},
		{"name with digits", func(e *models.Enrollment) { e.FullName = "Juan 2" }, "fullName"},
		{"missing birth date", func(e *models.Enrollment) { e.BirthDate = "" }, "birthDate"},
		{"malformed birth date", func(e *models.Enrollment) { e.BirthDate = "15-03-2013" }, "birthDate"},
		{"future birth date", func(e *models.Enrollment) { e.BirthDate = "2099-01-01" }, "birthDate"},
		{"too young", func(e *models.Enrollment) { e.Age = 4; e.BirthDate = birthDateForAge(4) }, "age"},
		{"too old", func(e *models.Enrollment) { e.Age = 26; e.BirthDate = birthDateForAge(26) }, "age"},
		{"age contradicts birth date", func(e *models.Enrollment) { e.Age = 12 }, "age"},
		{"unknown gender", func(e *models.Enrollment) { e.Gender = "other" }, "gender"},
		{"short religion", func(e *models.Enrollment) { e.Religion = "ab" }, "religion"},
		{"short address", func(e *models.Enrollment) { e.Address = "Naga" }, "address"},
		{"average too low", func(e *models.Enrollment) { e.GeneralAverage = 59.9 }, "generalAverage"},
		{"average too high", func(e *models.Enrollment) { e.GeneralAverage = 100.1 }, "generalAverage"},
		{"missing last school", func(e *models.Enrollment) { e.LastSchool = "" }, "lastSchool"},
		{"missing guardian", func(e *models.Enrollment) { e.GuardianName = "" }, "guardianName"},
		{"missing guardian relation", func(e *models.Enrollment) { e.GuardianRelation = "" }, "guardianRelation"},
		{"landline number", func(e *models.Enrollment) { e.ContactNumber = "054-4731234" }, "contactNumber"},
		{"bad email", func(e *models.Enrollment) { e.UserEmail = "not-an-email" }, "userEmail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validJunior()
			tt.mutate(e)
			fields := validateEnrollment(e)
			require.NotNil(t, fields)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidateEnrollmentJuniorAgeBoundary(t *testing.T) {
	// Turned ten today: the youngest admissible junior high applicant.
	e := validJunior()
	e.Age = 10
	e.BirthDate = birthDateForAge(10)
	assert.Nil(t, validateEnrollment(e))

	// Tenth birthday is tomorrow.
	e = validJunior()
	e.Age = 9
	e.BirthDate = time.Now().UTC().AddDate(-10, 0, 1).Format("2006-01-02")
	fields := validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "age")

	e = validJunior()
	e.Age = 9
	e.BirthDate = birthDateForAge(9)
	fields = validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "age")
}

func TestValidateEnrollmentAcceptsAllMobileFormats(t *testing.T) {
	for _, number := range []string{"09171234567", "639171234567", "+639171234567"} {
		e := validJunior()
		e.ContactNumber = number
		assert.Nil(t, validateEnrollment(e), number)
	}
}

func TestValidateEnrollmentCollectsEveryFailure(t *testing.T) {
	e := validJunior()
	e.LRN = "bad"
	e.Age = 3
	e.Gender = "unknown"

	fields := validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Len(t, fields, 3)
}

func TestValidateEnrollmentJuniorRules(t *testing.T) {
	e := validJunior()
	e.GradeLevel = "11"
	fields := validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "gradeLevel")

	e = validJunior()
	e.HasPSA = false
	fields = validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "documents")

	// Any one supporting document satisfies the rule.
	e = validJunior()
	e.HasPSA = false
	e.HasGoodMoral = true
	assert.Nil(t, validateEnrollment(e))
}

func TestValidateEnrollmentSeniorRules(t *testing.T) {
	e := validSenior()
	e.GradeLevel = "7"
	fields := validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "gradeLevel")

	e = validSenior()
	e.Strand = "GAS"
	fields = validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "strand")

	e = validSenior()
	e.Semester = "3rd"
	fields = validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "semester")

	e = validSenior()
	e.BirthPlace = ""
	e.FatherName = ""
	e.MotherName = ""
	fields = validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "birthPlace")
	assert.Contains(t, fields, "fatherName")
	assert.Contains(t, fields, "motherName")

	e = validSenior()
	e.HasForm9 = false
	fields = validateEnrollment(e)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "documents")

	// A baptismal certificate alone satisfies the document rule.
	e = validSenior()
	e.HasForm9 = false
	e.HasBaptismal = true
	assert.Nil(t, validateEnrollment(e))
}
