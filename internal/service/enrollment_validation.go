package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

var (
	lrnPattern   = regexp.MustCompile(`^\d{12}$`)
	phonePattern = regexp.MustCompile(`^(09\d{9}|639\d{9}|\+639\d{9})$`)
	namePattern  = regexp.MustCompile(`^[A-Za-zÑñ][A-Za-zÑñ' -]*$`)
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	minAge            = 5
	maxAge            = 25
	juniorMinAge      = 10
	minGeneralAverage = 60.0
	maxGeneralAverage = 100.0
	minAddressLen     = 10
	maxAddressLen     = 200
	minReligionLen    = 3
	maxReligionLen    = 50
)

var juniorGradeLevels = map[string]bool{"7": true, "8": true, "9": true, "10": true}
var seniorGradeLevels = map[string]bool{"11": true, "12": true}
var validStrands = map[string]bool{
	models.StrandSTEM:  true,
	models.StrandHUMSS: true,
	models.StrandABM:   true,
}
var validSemesters = map[string]bool{"1st": true, "2nd": true}

// validateEnrollment checks every rule and collects all failures, so the form
// can surface them in one round trip.
func validateEnrollment(e *models.Enrollment) apperrors.FieldErrors {
	fields := apperrors.FieldErrors{}

	if e.Type != models.EnrollmentTypeJunior && e.Type != models.EnrollmentTypeSenior {
		fields["type"] = "type must be junior or senior"
	}

	if !lrnPattern.MatchString(e.LRN) {
		fields["lrn"] = "LRN must be exactly 12 digits"
	}

	name := strings.TrimSpace(e.FullName)
	if name == "" {
		fields["fullName"] = "full name is required"
	} else if !namePattern.MatchString(name) {
		fields["fullName"] = "full name may only contain letters, spaces, hyphens and apostrophes"
	}

	if e.Age < minAge || e.Age > maxAge {
		fields["age"] = fmt.Sprintf("age must be between %d and %d", minAge, maxAge)
	}

	if e.BirthDate == "" {
		fields["birthDate"] = "birth date is required"
	} else if birthDate, err := time.Parse("2006-01-02", e.BirthDate); err != nil {
		fields["birthDate"] = "birth date must use YYYY-MM-DD"
	} else if birthDate.After(time.Now()) {
		fields["birthDate"] = "birth date cannot be in the future"
	} else {
		computed := ageOn(birthDate, time.Now().UTC())
		if e.Age != computed {
			fields["age"] = "age does not match birth date"
		} else if e.Type == models.EnrollmentTypeJunior && computed < juniorMinAge {
			fields["age"] = fmt.Sprintf("junior high applicants must be at least %d years old", juniorMinAge)
		}
	}

	if e.Gender != "Male" && e.Gender != "Female" {
		fields["gender"] = "gender must be Male or Female"
	}

	if n := len(strings.TrimSpace(e.Religion)); n < minReligionLen || n > maxReligionLen {
		fields["religion"] = fmt.Sprintf("religion must be %d to %d characters", minReligionLen, maxReligionLen)
	}

	if n := len(strings.TrimSpace(e.Address)); n < minAddressLen || n > maxAddressLen {
		fields["address"] = fmt.Sprintf("address must be %d to %d characters", minAddressLen, maxAddressLen)
	}

	if e.GeneralAverage < minGeneralAverage || e.GeneralAverage > maxGeneralAverage {
		fields["generalAverage"] = fmt.Sprintf("general average must be between %.0f and %.0f", minGeneralAverage, maxGeneralAverage)
	}

	if strings.TrimSpace(e.LastSchool) == "" {
		fields["lastSchool"] = "last school attended is required"
	}

	if strings.TrimSpace(e.GuardianName) == "" {
		fields["guardianName"] = "guardian name is required"
	} else if !namePattern.MatchString(strings.TrimSpace(e.GuardianName)) {
		fields["guardianName"] = "guardian name may only contain letters, spaces, hyphens and apostrophes"
	}
	if strings.TrimSpace(e.GuardianRelation) == "" {
		fields["guardianRelation"] = "guardian relation is required"
	}

	if !phonePattern.MatchString(e.ContactNumber) {
		fields["contactNumber"] = "contact number must be a valid PH mobile number"
	}

	if e.UserEmail != "" && !emailPattern.MatchString(e.UserEmail) {
		fields["userEmail"] = "email address is invalid"
	}

	switch e.Type {
	case models.EnrollmentTypeJunior:
		if !juniorGradeLevels[e.GradeLevel] {
			fields["gradeLevel"] = "grade level must be 7 to 10"
		}
		if !(e.HasForm10 || e.HasPSA || e.HasBaptismal || e.HasGoodMoral) {
			fields["documents"] = "at least one supporting document is required"
		}
	case models.EnrollmentTypeSenior:
		if !seniorGradeLevels[e.GradeLevel] {
			fields["gradeLevel"] = "grade level must be 11 or 12"
		}
		if !validStrands[e.Strand] {
			fields["strand"] = "strand must be STEM, HUMSS or ABM"
		}
		if !validSemesters[e.Semester] {
			fields["semester"] = "semester must be 1st or 2nd"
		}
		if strings.TrimSpace(e.BirthPlace) == "" {
			fields["birthPlace"] = "birth place is required"
		}
		if strings.TrimSpace(e.FatherName) == "" {
			fields["fatherName"] = "father's name is required"
		}
		if strings.TrimSpace(e.MotherName) == "" {
			fields["motherName"] = "mother's name is required"
		}
		if !(e.HasForm9 || e.HasForm10 || e.HasPSA || e.HasMoral || e.HasBaptismal || e.HasCompletionCert || e.HasESC || e.HasNCAE) {
			fields["documents"] = "at least one supporting document is required"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

// ageOn computes full years between the birth date and now, counting the
// birthday itself as already turned.
func ageOn(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if birth.AddDate(years, 0, 0).After(now) {
		years--
	}
	return years
}
