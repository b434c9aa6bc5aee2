package models

// EnrollmentSettings is the admin-controlled singleton document gating form
// submission.
type EnrollmentSettings struct {
	IsOpen         bool   `json:"isOpen"`
	SchoolYear     string `json:"schoolYear"`
	JuniorHighOpen bool   `json:"juniorHighOpen"`
	SeniorHighOpen bool   `json:"seniorHighOpen"`
	Message        string `json:"message,omitempty"`
}

// DefaultEnrollmentSettings returns the settings used when the document is
// missing, matching an open enrollment period.
func DefaultEnrollmentSettings(schoolYear string) EnrollmentSettings {
	return EnrollmentSettings{
		IsOpen:         true,
		SchoolYear:     schoolYear,
		JuniorHighOpen: true,
		SeniorHighOpen: true,
	}
}
