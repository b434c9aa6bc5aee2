package models

import "time"

// EnrollmentType discriminates the two enrollment variants.
type EnrollmentType string

const (
	EnrollmentTypeJunior EnrollmentType = "junior"
	EnrollmentTypeSenior EnrollmentType = "senior"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusSubmitted EnrollmentStatus = "submitted"
	EnrollmentStatusVerified  EnrollmentStatus = "verified"
	EnrollmentStatusPrinted   EnrollmentStatus = "printed"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
	EnrollmentStatusArchived  EnrollmentStatus = "archived"
)

// Strand values for senior high.
const (
	StrandSTEM  = "STEM"
	StrandHUMSS = "HUMSS"
	StrandABM   = "ABM"
)

// Enrollment is the stored document for both variants. Junior-only and
// senior-only fields are zero-valued on the other variant; the service layer
// validates the shape against the type discriminator at the boundary.
type Enrollment struct {
	ID          string           `json:"id,omitempty"`
	Type        EnrollmentType   `json:"type"`
	UserID      string           `json:"userId"`
	UserEmail   string           `json:"userEmail"`
	Status      EnrollmentStatus `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	SchoolYear  string           `json:"schoolYear"`

	// Personal info. These fields hold ciphertext whenever Encrypted is set.
	LRN       string `json:"lrn"`
	FullName  string `json:"fullName"`
	BirthDate string `json:"birthDate"`
	Age       int    `json:"age"`
	Gender    string `json:"gender"`
	Religion  string `json:"religion"`
	Address   string `json:"address"`

	// Academic info.
	GradeLevel     string  `json:"gradeLevel"`
	LastSchool     string  `json:"lastSchool"`
	GeneralAverage float64 `json:"generalAverage"`
	IsTransferee   bool    `json:"isTransferee"`

	// Contact info.
	GuardianName     string `json:"guardianName"`
	GuardianRelation string `json:"guardianRelation"`
	ContactNumber    string `json:"contactNumber"`

	// Admin workflow.
	AdminNotes      string `json:"adminNotes,omitempty"`
	RejectionReason string `json:"rejectionReason,omitempty"`

	// Junior high documents.
	HasForm10             bool `json:"hasForm10,omitempty"`
	HasPSA                bool `json:"hasPSA,omitempty"`
	HasBaptismal          bool `json:"hasBaptismal,omitempty"`
	HasGoodMoral          bool `json:"hasGoodMoral,omitempty"`
	HasAcademicExcellence bool `json:"hasAcademicExcellence,omitempty"`

	// Senior high extras.
	Strand            string `json:"strand,omitempty"`
	Semester          string `json:"semester,omitempty"`
	IsESCGrantee      bool   `json:"isESCGrantee,omitempty"`
	BirthPlace        string `json:"birthPlace,omitempty"`
	FatherName        string `json:"fatherName,omitempty"`
	FatherOccupation  string `json:"fatherOccupation,omitempty"`
	MotherName        string `json:"motherName,omitempty"`
	MotherOccupation  string `json:"motherOccupation,omitempty"`
	HasForm9          bool   `json:"hasForm9,omitempty"`
	HasMoral          bool   `json:"hasMoral,omitempty"`
	HasCompletionCert bool   `json:"hasCompletionCert,omitempty"`
	HasESC            bool   `json:"hasESC,omitempty"`
	HasNCAE           bool   `json:"hasNCAE,omitempty"`
	HasAcademicAward  bool   `json:"hasAcademicAward,omitempty"`

	// Encryption envelope, present once sensitive fields were transformed.
	Encrypted   bool   `json:"_encrypted,omitempty"`
	IV          string `json:"_iv,omitempty"`
	EncryptedAt string `json:"_encryptedAt,omitempty"`
	SearchHash  string `json:"_searchHash,omitempty"`

	// Archive tagging, only set on documents in archived_enrollments.
	OriginalID string     `json:"originalId,omitempty"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

// statusTransitions is the forward-only lifecycle. Printing requires prior
// verification, rejection is only reachable before printing and archived is
// terminal.
var statusTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusSubmitted: {EnrollmentStatusVerified, EnrollmentStatusRejected},
	EnrollmentStatusVerified:  {EnrollmentStatusPrinted, EnrollmentStatusRejected},
	EnrollmentStatusPrinted:   {EnrollmentStatusArchived},
	EnrollmentStatusRejected:  {EnrollmentStatusArchived},
	EnrollmentStatusArchived:  nil,
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s EnrollmentStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether a record may move from one state to the next.
func CanTransition(from, to EnrollmentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnrollmentFilter is the declarative read filter.
type EnrollmentFilter struct {
	Status     EnrollmentStatus
	Type       EnrollmentType
	SchoolYear string
	UserID     string
}

// PageRequest describes cursor pagination and ordering for list reads.
type PageRequest struct {
	PageSize int
	Cursor   string
	OrderBy  string
	OrderDir string
}

// PageInfo is the cursor-page metadata returned in list responses.
type PageInfo struct {
	PageSize   int    `json:"page_size"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// EnrollmentStats aggregates status, type and time-window tallies.
type EnrollmentStats struct {
	Total      int                      `json:"total"`
	ByStatus   map[EnrollmentStatus]int `json:"by_status"`
	ByType     map[EnrollmentType]int   `json:"by_type"`
	TodayCount int                      `json:"today_count"`
	WeekCount  int                      `json:"week_count"`
}

// ActivityBucket is one day of the recent-activity series.
type ActivityBucket struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	Verified int    `json:"verified"`
	Rejected int    `json:"rejected"`
}
