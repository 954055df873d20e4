package api

// Wire types of the REST collaborator. Field names follow the backend's JSON.

type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignInResponse struct {
	Token    string   `json:"token"`
	Type     string   `json:"type"`
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	NgoID    *int64   `json:"ngoId,omitempty"`
	Roles    []string `json:"roles"`
}

type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
	UserType string `json:"userType"`

	// NGO registration fields, required when UserType is NGO.
	NgoName                 string   `json:"ngoName,omitempty"`
	Address                 string   `json:"address,omitempty"`
	Latitude                *float64 `json:"latitude,omitempty"`
	Longitude               *float64 `json:"longitude,omitempty"`
	Description             string   `json:"description,omitempty"`
	RegistrationDocumentURL string   `json:"registrationDocumentUrl,omitempty"`
}

type UserResponse struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FullName  string   `json:"fullName"`
	Phone     string   `json:"phone,omitempty"`
	Roles     []string `json:"roles"`
	Enabled   bool     `json:"enabled"`
	NgoID     *int64   `json:"ngoId,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

type UpdateUserRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type ReportRequest struct {
	AnimalType        string   `json:"animalType"`
	Condition         string   `json:"condition"`
	Description       string   `json:"description,omitempty"`
	InjuryDescription string   `json:"injuryDescription,omitempty"`
	AdditionalNotes   string   `json:"additionalNotes,omitempty"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	Address           string   `json:"address,omitempty"`
	ImageURLs         []string `json:"imageUrls,omitempty"`
	ReporterName      string   `json:"reporterName"`
	ReporterPhone     string   `json:"reporterPhone"`
	ReporterEmail     string   `json:"reporterEmail,omitempty"`
}

type ReportResponse struct {
	ID                 int64    `json:"id"`
	TrackingID         string   `json:"trackingId"`
	AnimalType         string   `json:"animalType"`
	Condition          string   `json:"condition"`
	UrgencyLevel       string   `json:"urgencyLevel,omitempty"`
	Description        string   `json:"description,omitempty"`
	InjuryDescription  string   `json:"injuryDescription,omitempty"`
	AdditionalNotes    string   `json:"additionalNotes,omitempty"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Address            string   `json:"address,omitempty"`
	ImageURLs          []string `json:"imageUrls"`
	Status             string   `json:"status"`
	ReporterName       string   `json:"reporterName"`
	ReporterPhone      string   `json:"reporterPhone"`
	ReporterEmail      string   `json:"reporterEmail,omitempty"`
	AssignedNgoID      *int64   `json:"assignedNgoId,omitempty"`
	AssignedNgoName    string   `json:"assignedNgoName,omitempty"`
	AssignedWorkerID   *int64   `json:"assignedWorkerId,omitempty"`
	AssignedWorkerName string   `json:"assignedWorkerName,omitempty"`
	CreatedAt          string   `json:"createdAt,omitempty"`
	UpdatedAt          string   `json:"updatedAt,omitempty"`
}

type AcceptRequest struct {
	NgoID   int64  `json:"ngoId"`
	NgoName string `json:"ngoName"`
}

type AssignRequest struct {
	WorkerID   int64  `json:"workerId"`
	WorkerName string `json:"workerName"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type NGOResponse struct {
	ID                 int64   `json:"id"`
	UniqueID           string  `json:"uniqueId,omitempty"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	Address            string  `json:"address"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Description        string  `json:"description"`
	VerificationStatus string  `json:"verificationStatus"`
	RejectionReason    string  `json:"rejectionReason,omitempty"`
	IsActive           bool    `json:"isActive"`
	CreatedAt          string  `json:"createdAt,omitempty"`
	UpdatedAt          string  `json:"updatedAt,omitempty"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type AddWorkerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
}

type UploadResponse struct {
	URL string `json:"url"`
}

type BatchUploadResponse struct {
	URLs     []string `json:"urls"`
	Uploaded int      `json:"uploaded"`
	Total    int      `json:"total"`
	Errors   []string `json:"errors,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
