package convert

import (
	"fmt"
	"strings"
	"time"

	"github.com/pashurakshak/rakshak/internal/api"
	"github.com/pashurakshak/rakshak/internal/model"
)

// --- helpers ---

// timeLayouts covers zoned timestamps and the backend's zone-less local date-times.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Time parses a wire timestamp; unparseable or empty values give the zero time.
func Time(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func copyID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// --- roles / identity ---

// Roles parses wire role names. Unknown names are returned separately so the
// caller can log them; they never grant anything.
func Roles(in []string) (roles []model.Role, unknown []string) {
	for _, s := range in {
		r, err := model.ParseRole(strings.TrimPrefix(strings.ToUpper(s), "ROLE_"))
		if err != nil {
			unknown = append(unknown, s)
			continue
		}
		roles = append(roles, r)
	}
	return roles, unknown
}

// IdentityFromSignIn extracts the session identity from a sign-in response.
func IdentityFromSignIn(in api.SignInResponse) (model.Identity, []string) {
	roles, unknown := Roles(in.Roles)
	return model.Identity{
		ID:       in.ID,
		Username: in.Username,
		Email:    in.Email,
		FullName: in.FullName,
		NgoID:    copyID(in.NgoID),
		Roles:    roles,
	}, unknown
}

// ProfileFromUser converts a user response.
func ProfileFromUser(in api.UserResponse) (model.Profile, []string) {
	roles, unknown := Roles(in.Roles)
	return model.Profile{
		Identity: model.Identity{
			ID:       in.ID,
			Username: in.Username,
			Email:    in.Email,
			FullName: in.FullName,
			NgoID:    copyID(in.NgoID),
			Roles:    roles,
		},
		Phone:     in.Phone,
		Enabled:   in.Enabled,
		CreatedAt: Time(in.CreatedAt),
		UpdatedAt: Time(in.UpdatedAt),
	}, unknown
}

// ProfilesFromUsers converts a user list, collecting unknown role names.
func ProfilesFromUsers(in []api.UserResponse) ([]model.Profile, []string) {
	out := make([]model.Profile, 0, len(in))
	var unknown []string
	for _, u := range in {
		p, bad := ProfileFromUser(u)
		out = append(out, p)
		unknown = append(unknown, bad...)
	}
	return out, unknown
}

// --- reports ---

// ReportFromResponse converts a report. An unknown status is an error: the
// lifecycle cannot act on it.
func ReportFromResponse(in api.ReportResponse) (model.Report, error) {
	st, err := model.ParseStatus(in.Status)
	if err != nil {
		return model.Report{}, fmt.Errorf("report %s: %w", in.TrackingID, err)
	}
	return model.Report{
		ID:                in.ID,
		TrackingID:        in.TrackingID,
		AnimalType:        model.AnimalType(strings.ToUpper(in.AnimalType)),
		Condition:         model.Condition(strings.ToUpper(in.Condition)),
		UrgencyLevel:      in.UrgencyLevel,
		Description:       in.Description,
		InjuryDescription: in.InjuryDescription,
		AdditionalNotes:   in.AdditionalNotes,
		Position: model.Position{
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
			Address:   in.Address,
		},
		ImageURLs: append([]string(nil), in.ImageURLs...),
		Reporter: model.Reporter{
			Name:  in.ReporterName,
			Phone: in.ReporterPhone,
			Email: in.ReporterEmail,
		},
		Status:             st,
		AssignedNgoID:      copyID(in.AssignedNgoID),
		AssignedNgoName:    in.AssignedNgoName,
		AssignedWorkerID:   copyID(in.AssignedWorkerID),
		AssignedWorkerName: in.AssignedWorkerName,
		CreatedAt:          Time(in.CreatedAt),
		UpdatedAt:          Time(in.UpdatedAt),
	}, nil
}

// ReportsFromResponses converts a report list.
func ReportsFromResponses(in []api.ReportResponse) ([]model.Report, error) {
	out := make([]model.Report, 0, len(in))
	for i, r := range in {
		m, err := ReportFromResponse(r)
		if err != nil {
			return nil, fmt.Errorf("report[%d]: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ToReportRequest builds the wire payload of a new report.
func ToReportRequest(in model.ReportRequest) api.ReportRequest {
	desc := in.Description
	injury := in.InjuryDescription
	if injury == "" {
		injury = desc
	}
	return api.ReportRequest{
		AnimalType:        string(in.AnimalType),
		Condition:         string(in.Condition),
		Description:       desc,
		InjuryDescription: injury,
		AdditionalNotes:   in.AdditionalNotes,
		Latitude:          in.Position.Latitude,
		Longitude:         in.Position.Longitude,
		Address:           in.Position.Address,
		ImageURLs:         append([]string(nil), in.ImageURLs...),
		ReporterName:      in.Reporter.Name,
		ReporterPhone:     in.Reporter.Phone,
		ReporterEmail:     in.Reporter.Email,
	}
}

// --- NGOs ---

// NGOFromResponse converts an NGO.
func NGOFromResponse(in api.NGOResponse) model.NGO {
	return model.NGO{
		ID:              in.ID,
		UniqueID:        in.UniqueID,
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Address:         in.Address,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		Description:     in.Description,
		Verification:    model.VerificationStatus(strings.ToUpper(in.VerificationStatus)),
		RejectionReason: in.RejectionReason,
		Active:          in.IsActive,
		CreatedAt:       Time(in.CreatedAt),
		UpdatedAt:       Time(in.UpdatedAt),
	}
}

// NGOsFromResponses converts an NGO list.
func NGOsFromResponses(in []api.NGOResponse) []model.NGO {
	out := make([]model.NGO, 0, len(in))
	for _, n := range in {
		out = append(out, NGOFromResponse(n))
	}
	return out
}
