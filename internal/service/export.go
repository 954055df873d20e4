package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
)

// Dataset names an exportable collection.
type Dataset string

const (
	DatasetReports Dataset = "reports"
	DatasetUsers   Dataset = "users"
	DatasetNGOs    Dataset = "ngos"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportService writes admin datasets as spreadsheets.
type ExportService interface {
	Export(ctx context.Context, ds Dataset, f Format, w io.Writer) (int, error)
}

type ExportServiceImpl struct {
	admin AdminService
}

var _ ExportService = (*ExportServiceImpl)(nil)

func NewExportService(admin AdminService) *ExportServiceImpl {
	return &ExportServiceImpl{admin: admin}
}

// Export fetches ds and writes it to w; it returns the number of data rows.
func (s *ExportServiceImpl) Export(ctx context.Context, ds Dataset, f Format, w io.Writer) (int, error) {
	if f != FormatCSV && f != FormatXLSX {
		return 0, errs.Field("format", fmt.Sprintf("unsupported %q", f))
	}
	var t table
	switch ds {
	case DatasetReports:
		reports, err := s.admin.Reports(ctx)
		if err != nil {
			return 0, err
		}
		t = reportsTable(reports)
	case DatasetUsers:
		users, err := s.admin.Users(ctx, "")
		if err != nil {
			return 0, err
		}
		t = usersTable(users)
	case DatasetNGOs:
		ngos, err := s.admin.NGOs(ctx)
		if err != nil {
			return 0, err
		}
		t = ngosTable(ngos)
	default:
		return 0, errs.Field("dataset", fmt.Sprintf("unknown %q", ds))
	}

	if f == FormatXLSX {
		return len(t.rows), t.writeXLSX(w, string(ds))
	}
	return len(t.rows), t.writeCSV(w)
}

type table struct {
	header []string
	rows   [][]string
}

// reportsTable lays reports out in the export column order.
func reportsTable(reports []model.Report) table {
	t := table{header: []string{
		"Tracking ID", "Animal Type", "Condition", "Injury Description", "Address",
		"Latitude", "Longitude", "Status", "Reporter Name", "Reporter Phone",
		"Reporter Email", "Assigned NGO", "Assigned Worker", "Created At", "Updated At",
	}}
	for _, r := range reports {
		t.rows = append(t.rows, []string{
			r.TrackingID,
			string(r.AnimalType),
			string(r.Condition),
			r.InjuryDescription,
			r.Position.Address,
			coord(r.Position.Latitude),
			coord(r.Position.Longitude),
			string(r.Status),
			r.Reporter.Name,
			r.Reporter.Phone,
			r.Reporter.Email,
			r.AssignedNgoName,
			r.AssignedWorkerName,
			stamp(r.CreatedAt),
			stamp(r.UpdatedAt),
		})
	}
	return t
}

func usersTable(users []model.Profile) table {
	t := table{header: []string{
		"ID", "Username", "Email", "Full Name", "Phone", "Roles", "NGO ID", "Enabled", "Created At", "Updated At",
	}}
	for _, u := range users {
		roles := make([]string, 0, len(u.Roles))
		for _, r := range u.Roles {
			roles = append(roles, string(r))
		}
		ngo := ""
		if u.NgoID != nil {
			ngo = strconv.FormatInt(*u.NgoID, 10)
		}
		t.rows = append(t.rows, []string{
			strconv.FormatInt(u.ID, 10),
			u.Username,
			u.Email,
			u.FullName,
			u.Phone,
			strings.Join(roles, "; "),
			ngo,
			strconv.FormatBool(u.Enabled),
			stamp(u.CreatedAt),
			stamp(u.UpdatedAt),
		})
	}
	return t
}

func ngosTable(ngos []model.NGO) table {
	t := table{header: []string{
		"ID", "Unique ID", "Name", "Email", "Phone", "Address", "Latitude", "Longitude",
		"Verification Status", "Is Active", "Rejection Reason", "Created At", "Updated At",
	}}
	for _, n := range ngos {
		t.rows = append(t.rows, []string{
			strconv.FormatInt(n.ID, 10),
			n.UniqueID,
			n.Name,
			n.Email,
			n.Phone,
			n.Address,
			coord(n.Latitude),
			coord(n.Longitude),
			string(n.Verification),
			strconv.FormatBool(n.Active),
			n.RejectionReason,
			stamp(n.CreatedAt),
			stamp(n.UpdatedAt),
		})
	}
	return t
}

func (t table) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return err
	}
	return cw.Error()
}

func (t table) writeXLSX(w io.Writer, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, row := range append([][]string{t.header}, t.rows...) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func coord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(exportTimeLayout)
}
