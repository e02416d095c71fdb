package export

import (
	"archive/zip"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/isassess/isassess/pkg/model"
)

var overviewColumns = []string{
	"application_name",
	"description",
	"environment",
	"region",
	"vendor_company",
	"app_priority",
	"app_technology",
	"vertical",
	"imitra_ticket_id",
	"overall_status",
	"titan_spoc",
	"start_date",
	"app_url",
	"user_type",
	"data_type",
}

// Overview is the input of the application overview export.
type Overview struct {
	Applications []model.Application
	Departments  []model.Department
	// Comments holds the latest comment per application and department.
	Comments map[uuid.UUID]map[uint]model.Comment
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("2006-01-02")
}

// WriteOverview writes one row per application with a status and a latest
// comment column for every department.
func WriteOverview(w io.Writer, data Overview, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	depts := append([]model.Department(nil), data.Departments...)
	sort.Slice(depts, func(i, j int) bool { return depts[i].Name < depts[j].Name })

	cw := csv.NewWriter(w)
	header := append([]string(nil), overviewColumns...)
	for _, d := range depts {
		header = append(header, d.Name+"_status", d.Name+"_comment")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, app := range data.Applications {
		statuses := make(map[uint]string, len(app.Departments))
		for _, ad := range app.Departments {
			statuses[ad.DepartmentID] = string(ad.Status)
		}

		row := []string{
			app.Name,
			app.Description,
			app.Environment,
			app.Region,
			app.VendorCompany,
			strconv.Itoa(int(app.AppPriority)),
			app.AppTech,
			app.Vertical,
			app.ImitraTicketID,
			string(app.Status),
			app.TitanSPOC,
			formatTime(app.StartedAt, loc),
			app.AppURL,
			app.UserType,
			app.DataType,
		}
		for _, d := range depts {
			comment := ""
			if c, ok := data.Comments[app.ID][d.ID]; ok {
				comment = c.Content
			}
			row = append(row, statuses[d.ID], comment)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteVerticalArchive writes a zip holding one CSV per vertical with the
// application status and each department's status.
func WriteVerticalArchive(w io.Writer, apps []model.Application, depts []model.Department) error {
	names := make(map[uint]string, len(depts))
	for _, d := range depts {
		names[d.ID] = d.Name
	}

	byVertical := make(map[string][]model.Application)
	used := make(map[string]struct{})
	for _, app := range apps {
		vertical := app.Vertical
		if vertical == "" {
			vertical = "Unknown"
		}
		byVertical[vertical] = append(byVertical[vertical], app)
		for _, ad := range app.Departments {
			if name, ok := names[ad.DepartmentID]; ok {
				used[name] = struct{}{}
			}
		}
	}

	columns := make([]string, 0, len(used))
	for name := range used {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	verticals := make([]string, 0, len(byVertical))
	for v := range byVertical {
		verticals = append(verticals, v)
	}
	sort.Strings(verticals)

	zw := zip.NewWriter(w)
	for _, vertical := range verticals {
		f, err := zw.Create(safeFileName(vertical) + ".csv")
		if err != nil {
			return err
		}
		cw := csv.NewWriter(f)
		if err := cw.Write(append([]string{"App Name", "App Status"}, columns...)); err != nil {
			return err
		}
		for _, app := range byVertical[vertical] {
			statuses := make(map[string]string, len(app.Departments))
			for _, ad := range app.Departments {
				statuses[names[ad.DepartmentID]] = string(ad.Status)
			}
			row := []string{app.Name, string(app.Status)}
			for _, c := range columns {
				row = append(row, statuses[c])
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	}
	return zw.Close()
}

func safeFileName(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out[i] = '_'
		}
	}
	return string(out)
}
