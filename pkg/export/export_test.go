package export

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isassess/isassess/pkg/model"
)

func fixture() ([]model.Application, []model.Department) {
	started := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	depts := []model.Department{{ID: 2, Name: "Network"}, {ID: 1, Name: "AppSec"}}
	apps := []model.Application{
		{
			ID:          uuid.New(),
			Name:        "Payroll",
			Vertical:    "Finance",
			Status:      model.AppInProgress,
			AppPriority: model.PriorityHigh,
			StartedAt:   &started,
			Departments: []model.ApplicationDepartment{
				{DepartmentID: 1, Status: model.DeptCompleted},
				{DepartmentID: 2, Status: model.DeptPending},
			},
		},
		{
			ID:          uuid.New(),
			Name:        "Portal",
			Status:      model.AppNewRequest,
			AppPriority: model.PriorityMedium,
			Departments: []model.ApplicationDepartment{{DepartmentID: 1, Status: model.DeptYetToConnect}},
		},
	}
	return apps, depts
}

func TestWriteOverview(t *testing.T) {
	apps, depts := fixture()
	comments := map[uuid.UUID]map[uint]model.Comment{
		apps[0].ID: {1: {Content: "all good, signed off"}},
	}

	var buf bytes.Buffer
	ist := time.FixedZone("IST", 5*60*60+30*60)
	require.NoError(t, WriteOverview(&buf, Overview{Applications: apps, Departments: depts, Comments: comments}, ist))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, "application_name", header[0])
	assert.Equal(t, []string{"AppSec_status", "AppSec_comment", "Network_status", "Network_comment"}, header[len(overviewColumns):])

	payroll := records[1]
	assert.Equal(t, "Payroll", payroll[0])
	assert.Equal(t, "3", payroll[5])
	assert.Equal(t, "in_progress", payroll[9])
	assert.Equal(t, "2024-05-02", payroll[11])
	assert.Equal(t, []string{"completed", "all good, signed off", "pending", ""}, payroll[len(overviewColumns):])

	portal := records[2]
	assert.Equal(t, "", portal[11])
	assert.Equal(t, []string{"yet_to_connect", "", "", ""}, portal[len(overviewColumns):])
}

func TestWriteVerticalArchive(t *testing.T) {
	apps, depts := fixture()

	var buf bytes.Buffer
	require.NoError(t, WriteVerticalArchive(&buf, apps, depts))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "Finance.csv", zr.File[0].Name)
	assert.Equal(t, "Unknown.csv", zr.File[1].Name)

	f, err := zr.File[0].Open()
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"App Name", "App Status", "AppSec", "Network"}, records[0])
	assert.Equal(t, []string{"Payroll", "in_progress", "completed", "pending"}, records[1])
}
