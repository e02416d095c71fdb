package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, "in_progress", NormalizeStatus("In-Progress"))
	assert.Equal(t, "in_progress", NormalizeStatus(" in progress "))
	assert.Equal(t, "not_yet_started", NormalizeStatus("NOT YET-STARTED"))
	assert.Equal(t, "completed", NormalizeStatus("completed"))
}

func TestParseAppStatus(t *testing.T) {
	status, err := ParseAppStatus("Completed")
	require.NoError(t, err)
	assert.Equal(t, AppCompleted, status)
	assert.True(t, status.IsCompleted())

	status, err = ParseAppStatus("in-progress")
	require.NoError(t, err)
	assert.Equal(t, AppInProgress, status)

	_, err = ParseAppStatus("done")
	assert.Error(t, err)
}

func TestParseDeptStatus(t *testing.T) {
	for _, raw := range []string{"pending", "In-Progress", "COMPLETED", "rejected"} {
		_, err := ParseDeptStatus(raw)
		assert.NoError(t, err, raw)
	}

	_, err := ParseDeptStatus("yet_to_connect")
	assert.Error(t, err)
	_, err = ParseDeptStatus("approved")
	assert.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("")
	require.NoError(t, err)
	assert.Equal(t, SeverityMedium, sev)

	sev, err = ParseSeverity("Critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)

	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
}

func TestPriorityValid(t *testing.T) {
	assert.True(t, PriorityLow.Valid())
	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority(0).Valid())
	assert.False(t, Priority(4).Valid())
	assert.Equal(t, "high", PriorityHigh.String())
}
