package model

import (
	"fmt"
	"strings"
)

// AppStatus is the lifecycle state of an application. Stored values are
// always the canonical underscore form.
type AppStatus string

const (
	AppNewRequest    AppStatus = "new_request"
	AppNotYetStarted AppStatus = "not_yet_started"
	AppInProgress    AppStatus = "in_progress"
	AppCompleted     AppStatus = "completed"
	AppReopen        AppStatus = "reopen"
	AppClosed        AppStatus = "closed"
	AppCancelled     AppStatus = "cancelled"
)

var AppStatuses = []AppStatus{
	AppNewRequest,
	AppNotYetStarted,
	AppInProgress,
	AppCompleted,
	AppReopen,
	AppClosed,
	AppCancelled,
}

// DeptStatus is the state of one application/department association row.
type DeptStatus string

const (
	DeptYetToConnect DeptStatus = "yet_to_connect"
	DeptPending      DeptStatus = "pending"
	DeptInProgress   DeptStatus = "in_progress"
	DeptCompleted    DeptStatus = "completed"
	DeptRejected     DeptStatus = "rejected"
)

var DeptStatuses = []DeptStatus{
	DeptYetToConnect,
	DeptPending,
	DeptInProgress,
	DeptCompleted,
	DeptRejected,
}

// NormalizeStatus lowercases s and folds spaces and hyphens into underscores,
// so "In-Progress", "in progress" and "in_progress" compare equal.
func NormalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func ParseAppStatus(s string) (AppStatus, error) {
	normalized := AppStatus(NormalizeStatus(s))
	for _, status := range AppStatuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid application status %q", s)
}

// ParseDeptStatus accepts the statuses a department may move an association
// row to. yet_to_connect is only ever assigned at creation.
func ParseDeptStatus(s string) (DeptStatus, error) {
	normalized := DeptStatus(NormalizeStatus(s))
	switch normalized {
	case DeptPending, DeptInProgress, DeptCompleted, DeptRejected:
		return normalized, nil
	}
	return "", fmt.Errorf("invalid department status %q", s)
}

func (s AppStatus) IsCompleted() bool {
	return s == AppCompleted
}

// IsTerminal reports whether the department has decided on the application.
func (s DeptStatus) IsTerminal() bool {
	return s == DeptCompleted || s == DeptRejected
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func ParseSeverity(s string) (Severity, error) {
	if strings.TrimSpace(s) == "" {
		return SeverityMedium, nil
	}
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	}
	return "", fmt.Errorf("invalid severity %q", s)
}
