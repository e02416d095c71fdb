package storage

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

const EvidencePrefix = "app_evidences/"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// splitExt splits a file name into base and extension. Leading dots do not
// start an extension, so ".env" has none.
func splitExt(name string) (string, string) {
	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return name, ""
	}
	if strings.Trim(name[:dot], ".") == "" {
		return name, ""
	}
	return name[:dot], name[dot:]
}

// EvidenceKey builds app_evidences/<app>/<base>_<YYYYMMDD_HHMMSS><ext> with
// the timestamp taken in loc. The application name is used as stored; only
// the file base and extension are sanitized.
func EvidenceKey(appName, filename string, now time.Time, loc *time.Location) (string, error) {
	filename = path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if filename == "" || filename == "." || filename == "/" {
		return "", apperr.Validation("file name is required")
	}
	if err := model.ValidateAppName(appName); err != nil {
		return "", apperr.Validation("%s", err.Error())
	}

	base, ext := splitExt(filename)
	stamp := now.In(loc).Format("20060102_150405")
	return EvidencePrefix + appName + "/" + sanitize(base) + "_" + stamp + sanitize(ext), nil
}

// ValidateKey normalizes a client supplied key and rejects anything outside
// the evidence prefix.
func ValidateKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if !strings.HasPrefix(key, EvidencePrefix) {
		return "", apperr.Forbidden("access to this file path is not allowed")
	}
	if strings.Contains(key, "..") {
		return "", apperr.Validation("invalid file path")
	}
	return key, nil
}
