package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/metrics"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/storage"
	"github.com/isassess/isassess/pkg/store/postgres"
)

const maxEvidenceFiles = 20

type EvidenceStore interface {
	Create(ctx context.Context, evidence *model.Evidence) error
	List(ctx context.Context, f postgres.EvidenceFilter) ([]model.Evidence, error)
	CommentBelongsTo(ctx context.Context, commentID, appID uuid.UUID, deptID *uint) (bool, error)
}

type EvidenceHandler struct {
	evidences   EvidenceStore
	apps        ApplicationStore
	departments DepartmentStore
	files       storage.Store
	loc         *time.Location
	logger      *zap.Logger
}

func NewEvidenceHandler(evidences EvidenceStore, apps ApplicationStore, departments DepartmentStore, files storage.Store, loc *time.Location, logger *zap.Logger) *EvidenceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EvidenceHandler{
		evidences:   evidences,
		apps:        apps,
		departments: departments,
		files:       files,
		loc:         loc,
		logger:      logger,
	}
}

type evidenceResponse struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	DepartmentID  *uint   `json:"department_id,omitempty"`
	CommentID     *string `json:"comment_id,omitempty"`
	UploaderID    string  `json:"uploader_id"`
	EvidencePath  string  `json:"evidence_path"`
	Severity      string  `json:"severity"`
	CreatedAt     string  `json:"created_at"`
}

func mapEvidence(e model.Evidence) evidenceResponse {
	resp := evidenceResponse{
		ID:            e.ID.String(),
		ApplicationID: e.ApplicationID.String(),
		DepartmentID:  e.DepartmentID,
		UploaderID:    e.UploaderID.String(),
		EvidencePath:  e.EvidencePath,
		Severity:      string(e.Severity),
		CreatedAt:     e.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
	if e.CommentID != nil {
		id := e.CommentID.String()
		resp.CommentID = &id
	}
	return resp
}

func optionalUUID(value string) (*uuid.UUID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return nil, apperr.Validation("invalid id %q", value)
	}
	return &id, nil
}

// Upload stores every file of the evidence_files form field. A file that
// fails does not stop the others; the response lists both outcomes.
func (h *EvidenceHandler) Upload(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}

	deptID, err := optionalUint(c.PostForm("department_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	commentID, err := optionalUUID(c.PostForm("comment_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	severity, err := model.ParseSeverity(c.PostForm("severity"))
	if err != nil {
		respondError(c, h.logger, apperr.Validation("%s", err.Error()))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, h.logger, apperr.Validation("invalid multipart form: %v", err))
		return
	}
	files := form.File["evidence_files"]
	if len(files) == 0 {
		respondError(c, h.logger, apperr.Validation("no files found to upload"))
		return
	}
	if len(files) > maxEvidenceFiles {
		respondError(c, h.logger, apperr.Validation("at most %d files per upload", maxEvidenceFiles))
		return
	}

	ctx := c.Request.Context()
	app, err := h.apps.GetByID(ctx, appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if deptID != nil && !requireMembership(c, h.logger, h.departments, *deptID) {
		return
	}
	if commentID != nil {
		belongs, err := h.evidences.CommentBelongsTo(ctx, *commentID, appID, deptID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		if !belongs {
			respondError(c, h.logger, apperr.Validation("comment does not belong to this application"))
			return
		}
	}

	success := make([]evidenceResponse, 0, len(files))
	failed := make([]gin.H, 0)
	for _, header := range files {
		evidence, err := h.store(ctx, app, header.Filename, func() (io.ReadCloser, error) { return header.Open() })
		if err != nil {
			metrics.EvidenceUploads.WithLabelValues("failed").Inc()
			h.logger.Warn("evidence upload failed",
				zap.String("application_id", appID.String()),
				zap.String("file", header.Filename),
				zap.Error(err),
			)
			failed = append(failed, gin.H{"file": header.Filename, "error": apperr.KindOf(err)})
			continue
		}
		evidence.DepartmentID = deptID
		evidence.CommentID = commentID
		evidence.UploaderID = p.UserID
		evidence.Severity = severity
		if err := h.evidences.Create(ctx, evidence); err != nil {
			metrics.EvidenceUploads.WithLabelValues("failed").Inc()
			h.logger.Warn("failed to record evidence", zap.String("key", evidence.EvidencePath), zap.Error(err))
			failed = append(failed, gin.H{"file": header.Filename, "error": apperr.KindOf(err)})
			continue
		}
		metrics.EvidenceUploads.WithLabelValues("stored").Inc()
		success = append(success, mapEvidence(*evidence))
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":     "evidences uploaded",
		"success": success,
		"failed":  failed,
	})
}

func (h *EvidenceHandler) store(ctx context.Context, app *model.Application, filename string, open func() (io.ReadCloser, error)) (*model.Evidence, error) {
	key, err := storage.EvidenceKey(app.Name, filename, time.Now(), h.loc)
	if err != nil {
		return nil, err
	}
	body, err := open()
	if err != nil {
		return nil, apperr.Internal(err, "open upload %s", filename)
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.files.Put(ctx, key, body, contentType); err != nil {
		return nil, err
	}
	return &model.Evidence{ID: uuid.New(), ApplicationID: app.ID, EvidencePath: key}, nil
}

func (h *EvidenceHandler) List(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	deptID, err := optionalUint(c.Query("department_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	commentID, err := optionalUUID(c.Query("comment_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	evidences, err := h.evidences.List(c.Request.Context(), postgres.EvidenceFilter{
		ApplicationID: appID,
		DepartmentID:  deptID,
		CommentID:     commentID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	response := make([]evidenceResponse, 0, len(evidences))
	for _, e := range evidences {
		response = append(response, mapEvidence(e))
	}
	c.JSON(http.StatusOK, gin.H{"evidences": response})
}

// URL resolves a stored key to a download link.
func (h *EvidenceHandler) URL(c *gin.Context) {
	key, err := storage.ValidateKey(c.Query("key"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	link, err := h.files.URL(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": link})
}

// File streams an evidence object through the API.
func (h *EvidenceHandler) File(c *gin.Context) {
	key, err := storage.ValidateKey(c.Query("key"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	body, err := h.files.Open(c.Request.Context(), key)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": path.Base(key)}))
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}
