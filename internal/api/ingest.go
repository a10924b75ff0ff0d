package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/passby-go/internal/errors"
	"github.com/tphakala/passby-go/internal/ingest"
)

// UploadResponse lists the staged filenames of a successful upload.
type UploadResponse struct {
	Filenames []string `json:"filenames"`
}

// IngestRequest names the staged files to commit and their destination
// collection.
type IngestRequest struct {
	CollectionName string   `json:"collection_name"`
	Filenames      []string `json:"filenames"`
}

// IngestResponse reports a fully successful batch.
type IngestResponse struct {
	Collection string   `json:"collection"`
	Ingested   []string `json:"ingested"`
}

// IngestErrorResponse extends the standard error body with the failing file
// and everything committed before it.
type IngestErrorResponse struct {
	ErrorResponse
	FailedFile string   `json:"failed_file"`
	Ingested   []string `json:"ingested"`
}

// initIngestRoutes registers upload staging and batch ingestion. Both routes
// share the upload rate limiter.
func (c *Controller) initIngestRoutes() {
	c.Group.POST("/audio/upload", c.UploadFiles, c.RateLimitMiddleware())
	c.Group.POST("/audio/ingest", c.IngestFiles, c.RateLimitMiddleware())
}

// UploadFiles handles POST /api/audio/upload. Files arrive as the repeated
// multipart field "files" and are staged under the upload directory for a
// later ingest call.
func (c *Controller) UploadFiles(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, err, "Invalid multipart form", http.StatusBadRequest)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.HandleError(ctx,
			validationErrorf("no files in multipart field %q", "files"),
			"No files uploaded", http.StatusBadRequest)
	}

	uploadDir := c.Settings.UploadDir()
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("upload_dir", uploadDir).
			Build(), "Failed to create upload directory", http.StatusInternalServerError)
	}

	// Stage files concurrently; the first failure cancels the rest.
	filenames := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx.Request().Context())
	for i, header := range files {
		i, header := i, header
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			name := filepath.Base(header.Filename)
			if err := ingest.ValidateStagedName(name); err != nil {
				return err
			}

			if err := stageUpload(header, filepath.Join(uploadDir, name)); err != nil {
				return err
			}

			if c.metrics != nil {
				c.metrics.Ingest.RecordUploadStaged(header.Size)
			}
			filenames[i] = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return c.HandleError(ctx, err, "Failed to stage uploads", statusForError(err))
	}

	c.Debug("Staged %d uploaded files to %s", len(filenames), uploadDir)

	return ctx.JSON(http.StatusOK, UploadResponse{Filenames: filenames})
}

// stageUpload copies one multipart part into the staging directory.
func stageUpload(header *multipart.FileHeader, destPath string) error {
	src, err := header.Open()
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("file", header.Filename).
			Build()
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			FileContext(destPath, header.Size).
			Build()
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			FileContext(destPath, header.Size).
			Build()
	}
	return nil
}

// IngestFiles handles POST /api/audio/ingest. Files commit in request order;
// on a per-file failure the response names the failing file and everything
// committed before it stays committed.
func (c *Controller) IngestFiles(ctx echo.Context) error {
	var request IngestRequest
	if err := ctx.Bind(&request); err != nil {
		return c.HandleError(ctx, err, "Invalid ingest request", http.StatusBadRequest)
	}

	if request.CollectionName == "" {
		return c.HandleError(ctx,
			validationErrorf("collection_name must not be empty"),
			"Invalid ingest request", http.StatusBadRequest)
	}
	if len(request.Filenames) == 0 {
		return c.HandleError(ctx,
			validationErrorf("filenames must not be empty"),
			"Invalid ingest request", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()

	// The start instant of each file comes from the filename convention. A
	// name without a parseable timestamp fails like any other per-file
	// failure: everything staged before it still commits.
	staged := make([]ingest.StagedFile, 0, len(request.Filenames))
	for _, name := range request.Filenames {
		startNs, ok := ingest.ParseFilenameTimestamp(name)
		if !ok {
			result, err := c.Ingest.Ingest(reqCtx, request.CollectionName, staged)
			if err != nil {
				return c.ingestFailure(ctx, err, result.FailedFile, result.Ingested)
			}
			return c.ingestFailure(ctx,
				validationErrorf("filename %q carries no _YYYYMMDD_HHMMSS timestamp", name),
				name, result.Ingested)
		}
		staged = append(staged, ingest.StagedFile{Name: name, StartNs: startNs})
	}

	result, err := c.Ingest.Ingest(reqCtx, request.CollectionName, staged)
	if err != nil {
		return c.ingestFailure(ctx, err, result.FailedFile, result.Ingested)
	}

	return ctx.JSON(http.StatusOK, IngestResponse{
		Collection: result.Collection,
		Ingested:   result.Ingested,
	})
}

// ingestFailure renders a partial-failure ingest response: the standard
// error body plus failed_file and the files committed before it.
func (c *Controller) ingestFailure(ctx echo.Context, err error, failedFile string, ingested []string) error {
	code := statusForError(err)
	errorResp := NewErrorResponse(err, "File ingestion failed", code)

	c.logger.Printf("API Error [%s]: ingestion failed on %q: %v", errorResp.CorrelationID, failedFile, err)
	if c.apiLogger != nil {
		c.apiLogger.Error("Ingestion failed",
			"correlation_id", errorResp.CorrelationID,
			"failed_file", failedFile,
			"ingested", len(ingested),
			"error", err.Error(),
			"code", code,
		)
	}

	if ingested == nil {
		ingested = []string{}
	}
	return ctx.JSON(code, IngestErrorResponse{
		ErrorResponse: *errorResp,
		FailedFile:    failedFile,
		Ingested:      ingested,
	})
}
