package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vivesbank/backend/shared/middleware"
)

type Exporter interface {
	ExportClient(ctx context.Context, userGUID string) (*ClientExport, error)
	ExportMovements(ctx context.Context) (*MovementsExport, error)
}

type FileResolver interface {
	Path(name string) (string, error)
}

type StorageHandler struct {
	exports Exporter
	files   FileResolver
}

func NewStorageHandler(exports Exporter, files FileResolver) *StorageHandler {
	return &StorageHandler{exports: exports, files: files}
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
}

func (h *StorageHandler) ExportMe(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	export, err := h.exports.ExportClient(c.Request.Context(), userID)
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to export client data")
		return
	}
	attachment(c, "client-"+export.Client.GUID+".json")
	c.JSON(http.StatusOK, export)
}

func (h *StorageHandler) ExportMovements(c *gin.Context) {
	export, err := h.exports.ExportMovements(c.Request.Context())
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to export movements")
		return
	}
	attachment(c, "movements.json")
	c.JSON(http.StatusOK, export)
}

func (h *StorageHandler) GetImage(c *gin.Context) {
	path, err := h.files.Path(c.Param("filename"))
	if err != nil {
		middleware.RespondWithServiceError(c, err, "Failed to read image")
		return
	}
	c.File(path)
}
