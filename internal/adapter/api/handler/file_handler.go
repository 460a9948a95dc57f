package handler

import (
	"github.com/labstack/echo/v4"

	"marketchat/internal/usecase"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
	"marketchat/pkg/response"
)

type FileHandler struct {
	fileUseCase *usecase.FileUseCase
}

var fileHandler *FileHandler

func NewFileHandler(fileUseCase *usecase.FileUseCase) *FileHandler {
	return &FileHandler{
		fileUseCase: fileUseCase,
	}
}

func SetupFileHandler(fileUseCase *usecase.FileUseCase) {
	fileHandler = NewFileHandler(fileUseCase)
}

func GetFileHandler() *FileHandler {
	return fileHandler
}

// UploadChatAttachment accepts one multipart file, scans it and stores it.
// The response is the attachment object to embed in a send-message call.
func (h *FileHandler) UploadChatAttachment(c echo.Context) error {
	userID := getUserIDFromContext(c)
	if userID == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	file, err := c.FormFile("file")
	if err != nil {
		logger.Error("Error getting file from form: %v", err)
		return response.Error(c, errors.BadRequest("Missing or invalid file", err))
	}

	logger.Debug("Received attachment: %s, size: %d bytes", file.Filename, file.Size)

	chatID := c.FormValue("chat_id")

	src, err := file.Open()
	if err != nil {
		logger.Error("Error opening file: %v", err)
		return response.Error(c, errors.Internal("Unable to read file", err))
	}
	defer src.Close()

	attachment, err := h.fileUseCase.UploadChatAttachment(c.Request().Context(), userID, chatID, file.Filename, file.Size, src)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, attachment)
}

func getUserIDFromContext(c echo.Context) string {
	if uid, ok := c.Get("uid").(string); ok {
		return uid
	}
	return ""
}
