package upload

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/httpjson"
)

const maxImageBytes = 5 << 20

var (
	errNoImage     = domain.Invalid("Please upload an image")
	errImagesOnly  = domain.Invalid("Images only!")
	errImageTooBig = domain.Invalid("Image is too large")
)

var allowedTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type Handler struct {
	store  ImageStore
	resp   *httpjson.Responder
	logger *slog.Logger
}

func NewHandler(store ImageStore, logger *slog.Logger) *Handler {
	return &Handler{store: store, resp: httpjson.NewResponder(logger), logger: logger}
}

type uploadResponse struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.resp.Error(w, errImageTooBig)
			return
		}
		h.resp.Error(w, errNoImage)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.resp.Error(w, errNoImage)
		return
	}
	defer func() { _ = file.Close() }()

	contentType, body, err := checkImage(header, file)
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	key := "products/" + uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	ref, err := h.store.Put(r.Context(), key, contentType, body)
	if err != nil {
		h.resp.Error(w, err)
		return
	}

	h.logger.Info("image uploaded", "key", key, "size", header.Size)
	h.resp.JSON(w, http.StatusOK, uploadResponse{Message: h.store.Message(), Image: ref})
}

// checkImage accepts jpg/jpeg/png by extension, declared type and content.
// It returns a reader positioned at the start of the file.
func checkImage(header *multipart.FileHeader, file multipart.File) (string, io.Reader, error) {
	want, ok := allowedTypes[strings.ToLower(filepath.Ext(header.Filename))]
	if !ok {
		return "", nil, errImagesOnly
	}
	declared := strings.ToLower(header.Header.Get("Content-Type"))
	if declared != want && !(want == "image/jpeg" && declared == "image/jpg") {
		return "", nil, errImagesOnly
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	sniff = sniff[:n]
	if http.DetectContentType(sniff) != want {
		return "", nil, errImagesOnly
	}

	return want, io.MultiReader(bytes.NewReader(sniff), file), nil
}
