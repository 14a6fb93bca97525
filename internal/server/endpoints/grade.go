package endpoints

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartmarks/smartmarks/internal/api"
	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/grader"
	"github.com/smartmarks/smartmarks/internal/session"
	"github.com/smartmarks/smartmarks/internal/svcctx"
	"github.com/smartmarks/smartmarks/internal/views"
)

// GradeForm is the grade page data.
type GradeForm struct {
	Error     string
	Student   session.Student
	MaxFiles  int
	MaxFileMB int64
}

func gradeForm(r *http.Request, st session.Student, errMsg string) GradeForm {
	cfg := svcctx.ConfigFrom(r.Context())
	return GradeForm{
		Error:     errMsg,
		Student:   st,
		MaxFiles:  cfg.Upload.MaxFiles,
		MaxFileMB: cfg.Upload.MaxFileBytes >> 20,
	}
}

// GradePageEndpoint handles GET /grade.
type GradePageEndpoint struct{}

var _ api.Endpoint = (*GradePageEndpoint)(nil)

func (e *GradePageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/grade", e.handler
}

func (e *GradePageEndpoint) RequiresSession() bool { return true }

func (e *GradePageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireLogin(w, r); !ok {
		return
	}
	render(w, r, http.StatusOK, views.PageGrade, "grade.title", gradeForm(r, session.Student{}, ""))
}

func (e *GradePageEndpoint) Command(_ func() string) *cobra.Command { return nil }

// GradeEndpoint handles POST /grade: validates the submission, forwards it to
// the grading backend and shows the results.
type GradeEndpoint struct{}

var _ api.Endpoint = (*GradeEndpoint)(nil)

func (e *GradeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/grade", e.handler
}

func (e *GradeEndpoint) RequiresSession() bool { return true }

// errInvalidFiles marks a submission with an oversized or non-image file.
var errInvalidFiles = errors.New("invalid files")

func (e *GradeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	s, ok := requireLogin(w, r)
	if !ok {
		return
	}
	client := svcctx.GraderFrom(r.Context())
	if client == nil {
		http.Error(w, "grading client not initialized", http.StatusServiceUnavailable)
		return
	}
	logger := svcctx.LoggerFrom(r.Context())
	limits := svcctx.ConfigFrom(r.Context()).Upload

	r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit(limits))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render(w, r, http.StatusRequestEntityTooLarge, views.PageGrade, "grade.title",
				gradeForm(r, session.Student{}, tr(r, "grade.invalid_files", limits.MaxFileBytes>>20)))
			return
		}
		render(w, r, http.StatusBadRequest, views.PageGrade, "grade.title",
			gradeForm(r, session.Student{}, tr(r, "grade.no_images")))
		return
	}
	defer r.MultipartForm.RemoveAll()

	st := session.Student{
		Name:    strings.TrimSpace(r.FormValue("studentName")),
		Class:   strings.TrimSpace(r.FormValue("studentClass")),
		Subject: strings.TrimSpace(r.FormValue("subject")),
	}
	fail := func(status int, key string, args ...any) {
		render(w, r, status, views.PageGrade, "grade.title", gradeForm(r, st, tr(r, key, args...)))
	}

	files := r.MultipartForm.File["images"]
	switch {
	case len(files) == 0:
		fail(http.StatusBadRequest, "grade.no_images")
		return
	case limits.MaxFiles > 0 && len(files) > limits.MaxFiles:
		fail(http.StatusBadRequest, "grade.too_many_files", limits.MaxFiles)
		return
	case st.Name == "" || st.Class == "" || st.Subject == "":
		fail(http.StatusBadRequest, "grade.missing_details")
		return
	}

	images, closeAll, err := openImages(files, limits.MaxFileBytes)
	defer closeAll()
	if err != nil {
		logger.Info("rejected submission", "files", len(files), "error", err)
		fail(http.StatusBadRequest, "grade.invalid_files", limits.MaxFileBytes>>20)
		return
	}

	resp, err := client.Upload(r.Context(), s.Token(), grader.Submission{
		StudentName:  st.Name,
		StudentClass: st.Class,
		Subject:      st.Subject,
		Images:       images,
	})
	if err != nil {
		if expired(w, r, s, err) {
			return
		}
		logger.Error("upload failed", "error", err)
		fail(http.StatusBadGateway, "grade.upload_failed", errorMessage(err))
		return
	}

	s.Results.Replace(resp.Results)
	s.SetStudent(st)
	s.SetPDF(nil)
	logger.Info("submission graded", "session", s.ID, "images", len(images), "results", len(resp.Results))

	q := url.Values{}
	q.Set("studentName", st.Name)
	q.Set("studentClass", st.Class)
	q.Set("subject", st.Subject)
	redirect(w, r, "/results?"+q.Encode())
}

func (e *GradeEndpoint) Command(_ func() string) *cobra.Command { return nil }

// maxUploadBody caps a submission when either upload limit is disabled.
const maxUploadBody = 256 << 20

// uploadBodyLimit leaves room for every file at the limit plus the text
// fields. A non-positive limit means unlimited, so the fixed ceiling applies.
func uploadBodyLimit(limits config.UploadCfg) int64 {
	if limits.MaxFiles <= 0 || limits.MaxFileBytes <= 0 {
		return maxUploadBody
	}
	return int64(limits.MaxFiles)*limits.MaxFileBytes + 1<<20
}

// openImages opens every uploaded file and checks it is an image no larger
// than maxBytes. The content type is sniffed, not taken from the client.
// The returned func closes whatever was opened.
func openImages(files []*multipart.FileHeader, maxBytes int64) ([]grader.Image, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	images := make([]grader.Image, 0, len(files))
	for _, fh := range files {
		if maxBytes > 0 && fh.Size > maxBytes {
			return nil, closeAll, fmt.Errorf("%w: %s is %d bytes", errInvalidFiles, fh.Filename, fh.Size)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)

		head := make([]byte, 512)
		n, err := io.ReadFull(f, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return nil, closeAll, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		contentType := http.DetectContentType(head[:n])
		if !strings.HasPrefix(contentType, "image/") {
			return nil, closeAll, fmt.Errorf("%w: %s is %s", errInvalidFiles, fh.Filename, contentType)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, closeAll, fmt.Errorf("failed to rewind %s: %w", fh.Filename, err)
		}

		images = append(images, grader.Image{
			Filename:    fh.Filename,
			ContentType: contentType,
			Body:        f,
		})
	}
	return images, closeAll, nil
}
