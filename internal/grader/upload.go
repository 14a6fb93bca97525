package grader

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Image is one file of a submission.
type Image struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Submission is a set of handwriting images for one student.
type Submission struct {
	StudentName  string
	StudentClass string
	Subject      string
	Images       []Image
}

// Upload sends a submission for grading and returns the graded results.
// The multipart body is streamed, not buffered.
func (c *Client) Upload(ctx context.Context, token string, sub Submission) (*UploadResponse, error) {
	if len(sub.Images) == 0 {
		return nil, fmt.Errorf("submission has no images")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeSubmission(mw, sub))
	}()

	resp, err := c.do(ctx, token, http.MethodPost, "/upload", mw.FormDataContentType(), pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	defer resp.Body.Close()
	// Unblocks the writer if the backend answered before reading everything.
	defer pr.Close()

	var out uploadResponse
	if err := handleResponse(resp, "/upload", &out); err != nil {
		return nil, err
	}
	return &UploadResponse{
		StudentName:  out.StudentName,
		StudentClass: out.StudentClass,
		Subject:      out.Subject,
		Results:      toResults(out.Results),
	}, nil
}

func writeSubmission(mw *multipart.Writer, sub Submission) error {
	fields := []struct{ name, value string }{
		{"studentName", sub.StudentName},
		{"studentClass", sub.StudentClass},
		{"subject", sub.Subject},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", f.name, err)
		}
	}

	for _, img := range sub.Images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, FileName(img.Filename)))
		ct := img.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)

		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("failed to create part for %s: %w", img.Filename, err)
		}
		if _, err := io.Copy(part, img.Body); err != nil {
			return fmt.Errorf("failed to write %s: %w", img.Filename, err)
		}
	}
	return mw.Close()
}
