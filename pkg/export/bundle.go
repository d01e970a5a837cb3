package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"

	rkerrors "github.com/otherjamesbrown/reelkit/pkg/errors"
)

// Part names of the render upload.
const (
	PartBody  = "body"
	PartVideo = "input.mp4"
)

// MediaFile is an upload attached to a bundle.
type MediaFile struct {
	// Name is the layer name for images; ignored for the video.
	Name     string
	FileName string
	Content  io.Reader
}

// Payload is an encoded multi-part request body.
type Payload struct {
	ContentType string
	Body        []byte
}

// Bundle encodes doc and its media as multipart/form-data: the document as
// the "body" part, the video as "input.mp4" and each image under its layer
// name. Every image must belong to an image entry of doc.
func Bundle(doc *Document, video *MediaFile, images []MediaFile) (*Payload, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", rkerrors.ErrValidation)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode export document: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField(PartBody, string(body)); err != nil {
		return nil, fmt.Errorf("write body part: %w", err)
	}
	if video != nil {
		if err := writeFile(mw, PartVideo, video); err != nil {
			return nil, err
		}
	}
	for i := range images {
		img := &images[i]
		e, ok := doc.Layers[img.Name]
		if !ok || e.Type != "image" {
			return nil, fmt.Errorf("%w: image %q has no layer in the document", rkerrors.ErrValidation, img.Name)
		}
		if err := writeFile(mw, img.Name, img); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}
	return &Payload{ContentType: mw.FormDataContentType(), Body: buf.Bytes()}, nil
}

func writeFile(mw *multipart.Writer, field string, f *MediaFile) error {
	name := f.FileName
	if name == "" {
		name = field
	}
	w, err := mw.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("create part %s: %w", field, err)
	}
	if f.Content == nil {
		return nil
	}
	if _, err := io.Copy(w, f.Content); err != nil {
		return fmt.Errorf("write part %s: %w", field, err)
	}
	return nil
}
