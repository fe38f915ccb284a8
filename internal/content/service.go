// Package content defines the generation backend contract shared by the
// extractor, the region builder and the illustrator, plus the decorators and
// JSON decoding pipeline layered on top of any backend.
package content

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// SystemRole is the standing instruction sent with every text request unless
// the request overrides it.
const SystemRole = "You are a ttrpg game world creator and game designer assistant. You help build the setting for amazing adventures."

// NoImage is the sentinel image reference stored when illustration fails.
const NoImage = ""

var (
	// ErrBadRequest marks a request the backend rejected as malformed or
	// disallowed. Illustration treats it as a recoverable miss.
	ErrBadRequest = errors.New("content: bad request")
	// ErrEmptyResponse marks a backend reply that carried no usable payload.
	ErrEmptyResponse = errors.New("content: empty response")
)

// Image is raw image input attached to a text request.
type Image struct {
	Data     []byte
	MIMEType string
}

// DataURI encodes the image as a base64 data URI.
func (i Image) DataURI() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(i.Data))
}

// Base64 returns the bare base64 payload.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// Step names for the text calls a run makes.
const (
	StepExtract   = "extract"
	StepDescribe  = "describe"
	StepLocation  = "location"
	StepCharacter = "character"
	StepQuest     = "quest"
	StepEncounter = "encounter"
)

// TextRequest is one JSON-producing generation call. Step, Subject and Index
// identify the call in logs, traces and parse errors; they are not sent to
// the backend.
type TextRequest struct {
	Step        string
	Subject     string
	Index       int
	Repair      bool
	System      string
	Prompt      string
	Image       *Image
	MaxTokens   int
	Temperature float64
}

// Topic returns a short label such as "location #2 (Port Ashen)".
func (r TextRequest) Topic() string {
	label := r.Step
	if label == "" {
		label = "generate"
	}
	if r.Index > 0 {
		label = fmt.Sprintf("%s #%d", label, r.Index)
	}
	if r.Subject != "" {
		label = fmt.Sprintf("%s (%s)", label, r.Subject)
	}
	if r.Repair {
		label += " repair"
	}
	return label
}

// SystemPrompt returns the request's system instruction or the default role.
func (r TextRequest) SystemPrompt() string {
	if r.System != "" {
		return r.System
	}
	return SystemRole
}

// ImageKind selects the content-type subfolder and prompt framing for an image.
type ImageKind string

const (
	ImagePortrait ImageKind = "characters"
	ImageLocation ImageKind = "locations"
	ImageCover    ImageKind = "cover"
)

// ImageRequest is one illustration call.
type ImageRequest struct {
	Kind    ImageKind
	Subject string
	Prompt  string
}

// Picture is what a backend returns for an image request. Backends fill Data
// when they return bytes and URL when they only return a link.
type Picture struct {
	Data []byte
	URL  string
}

// Empty reports whether the picture carries nothing usable.
func (p Picture) Empty() bool {
	return len(p.Data) == 0 && p.URL == ""
}

// Service is a text and image generation backend.
type Service interface {
	GenerateText(ctx context.Context, req TextRequest) (string, error)
	GenerateImage(ctx context.Context, req ImageRequest) (Picture, error)
}
