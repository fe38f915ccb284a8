// Package selfhosted implements content.Service against local inference
// servers: an Ollama-compatible text endpoint and an Automatic1111-compatible
// txt2img endpoint.
package selfhosted

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	hconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/content"
)

// NegativePrompt steers the image server away from common artefacts. The
// BREAK keywords split it into separately weighted chunks.
const NegativePrompt = "" +
	"ai-generated, artifact, artifacts, bad quality, bad scan, blurred, blurry, compressed, compression artifacts, corrupted, dirty art scan, dirty scan, dithering, downsampling, faded lines, frameborder, grainy, heavily compressed, heavily pixelated, high noise, image noise, low dpi, low fidelity, low resolution, lowres, moire pattern, moiré pattern, motion blur, muddy colors, noise, noisy background, overcompressed, pixelation, pixels, poor quality, poor lineart, scanned with errors, scan artifact, scan errors, very low quality, visible pixels BREAK " +
	"amateur, amateur drawing, bad anatomy, bad art, bad aspect ratio, bad color, bad coloring, bad composition, bad contrast, bad crop, bad drawing, bad image, bad lighting, bad lineart, bad perspective, bad photoshop, bad pose, bad proportions, bad shading, bad sketch, bad trace, bad typesetting, bad vector, beginner, black and white, broken anatomy, broken pose, cartoon, clashing styles, color error, color issues, color mismatch, deformed, dirty art, disfigured, displeasing, distorted, distorted proportions, drawing, dubious anatomy, duplicate, early, exaggerated limbs, exaggerated pose, flat colors, gross proportions, incomplete, inconsistent proportions, inconsistent shading, inconsistent style, incorrect anatomy, lazy art, long neck, low contrast, low detail, low detail background, low effort, low quality background, malformed limbs, messy, messy drawing, messy lineart, misaligned, mutated hands, mutation, mutilated, no shading, off center, off model, off model errors, off-model, poor background, poor color, poor coloring, poorly colored, poorly drawn, poorly drawn face, poorly drawn hands, poorly proportioned, poorly scaled, poorly shaded, quality control, questionable anatomy, questionable quality, random background, rough, rough drawing, rough edges, rough sketch, rushed, shading error, sketch, sketchy, smudged, smudged lines, symmetrical, terrible quality, too many fingers, twisted, ugly, unclear, uncolored, uncoloured, under saturated, underexposed, uneven lines, unfinished, unfinished lineart, unpolished, worst quality, wrong anatomy, wrong proportions BREAK " +
	"bar censor, censor, censor mosaic, censored, filter abuse, instagram filter, mosaic censoring, over filter, over saturated, over sharpened, overbrightened, overdarkened, overexposed, overfiltered, oversaturated BREAK " +
	"aliasing, anatomy error, anatomy mistake, camera aberration, chromatic aberration, cloned face, color banding, cribbed from, cropped, draft, emoji, error, extra arms, extra digits, extra fingers, extra legs, extra limbs, fused fingers, gradient background, improper cropping, jagged edges, jpeg artifacts, missing, missing arms, missing legs, needs retage, no background, obstructed view, overlay text, placeholder, style mismatch, stylistic clash, tagme BREAK " +
	"empty background, simple background, white background BREAK " +
	"artist name, artist signature, artist unknown, signature, stolen artwork, username, watermark, watermark text, watermarked, web address, logo, patreon logo, sample watermark, sticker, sticker overlay, abstract, icon overlay, meme, monochrome, ms paint, pixel art, screencap, symetrical"

const (
	generatePath = "/api/generate"
	txt2imgPath  = "/sdapi/v1/txt2img"

	imageSteps   = 30
	imageSide    = 768
	imageSampler = "Euler a"
	imageCFG     = 7

	dialTimeout = 10 * time.Second
)

// Options configures the self-hosted backend.
type Options struct {
	TextHost  string
	TextModel string
	ImageHost string
}

// Service posts JSON to the configured local servers.
type Service struct {
	http      *client.Client
	textHost  string
	textModel string
	imageHost string
}

// New builds a self-hosted backend.
func New(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.TextHost) == "" {
		return nil, fmt.Errorf("selfhosted: text host is required")
	}
	if opts.TextModel == "" {
		return nil, fmt.Errorf("selfhosted: text model is required")
	}
	c, err := client.NewClient(client.WithDialTimeout(dialTimeout))
	if err != nil {
		return nil, fmt.Errorf("selfhosted: http client: %w", err)
	}
	return &Service{
		http:      c,
		textHost:  strings.TrimRight(opts.TextHost, "/"),
		textModel: opts.TextModel,
		imageHost: strings.TrimRight(opts.ImageHost, "/"),
	}, nil
}

// Factory adapts New to content.Registry.
func Factory(env config.Env) (content.Service, error) {
	return New(Options{
		TextHost:  env.OllamaHost,
		TextModel: env.OllamaModel,
		ImageHost: env.Automatic1111URL,
	})
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Format  string          `json:"format"`
	Stream  bool            `json:"stream"`
	Images  []string        `json:"images,omitempty"`
	Options generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// GenerateText asks the text server for a single JSON-formatted completion.
func (s *Service) GenerateText(ctx context.Context, req content.TextRequest) (string, error) {
	payload := generateRequest{
		Model:  s.textModel,
		Prompt: req.Prompt,
		System: req.SystemPrompt(),
		Format: "json",
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.Image != nil {
		payload.Images = []string{req.Image.Base64()}
	}
	var out generateResponse
	if err := s.post(ctx, s.textHost+generatePath, payload, &out); err != nil {
		return "", fmt.Errorf("selfhosted: generate text: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("selfhosted: generate text: %s", out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("selfhosted: generate text: %w", content.ErrEmptyResponse)
	}
	return out.Response, nil
}

type txt2imgRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	SamplerName    string `json:"sampler_name"`
	Seed           int    `json:"seed"`
	CFGScale       int    `json:"cfg_scale"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// GenerateImage renders one image and returns the decoded bytes.
func (s *Service) GenerateImage(ctx context.Context, req content.ImageRequest) (content.Picture, error) {
	if s.imageHost == "" {
		return content.Picture{}, fmt.Errorf("selfhosted: image host is not configured")
	}
	payload := txt2imgRequest{
		Prompt:         req.Prompt,
		NegativePrompt: NegativePrompt,
		Steps:          imageSteps,
		Width:          imageSide,
		Height:         imageSide,
		SamplerName:    imageSampler,
		Seed:           -1,
		CFGScale:       imageCFG,
	}
	var out txt2imgResponse
	if err := s.post(ctx, s.imageHost+txt2imgPath, payload, &out); err != nil {
		return content.Picture{}, fmt.Errorf("selfhosted: generate image: %w", err)
	}
	if len(out.Images) == 0 {
		return content.Picture{}, fmt.Errorf("selfhosted: generate image: %w", content.ErrEmptyResponse)
	}
	data, err := base64.StdEncoding.DecodeString(stripDataPrefix(out.Images[0]))
	if err != nil {
		return content.Picture{}, fmt.Errorf("selfhosted: decode image: %w", err)
	}
	return content.Picture{Data: data}, nil
}

func (s *Service) post(ctx context.Context, url string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(url)
	req.Header.SetContentTypeBytes([]byte(consts.MIMEApplicationJSON))
	req.SetBody(body)
	// The hertz client does not watch ctx, so its deadline becomes the
	// request timeout.
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return context.DeadlineExceeded
		}
		req.SetOptions(hconfig.WithRequestTimeout(left))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.http.Do(ctx, req, resp); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	status := resp.StatusCode()
	switch {
	case status == consts.StatusBadRequest || status == consts.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d: %s", content.ErrBadRequest, status, snippet(resp.Body()))
	case status < 200 || status >= 300:
		return fmt.Errorf("status %d: %s", status, snippet(resp.Body()))
	}
	if err := json.Unmarshal(resp.Body(), target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func stripDataPrefix(s string) string {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+len(";base64,"):]
	}
	return s
}

func snippet(body []byte) string {
	const max = 200
	text := strings.TrimSpace(string(body))
	if len(text) > max {
		return text[:max] + "..."
	}
	return text
}

var _ content.Service = (*Service)(nil)
