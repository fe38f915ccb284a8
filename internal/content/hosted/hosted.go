// Package hosted implements content.Service on the OpenAI API: chat
// completions in JSON mode for text and the images endpoint for illustration.
package hosted

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kingrea/worldforge/internal/config"
	"github.com/kingrea/worldforge/internal/content"
)

const (
	defaultMaxTokens = 1000
	imageSize        = openai.ImageGenerateParamsSize1024x1024
)

// Options configures the hosted backend.
type Options struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string
	MaxRetries int
	HTTPClient *http.Client
}

// Service talks to the OpenAI API.
type Service struct {
	client     openai.Client
	model      string
	imageModel string
}

// New builds a hosted backend.
func New(opts Options) (*Service, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("hosted: api key is required")
	}
	if opts.Model == "" {
		opts.Model = string(openai.ChatModelGPT4oMini)
	}
	if opts.ImageModel == "" {
		opts.ImageModel = string(openai.ImageModelDallE3)
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.MaxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &Service{
		client:     openai.NewClient(reqOpts...),
		model:      opts.Model,
		imageModel: opts.ImageModel,
	}, nil
}

// Factory adapts New to content.Registry.
func Factory(env config.Env) (content.Service, error) {
	return New(Options{
		APIKey:     env.OpenAIAPIKey,
		Model:      env.OpenAIModel,
		ImageModel: env.OpenAIImageModel,
		BaseURL:    env.OpenAIBaseURL,
		MaxRetries: 2,
	})
}

// GenerateText sends one chat completion in JSON mode. An attached image is
// sent inline as a data URI.
func (s *Service) GenerateText(ctx context.Context, req content.TextRequest) (string, error) {
	var user openai.ChatCompletionMessageParamUnion
	if req.Image != nil {
		user = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(req.Prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: req.Image.DataURI()}),
		})
	} else {
		user = openai.UserMessage(req.Prompt)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt()),
			user,
		},
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("hosted: chat completion: %w", classify(err))
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("hosted: chat completion: %w", content.ErrEmptyResponse)
	}
	return completion.Choices[0].Message.Content, nil
}

// GenerateImage requests one image and returns its decoded bytes.
func (s *Service) GenerateImage(ctx context.Context, req content.ImageRequest) (content.Picture, error) {
	resp, err := s.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(s.imageModel),
		N:              openai.Int(1),
		Size:           imageSize,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return content.Picture{}, fmt.Errorf("hosted: generate image: %w", classify(err))
	}
	if len(resp.Data) == 0 {
		return content.Picture{}, fmt.Errorf("hosted: generate image: %w", content.ErrEmptyResponse)
	}
	image := resp.Data[0]
	if image.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(image.B64JSON)
		if err != nil {
			return content.Picture{}, fmt.Errorf("hosted: decode image: %w", err)
		}
		return content.Picture{Data: data}, nil
	}
	if image.URL != "" {
		return content.Picture{URL: image.URL}, nil
	}
	return content.Picture{}, fmt.Errorf("hosted: generate image: %w", content.ErrEmptyResponse)
}

// classify maps API rejections onto content.ErrBadRequest.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %s", content.ErrBadRequest, apiErr.Error())
		}
	}
	return err
}

var _ content.Service = (*Service)(nil)
