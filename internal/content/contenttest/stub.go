// Package contenttest provides a scripted content.Service for tests.
package contenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/kingrea/worldforge/internal/content"
)

// Stub is a content.Service whose replies come from callbacks. Every call is
// recorded. A nil Text callback answers with Canned, a nil Image callback
// answers with a one-byte picture.
type Stub struct {
	Text  func(req content.TextRequest) (string, error)
	Image func(req content.ImageRequest) (content.Picture, error)

	mu         sync.Mutex
	textCalls  []content.TextRequest
	imageCalls []content.ImageRequest
}

// GenerateText records the request and returns the scripted reply.
func (s *Stub) GenerateText(ctx context.Context, req content.TextRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	s.textCalls = append(s.textCalls, req)
	s.mu.Unlock()
	if s.Text == nil {
		return Canned(req), nil
	}
	return s.Text(req)
}

// GenerateImage records the request and returns the scripted picture.
func (s *Stub) GenerateImage(ctx context.Context, req content.ImageRequest) (content.Picture, error) {
	if err := ctx.Err(); err != nil {
		return content.Picture{}, err
	}
	s.mu.Lock()
	s.imageCalls = append(s.imageCalls, req)
	s.mu.Unlock()
	if s.Image == nil {
		return content.Picture{Data: []byte{0x89}}, nil
	}
	return s.Image(req)
}

// TextCalls returns a copy of every recorded text request.
func (s *Stub) TextCalls() []content.TextRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]content.TextRequest(nil), s.textCalls...)
}

// ImageCalls returns a copy of every recorded image request.
func (s *Stub) ImageCalls() []content.ImageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]content.ImageRequest(nil), s.imageCalls...)
}

// CountSteps tallies recorded text calls by step, repairs excluded.
func (s *Stub) CountSteps() map[string]int {
	counts := map[string]int{}
	for _, req := range s.TextCalls() {
		if !req.Repair {
			counts[req.Step]++
		}
	}
	return counts
}

// Canned returns fixed, valid JSON for each step. Location and character
// names carry the request index so they never collide.
func Canned(req content.TextRequest) string {
	switch req.Step {
	case content.StepExtract:
		return `{"regions":[{"LocationName":"Port Ashen","LocationType":"smallTown","ShortDescription":"a fog-bound fishing town"},{"LocationName":"Greywood","LocationType":"NaturalFeature","ShortDescription":"an old forest"}]}`
	case content.StepDescribe:
		return `{"description":"Fog rolls over slate roofs.","lore":"The town was raised on a wrecked galleon."}`
	case content.StepLocation:
		return fmt.Sprintf(`{"name":"Dock %d","description":"A tarred pier.","lore":"Rebuilt after the storm.","other":{}}`, req.Index)
	case content.StepCharacter:
		return fmt.Sprintf(`{"name":"Fisher %d","description":"Weathered hands.","personality":"Suspicious of strangers.","race":"human","class":"pauper","gender":"F","other":{}}`, req.Index)
	case content.StepQuest:
		return fmt.Sprintf(`{"name":"Quest %d","description":"Someone must choose who keeps the lighthouse.","other":{}}`, req.Index)
	case content.StepEncounter:
		return fmt.Sprintf(`{"encounter":{"title":"Encounter %d","description":"A gull steals a purse.","opportunity":"The purse holds a map.","other":{}}}`, req.Index)
	default:
		return `{}`
	}
}
