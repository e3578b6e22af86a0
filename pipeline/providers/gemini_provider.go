package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/pipeline"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiProvider backs the video AI stage. It can also serve as a swap
// target for the script stage.
type GeminiProvider struct {
	apiKey string
	model  string
}

func NewGeminiProvider(apiKey string) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, model: "gemini-2.0-flash"}
}

func (p *GeminiProvider) Invoke(ctx context.Context, stage pipeline.Stage, provider integration.Integration, v *job.Video) error {
	apiKey := p.apiKey
	if provider.APIKey != "" {
		apiKey = provider.APIKey
	}

	switch stage {
	case pipeline.StageVideo:
		return p.generateVideo(ctx, apiKey, v)
	case pipeline.StageScript:
		return p.generateScript(ctx, apiKey, v)
	default:
		return fmt.Errorf("gemini provider does not support stage %s", stage)
	}
}

func (p *GeminiProvider) newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

func (p *GeminiProvider) generateVideo(ctx context.Context, apiKey string, v *job.Video) error {
	client, err := p.newClient(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("gemini client init failed: %w", err)
	}

	var b strings.Builder
	b.WriteString("Produce a shot-by-shot render plan for a short vertical video.\n")
	fmt.Fprintf(&b, "Script:\n%s\n", v.Artifacts.Script)
	if len(v.Artifacts.MediaURLs) > 0 {
		fmt.Fprintf(&b, "Available media assets:\n%s\n", strings.Join(v.Artifacts.MediaURLs, "\n"))
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(b.String()), nil)
	if err != nil {
		return fmt.Errorf("video generation failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("video generation returned no content")
	}

	// The render service consumes the plan by reference; the URL is handed
	// to the assembly stage.
	v.Artifacts.RenderURL = fmt.Sprintf("render://%s/plan", v.ID)
	logrus.Debugf("[PROVIDER:GEMINI] Render plan produced for job %s (%d chars)", v.ID, len(text))
	return nil
}

func (p *GeminiProvider) generateScript(ctx context.Context, apiKey string, v *job.Video) error {
	client, err := p.newClient(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("gemini client init failed: %w", err)
	}

	prompt := "Write a short-form video voiceover script, no scene directions.\n" + buildScriptPrompt(v)
	resp, err := client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return fmt.Errorf("script generation failed: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("script generation returned no content")
	}

	v.Artifacts.Script = text
	return nil
}
