package providers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/pipeline"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider backs the script and voice stages.
type OpenAIProvider struct {
	client       openai.Client
	artifactsDir string
	chatModel    openai.ChatModel
}

func NewOpenAIProvider(apiKey, artifactsDir string) *OpenAIProvider {
	return &OpenAIProvider{
		client:       openai.NewClient(option.WithAPIKey(apiKey)),
		artifactsDir: artifactsDir,
		chatModel:    openai.ChatModelGPT4oMini,
	}
}

func (p *OpenAIProvider) Invoke(ctx context.Context, stage pipeline.Stage, provider integration.Integration, v *job.Video) error {
	client := p.client
	if provider.APIKey != "" {
		client = openai.NewClient(option.WithAPIKey(provider.APIKey))
	}

	switch stage {
	case pipeline.StageScript:
		return p.generateScript(ctx, client, v)
	case pipeline.StageVoice:
		return p.generateVoice(ctx, client, v)
	default:
		return fmt.Errorf("openai provider does not support stage %s", stage)
	}
}

func (p *OpenAIProvider) generateScript(ctx context.Context, client openai.Client, v *job.Video) error {
	prompt := buildScriptPrompt(v)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a short-form video scriptwriter. Write a voiceover script only, no scene directions."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return fmt.Errorf("script generation failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return fmt.Errorf("script generation returned no content")
	}

	v.Artifacts.Script = resp.Choices[0].Message.Content
	logrus.Debugf("[PROVIDER:OPENAI] Script generated for job %s (%d chars)", v.ID, len(v.Artifacts.Script))
	return nil
}

func (p *OpenAIProvider) generateVoice(ctx context.Context, client openai.Client, v *job.Video) error {
	if v.Artifacts.Script == "" {
		return fmt.Errorf("voice stage requires a script artifact")
	}

	resp, err := client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model: openai.SpeechModelTTS1,
		Voice: openai.AudioSpeechNewParamsVoiceAlloy,
		Input: v.Artifacts.Script,
	})
	if err != nil {
		return fmt.Errorf("voice synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	dir := filepath.Join(p.artifactsDir, v.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path := filepath.Join(dir, "voice.mp3")
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to store voice artifact: %w", err)
	}

	v.Artifacts.VoiceURL = path
	return nil
}

func buildScriptPrompt(v *job.Video) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", firstNonEmpty(v.Topic, v.Title))
	if v.Suggestion != nil {
		if v.Suggestion.Hook != "" {
			fmt.Fprintf(&b, "Hook: %s\n", v.Suggestion.Hook)
		}
		if len(v.Suggestion.ScriptOutline) > 0 {
			fmt.Fprintf(&b, "Outline:\n- %s\n", strings.Join(v.Suggestion.ScriptOutline, "\n- "))
		}
		if v.Suggestion.Tone != "" {
			fmt.Fprintf(&b, "Tone: %s\n", v.Suggestion.Tone)
		}
		if v.Suggestion.TargetAudience != "" {
			fmt.Fprintf(&b, "Audience: %s\n", v.Suggestion.TargetAudience)
		}
		if v.Suggestion.DurationSeconds > 0 {
			fmt.Fprintf(&b, "Target length: %d seconds\n", v.Suggestion.DurationSeconds)
		}
	}
	if v.CustomInstructions != "" {
		fmt.Fprintf(&b, "Extra instructions: %s\n", v.CustomInstructions)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
