package browser

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Screenshotter saves debug screenshots into a directory. All failures are
// logged and swallowed; a nil or disabled Screenshotter does nothing.
type Screenshotter struct {
	dir     string
	enabled bool
	log     zerolog.Logger
}

// NewScreenshotter creates dir if needed. An empty dir disables screenshots.
func NewScreenshotter(dir string, log zerolog.Logger) (*Screenshotter, error) {
	if dir == "" {
		return &Screenshotter{log: log}, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	return &Screenshotter{dir: dir, enabled: true, log: log}, nil
}

// Enabled reports whether Capture writes files.
func (s *Screenshotter) Enabled() bool {
	return s != nil && s.enabled
}

// Path returns the file path used for a screenshot name.
func (s *Screenshotter) Path(name string) string {
	return filepath.Join(s.dir, name+".png")
}

// Capture writes a PNG of the current viewport as <dir>/<name>.png.
func (s *Screenshotter) Capture(page *rod.Page, name string) {
	if !s.Enabled() || page == nil {
		return
	}

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("name", name).Msg("screenshot failed")
		return
	}

	path := s.Path(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.log.Warn().Err(err).Str("file", path).Msg("failed to save screenshot")
		return
	}
	s.log.Debug().Str("file", path).Msg("screenshot saved")
}
