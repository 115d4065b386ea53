package trajectory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"droidrun/internal/agent/ports"
	"droidrun/internal/logging"

	_ "image/jpeg"
	_ "image/png"
)

const (
	macroFormatVersion = "1.0"
	gifFrameDelay      = 100 // centiseconds, 1s per frame
)

type macroFile struct {
	Version      string       `json:"version"`
	Description  string       `json:"description"`
	Timestamp    time.Time    `json:"timestamp"`
	TotalActions int          `json:"total_actions"`
	Actions      []macroEntry `json:"actions"`
}

// Persist writes the trajectory under baseDir and returns the created run
// directory. Artifacts are written concurrently; the first write error is
// returned but every artifact is attempted.
func (t *RunTrajectory) Persist(baseDir string, logger logging.Logger) (string, error) {
	if t.level == LevelNone {
		return "", nil
	}
	logger = logging.OrNop(logger)

	t.mu.Lock()
	events := append([]json.RawMessage(nil), t.events...)
	screenshots := append([][]byte(nil), t.screenshots...)
	uiStates := append([]*ports.DeviceState(nil), t.uiStates...)
	macros := append([]macroEntry(nil), t.macros...)
	t.mu.Unlock()

	runDir := filepath.Join(baseDir,
		fmt.Sprintf("%s_%s", t.startedAt.Format("2006-01-02_15-04-05"), uuid.NewString()[:8]))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create trajectory dir: %w", err)
	}

	var g errgroup.Group

	g.Go(func() error {
		return writeJSON(filepath.Join(runDir, "trajectory.json"), events)
	})

	if t.level == LevelAction && len(macros) > 0 {
		g.Go(func() error {
			return writeJSON(filepath.Join(runDir, "macro.json"), macroFile{
				Version:      macroFormatVersion,
				Description:  fmt.Sprintf("Recorded actions for goal: %s", t.goal),
				Timestamp:    t.startedAt,
				TotalActions: len(macros),
				Actions:      macros,
			})
		})
	}

	if len(screenshots) > 0 {
		g.Go(func() error {
			dir := filepath.Join(runDir, "screenshots")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return writeAnimation(filepath.Join(dir, "trajectory.gif"), screenshots, logger)
		})
	}

	if len(uiStates) > 0 {
		g.Go(func() error {
			dir := filepath.Join(runDir, "ui_states")
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			for i, state := range uiStates {
				if err := writeJSON(filepath.Join(dir, fmt.Sprintf("%d.json", i)), state); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("trajectory persistence incomplete: %v", err)
		return runDir, err
	}
	logger.Info("trajectory saved to %s", runDir)
	return runDir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeAnimation encodes the screenshot sequence into an animated GIF, one
// second per frame. Undecodable frames are skipped with a warning.
func writeAnimation(path string, screenshots [][]byte, logger logging.Logger) error {
	anim := &gif.GIF{}
	for i, data := range screenshots {
		frame, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			logger.Warn("skipping undecodable screenshot %d: %v", i, err)
			continue
		}
		paletted := image.NewPaletted(frame.Bounds(), palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, frame.Bounds(), frame, image.Point{})
		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, gifFrameDelay)
	}
	if len(anim.Image) == 0 {
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
