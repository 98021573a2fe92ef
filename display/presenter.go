package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	"github.com/user-none/eblitui/android/storage"
)

var (
	// ErrSurfaceless is returned by Create when given a descriptor without a window.
	ErrSurfaceless = errors.New("display: no window to create against")

	// ErrNoTarget is returned when the opener produced no target.
	ErrNoTarget = errors.New("display: window could not be opened")
)

// FrameSource supplies the most recent emulated frame as RGBA rows.
type FrameSource interface {
	Framebuffer() (pixels []byte, stride, height int)
}

// Target is an opened platform window.
type Target interface {
	// Present shows img, which is sized to the surface.
	Present(img *image.RGBA) error
	Close() error
}

// Opener opens a Target for a surface. The host supplies it.
type Opener func(desc SurfaceDescriptor) (Target, error)

// Presenter scales frames on the CPU into a surface-sized canvas and hands
// the canvas to the host Target.
type Presenter struct {
	logger   *zap.Logger
	open     Opener
	renderer storage.Renderer

	desc   SurfaceDescriptor
	target Target
	canvas *image.RGBA
	frame  *image.RGBA

	align  storage.Alignment
	scaler xdraw.Scaler
}

// NewPresenter returns a presenter for the named renderer. Nothing is
// allocated until Create.
func NewPresenter(logger *zap.Logger, renderer storage.Renderer, open Opener) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{
		logger:   logger,
		open:     open,
		renderer: renderer,
		align:    storage.AlignCenter,
		scaler:   xdraw.ApproxBiLinear,
	}
}

// Renderer returns the renderer name this presenter was created for.
func (p *Presenter) Renderer() storage.Renderer {
	return p.renderer
}

// Create allocates the canvas and opens the window. On failure everything
// allocated so far is released, newest first.
func (p *Presenter) Create(desc SurfaceDescriptor) (err error) {
	if desc.Surfaceless() {
		return ErrSurfaceless
	}

	var undo []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}()

	p.canvas = newCanvas(desc)
	undo = append(undo, func() { p.canvas = nil })

	t, err := p.openTarget(desc)
	if err != nil {
		return err
	}
	p.target = t
	undo = append(undo, func() { p.closeTarget() })

	p.desc = desc
	p.logger.Info("Display created",
		zap.String("renderer", string(p.renderer)),
		zap.Uint32("width", desc.Width),
		zap.Uint32("height", desc.Height),
		zap.Stringer("format", desc.Format))
	return nil
}

// Resize changes the canvas size without reopening the window.
func (p *Presenter) Resize(width, height uint32) {
	if p.desc.Width == width && p.desc.Height == height {
		return
	}
	p.desc.Width, p.desc.Height = width, height
	if p.canvas != nil {
		p.canvas = newCanvas(p.desc)
	}
	p.logger.Debug("Display resized", zap.Uint32("width", width), zap.Uint32("height", height))
}

// ChangeTarget releases the current window and opens desc. A surfaceless
// desc leaves the presenter without a window; frames are then dropped.
func (p *Presenter) ChangeTarget(desc SurfaceDescriptor) error {
	p.closeTarget()
	p.desc = desc
	if desc.Surfaceless() {
		p.logger.Info("Display is now surfaceless")
		return nil
	}

	p.canvas = newCanvas(desc)
	t, err := p.openTarget(desc)
	if err != nil {
		return err
	}
	p.target = t
	p.logger.Info("Display target changed",
		zap.Uint32("width", desc.Width),
		zap.Uint32("height", desc.Height))
	return nil
}

// HasTarget reports whether a window is attached.
func (p *Presenter) HasTarget() bool {
	return p.target != nil
}

// SetAlignment positions the image inside the surface.
func (p *Presenter) SetAlignment(a storage.Alignment) {
	p.align = a
}

// SetLinearFiltering selects bilinear or nearest-neighbour scaling.
func (p *Presenter) SetLinearFiltering(linear bool) {
	if linear {
		p.scaler = xdraw.ApproxBiLinear
	} else {
		p.scaler = xdraw.NearestNeighbor
	}
}

// RenderFrame draws the current frame of src. Without a window, or without
// a frame, it does nothing.
func (p *Presenter) RenderFrame(src FrameSource) {
	if p.target == nil || p.canvas == nil {
		return
	}

	draw.Draw(p.canvas, p.canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	if src != nil {
		if frame := p.loadFrame(src); frame != nil {
			dst := Placement(frame.Bounds().Dx(), frame.Bounds().Dy(),
				p.canvas.Bounds().Dx(), p.canvas.Bounds().Dy(), p.align)
			p.scaler.Scale(p.canvas, dst, frame, frame.Bounds(), draw.Src, nil)
		}
	}

	if err := p.target.Present(p.canvas); err != nil {
		p.logger.Warn("Present failed", zap.Error(err))
	}
}

// Destroy releases the window and the canvas.
func (p *Presenter) Destroy() {
	p.closeTarget()
	p.canvas = nil
	p.frame = nil
	p.logger.Info("Display destroyed")
}

func (p *Presenter) openTarget(desc SurfaceDescriptor) (Target, error) {
	t, err := p.open(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to open window %#x: %w", uintptr(desc.Handle), err)
	}
	if t == nil {
		return nil, ErrNoTarget
	}
	return t, nil
}

func (p *Presenter) closeTarget() {
	if p.target == nil {
		return
	}
	if err := p.target.Close(); err != nil {
		p.logger.Warn("Failed to close window", zap.Error(err))
	}
	p.target = nil
}

// loadFrame copies the source pixels into a reusable image.
func (p *Presenter) loadFrame(src FrameSource) *image.RGBA {
	pixels, stride, height := src.Framebuffer()
	if stride < 4 || height <= 0 || len(pixels) < stride*height {
		return nil
	}
	width := stride / 4
	if p.frame == nil || p.frame.Bounds().Dx() != width || p.frame.Bounds().Dy() != height {
		p.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	copy(p.frame.Pix, pixels[:stride*height])
	return p.frame
}

func newCanvas(desc SurfaceDescriptor) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, int(desc.Width), int(desc.Height)))
}

// Placement returns the largest rectangle with the source aspect ratio that
// fits in dstW x dstH, positioned by align on both axes.
func Placement(srcW, srcH, dstW, dstH int, align storage.Alignment) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	scale := min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)

	offset := func(free int) int {
		switch align {
		case storage.AlignLeftOrTop:
			return 0
		case storage.AlignRightOrBottom:
			return free
		}
		return free / 2
	}
	x, y := offset(dstW-w), offset(dstH-h)
	return image.Rect(x, y, x+w, y+h)
}
