package display

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user-none/eblitui/android/storage"
)

type fakeTarget struct {
	handle   WindowHandle
	presents int
	last     *image.RGBA
	closed   bool
}

func (f *fakeTarget) Present(img *image.RGBA) error {
	f.presents++
	f.last = img
	return nil
}

func (f *fakeTarget) Close() error {
	f.closed = true
	return nil
}

type opener struct {
	opened []*fakeTarget
	fail   error
}

func (o *opener) open(desc SurfaceDescriptor) (Target, error) {
	if o.fail != nil {
		return nil, o.fail
	}
	t := &fakeTarget{handle: desc.Handle}
	o.opened = append(o.opened, t)
	return t, nil
}

type solidFrame struct {
	width, height int
	rgba          [4]byte
}

func (s solidFrame) Framebuffer() ([]byte, int, int) {
	pix := make([]byte, s.width*s.height*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:], s.rgba[:])
	}
	return pix, s.width * 4, s.height
}

func surface(h WindowHandle, w, ht uint32) SurfaceDescriptor {
	return SurfaceDescriptor{Handle: h, Format: FormatRGBA8888, Width: w, Height: ht}
}

func TestPresenter_CreateRenderDestroy(t *testing.T) {
	o := &opener{}
	p := NewPresenter(zaptest.NewLogger(t), storage.RendererOpenGL, o.open)

	require.NoError(t, p.Create(surface(1, 40, 20)))
	require.Len(t, o.opened, 1)
	assert.True(t, p.HasTarget())

	p.SetLinearFiltering(false)
	p.RenderFrame(solidFrame{width: 10, height: 10, rgba: [4]byte{255, 0, 0, 255}})

	target := o.opened[0]
	require.Equal(t, 1, target.presents)
	assert.Equal(t, image.Rect(0, 0, 40, 20), target.last.Bounds())
	// Centered 20x20 image inside a 40x20 canvas: bars at the sides.
	assert.Equal(t, uint8(0), target.last.RGBAAt(5, 10).R)
	assert.Equal(t, uint8(255), target.last.RGBAAt(20, 10).R)

	p.Destroy()
	assert.True(t, target.closed)
	assert.False(t, p.HasTarget())
}

func TestPresenter_CreateSurfaceless(t *testing.T) {
	p := NewPresenter(nil, storage.RendererOpenGL, (&opener{}).open)
	assert.ErrorIs(t, p.Create(surface(NoWindow, 10, 10)), ErrSurfaceless)
}

func TestPresenter_CreateFailureUnwinds(t *testing.T) {
	boom := errors.New("no egl")
	o := &opener{fail: boom}
	p := NewPresenter(zaptest.NewLogger(t), storage.RendererVulkan, o.open)

	err := p.Create(surface(7, 10, 10))
	assert.ErrorIs(t, err, boom)
	assert.False(t, p.HasTarget())
	assert.Nil(t, p.canvas)
}

func TestPresenter_ResizeKeepsTarget(t *testing.T) {
	o := &opener{}
	p := NewPresenter(zaptest.NewLogger(t), storage.RendererOpenGL, o.open)
	require.NoError(t, p.Create(surface(1, 10, 10)))

	p.Resize(30, 15)
	p.RenderFrame(nil)

	require.Len(t, o.opened, 1, "resize must not reopen the window")
	assert.Equal(t, image.Rect(0, 0, 30, 15), o.opened[0].last.Bounds())
}

func TestPresenter_ChangeTarget(t *testing.T) {
	o := &opener{}
	p := NewPresenter(zaptest.NewLogger(t), storage.RendererOpenGL, o.open)
	require.NoError(t, p.Create(surface(1, 10, 10)))

	require.NoError(t, p.ChangeTarget(surface(NoWindow, 0, 0)))
	assert.True(t, o.opened[0].closed)
	assert.False(t, p.HasTarget())

	// Frames are dropped while surfaceless.
	p.RenderFrame(solidFrame{width: 2, height: 2})
	assert.Equal(t, 0, o.opened[0].presents)

	require.NoError(t, p.ChangeTarget(surface(2, 16, 16)))
	require.Len(t, o.opened, 2)
	assert.Equal(t, WindowHandle(2), o.opened[1].handle)
	p.RenderFrame(solidFrame{width: 2, height: 2})
	assert.Equal(t, 1, o.opened[1].presents)
}

func TestPresenter_IgnoresShortFrames(t *testing.T) {
	o := &opener{}
	p := NewPresenter(zaptest.NewLogger(t), storage.RendererOpenGL, o.open)
	require.NoError(t, p.Create(surface(1, 4, 4)))

	p.RenderFrame(badFrame{})
	assert.Equal(t, 1, o.opened[0].presents, "the cleared canvas is still presented")
	assert.Nil(t, p.frame)
}

type badFrame struct{}

func (badFrame) Framebuffer() ([]byte, int, int) { return make([]byte, 3), 8, 4 }

func TestPlacement(t *testing.T) {
	tests := []struct {
		name  string
		align storage.Alignment
		want  image.Rectangle
	}{
		{"center", storage.AlignCenter, image.Rect(10, 0, 30, 20)},
		{"left", storage.AlignLeftOrTop, image.Rect(0, 0, 20, 20)},
		{"right", storage.AlignRightOrBottom, image.Rect(20, 0, 40, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Placement(10, 10, 40, 20, tt.align))
		})
	}

	assert.Equal(t, image.Rect(0, 5, 20, 15), Placement(20, 10, 20, 20, storage.AlignCenter))
	assert.Equal(t, image.Rectangle{}, Placement(0, 10, 20, 20, storage.AlignCenter))
}

func TestSurfaceDescriptor(t *testing.T) {
	assert.True(t, SurfaceDescriptor{}.Surfaceless())
	assert.False(t, surface(3, 1, 1).Surfaceless())
	assert.True(t, surface(1, 5, 6).SameSize(surface(2, 5, 6)))
	assert.False(t, surface(1, 5, 6).SameSize(surface(1, 6, 5)))
	assert.Equal(t, "RGB565", FormatRGB565.String())
	assert.Equal(t, "PixelFormat(0)", PixelFormat(0).String())
}
