package board

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"DrawPad/internal/autosave"
	"DrawPad/internal/state"
	"DrawPad/internal/store"
	"DrawPad/internal/surface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	*store.MemoryStore

	mu    sync.Mutex
	saves []string
	fail  error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: store.NewMemoryStore()}
}

func (r *recordingStore) Save(ctx context.Context, id, image string) error {
	r.mu.Lock()
	r.saves = append(r.saves, id)
	fail := r.fail
	r.mu.Unlock()
	if fail != nil {
		return fail
	}
	return r.MemoryStore.Save(ctx, id, image)
}

func (r *recordingStore) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func pt(x, y float64) state.Point { return state.Point{X: x, Y: y} }

func openBoard(t *testing.T, st store.Store, opts ...Option) *Board {
	t.Helper()
	b := New(st, opts...)
	require.NoError(t, b.Open(context.Background(), "doc-a", 200, 200))
	t.Cleanup(func() { _ = b.Shutdown(context.Background()) })
	return b
}

func drag(b *Board, pts ...state.Point) {
	b.Press(pts[0])
	for _, p := range pts[1:] {
		b.Move(p)
	}
	b.Release(pts[len(pts)-1])
}

func isBlank(img *image.RGBA) bool {
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if img.RGBAAt(x, y) != surface.Background {
				return false
			}
		}
	}
	return true
}

func changedBounds(img *image.RGBA) image.Rectangle {
	var r image.Rectangle
	for y := img.Rect.Min.Y; y < img.Rect.Max.Y; y++ {
		for x := img.Rect.Min.X; x < img.Rect.Max.X; x++ {
			if img.RGBAAt(x, y) != surface.Background {
				r = r.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return r
}

func TestInertWithoutDocument(t *testing.T) {
	st := newRecordingStore()
	b := New(st, WithSaveDelay(10*time.Millisecond))
	defer b.Shutdown(context.Background())

	drag(b, pt(1, 1), pt(50, 50))
	b.TypeRune('x')
	painted, err := b.ConfirmText()
	require.NoError(t, err)
	assert.False(t, painted)

	assert.Equal(t, Idle, b.State())
	assert.Nil(t, b.Image())
	assert.ErrorIs(t, b.Save(context.Background()), ErrNoDocument)
	assert.NoError(t, b.Clear(context.Background()))
	_, err = b.Snapshot()
	assert.ErrorIs(t, err, ErrNoDocument)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, st.count())
}

func TestFreehandStroke(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))

	b.Press(pt(10, 10))
	assert.Equal(t, Stroking, b.State())
	b.Move(pt(100, 10))
	b.Release(pt(100, 10))

	img := b.Image()
	assert.NotEqual(t, surface.Background, img.RGBAAt(50, 10))
	assert.Equal(t, surface.Background, img.RGBAAt(50, 100))
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, uint64(1), b.Revision())
}

func TestPressWithoutMovePaintsNothing(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	b.Press(pt(30, 30))
	b.Release(pt(30, 30))
	assert.True(t, isBlank(b.Image()))
}

func TestEraserLeavesTransparency(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	drag(b, pt(10, 50), pt(90, 50))
	require.NoError(t, b.SetTool(state.ToolEraser))
	drag(b, pt(10, 50), pt(90, 50))

	assert.Equal(t, uint8(0), b.Image().RGBAAt(50, 50).A)
}

func TestRectangleIgnoresDragDirection(t *testing.T) {
	a := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	c := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	for _, b := range []*Board{a, c} {
		require.NoError(t, b.SetTool(state.ToolRectangle))
	}
	drag(a, pt(20, 20), pt(80, 60))
	drag(c, pt(80, 60), pt(20, 20))

	assert.False(t, isBlank(a.Image()))
	assert.Equal(t, a.Image().Pix, c.Image().Pix)
}

func TestCircleUsesDragDistanceAsRadius(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	require.NoError(t, b.SetTool(state.ToolCircle))
	drag(b, pt(100, 100), pt(150, 100))

	img := b.Image()
	assert.NotEqual(t, surface.Background, img.RGBAAt(150, 100))
	assert.NotEqual(t, surface.Background, img.RGBAAt(100, 50))
	assert.Equal(t, surface.Background, img.RGBAAt(100, 100))
}

func TestTriangleMirrorsAcrossPressPoint(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	require.NoError(t, b.SetTool(state.ToolTriangle))
	drag(b, pt(100, 20), pt(150, 80))

	img := b.Image()
	assert.NotEqual(t, surface.Background, img.RGBAAt(100, 80))
	r := changedBounds(img)
	assert.InDelta(t, 50, r.Min.X, 2)
	assert.InDelta(t, 150, r.Max.X, 2)
}

func TestShapeNotPaintedWhileDragging(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	require.NoError(t, b.SetTool(state.ToolLine))

	b.Press(pt(10, 10))
	b.Move(pt(120, 120))
	assert.Equal(t, ShapeDragging, b.State())
	assert.True(t, isBlank(b.Image()))

	b.Leave(pt(120, 120))
	assert.Equal(t, Idle, b.State())
	assert.False(t, isBlank(b.Image()))
}

func TestToolChangeMidGestureKeepsGestureSettings(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	require.NoError(t, b.SetTool(state.ToolRectangle))
	b.Press(pt(20, 20))
	require.NoError(t, b.SetTool(state.ToolPen))
	b.Release(pt(80, 60))

	assert.NotEqual(t, surface.Background, b.Image().RGBAAt(50, 20))
	assert.Equal(t, state.ToolPen, b.Tools().Tool)
}

func TestAutosaveCoalescesBurst(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(50*time.Millisecond))

	drag(b, pt(10, 10), pt(60, 10))
	drag(b, pt(10, 20), pt(60, 20))
	drag(b, pt(10, 30), pt(60, 30))

	assert.Eventually(t, func() bool { return st.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, st.count())

	saved, err := st.Load(context.Background(), "doc-a")
	require.NoError(t, err)
	want, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want, saved)
}

func TestSavedCallbackCarriesRevision(t *testing.T) {
	got := make(chan autosave.Snapshot, 1)
	b := openBoard(t, newRecordingStore(),
		WithSaveDelay(10*time.Millisecond),
		OnSaved(func(s autosave.Snapshot) { got <- s }),
	)
	drag(b, pt(10, 10), pt(60, 10))

	select {
	case s := <-got:
		assert.Equal(t, "doc-a", s.ID)
		assert.Equal(t, uint64(1), s.Revision)
	case <-time.After(time.Second):
		t.Fatal("no save")
	}
}

func TestSaveErrorReported(t *testing.T) {
	st := newRecordingStore()
	st.fail = errors.New("disk full")
	errs := make(chan error, 1)
	b := openBoard(t, st, WithSaveDelay(time.Hour), OnSaveError(func(_ autosave.Snapshot, err error) { errs <- err }))

	drag(b, pt(10, 10), pt(60, 10))
	err := b.Save(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, st.fail)
	assert.ErrorIs(t, <-errs, st.fail)
	assert.False(t, isBlank(b.Image()))
}

func TestTextConfirmNearAnchor(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(10*time.Millisecond))
	require.NoError(t, b.SetTool(state.ToolText))

	b.Press(pt(20, 30))
	b.Release(pt(20, 30))
	assert.Equal(t, Texting, b.State())

	b.TypeRune('H')
	b.TypeRune('i')
	b.TypeRune('!')
	b.Backspace()
	s, anchor, ok := b.Text()
	require.True(t, ok)
	assert.Equal(t, "Hi", s)
	assert.Equal(t, pt(20, 30), anchor)
	assert.True(t, isBlank(b.Image()))

	painted, err := b.ConfirmText()
	require.NoError(t, err)
	assert.True(t, painted)
	assert.Equal(t, Idle, b.State())

	r := changedBounds(b.Image())
	assert.False(t, r.Empty())
	assert.True(t, r.In(image.Rect(18, 28, 70, 60)), "text bounds %v", r)
	assert.Eventually(t, func() bool { return st.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBlankTextIsNotSaved(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(10*time.Millisecond))
	require.NoError(t, b.SetTool(state.ToolText))

	b.Press(pt(20, 30))
	b.SetText("   ")
	painted, err := b.ConfirmText()
	require.NoError(t, err)
	assert.False(t, painted)
	assert.Equal(t, Idle, b.State())

	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, st.count())
	assert.True(t, isBlank(b.Image()))
}

func TestCancelTextDiscards(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(10*time.Millisecond))
	require.NoError(t, b.SetTool(state.ToolText))

	b.Press(pt(20, 30))
	b.SetText("gone")
	b.CancelText()

	assert.Equal(t, Idle, b.State())
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, st.count())
	assert.True(t, isBlank(b.Image()))
}

func TestPressWhileTextingConfirms(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	require.NoError(t, b.SetTool(state.ToolText))

	b.Press(pt(20, 30))
	b.SetText("A")
	b.Press(pt(100, 100))

	assert.False(t, isBlank(b.Image()))
	assert.Equal(t, Texting, b.State())
	_, anchor, ok := b.Text()
	require.True(t, ok)
	assert.Equal(t, pt(100, 100), anchor)
}

func TestClearPersistsBlankImmediately(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	drag(b, pt(10, 10), pt(60, 10))

	b.Press(pt(5, 5))
	assert.ErrorIs(t, b.Clear(context.Background()), ErrBusy)
	b.Release(pt(5, 5))

	require.NoError(t, b.Clear(context.Background()))
	assert.True(t, isBlank(b.Image()))
	assert.Equal(t, 1, st.count())

	blank, err := surface.New(200, 200)
	require.NoError(t, err)
	want, err := blank.Serialize()
	require.NoError(t, err)
	saved, err := st.Load(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Equal(t, want, saved)

	// Clearing an already blank drawing still saves.
	require.NoError(t, b.Clear(context.Background()))
	assert.Equal(t, 2, st.count())
}

func TestDocumentSwitchFlushesPrevious(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	drag(b, pt(10, 10), pt(60, 10))
	want, err := b.Snapshot()
	require.NoError(t, err)

	require.NoError(t, b.Open(context.Background(), "doc-b", 200, 200))
	assert.Equal(t, "doc-b", b.DocumentID())
	assert.True(t, isBlank(b.Image()))
	assert.Equal(t, uint64(0), b.Revision())

	saved, err := st.Load(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Equal(t, want, saved)

	// Reopening restores the saved drawing.
	require.NoError(t, b.Open(context.Background(), "doc-a", 200, 200))
	assert.NotEqual(t, surface.Background, b.Image().RGBAAt(30, 10))
}

func TestReopenSameDocumentKeepsPendingStroke(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	drag(b, pt(10, 10), pt(60, 10))
	want, err := b.Snapshot()
	require.NoError(t, err)

	require.NoError(t, b.Open(context.Background(), "doc-a", 200, 200))
	assert.Equal(t, "doc-a", b.DocumentID())
	assert.NotEqual(t, surface.Background, b.Image().RGBAAt(30, 10))
	assert.Equal(t, 1, st.count())

	saved, err := st.Load(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Equal(t, want, saved)
}

func TestReopenSameDocumentKeepsActiveStroke(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	b.Press(pt(10, 10))
	b.Move(pt(60, 10))

	require.NoError(t, b.Open(context.Background(), "doc-a", 200, 200))
	assert.Equal(t, Idle, b.State())
	assert.NotEqual(t, surface.Background, b.Image().RGBAAt(30, 10))
	assert.Equal(t, 1, st.count())
}

// loadGate blocks Load until released so input can arrive mid-switch.
type loadGate struct {
	*recordingStore
	loading chan struct{}
	release chan struct{}
}

func (g *loadGate) Load(ctx context.Context, id string) (string, error) {
	if id == "doc-b" {
		close(g.loading)
		<-g.release
	}
	return g.recordingStore.Load(ctx, id)
}

func TestInputDuringDocumentSwitchIsIgnored(t *testing.T) {
	st := &loadGate{
		recordingStore: newRecordingStore(),
		loading:        make(chan struct{}),
		release:        make(chan struct{}),
	}
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	drag(b, pt(10, 10), pt(60, 10))

	done := make(chan error, 1)
	go func() { done <- b.Open(context.Background(), "doc-b", 200, 200) }()
	<-st.loading

	assert.Equal(t, "", b.DocumentID())
	drag(b, pt(10, 100), pt(60, 100))
	assert.Nil(t, b.Image())

	close(st.release)
	require.NoError(t, <-done)
	assert.Equal(t, "doc-b", b.DocumentID())
	assert.True(t, isBlank(b.Image()))

	saved, err := st.recordingStore.Load(context.Background(), "doc-a")
	require.NoError(t, err)
	loaded, err := surface.New(200, 200)
	require.NoError(t, err)
	require.NoError(t, loaded.LoadImage(saved))
	assert.NotEqual(t, surface.Background, loaded.Image().RGBAAt(30, 10))
	assert.Equal(t, surface.Background, loaded.Image().RGBAAt(30, 100))
}

func TestDocumentSwitchCommitsActiveShape(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	require.NoError(t, b.SetTool(state.ToolLine))
	b.Press(pt(10, 10))
	b.Move(pt(100, 10))

	require.NoError(t, b.Open(context.Background(), "doc-b", 200, 200))
	assert.Equal(t, 1, st.count())
	assert.Equal(t, Idle, b.State())
}

func TestOpenUndecodableStartsBlank(t *testing.T) {
	st := newRecordingStore()
	require.NoError(t, st.MemoryStore.Save(context.Background(), "doc-a", "not an image"))
	b := openBoard(t, st, WithSaveDelay(time.Hour))
	assert.True(t, isBlank(b.Image()))
}

func TestReloadReplacesDrawing(t *testing.T) {
	st := newRecordingStore()
	b := openBoard(t, st, WithSaveDelay(20*time.Millisecond))

	other, err := surface.New(200, 200)
	require.NoError(t, err)
	other.StrokeSegment(surface.Pen{Color: color.Black, Width: 4}, pt(0, 150), pt(200, 150))
	external, err := other.Serialize()
	require.NoError(t, err)

	drag(b, pt(10, 10), pt(60, 10))
	discarded, err := b.Reload(external)
	require.NoError(t, err)
	assert.True(t, discarded, "pending save was dropped")

	img := b.Image()
	assert.Equal(t, surface.Background, img.RGBAAt(30, 10))
	assert.NotEqual(t, surface.Background, img.RGBAAt(100, 150))
	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, st.count())
}

func TestReloadReportsDiscardedGesture(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	external, err := b.Snapshot()
	require.NoError(t, err)

	discarded, err := b.Reload(external)
	require.NoError(t, err)
	assert.False(t, discarded, "nothing to lose while idle and saved")

	b.Press(pt(10, 10))
	b.Move(pt(60, 10))
	discarded, err = b.Reload(external)
	require.NoError(t, err)
	assert.True(t, discarded)
	assert.Equal(t, Idle, b.State())
	assert.Equal(t, surface.Background, b.Image().RGBAAt(30, 10))

	// The rest of the drag paints nothing.
	b.Move(pt(60, 60))
	b.Release(pt(60, 60))
	assert.True(t, isBlank(b.Image()))
}

func TestReloadWithoutDocument(t *testing.T) {
	b := New(newRecordingStore())
	defer b.Shutdown(context.Background())
	discarded, err := b.Reload("")
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.False(t, discarded)
}

func TestResizeReleasesGesture(t *testing.T) {
	b := openBoard(t, newRecordingStore(), WithSaveDelay(time.Hour))
	b.Press(pt(10, 10))
	b.Move(pt(50, 10))
	require.NoError(t, b.Resize(100, 80))

	assert.Equal(t, Idle, b.State())
	img := b.Image()
	assert.Equal(t, image.Rect(0, 0, 100, 80), img.Bounds())
	assert.NotEqual(t, surface.Background, img.RGBAAt(30, 10))
}

func TestCloseFlushes(t *testing.T) {
	st := newRecordingStore()
	b := New(st, WithSaveDelay(time.Hour))
	require.NoError(t, b.Open(context.Background(), "doc-a", 50, 50))
	drag(b, pt(5, 5), pt(40, 5))

	require.NoError(t, b.Close(context.Background()))
	assert.Equal(t, 1, st.count())
	assert.Empty(t, b.DocumentID())
	assert.Nil(t, b.Image())
}

func TestSetToolsValidates(t *testing.T) {
	b := New(newRecordingStore())
	assert.ErrorIs(t, b.SetWidth(0), state.ErrInvalidWidth)
	assert.ErrorIs(t, b.SetTool("spray"), state.ErrInvalidTool)

	b.SetColor(color.RGBA{R: 255, A: 10})
	assert.Equal(t, color.RGBA{R: 255, A: 255}, b.Tools().Color)
}

func TestStrokeWidth(t *testing.T) {
	ts := state.DefaultToolState()
	assert.Equal(t, 2.0, StrokeWidth(ts))

	ts.Tool = state.ToolPencil
	assert.Equal(t, 1.0, StrokeWidth(ts))

	ts.Tool = state.ToolEraser
	assert.Equal(t, 20.0, StrokeWidth(ts))
	ts.Width = 4
	assert.Equal(t, 40.0, StrokeWidth(ts))

	ts.Tool = state.ToolPencil
	ts.Width = 1
	assert.Equal(t, 1.0, StrokeWidth(ts))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "texting", Texting.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestToLocal(t *testing.T) {
	surf := state.Rect{X: 100, Y: 50, Width: 300, Height: 200}
	assert.Equal(t, pt(10, 20), ToLocal(pt(110, 70), surf))
	assert.Equal(t, pt(-5, -1), ToLocal(pt(95, 49), surf))
}
