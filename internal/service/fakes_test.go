package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/go-product-lens/internal/domain"
	"github.com/arturoeanton/go-product-lens/internal/imaging"
	"github.com/arturoeanton/go-product-lens/internal/vecmath"
)

const testDimension = 64

// fakeDetector returns scripted boxes.
type fakeDetector struct {
	boxes []domain.BoundingBox
	err   error

	mu     sync.Mutex
	calls  int
	labels []string
}

func (d *fakeDetector) ModelName() string { return "fake-detector" }

func (d *fakeDetector) Detect(_ context.Context, _ []byte, labels []string) ([]domain.BoundingBox, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.labels = labels
	return d.boxes, d.err
}

func (d *fakeDetector) Ping(context.Context) error { return d.err }

// hashEncoder derives a pseudo-random vector from the input bytes, so identical
// pixels embed identically and unrelated images are nearly orthogonal.
type hashEncoder struct {
	name  string
	dim   int
	fixed []float64
	err   error

	mu    sync.Mutex
	calls int
}

func (e *hashEncoder) ModelName() string { return e.name }

func (e *hashEncoder) EncodeImage(_ context.Context, data []byte) ([]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if e.fixed != nil {
		return append([]float64(nil), e.fixed...), nil
	}
	sum := sha256.Sum256(data)
	rng := rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(sum[:8]))))
	vec := make([]float64, e.dim)
	for i := range vec {
		vec[i] = rng.NormFloat64()
	}
	return vec, nil
}

func (e *hashEncoder) Ping(context.Context) error { return e.err }

// memoryStore is an in-memory CatalogStore.
type memoryStore struct {
	mu        sync.Mutex
	entries   []domain.CatalogEntry
	searchErr error
	upsertErr error

	// last SearchByCoarse arguments
	lastCount     int
	lastThreshold float64
}

func (s *memoryStore) EnsureSchema(context.Context, []domain.VectorSchema) error { return nil }

func (s *memoryStore) Upsert(_ context.Context, entry *domain.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, e := range s.entries {
		if e.ID == entry.ID {
			return nil
		}
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memoryStore) SearchByCoarse(_ context.Context, vec domain.CoarseVector, matchCount int, minThreshold float64) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCount, s.lastThreshold = matchCount, minThreshold
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	var out []domain.Candidate
	for _, e := range s.entries {
		score, err := vecmath.Dot(vec, e.Coarse)
		if err != nil {
			return nil, err
		}
		if score >= minThreshold {
			out = append(out, domain.Candidate{Entry: e, CoarseScore: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CoarseScore > out[j].CoarseScore })
	if len(out) > matchCount {
		out = out[:matchCount]
	}
	return out, nil
}

func (s *memoryStore) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]domain.CatalogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.CatalogEntry(nil), s.entries...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memoryMedia records saved files.
type memoryMedia struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func (m *memoryMedia) Save(_ context.Context, filename, _ string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	return "http://media.test/media/" + filename, nil
}

func (m *memoryMedia) Delete(_ context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, filename)
	return nil
}

type sentMessage struct {
	recipient string
	text      string
	image     string
}

// recordingMessenger captures outgoing chat messages.
type recordingMessenger struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *recordingMessenger) SendText(_ context.Context, recipientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{recipient: recipientID, text: text})
	return m.err
}

func (m *recordingMessenger) SendImage(_ context.Context, recipientID, imageURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{recipient: recipientID, image: imageURL})
	return m.err
}

func (m *recordingMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// mapFetcher serves image bytes by URL.
type mapFetcher map[string][]byte

func (f mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f[url]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return data, nil
}

type testRig struct {
	detector *fakeDetector
	coarse   *hashEncoder
	fine     *hashEncoder
	models   *Models
	store    *memoryStore
	media    *memoryMedia
}

func newTestRig() *testRig {
	r := &testRig{
		detector: &fakeDetector{},
		coarse:   &hashEncoder{name: "fake-coarse", dim: testDimension},
		fine:     &hashEncoder{name: "fake-fine", dim: testDimension},
		store:    &memoryStore{},
		media:    &memoryMedia{},
	}
	pool := NewInferencePool(2, false)
	r.models = &Models{
		Localizer: NewLocalizer(r.detector, pool, DefaultLocalizerConfig()),
		Coarse: NewCoarseEmbedder(r.coarse, pool, EmbedderConfig{
			Preprocess: imaging.Preprocess{Model: "fake-coarse", Mode: imaging.ModeSquash, Size: 32},
			Dimension:  testDimension,
		}),
		Fine: NewFineEmbedder(r.fine, pool, EmbedderConfig{
			Preprocess: imaging.Preprocess{Model: "fake-fine", Mode: imaging.ModeCenter, Resize: 40, Crop: 32},
			Dimension:  testDimension,
		}),
	}
	return r
}

// testImage draws a deterministic pattern; different seeds give different pixels.
func testImage(w, h int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func testPNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	return mustPNG(t, testImage(w, h, seed))
}

func mustPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func unit(values ...float64) []float64 {
	v, err := vecmath.Normalize(values)
	if err != nil {
		panic(err)
	}
	return v
}
