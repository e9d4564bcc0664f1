package recognition_test

import (
	"context"
	"sync"

	"cardscope/models"
	"cardscope/pkg/catalog"
	"cardscope/pkg/ocr"
)

// MockReferences returns a fixed reference for one code.
type MockReferences struct {
	ref   *models.CardReference
	err   error
	calls int
}

func (m *MockReferences) FindReference(_ context.Context, setCode, cardNumber string) (*models.CardReference, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.ref != nil && m.ref.SetCode == setCode && m.ref.CardNumber == cardNumber {
		return m.ref, nil
	}
	return nil, nil
}

type fetchCall struct {
	game, set, number string
}

// MockExternal answers per game and records every call.
type MockExternal struct {
	mu     sync.Mutex
	byGame map[string]*catalog.ExternalCardData
	calls  []fetchCall
}

func (m *MockExternal) FetchExternal(_ context.Context, game, setCode, cardNumber string) *catalog.ExternalCardData {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fetchCall{game, setCode, cardNumber})
	data, ok := m.byGame[game]
	if !ok || data == nil {
		return nil
	}
	cp := *data
	return &cp
}

// MockNormalizer returns a canned normalized image.
type MockNormalizer struct {
	err error
}

func (m *MockNormalizer) Normalize(raw []byte) (*ocr.Normalized, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &ocr.Normalized{BoundaryFound: true}, nil
}

// MockExtractor returns canned OCR text.
type MockExtractor struct {
	full, code string
	fullErr    error
}

func (m *MockExtractor) FullText(context.Context, *ocr.Normalized) (string, error) {
	return m.full, m.fullErr
}

func (m *MockExtractor) CodeRegionText(context.Context, *ocr.Normalized) (string, error) {
	return m.code, nil
}

// MockUploader records uploads.
type MockUploader struct {
	mu          sync.Mutex
	keys        []string
	contentType string
	url         string
	err         error
}

func (m *MockUploader) Upload(_ context.Context, key string, _ []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	m.contentType = contentType
	return m.url, m.err
}
