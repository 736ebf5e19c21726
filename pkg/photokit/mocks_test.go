package photokit

import (
	"image"

	"github.com/bstardust/photokit/pkg/imageio"
	"github.com/bstardust/photokit/pkg/tags"
	"github.com/stretchr/testify/mock"
)

// MockDecoder is a mock implementation of imageio.Decoder
type MockDecoder struct {
	mock.Mock
}

func (m *MockDecoder) Open(path string) (imageio.Source, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(imageio.Source), args.Error(1)
}

func (m *MockDecoder) OpenBytes(data []byte, name string) (imageio.Source, error) {
	args := m.Called(data, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(imageio.Source), args.Error(1)
}

// MockSource is a mock implementation of imageio.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Frame(index int) (image.Image, error) {
	args := m.Called(index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *MockSource) Properties(index int) (tags.Dict, error) {
	args := m.Called(index)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tags.Dict), args.Error(1)
}

func (m *MockSource) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEncoder is a mock implementation of imageio.Encoder
type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) Create(path string, format imageio.Format) (imageio.Destination, error) {
	args := m.Called(path, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(imageio.Destination), args.Error(1)
}

// MockDestination is a mock implementation of imageio.Destination
type MockDestination struct {
	mock.Mock
}

func (m *MockDestination) AddImage(img image.Image, props tags.Dict) error {
	args := m.Called(img, props)
	return args.Error(0)
}

func (m *MockDestination) Finalize() error {
	args := m.Called()
	return args.Error(0)
}
