package brokers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/common/errors"
)

type fakeConfig struct {
	kind  string
	valid bool
}

func (c *fakeConfig) Validate() error {
	if !c.valid {
		return fmt.Errorf("address is required")
	}
	return nil
}
func (c *fakeConfig) GetConnectionString() string { return "fake://" + c.kind }
func (c *fakeConfig) GetType() string             { return c.kind }

type otherConfig struct{ fakeConfig }

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Name() string { return "fake" }
func (m *mockPublisher) Publish(ctx context.Context, msg *Message) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *mockPublisher) Health(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockPublisher) Close() error                     { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	pub := &mockPublisher{}
	r.Register(FactoryFunc[*fakeConfig]{Type: "fake", New: func(*fakeConfig) (Publisher, error) { return pub, nil }})

	assert.True(t, r.IsRegistered("fake"))
	assert.False(t, r.IsRegistered("kafka"))
	assert.Equal(t, []string{"fake"}, r.GetAvailableTypes())

	got, err := r.Create(&fakeConfig{kind: "fake", valid: true})
	require.NoError(t, err)
	assert.Same(t, pub, got)

	_, err = r.Create(&fakeConfig{kind: "fake"})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	_, err = r.Create(&fakeConfig{kind: "kafka", valid: true})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestFactoryFunc_WrongConfigType(t *testing.T) {
	f := FactoryFunc[*fakeConfig]{Type: "fake", New: func(*fakeConfig) (Publisher, error) { return &mockPublisher{}, nil }}

	_, err := f.Create(&otherConfig{fakeConfig{kind: "fake", valid: true}})
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}
