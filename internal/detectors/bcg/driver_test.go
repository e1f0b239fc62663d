package bcg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeADC struct {
	chunks [][]float64
	idx    int
	closed bool
}

func (a *fakeADC) ReadChunk(ctx context.Context) ([]float64, error) {
	if a.idx >= len(a.chunks) {
		return nil, errors.New("exhausted")
	}
	chunk := a.chunks[a.idx]
	a.idx++
	return chunk, nil
}

func (a *fakeADC) Close() error { a.closed = true; return nil }

func TestDriver_ConnectReadDisconnect(t *testing.T) {
	adc := &fakeADC{chunks: [][]float64{{0.01, 0.02}}}
	d := NewDriver(func() (ADC, error) { return adc, nil })

	require.NoError(t, d.Connect(context.Background()))
	frame, err := d.Read(context.Background())
	require.NoError(t, err)
	f, ok := frame.(Frame)
	require.True(t, ok)
	assert.Equal(t, []float64{0.01, 0.02}, f.Samples)

	require.NoError(t, d.Disconnect(context.Background()))
	assert.True(t, adc.closed)
}

func TestDriver_ReadBeforeConnectIsFatal(t *testing.T) {
	d := NewDriver(func() (ADC, error) { return nil, nil })
	_, err := d.Read(context.Background())
	assert.Error(t, err)
}

func TestDriver_ConnectFailurePropagates(t *testing.T) {
	d := NewDriver(func() (ADC, error) { return nil, errors.New("no adc") })
	assert.Error(t, d.Connect(context.Background()))
}
