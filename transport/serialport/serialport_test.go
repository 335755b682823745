package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/william-perry/go-mares/transport"
)

func TestMapParity(t *testing.T) {
	tests := []struct {
		name    string
		parity  transport.Parity
		want    serial.Parity
		wantErr bool
	}{
		{"none", transport.ParityNone, serial.NoParity, false},
		{"odd", transport.ParityOdd, serial.OddParity, false},
		{"even", transport.ParityEven, serial.EvenParity, false},
		{"mark", transport.ParityMark, serial.MarkParity, false},
		{"space", transport.ParitySpace, serial.SpaceParity, false},
		{"invalid", transport.Parity(99), serial.NoParity, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapParity(tt.parity)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, transport.ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapStopBits(t *testing.T) {
	tests := []struct {
		name     string
		stopBits transport.StopBits
		want     serial.StopBits
		wantErr  bool
	}{
		{"one", transport.StopBitsOne, serial.OneStopBit, false},
		{"one and half", transport.StopBitsOneAndHalf, serial.OnePointFiveStopBits, false},
		{"two", transport.StopBitsTwo, serial.TwoStopBits, false},
		{"invalid", transport.StopBits(99), serial.OneStopBit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mapStopBits(tt.stopBits)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, transport.ErrUnsupported)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigure_RejectsFlowControl(t *testing.T) {
	p := &Port{name: "test"}

	err := p.Configure(115200, 8, transport.ParityEven, transport.StopBitsOne, transport.FlowControlHardware)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrUnsupported)
}
