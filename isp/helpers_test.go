package isp

import (
	"testing"
	"time"

	"github.com/okmcu/fsisp/internal/simdev"
	"github.com/okmcu/fsisp/logger"
	"github.com/stretchr/testify/require"
)

const testTimeout = 20 * time.Millisecond

var testAttributes = simdev.Attributes{
	PartNumber: "S32K144",
	UUID:       "0123456789ABCDEF",
	Major:      1,
	Minor:      2,
	Build:      3,
	FlashAddr:  0x08080000,
	Size:       0x00004000,
}

func newTestDevice() *simdev.Device {
	return simdev.NewBootloader(DefaultDeviceAddr, testAttributes)
}

func newTestClient(t *testing.T, dev *simdev.Device, opts ...ClientOption) *Client {
	t.Helper()

	opts = append([]ClientOption{
		WithReadTimeout(testTimeout),
		WithRetryInterval(time.Millisecond),
		WithLogger(logger.Nop()),
	}, opts...)

	cfg, err := NewClientConfig(opts...)
	require.NoError(t, err)

	client, err := NewClient(dev, cfg)
	require.NoError(t, err)

	return client
}
