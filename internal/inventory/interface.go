package inventory

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/metal-toolbox/regiongen/internal/model"
)

const (
	pkgName = "internal/inventory"
)

var (
	// ErrNoDevices is returned when the asset system has no devices for a building.
	ErrNoDevices = errors.New("no devices found")

	// ErrDeviceRecord is returned when an asset system record lacks a required field or a field has the wrong type.
	ErrDeviceRecord = errors.New("invalid device record")

	// ErrNodeRecord is returned when a fleet system record fails validation.
	ErrNodeRecord = errors.New("invalid node record")

	// ErrAssetURL is returned when the asset system URL or credentials are not acceptable.
	ErrAssetURL = errors.New("asset API URL error")

	// ErrFleetEndpoint is returned when a fleet system endpoint is not an IP address.
	ErrFleetEndpoint = errors.New("fleet API endpoint error")

	// ErrCollectInput is returned when Collect is invoked without a region or device source.
	ErrCollectInput = errors.New("invalid collect input")

	// ErrMalformedPage is returned when a page response is missing required fields.
	ErrMalformedPage = errors.New("malformed page response")
)

// DeviceSource returns the asset system devices in a building.
type DeviceSource interface {
	Devices(ctx context.Context, building string) ([]model.Device, error)
}

// NodeSource returns the fleet system nodes served by an endpoint.
type NodeSource interface {
	Nodes(ctx context.Context, endpoint string) ([]model.Node, error)
}

// Option sets optional client parameters.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	pageLimit  int
}

// WithHTTPClient sets the http client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = c
	}
}

// WithRequestTimeout sets the timeout applied to each page request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithPageLimit overrides the number of records requested per page.
func WithPageLimit(limit int) Option {
	return func(o *clientOptions) {
		o.pageLimit = limit
	}
}

func applyOptions(defaultLimit int, opts []Option) *clientOptions {
	o := &clientOptions{pageLimit: defaultLimit}
	for _, opt := range opts {
		opt(o)
	}

	return o
}
