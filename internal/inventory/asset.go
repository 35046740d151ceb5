package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/metal-toolbox/regiongen/internal/metrics"
	"github.com/metal-toolbox/regiongen/internal/model"
	"github.com/metal-toolbox/regiongen/internal/paginate"
)

const (
	AssetSourceName = "asset"

	assetDevicesResource = "/api/1.0/devices/all/"
)

// AssetClient fetches devices from the asset-management API.
type AssetClient struct {
	endpoint *url.URL
	username string
	password string
	limit    int
	client   *paginate.Client
	logger   *logrus.Logger
}

// NewAssetClient returns a client for the asset-management API at rawURL.
//
// The URL must be a https URL with no path and no embedded credentials, the
// username may not contain a colon since it would corrupt the basic auth header.
func NewAssetClient(rawURL, username, password string, logger *logrus.Logger, opts ...Option) (*AssetClient, error) {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(ErrAssetURL, err.Error())
	}

	switch {
	case endpoint.Scheme != "https":
		return nil, errors.Wrap(ErrAssetURL, `only "https" URLs are supported`)
	case endpoint.User != nil:
		return nil, errors.Wrap(ErrAssetURL, "username and password may not be specified directly in the URL")
	case endpoint.Host == "":
		return nil, errors.Wrap(ErrAssetURL, "host not specified")
	case (endpoint.Path != "" && endpoint.Path != "/") || endpoint.RawQuery != "" || endpoint.Fragment != "":
		return nil, errors.Wrap(ErrAssetURL, "trailing characters")
	case username == "":
		return nil, errors.Wrap(ErrAssetURL, "username not specified")
	case strings.Contains(username, ":"):
		return nil, errors.Wrap(ErrAssetURL, "username may not contain a colon")
	}

	if logger == nil {
		logger = logrus.New()
	}

	o := applyOptions(model.DefaultAssetPageLimit, opts)

	return &AssetClient{
		endpoint: &url.URL{Scheme: endpoint.Scheme, Host: endpoint.Host},
		username: username,
		password: password,
		limit:    o.pageLimit,
		client:   paginate.NewClient(AssetSourceName, o.timeout, o.httpClient, logger),
		logger:   logger,
	}, nil
}

// Stream returns a Fetcher over the devices in building.
func (c *AssetClient) Stream(building string) (*paginate.Fetcher[model.Device], error) {
	return paginate.New(c.limit, func(ctx context.Context, offset, limit int) (paginate.Page[model.Device], error) {
		return c.devicesPage(ctx, building, offset, limit)
	})
}

// Devices returns all devices in building.
//
// A building with no devices is an error, an empty result is most likely the
// result of a misconfigured building identifier.
func (c *AssetClient) Devices(ctx context.Context, building string) ([]model.Device, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "AssetClient.Devices")
	defer span.End()

	span.SetAttributes(attribute.String("building", building))

	startTS := time.Now()

	fetcher, err := c.Stream(building)
	if err != nil {
		return nil, err
	}

	devices, err := paginate.Collect(ctx, fetcher)
	if err != nil {
		return nil, errors.Wrap(err, "fetching devices")
	}

	metrics.FetchRunTimeSummary.With(
		prometheus.Labels{"source": AssetSourceName, "zone": building},
	).Observe(time.Since(startTS).Seconds())

	metrics.FetchRecordsCounter.With(
		prometheus.Labels{"source": AssetSourceName, "zone": building},
	).Add(float64(len(devices)))

	if len(devices) == 0 {
		return nil, errors.Wrap(ErrNoDevices, fmt.Sprintf("building %q", building))
	}

	c.logger.WithFields(logrus.Fields{
		"building": building,
		"devices":  len(devices),
		"pages":    fetcher.Pages(),
	}).Debug("fetched devices")

	return devices, nil
}

// assetPage is the asset API list response.
type assetPage struct {
	TotalCount *int              `json:"total_count"`
	Limit      *int              `json:"limit"`
	Offset     *int              `json:"offset"`
	Devices    []json.RawMessage `json:"Devices"`
}

func (c *AssetClient) devicesPage(ctx context.Context, building string, offset, limit int) (paginate.Page[model.Device], error) {
	q := url.Values{}
	q.Set("building", building)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	u := c.endpoint.ResolveReference(&url.URL{Path: assetDevicesResource, RawQuery: q.Encode()})

	resp := &assetPage{}

	err := c.client.GetJSON(ctx, u.String(), func(r *http.Request) { r.SetBasicAuth(c.username, c.password) }, resp)
	if err != nil {
		return paginate.Page[model.Device]{}, err
	}

	if resp.TotalCount != nil && *resp.TotalCount == 0 {
		return paginate.Page[model.Device]{Done: true}, nil
	}

	if resp.TotalCount == nil || resp.Limit == nil || resp.Offset == nil || resp.Devices == nil {
		return paginate.Page[model.Device]{}, errors.Wrap(
			ErrMalformedPage,
			"expected total_count, limit, offset and Devices fields",
		)
	}

	devices := make([]model.Device, 0, len(resp.Devices))

	for idx, raw := range resp.Devices {
		device, err := parseDevice(raw)
		if err != nil {
			return paginate.Page[model.Device]{}, errors.Wrap(err, fmt.Sprintf("record %d", offset+idx))
		}

		devices = append(devices, device)
	}

	return paginate.Page[model.Device]{
		Records: devices,
		Done:    paginate.TotalCountDone(*resp.Offset, *resp.Limit, *resp.TotalCount),
	}, nil
}

// rawDevice holds the asset API device fields in use.
type rawDevice struct {
	DeviceID *int64          `json:"device_id"`
	Serial   *string         `json:"serial_no"`
	Name     *string         `json:"name"`
	HWModel  *string         `json:"hw_model"`
	Building *string         `json:"building"`
	Rack     *string         `json:"rack"`
	UUID     *string         `json:"uuid"`
	RAM      *float64        `json:"ram"`
	StartAt  json.RawMessage `json:"start_at"`
}

func parseDevice(raw json.RawMessage) (model.Device, error) {
	r := &rawDevice{}
	if err := json.Unmarshal(raw, r); err != nil {
		return model.Device{}, errors.Wrap(ErrDeviceRecord, err.Error())
	}

	switch {
	case r.DeviceID == nil:
		return model.Device{}, errors.Wrap(ErrDeviceRecord, "missing device_id")
	case r.Serial == nil:
		return model.Device{}, errors.Wrap(ErrDeviceRecord, "missing serial_no")
	case r.Name == nil:
		return model.Device{}, errors.Wrap(ErrDeviceRecord, "missing name")
	case len(r.StartAt) == 0 || string(r.StartAt) == "null":
		return model.Device{}, errors.Wrap(ErrDeviceRecord, "missing start_at")
	}

	device := model.Device{
		ID:            *r.DeviceID,
		Serial:        *r.Serial,
		Name:          *r.Name,
		HardwareModel: r.HWModel,
		Building:      r.Building,
		Rack:          r.Rack,
		UUID:          r.UUID,
		RAMGB:         r.RAM,
		CreatedAt:     rawString(r.StartAt),
	}

	NormalizeDevice(&device)

	return device, nil
}

// NormalizeDevice clears nullable attributes holding an empty string.
func NormalizeDevice(d *model.Device) {
	d.HardwareModel = nonEmpty(d.HardwareModel)
	d.Building = nonEmpty(d.Building)
	d.Rack = nonEmpty(d.Rack)
	d.UUID = nonEmpty(d.UUID)
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return s
}

// rawString returns the JSON string value unquoted, other values are returned verbatim.
func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	return string(raw)
}
