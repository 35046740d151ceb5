package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
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
	FleetSourceName = "fleet"

	fleetServersResource = "/servers"
)

// FleetClient fetches nodes from the fleet-management API.
type FleetClient struct {
	limit  int
	client *paginate.Client
	logger *logrus.Logger
}

// NewFleetClient returns a client for the fleet-management API, the endpoint
// address is given on each call since each zone is served by its own endpoint.
func NewFleetClient(logger *logrus.Logger, opts ...Option) *FleetClient {
	if logger == nil {
		logger = logrus.New()
	}

	o := applyOptions(model.DefaultFleetPageLimit, opts)

	return &FleetClient{
		limit:  o.pageLimit,
		client: paginate.NewClient(FleetSourceName, o.timeout, o.httpClient, logger),
		logger: logger,
	}
}

// Stream returns a Fetcher over the nodes served by endpoint.
func (c *FleetClient) Stream(endpoint string) (*paginate.Fetcher[model.Node], error) {
	base, err := fleetBaseURL(endpoint)
	if err != nil {
		return nil, err
	}

	return paginate.New(c.limit, func(ctx context.Context, offset, limit int) (paginate.Page[model.Node], error) {
		return c.nodesPage(ctx, base, offset, limit)
	})
}

// Nodes returns all nodes served by endpoint.
func (c *FleetClient) Nodes(ctx context.Context, endpoint string) ([]model.Node, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "FleetClient.Nodes")
	defer span.End()

	span.SetAttributes(attribute.String("endpoint", endpoint))

	startTS := time.Now()

	fetcher, err := c.Stream(endpoint)
	if err != nil {
		return nil, err
	}

	nodes, err := paginate.Collect(ctx, fetcher)
	if err != nil {
		return nil, errors.Wrap(err, "fetching nodes")
	}

	metrics.FetchRunTimeSummary.With(
		prometheus.Labels{"source": FleetSourceName, "zone": endpoint},
	).Observe(time.Since(startTS).Seconds())

	metrics.FetchRecordsCounter.With(
		prometheus.Labels{"source": FleetSourceName, "zone": endpoint},
	).Add(float64(len(nodes)))

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"nodes":    len(nodes),
		"pages":    fetcher.Pages(),
	}).Debug("fetched nodes")

	return nodes, nil
}

func (c *FleetClient) nodesPage(ctx context.Context, base *url.URL, offset, limit int) (paginate.Page[model.Node], error) {
	q := url.Values{}
	q.Set("extras", "sysinfo")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	u := base.ResolveReference(&url.URL{Path: fleetServersResource, RawQuery: q.Encode()})

	var records []json.RawMessage
	if err := c.client.GetJSON(ctx, u.String(), nil, &records); err != nil {
		return paginate.Page[model.Node]{}, err
	}

	if records == nil {
		return paginate.Page[model.Node]{}, errors.Wrap(paginate.ErrDecode, "fleet API response was not an array")
	}

	nodes := make([]model.Node, 0, len(records))

	for idx, raw := range records {
		node, err := parseNode(raw)
		if err != nil {
			return paginate.Page[model.Node]{}, errors.Wrap(err, fmt.Sprintf("record %d", offset+idx))
		}

		nodes = append(nodes, node)
	}

	return paginate.Page[model.Node]{
		Records: nodes,
		Done:    paginate.ShortPageDone(len(records), limit),
	}, nil
}

// fleetBaseURL returns the fleet API URL for an endpoint given as ip or ip:port.
func fleetBaseURL(endpoint string) (*url.URL, error) {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		host, port = endpoint, ""
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil, errors.Wrap(ErrFleetEndpoint, fmt.Sprintf("expected an IP address, got %q", endpoint))
	}

	if port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return nil, errors.Wrap(ErrFleetEndpoint, fmt.Sprintf("invalid port in %q", endpoint))
		}

		return &url.URL{Scheme: "http", Host: net.JoinHostPort(ip.String(), port)}, nil
	}

	if ip.To4() == nil {
		return &url.URL{Scheme: "http", Host: "[" + ip.String() + "]"}, nil
	}

	return &url.URL{Scheme: "http", Host: ip.String()}, nil
}

type rawNodeSysinfo struct {
	Product *string `json:"Product"`
	Serial  *string `json:"Serial Number"`
}

// rawNode holds the fleet API server fields in use.
type rawNode struct {
	UUID     *string         `json:"uuid"`
	Hostname *string         `json:"hostname"`
	Headnode *bool           `json:"headnode"`
	Reserved *bool           `json:"reserved"`
	RAM      *int            `json:"ram"`
	Sysinfo  *rawNodeSysinfo `json:"sysinfo"`
}

func parseNode(raw json.RawMessage) (model.Node, error) {
	r := &rawNode{}
	if err := json.Unmarshal(raw, r); err != nil {
		return model.Node{}, errors.Wrap(ErrNodeRecord, err.Error())
	}

	switch {
	case r.UUID == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing uuid")
	case r.Hostname == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing hostname")
	case r.Headnode == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing headnode")
	case r.Reserved == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing reserved")
	case r.RAM == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing ram")
	case r.Sysinfo == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing sysinfo")
	case r.Sysinfo.Product == nil:
		return model.Node{}, errors.Wrap(ErrNodeRecord, "missing sysinfo.Product")
	case r.Sysinfo.Serial == nil || *r.Sysinfo.Serial == "":
		return model.Node{}, errors.Wrap(ErrNodeRecord, `missing sysinfo."Serial Number"`)
	}

	id, err := uuid.Parse(*r.UUID)
	if err != nil {
		return model.Node{}, errors.Wrap(ErrNodeRecord, "uuid: "+err.Error())
	}

	return model.Node{
		UUID:     id.String(),
		Serial:   *r.Sysinfo.Serial,
		Hostname: *r.Hostname,
		RAMMB:    *r.RAM,
		Headnode: *r.Headnode,
		Reserved: *r.Reserved,
		Product:  *r.Sysinfo.Product,
	}, nil
}
