// Package mongoclient is the MongoDB backend used by the benchmark runner.
package mongoclient

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/torosent/mongo-bench/internal/clientmetrics"
	"github.com/torosent/mongo-bench/internal/workload"
)

const defaultConnectTimeout = 10 * time.Second

// Options configure Connect.
type Options struct {
	URI            string
	Database       string
	Collection     string
	AppName        string
	ConnectTimeout time.Duration
	DrainCursor    bool // iterate every returned document before closing
	Metrics        *clientmetrics.ClientMetrics
	Logger         *zap.Logger
}

// Client executes find queries against one collection. It is safe for
// concurrent use; the driver pools connections internally.
type Client struct {
	client  *mongo.Client
	coll    *mongo.Collection
	drain   bool
	metrics *clientmetrics.ClientMetrics
	log     *zap.Logger
}

// Connect builds a driver client, connects and pings the deployment. Any
// failure is returned as a *ConnectionError.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = clientmetrics.New()
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	if opts.Database == "" || opts.Collection == "" {
		return nil, &ConnectionError{Stage: "configure", Err: errors.New("database and collection are required")}
	}

	clientOpts := clientOptions(opts, m, timeout)
	if err := clientOpts.Validate(); err != nil {
		return nil, &ConnectionError{Stage: "configure", Err: err}
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, &ConnectionError{Stage: "connect", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &ConnectionError{Stage: "ping", Err: err}
	}
	m.MarkConnected()
	log.Info("Connected to MongoDB",
		zap.String("database", opts.Database),
		zap.String("collection", opts.Collection),
	)

	return &Client{
		client:  client,
		coll:    client.Database(opts.Database).Collection(opts.Collection),
		drain:   opts.DrainCursor,
		metrics: m,
		log:     log,
	}, nil
}

func clientOptions(opts Options, m *clientmetrics.ClientMetrics, timeout time.Duration) *options.ClientOptions {
	appName := opts.AppName
	if appName == "" {
		appName = "mongo-bench"
	}
	return options.Client().
		ApplyURI(opts.URI).
		SetAppName(appName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetPoolMonitor(m.PoolMonitor()).
		SetMonitor(m.CommandMonitor())
}

// Execute runs one find. Errors are returned as *QueryError.
func (c *Client) Execute(ctx context.Context, q workload.Query) error {
	filter := q.Filter
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := c.coll.Find(ctx, filter, findOptions(q))
	if err != nil {
		return wrapQueryError(err)
	}
	defer cur.Close(ctx)

	if !c.drain {
		return nil
	}
	var n int64
	for cur.Next(ctx) {
		n++
	}
	if err := cur.Err(); err != nil {
		return wrapQueryError(err)
	}
	c.metrics.AddDocuments(n)
	return nil
}

// Metrics returns the driver counters collected for this client.
func (c *Client) Metrics() *clientmetrics.ClientMetrics {
	return c.metrics
}

// Close disconnects from the deployment.
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Disconnect(ctx)
}

func findOptions(q workload.Query) *options.FindOptions {
	fo := options.Find()
	if q.Limit != nil {
		fo.SetLimit(*q.Limit)
	}
	if q.Sort != nil {
		fo.SetSort(q.Sort)
	}
	if q.Collation != nil {
		fo.SetCollation(q.Collation)
	}
	return fo
}
