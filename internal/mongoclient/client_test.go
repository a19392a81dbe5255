package mongoclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/torosent/mongo-bench/internal/clientmetrics"
	"github.com/torosent/mongo-bench/internal/workload"
)

func TestFindOptions(t *testing.T) {
	limit := int64(10)
	q := workload.Query{
		Filter:    bson.D{{Key: "status", Value: "A"}},
		Sort:      bson.D{{Key: "qty", Value: -1}},
		Collation: &options.Collation{Locale: "en", Strength: 2},
		Limit:     &limit,
	}
	fo := findOptions(q)

	if fo.Limit == nil || *fo.Limit != 10 {
		t.Errorf("Limit = %v, want 10", fo.Limit)
	}
	sort, ok := fo.Sort.(bson.D)
	if !ok || len(sort) != 1 || sort[0].Key != "qty" {
		t.Errorf("Sort = %v", fo.Sort)
	}
	if fo.Collation == nil || fo.Collation.Locale != "en" {
		t.Errorf("Collation = %+v", fo.Collation)
	}
}

func TestFindOptionsEmpty(t *testing.T) {
	fo := findOptions(workload.Query{})
	if fo.Limit != nil || fo.Sort != nil || fo.Collation != nil {
		t.Errorf("expected no modifiers, got %+v", fo)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"canceled", fmt.Errorf("find: %w", context.Canceled), "canceled"},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"max time", mongo.CommandError{Code: 50, Name: "MaxTimeMSExpired"}, "timeout"},
		{"network label", mongo.CommandError{Code: 6, Name: "HostUnreachable", Labels: []string{"NetworkError"}}, "network"},
		{"command", mongo.CommandError{Code: 2, Name: "BadValue"}, "command:BadValue"},
		{"unnamed command", mongo.CommandError{Code: 13}, "command:13"},
		{"plain", errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryErrorExposesClass(t *testing.T) {
	cause := mongo.CommandError{Code: 2, Name: "BadValue"}
	err := wrapQueryError(cause)

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if qe.Class() != "command:BadValue" {
		t.Errorf("Class() = %q", qe.Class())
	}
	var ce mongo.CommandError
	if !errors.As(err, &ce) {
		t.Error("QueryError does not unwrap to the driver error")
	}
	if wrapQueryError(nil) != nil {
		t.Error("wrapQueryError(nil) should be nil")
	}
}

func TestClientOptions(t *testing.T) {
	m := clientmetrics.New()
	co := clientOptions(Options{URI: "mongodb://localhost:27017"}, m, 3*time.Second)

	if co.AppName == nil || *co.AppName != "mongo-bench" {
		t.Errorf("AppName = %v, want mongo-bench", co.AppName)
	}
	if co.ConnectTimeout == nil || *co.ConnectTimeout != 3*time.Second {
		t.Errorf("ConnectTimeout = %v", co.ConnectTimeout)
	}
	if co.PoolMonitor == nil || co.Monitor == nil {
		t.Error("monitors not installed")
	}
}

func TestConnectRejectsBadURI(t *testing.T) {
	_, err := Connect(context.Background(), Options{
		URI:        "postgres://nope",
		Database:   "db",
		Collection: "coll",
	})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
	if connErr.Stage != "configure" {
		t.Errorf("Stage = %q, want configure", connErr.Stage)
	}
}

func TestConnectRequiresNamespace(t *testing.T) {
	_, err := Connect(context.Background(), Options{URI: "mongodb://localhost"})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
}

func TestConnectPingFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("dials a closed port")
	}
	_, err := Connect(context.Background(), Options{
		URI:            "mongodb://127.0.0.1:1/?directConnection=true",
		Database:       "db",
		Collection:     "coll",
		ConnectTimeout: 300 * time.Millisecond,
	})
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected *ConnectionError, got %v", err)
	}
	if connErr.Stage != "ping" {
		t.Errorf("Stage = %q, want ping", connErr.Stage)
	}
}

func TestCloseNilClient(t *testing.T) {
	var c *Client
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close() on nil client = %v", err)
	}
}
