// Package gdaomongo provides a MongoDB session provider for gdao
package gdaomongo

import (
	"context"
	"fmt"
	"time"

	"github.com/lemmego/gdao"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// countersCollection holds one sequence document per collection
const countersCollection = "counters"

// =====================================
// Provider Implementation
// =====================================

// Provider implements gdao.SessionFactory using MongoDB
type Provider struct {
	client       *mongo.Client
	database     *mongo.Database
	config       gdao.Config
	transactions bool
}

// Factory implements gdao.ProviderFactory
type Factory struct{}

// Create creates a new MongoDB provider instance
func (f *Factory) Create(config gdao.Config) (gdao.SessionFactory, error) {
	return Open(config)
}

// Open connects to the server described by config and pings it
func Open(config gdao.Config) (*Provider, error) {
	provider := &Provider{config: config}

	// Create client options
	clientOpts := options.Client().ApplyURI(buildConnectionURI(config))

	// Apply additional options
	mongoOpts := config.ProviderOptions("mongo")
	applyClientOptions(clientOpts, mongoOpts)
	if enabled, ok := mongoOpts["transactions"].(bool); ok {
		provider.transactions = enabled
	}

	// Create MongoDB client
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "failed to connect to MongoDB",
			Cause:   err,
		}
	}

	// Test the connection
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, gdao.Error{
			Type:    gdao.ErrorTypeConnection,
			Message: "failed to ping MongoDB",
			Cause:   err,
		}
	}

	provider.client = client
	provider.database = client.Database(config.Database)

	return provider, nil
}

// SupportedDrivers returns the list of supported database drivers
func (f *Factory) SupportedDrivers() []string {
	return []string{"mongodb", "mongo"}
}

// buildConnectionURI builds MongoDB connection URI
func buildConnectionURI(config gdao.Config) string {
	if config.ConnectionURL != "" {
		return config.ConnectionURL
	}

	uri := "mongodb://"

	// Add credentials if provided
	if config.Username != "" {
		uri += config.Username
		if config.Password != "" {
			uri += ":" + config.Password
		}
		uri += "@"
	}

	// Add host and port
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 27017
	}

	uri += fmt.Sprintf("%s:%d", host, port)

	// Add database
	if config.Database != "" {
		uri += "/" + config.Database
	}

	// Add SSL options
	if config.SSL.Enabled {
		uri += "?tls=true"
		if config.SSL.CAFile != "" {
			uri += "&tlsCAFile=" + config.SSL.CAFile
		}
		if config.SSL.CertFile != "" {
			uri += "&tlsCertificateKeyFile=" + config.SSL.CertFile
		}
	}

	return uri
}

// applyClientOptions applies MongoDB-specific client options
func applyClientOptions(clientOpts *options.ClientOptions, mongoOpts map[string]interface{}) {
	if maxPoolSize, ok := mongoOpts["max_pool_size"].(int); ok {
		clientOpts.SetMaxPoolSize(uint64(maxPoolSize))
	}
	if minPoolSize, ok := mongoOpts["min_pool_size"].(int); ok {
		clientOpts.SetMinPoolSize(uint64(minPoolSize))
	}
	if maxIdleTime, ok := mongoOpts["max_idle_time"].(time.Duration); ok {
		clientOpts.SetMaxConnIdleTime(maxIdleTime)
	}
}

// Database returns the configured database
func (p *Provider) Database() *mongo.Database { return p.database }

// OpenSession opens a session on the shared client
func (p *Provider) OpenSession(ctx context.Context) (gdao.Session, error) {
	return &Session{provider: p, open: true}, nil
}

// Health checks the database connection health
func (p *Provider) Health(ctx context.Context) error {
	return convertMongoError(p.client.Ping(ctx, readpref.Primary()))
}

// Close closes the database connection
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.client.Disconnect(ctx)
}

// SupportedFeatures returns the list of supported features
func (p *Provider) SupportedFeatures() []gdao.Feature {
	features := []gdao.Feature{
		gdao.FeatureJoins,
		gdao.FeatureDistinct,
		gdao.FeaturePagination,
		gdao.FeatureAggregation,
	}
	if p.transactions {
		features = append(features, gdao.FeatureTransactions)
	}
	return features
}

// ProviderInfo returns information about this provider
func (p *Provider) ProviderInfo() gdao.ProviderInfo {
	return gdao.ProviderInfo{
		Name:         "MongoDB",
		Version:      "1.0.0",
		DatabaseType: gdao.DatabaseTypeDocument,
		Features:     p.SupportedFeatures(),
	}
}

// =====================================
// Registration
// =====================================

// init registers the MongoDB provider factory
func init() {
	gdao.RegisterProvider("mongo", &Factory{})
	gdao.RegisterProvider("mongodb", &Factory{})
}
