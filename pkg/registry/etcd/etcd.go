// Kunhua Huang 2026

package etcd

import (
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ecstasoy/sockharness/pkg/codec"
)

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration

	KeyPrefix string
	LeaseTTL  int64

	// Codec encodes the stored values, JSON when nil.
	Codec codec.Codec
}

func DefaultConfig() *Config {
	return &Config{
		Endpoints:   []string{"localhost:2379"},
		DialTimeout: 5 * time.Second,
		KeyPrefix:   "/sockharness/runs",
		LeaseTTL:    30,
	}
}

type EtcdClient struct {
	client *clientv3.Client
	config *Config
	codec  codec.Codec
}

func NewEtcdClient(config *Config) (*EtcdClient, error) {
	if config == nil {
		config = DefaultConfig()
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create etcd client: %w", err)
	}

	return newEtcdClient(client, config), nil
}

func newEtcdClient(client *clientv3.Client, config *Config) *EtcdClient {
	c := config.Codec
	if c == nil {
		c = codec.GetOrDefault(codec.TypeJSON)
	}

	return &EtcdClient{
		client: client,
		config: config,
		codec:  c,
	}
}

func (ec *EtcdClient) Close() error {
	return ec.client.Close()
}

func (ec *EtcdClient) instanceKey(runID, role string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(ec.config.KeyPrefix, "/"), runID, role)
}

func (ec *EtcdClient) runPrefix(runID string) string {
	return fmt.Sprintf("%s/%s/", strings.TrimSuffix(ec.config.KeyPrefix, "/"), runID)
}
