// Package redisstore implements the xstream collaborators against a Redis
// server with redigo.
package redisstore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Options describes how to reach the server.
type Options struct {
	Addr        string
	Password    string
	DB          int
	TLS         *tls.Config
	MaxIdle     int
	MaxActive   int
	IdleTimeout time.Duration
	DialTimeout time.Duration
}

const (
	defaultMaxIdle     = 8
	defaultIdleTimeout = 4 * time.Minute
	defaultDialTimeout = 5 * time.Second
	// readMargin is added to the server-side block time of XREAD so the
	// client never gives up before the server answers.
	readMargin = time.Second
)

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:6379"
	}
	if o.MaxIdle <= 0 {
		o.MaxIdle = defaultMaxIdle
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = defaultIdleTimeout
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	return o
}

// Dial opens a single connection, authenticating and selecting the database
// when configured. The TLS/Auth must be correct in order to establish a
// connection.
func Dial(ctx context.Context, opts Options) (redis.Conn, error) {
	opts = opts.withDefaults()
	dialOpts := []redis.DialOption{redis.DialConnectTimeout(opts.DialTimeout)}
	if opts.TLS != nil {
		dialOpts = append(dialOpts, redis.DialUseTLS(true), redis.DialTLSConfig(opts.TLS))
	}
	conn, err := redis.DialContext(ctx, "tcp", opts.Addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	if opts.Password != "" {
		res, err := redis.String(conn.Do("auth", opts.Password))
		if err != nil {
			conn.Close()
			return nil, err
		}
		if res != "OK" {
			conn.Close()
			return nil, fmt.Errorf("'OK', got '%s'", res)
		}
	}
	if opts.DB != 0 {
		if _, err := conn.Do("select", opts.DB); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// LoadTLS loads a certificate pair. The server name is taken from the first
// DNS name found in the chain.
func LoadTLS(certFile, keyFile string) (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	tlscfg := &tls.Config{
		Certificates: []tls.Certificate{pair},
	}
	for _, cert := range pair.Certificate {
		pcert, err := x509.ParseCertificate(cert)
		if err != nil {
			return nil, err
		}
		if len(pcert.DNSNames) > 0 {
			tlscfg.ServerName = pcert.DNSNames[0]
			break
		}
	}
	return tlscfg, nil
}
