/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis is a Channel backed by Redis pub/sub, for deployments running more
// than one couplebox instance: a write landing on one instance still
// reaches partners whose sockets are held by another. Delivery remains
// best-effort and at-most-once; disconnected clients resynchronize with a
// Read on reconnect.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis instance at addr and verifies it answers.
func NewRedis(addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return &Redis{client: client}, nil
}

func topic(key Key) string {
	return "couplebox:" + key.CoupleID + ":" + string(key.Game)
}

// Publish implements Channel. A marshal or network failure here is dropped
// rather than failing the write that triggered it: propagation is
// best-effort, durability already happened at the backend.
func (r *Redis) Publish(key Key, doc Document) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = r.client.Publish(ctx, topic(key), payload).Err()
}

// Subscribe implements Channel. The returned cancel closes the underlying
// Redis subscription and stops the delivery goroutine.
func (r *Redis) Subscribe(key Key, fn func(Document)) func() {
	pubsub := r.client.Subscribe(context.Background(), topic(key))

	go func() {
		for msg := range pubsub.Channel() {
			var doc Document
			if err := json.Unmarshal([]byte(msg.Payload), &doc); err != nil {
				continue
			}
			fn(doc)
		}
	}()

	return func() {
		_ = pubsub.Close()
	}
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
