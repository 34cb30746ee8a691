/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cfg := &Config{port: 8080}
	assert.NoError(t, cfg.validate())

	cfg = &Config{port: 0}
	assert.Error(t, cfg.validate())

	cfg = &Config{port: 70000}
	assert.Error(t, cfg.validate())

	cfg = &Config{port: 8080, tlsCert: "cert.pem"}
	assert.Error(t, cfg.validate())

	cfg = &Config{port: 8080, tlsCert: "cert.pem", tlsKey: "key.pem"}
	assert.NoError(t, cfg.validate())
}

func TestScheme(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "http", cfg.scheme())

	cfg = &Config{tlsCert: "cert.pem", tlsKey: "key.pem"}
	assert.Equal(t, "https", cfg.scheme())
}
