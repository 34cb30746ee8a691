/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageLinksToPrefixedRoot(t *testing.T) {
	cfg := &Config{prefix: "/couples"}
	assert.Contains(t, newPage(cfg, "Server Error", "oops"), `href="/couples/"`)

	cfg = &Config{}
	assert.Contains(t, newPage(cfg, "Server Error", "oops"), `href="/"`)
}
