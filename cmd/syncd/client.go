package main

import (
	"time"

	"github.com/localsync/syncd/internal/rpc"
)

const clientTimeout = 5 * time.Second

func newClient() *rpc.Client {
	return rpc.NewClient(resolveSocketPath(), clientTimeout)
}
