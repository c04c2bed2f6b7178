package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hyp3rd/dache"
	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
)

func main() {
	client, err := dache.New[string](
		dache.WithCacheHosts(
			hostconn.Endpoint{Address: "127.0.0.1", Port: 9001},
			hostconn.Endpoint{Address: "127.0.0.1", Port: 9002},
		),
		dache.WithHostRedundancyLayers(1),
		dache.WithLogger(logging.NewStd()),
		dache.WithManagementHTTPAddr(":9100"),
	)
	if err != nil {
		fmt.Println(err)

		return
	}

	defer func() {
		if shutdownErr := client.Shutdown(); shutdownErr != nil {
			fmt.Println(shutdownErr)
		}
	}()

	client.OnHostDisconnected(func(e dache.HostDisconnectedEvent) {
		fmt.Println("host disconnected:", e.Endpoint)
	})

	client.OnCacheItemExpired(func(e dache.CacheItemExpiredEvent) {
		fmt.Println("expired:", e.CacheKey)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = client.AddOrUpdate(ctx, "greeting", "hello, dache", dache.WithTag("demo"))
	if err != nil {
		fmt.Println("add failed:", err)

		return
	}

	value, ok, err := client.TryGet(ctx, "greeting")
	if err != nil {
		fmt.Println("get failed:", err)

		return
	}

	if !ok {
		fmt.Println("greeting not found")

		return
	}

	fmt.Println("greeting:", value)
}
