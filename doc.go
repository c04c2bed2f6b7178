// Package dache implements the client side of a distributed in-memory
// cache: a Cache Client Facade that routes operations across a fleet of
// cache hosts organized into redundancy Buckets, with optional host
// discovery and host-pushed invalidation.
//
// A Client owns one Routing Table, built once at construction from the
// configured (or discovered) fleet. Every public operation resolves a
// routing string (a cache key, or a tag name for tag-scoped operations) to
// a Bucket and retries on transport failure until the Bucket is reachable
// again or the whole fleet is exhausted.
package dache
