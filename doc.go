// Package esdex binds application records to an Elasticsearch index.
//
// An Index derives each record's identity (document type, id and parent),
// shapes its search data into an engine-safe document and performs single,
// bulk and lifecycle operations against one index name. The engine client
// is injected and owned by the caller.
//
//	client, _ := esdex.New(esdex.WithAddresses("http://localhost:9200"))
//	products := client.Index("products")
//	_ = products.Create(ctx, nil)
//	_ = products.Store(ctx, record)
//	_, _ = products.Import(ctx, records)
//
// A Reindexer rebuilds an alias onto a fresh timestamped index and swaps the
// alias atomically once every record is imported.
package esdex
