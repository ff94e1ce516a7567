// Package http provides the HTTP server for the book library.
//
// This package implements a RESTful JSON API over the library service:
// book uploads go through the cascading storage gateway, metadata reads
// and writes go through the sharded repo, and /healthz reports the
// gateway's per-provider health view.
//
// # Routes
//
//	GET    /books                 list books (search, limit)
//	POST   /books                 upload a book (multipart form)
//	GET    /books/{id}            book metadata
//	GET    /books/{id}/file       book file bytes
//	PATCH  /books/{id}/progress   update reading position
//	DELETE /books/{id}            delete book and its stored file
//	GET    /healthz               service and provider health
//
// # Usage
//
//	handlerCfg := http.HandlerConfig{
//	    Health: tracker,
//	}
//	handler := http.NewHandler(&handlerCfg, service)
//	http.ListenAndServe(":8080", handler.Router())
//
// The service parameter must implement the Service interface. A list
// response carries Degraded=true and an X-Partial-Result header when one
// or more metadata shards failed to contribute rows.
package http
