// Package server exposes the search engine over a JSON HTTP API.
package server
