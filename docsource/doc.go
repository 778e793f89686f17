// Package docsource provides document corpus loaders for index rebuilds.
package docsource
