// Package model is the in-memory model graph: semantic classes, properties and
// definitions (with their fields, regions, transitions and groups), and the
// MetaInfo declaring which attributes each kind of node may carry.
//
// A *Models is mutable while it is private to one writer. Once it is published
// through a Holder, it must not be mutated anymore. Writers Clone the published
// graph, change the clone and publish it.
package model
