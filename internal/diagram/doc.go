// Package diagram defines the diagram entity graph and its JSON wire format.
//
// The wire format is the diagram backup format: camelCase keys, timestamps as
// epoch milliseconds, fields and indexes inline on their table. Owner
// references (the diagram id on child rows) are a storage concern and do not
// appear here.
//
// Field is deliberately opaque: only its id and creation time are typed, so
// attributes this package does not know about survive a decode/encode cycle.
package diagram
