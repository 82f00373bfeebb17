// Package spaceflake generates 64 bit, time sortable unique identifiers (a Snowflake ID
// variant) and decomposes them back into their parts.
//
// Layout, most significant bit first:
//
//	| 1 bit reserved | 41 bits ms since base epoch | 5 bits node | 5 bits worker | 12 bits sequence |
//
// The base epoch is not encoded in the id. It travels with the Spaceflake value and must
// be supplied again when decoding a raw id.
//
// Nodes and workers are local partitions of the id space, not networked actors. Two
// processes only produce disjoint ids if they are given disjoint (node, worker) pairs.
//
// Interfaces in this package:
//   - return errors for every invalid input, constructors included
//   - allow concurrent Generate calls on one Worker; Node mutation is caller synchronized
package spaceflake
