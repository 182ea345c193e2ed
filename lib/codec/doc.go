// Copyright 2026 The Sourcebots Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the project's CBOR configuration.
//
// JSON is the wire format robotd speaks and stays in lib/connection.
// CBOR is used only for files the tooling writes for itself, such as
// mock daemon state snapshots. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items, so the same board state always
// produces identical bytes and snapshots diff cleanly.
//
//	data, err := codec.Marshal(snapshot)
//	err = codec.Unmarshal(data, &snapshot)
//
// Types written only as CBOR carry `cbor` struct tags. Types that are
// also JSON (board status payloads) carry `json` tags, which
// fxamacker/cbor reads as a fallback.
package codec
