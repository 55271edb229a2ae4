// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the core data types for sentinel-tui: chat logs and
// their entries, character definitions, participant references, and model
// configurations.
//
// A ChatLog owns the ordered conversation history for one primary character
// plus an optional roster of other participants. Entries are append-only
// except for the explicit edit and delete operations. Every type here is a
// plain value with JSON or TOML tags; persistence lives in the storage
// package.
package model
